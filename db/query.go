package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table names the listening-party table and the columns the gateway reads by
// name. Name may be schema-qualified ("music.parties").
type Table struct {
	Name          string
	KeyColumn     string
	IssuerColumn  string
	ArtistsColumn string
}

func (t Table) ident() string {
	return pgx.Identifier(strings.Split(t.Name, ".")).Sanitize()
}

func column(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (t Table) existsQuery() string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1 LIMIT 1", t.ident(), column(t.KeyColumn))
}

func (t Table) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.ident(), column(t.KeyColumn))
}

func (t Table) issuerArtistsQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
		column(t.ArtistsColumn), t.ident(), column(t.IssuerColumn), column(t.KeyColumn))
}

// insertQuery builds INSERT INTO <table> (<cols>) VALUES ($1, ..., $n).
func (t Table) insertQuery(columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = column(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.ident(), strings.Join(quoted, ", "), strings.Join(params, ", "))
}
