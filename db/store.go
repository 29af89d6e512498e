package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/onnwee/lpbot/lp"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Store implements lp.Store against a single Postgres table.
type Store struct {
	db    *sql.DB
	table Table
	types *pgtype.Map
}

// NewStore wraps an open connection. Every Table field must be set.
func NewStore(conn *sql.DB, table Table) (*Store, error) {
	switch {
	case conn == nil:
		return nil, errors.New("new store: nil connection")
	case table.Name == "", table.KeyColumn == "", table.IssuerColumn == "", table.ArtistsColumn == "":
		return nil, fmt.Errorf("new store: incomplete table config %+v", table)
	}
	return &Store{db: conn, table: table, types: pgtype.NewMap()}, nil
}

// Exists reports whether a row keyed by messageID is present.
func (s *Store) Exists(ctx context.Context, messageID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.table.existsQuery(), messageID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("exists %d: %w", messageID, err)
	}
	return true, nil
}

// Insert writes one row in its own transaction. Mismatched column and value
// counts are rejected before anything reaches the database.
func (s *Store) Insert(ctx context.Context, columns []string, values []any) error {
	if len(columns) != len(values) {
		return fmt.Errorf("%w: %d columns, %d values", lp.ErrFieldCountMismatch, len(columns), len(values))
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", lp.ErrFieldCountMismatch)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.table.insertQuery(columns), values...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", lp.ErrDuplicate, pgErr.Detail)
			}
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
}

// Delete removes the row keyed by messageID in its own transaction. Deleting a
// missing row is not an error.
func (s *Store) Delete(ctx context.Context, messageID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.table.deleteQuery(), messageID)
		if err != nil {
			return fmt.Errorf("delete %d: %w", messageID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			slog.Warn("delete matched no rows", slog.Int64("message_id", messageID), slog.String("component", "db"))
		}
		return nil
	})
}

// IssuerArtists returns the artists array of every row logged by issuerID,
// oldest message first.
func (s *Store) IssuerArtists(ctx context.Context, issuerID int64) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, s.table.issuerArtistsQuery(), issuerID)
	if err != nil {
		return nil, fmt.Errorf("issuer artists %d: %w", issuerID, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var artists []string
		if err := rows.Scan(s.types.SQLScanner(&artists)); err != nil {
			return nil, fmt.Errorf("scan artists: %w", err)
		}
		out = append(out, artists)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("issuer artists %d: %w", issuerID, err)
	}
	return out, nil
}

// Ping checks the connection; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
