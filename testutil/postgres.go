package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// SetupTestDB connects to TEST_PG_DSN and creates a fresh listening-party
// table, dropped again on cleanup. It skips the test if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	database.SetMaxOpenConns(1)

	table := fmt.Sprintf("lp_test_%d", time.Now().UnixNano())
	ctx := context.Background()
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		message_id BIGINT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		issuer_id BIGINT NOT NULL,
		issuer_name TEXT,
		issuer_nickname TEXT,
		source_url TEXT,
		artists TEXT[],
		album_name TEXT,
		playlist_owner TEXT,
		playlist_name TEXT
	)`, table)
	if _, err := database.ExecContext(ctx, ddl); err != nil {
		database.Close()
		t.Fatalf("failed to create table: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table)
		database.Close()
	})
	return database, table
}
