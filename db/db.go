// Package db is the persistence gateway for listening-party rows. It talks to
// an existing Postgres table whose name and columns come from configuration.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

const pingTimeout = 5 * time.Second

// Connect opens the process-wide Postgres connection. The pool is capped at a
// single open connection; every statement the bot issues runs on it in turn.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connect: empty dsn")
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(0)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("connected to postgres", slog.String("component", "db"))
	return conn, nil
}
