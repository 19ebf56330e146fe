// Package sqliteep records notifications in a SQLite database, one row per
// delivery. Useful as an audit trail or as a handoff point for tools that
// poll the database.
package sqliteep

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"passiton/pkg/config"
	"passiton/pkg/endpoints"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	text        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_name_idx ON notifications (name);
`

type Config struct {
	Path string `json:"path"`
}

type SQLiteEndpoint struct {
	db  *sql.DB
	log logx.Logger
}

// Factory adapts New to the registry contract.
func Factory(rec config.EndpointRecord, log logx.Logger) (endpoints.Endpoint, error) {
	var cfg Config
	if err := rec.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, log)
}

func New(cfg Config, log logx.Logger) (*SQLiteEndpoint, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite endpoint: path is empty")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite endpoint: %w", err)
	}
	// modernc.org/sqlite serializes writers; one connection avoids
	// SQLITE_BUSY churn under concurrent fan-out.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite endpoint: create schema: %w", err)
	}
	return &SQLiteEndpoint{
		db:  db,
		log: log.With(logx.String("endpoint", "sqlite"), logx.String("path", cfg.Path)),
	}, nil
}

func (e *SQLiteEndpoint) Name() string { return "sqlite" }

func (e *SQLiteEndpoint) Deliver(ctx context.Context, n notifications.Notification) error {
	const q = `INSERT INTO notifications (id, name, text, created_at, received_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := e.db.ExecContext(ctx, q, n.Message.ID, n.Name, n.Message.Text, n.Message.Time, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("sqlite endpoint: insert: %w", err)
	}
	return nil
}

func (e *SQLiteEndpoint) Close(ctx context.Context) error {
	return e.db.Close()
}
