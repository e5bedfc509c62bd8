// Package repository persists batch runs and per-document outcomes in a
// local SQLite database so runs can be audited after the process exits.
package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/panabill/invoice-extractor/internal/common"
)

type Config struct {
	Path        string // file path, or ":memory:" for tests
	DialTimeout time.Duration
}

// Open opens (creating if needed) the batch-log database and runs migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to batch log", "path", cfg.Path)

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		logger.Error("failed to open batch log", "error", err)
		return nil, common.NewAppError("DB_OPEN", "open batch log", err)
	}
	// modernc sqlite is serialized per connection; a single connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping batch log", "error", err)
		_ = db.Close()
		return nil, common.NewAppError("DB_PING", "ping batch log", err)
	}
	if err := migrate(ctx, db); err != nil {
		logger.Error("failed to migrate batch log", "error", err)
		_ = db.Close()
		return nil, err
	}

	logger.Info("batch log ready")
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS batch_run (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	total       INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS document_result (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL REFERENCES batch_run(id),
	filename     TEXT NOT NULL,
	status       TEXT NOT NULL,
	failure_kind TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_result_batch ON document_result(batch_id);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return common.NewAppError("DB_MIGRATE", "create batch log schema", err)
	}
	return nil
}
