package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/common"
)

// BatchLog records batch runs and their per-document outcomes.
type BatchLog struct {
	db *sql.DB
}

func NewBatchLog(db *sql.DB) *BatchLog {
	return &BatchLog{db: db}
}

// DocumentRow is one persisted document outcome.
type DocumentRow struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	Filename    string
	Status      constants.DocStatus
	FailureKind constants.FailureKind
	Reason      string
	ProcessedAt time.Time
}

// StartRun registers a new batch run and returns its id.
func (l *BatchLog) StartRun(ctx context.Context, total int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO batch_run (id, started_at, total) VALUES (?, ?, ?)`,
		id.String(), time.Now().UTC(), total)
	if err != nil {
		return uuid.Nil, common.NewAppError("DB_INSERT", "start batch run", err)
	}
	return id, nil
}

// FinishRun stamps the run as finished with its final tallies.
func (l *BatchLog) FinishRun(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE batch_run SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
		time.Now().UTC(), succeeded, failed, id.String())
	if err != nil {
		return common.NewAppError("DB_UPDATE", "finish batch run", err)
	}
	return nil
}

// RecordDocument upserts the outcome for one document of a run.
func (l *BatchLog) RecordDocument(ctx context.Context, row DocumentRow) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO document_result (id, batch_id, filename, status, failure_kind, reason, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   failure_kind = excluded.failure_kind,
		   reason = excluded.reason,
		   processed_at = excluded.processed_at`,
		row.ID.String(), row.BatchID.String(), row.Filename,
		string(row.Status), string(row.FailureKind), row.Reason,
		row.ProcessedAt.UTC())
	if err != nil {
		return common.NewAppError("DB_INSERT", "record document outcome", err)
	}
	return nil
}

// ListDocuments returns every document outcome of a run, in insertion order.
func (l *BatchLog) ListDocuments(ctx context.Context, batchID uuid.UUID) ([]DocumentRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, batch_id, filename, status, failure_kind, reason, processed_at
		 FROM document_result WHERE batch_id = ? ORDER BY processed_at, id`,
		batchID.String())
	if err != nil {
		return nil, common.NewAppError("DB_QUERY", "list document outcomes", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DocumentRow
	for rows.Next() {
		var (
			r                 DocumentRow
			id, batch, status string
			kind              string
		)
		if err := rows.Scan(&id, &batch, &r.Filename, &status, &kind, &r.Reason, &r.ProcessedAt); err != nil {
			return nil, common.NewAppError("DB_SCAN", "scan document outcome", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, common.NewAppError("DB_SCAN", "parse document id", err)
		}
		if r.BatchID, err = uuid.Parse(batch); err != nil {
			return nil, common.NewAppError("DB_SCAN", "parse batch id", err)
		}
		r.Status = constants.DocStatus(status)
		r.FailureKind = constants.FailureKind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_QUERY", "list document outcomes", err)
	}
	return out, nil
}
