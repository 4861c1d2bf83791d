package db

import (
	"context"
	"time"

	"horse.fit/culldron/internal/ingest"
)

// RunLedger stores ingest run bookkeeping in culldron.ingest_runs.
type RunLedger struct {
	pool *Pool
}

func NewRunLedger(pool *Pool) *RunLedger {
	return &RunLedger{pool: pool}
}

func (l *RunLedger) StartRun(ctx context.Context, feedURL string, startedAt time.Time) (int64, error) {
	const q = `
INSERT INTO culldron.ingest_runs (feed_url, status, started_at)
VALUES ($1, 'running', $2)
RETURNING run_id
`
	var runID int64
	if err := l.pool.QueryRow(ctx, q, feedURL, startedAt.UTC()).Scan(&runID); err != nil {
		return 0, err
	}
	return runID, nil
}

func (l *RunLedger) CompleteRun(ctx context.Context, runID int64, result ingest.Result, finishedAt time.Time) error {
	const q = `
UPDATE culldron.ingest_runs
SET
	status = 'completed',
	items_total = $2,
	items_ingested = $3,
	items_skipped = $4,
	finished_at = $5,
	error_message = NULL
WHERE run_id = $1
`
	_, err := l.pool.Exec(ctx, q, runID, result.Total, result.Ingested, result.Skipped, finishedAt.UTC())
	return err
}

func (l *RunLedger) FailRun(ctx context.Context, runID int64, message string, finishedAt time.Time) error {
	const q = `
UPDATE culldron.ingest_runs
SET
	status = 'failed',
	error_message = $2,
	finished_at = $3
WHERE run_id = $1
`
	_, err := l.pool.Exec(ctx, q, runID, message, finishedAt.UTC())
	return err
}
