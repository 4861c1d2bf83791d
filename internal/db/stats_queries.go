package db

import (
	"context"
	"fmt"
	"time"
)

// RunCounts groups ingest runs by status.
type RunCounts struct {
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Stats is the read model returned by the stats endpoint.
type Stats struct {
	Theses         int64      `json:"theses"`
	Themes         int64      `json:"themes"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
	IngestedToday  int64      `json:"ingested_today"`
	Runs           RunCounts  `json:"runs"`
}

// QueryStats returns corpus totals and ingest run counts. dayStart bounds the
// "today" counter.
func (p *Pool) QueryStats(ctx context.Context, dayStart time.Time) (*Stats, error) {
	stats := &Stats{}

	const corpusQuery = `
SELECT
	COUNT(*)::BIGINT,
	COUNT(DISTINCT t.theme_id)::BIGINT,
	MAX(t.ingested_at),
	COUNT(*) FILTER (WHERE t.ingested_at >= $1)::BIGINT
FROM culldron.theses t
`
	if err := p.QueryRow(ctx, corpusQuery, dayStart.UTC()).Scan(
		&stats.Theses,
		&stats.Themes,
		&stats.LastIngestedAt,
		&stats.IngestedToday,
	); err != nil {
		return nil, fmt.Errorf("query corpus stats: %w", err)
	}

	const runsQuery = `
SELECT
	COUNT(*) FILTER (WHERE r.status = 'running')::BIGINT,
	COUNT(*) FILTER (WHERE r.status = 'completed')::BIGINT,
	COUNT(*) FILTER (WHERE r.status = 'failed')::BIGINT
FROM culldron.ingest_runs r
`
	if err := p.QueryRow(ctx, runsQuery).Scan(
		&stats.Runs.Running,
		&stats.Runs.Completed,
		&stats.Runs.Failed,
	); err != nil {
		return nil, fmt.Errorf("query ingest run stats: %w", err)
	}

	return stats, nil
}
