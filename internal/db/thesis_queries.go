package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"horse.fit/culldron/internal/cluster"
	"horse.fit/culldron/internal/embedding"
	"horse.fit/culldron/internal/ingest"
)

// ThemeSummary is one theme with its record count.
type ThemeSummary struct {
	ThemeID         string    `json:"theme_id"`
	Count           int64     `json:"count"`
	FirstIngestedAt time.Time `json:"first_ingested_at"`
	LastIngestedAt  time.Time `json:"last_ingested_at"`
}

// ThesisView is a stored record as shown on a theme timeline.
type ThesisView struct {
	ThesisID      int64      `json:"thesis_id"`
	ThesisUUID    string     `json:"thesis_uuid"`
	ThemeID       string     `json:"theme_id"`
	ThesisText    string     `json:"thesis_text"`
	PostTitle     string     `json:"post_title"`
	PostURL       string     `json:"post_url"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	IngestedAt    time.Time  `json:"ingested_at"`
	Language      string     `json:"language"`
	FeedURL       *string    `json:"feed_url,omitempty"`
	SentenceCount int        `json:"sentence_count"`
}

type ThemeListOptions struct {
	Limit  int
	Offset int
}

// ThesisStore is the Postgres record store used by ingestion and the read API.
type ThesisStore struct {
	pool *Pool
}

func NewThesisStore(pool *Pool) *ThesisStore {
	return &ThesisStore{pool: pool}
}

// ThemeEntriesSince scans the stored (embedding, theme_id) pairs with a
// thesis_id above afterID, in insertion order.
func (s *ThesisStore) ThemeEntriesSince(ctx context.Context, afterID int64) ([]cluster.Entry, error) {
	const q = `
SELECT t.thesis_id, t.embedding::text, t.theme_id
FROM culldron.theses t
WHERE t.thesis_id > $1
ORDER BY t.thesis_id ASC
`
	rows, err := s.pool.Query(ctx, q, afterID)
	if err != nil {
		return nil, fmt.Errorf("query theme entries: %w", err)
	}
	defer rows.Close()

	var entries []cluster.Entry
	for rows.Next() {
		var (
			id      int64
			literal string
			themeID string
		)
		if err := rows.Scan(&id, &literal, &themeID); err != nil {
			return nil, fmt.Errorf("scan theme entry: %w", err)
		}
		vector, err := embedding.ParseVector(literal)
		if err != nil {
			return nil, fmt.Errorf("parse embedding of thesis %d: %w", id, err)
		}
		entries = append(entries, cluster.Entry{Vector: vector, ThemeID: themeID, Seq: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme entries: %w", err)
	}
	return entries, nil
}

func (s *ThesisStore) Begin(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &thesisTx{tx: tx}, nil
}

type thesisTx struct {
	tx Tx
}

func (t *thesisTx) ExistsByURL(ctx context.Context, postURL string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM culldron.theses WHERE post_url = $1)`
	var exists bool
	if err := t.tx.QueryRow(ctx, q, postURL).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (t *thesisTx) Insert(ctx context.Context, record ingest.Record) (bool, error) {
	vector, err := embedding.FormatVector(record.Embedding)
	if err != nil {
		return false, fmt.Errorf("format embedding: %w", err)
	}

	const q = `
INSERT INTO culldron.theses (
	theme_id,
	thesis_text,
	post_title,
	post_url,
	published_at,
	ingested_at,
	embedding,
	language,
	feed_url,
	sentence_count
)
VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, $9, $10)
ON CONFLICT (post_url) DO NOTHING
`
	tag, err := t.tx.Exec(
		ctx,
		q,
		record.ThemeID,
		record.ThesisText,
		record.PostTitle,
		record.PostURL,
		record.PublishedAt,
		record.IngestedAt.UTC(),
		vector,
		record.Language,
		nullableString(record.FeedURL),
		record.SentenceCount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *thesisTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *thesisTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// ThemeRecords returns the timeline of one theme, oldest first. Records
// without a published time are placed by their ingestion time.
func (s *ThesisStore) ThemeRecords(ctx context.Context, themeID string) ([]ThesisView, error) {
	const q = `
SELECT
	t.thesis_id,
	t.thesis_uuid::text,
	t.theme_id,
	t.thesis_text,
	t.post_title,
	t.post_url,
	t.published_at,
	t.ingested_at,
	t.language,
	t.feed_url,
	t.sentence_count
FROM culldron.theses t
WHERE t.theme_id = $1
ORDER BY COALESCE(t.published_at, t.ingested_at) ASC, t.thesis_id ASC
`
	rows, err := s.pool.Query(ctx, q, strings.TrimSpace(themeID))
	if err != nil {
		return nil, fmt.Errorf("query theme records: %w", err)
	}
	defer rows.Close()

	items := make([]ThesisView, 0, 16)
	for rows.Next() {
		var item ThesisView
		if err := rows.Scan(
			&item.ThesisID,
			&item.ThesisUUID,
			&item.ThemeID,
			&item.ThesisText,
			&item.PostTitle,
			&item.PostURL,
			&item.PublishedAt,
			&item.IngestedAt,
			&item.Language,
			&item.FeedURL,
			&item.SentenceCount,
		); err != nil {
			return nil, fmt.Errorf("scan theme record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme records: %w", err)
	}
	return items, nil
}

// ListThemes pages through themes, largest first.
func (s *ThesisStore) ListThemes(ctx context.Context, opts ThemeListOptions) ([]ThemeSummary, error) {
	q, args, err := themeListQuery(opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query themes: %w", err)
	}
	defer rows.Close()

	items := make([]ThemeSummary, 0, opts.Limit)
	for rows.Next() {
		var item ThemeSummary
		if err := rows.Scan(&item.ThemeID, &item.Count, &item.FirstIngestedAt, &item.LastIngestedAt); err != nil {
			return nil, fmt.Errorf("scan theme summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate themes: %w", err)
	}
	return items, nil
}

func (s *ThesisStore) CountThemes(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT theme_id) FROM culldron.theses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count themes: %w", err)
	}
	return count, nil
}

func themeListQuery(opts ThemeListOptions) (string, []any, error) {
	if opts.Limit <= 0 {
		return "", nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return "", nil, fmt.Errorf("offset must be >= 0")
	}

	return sq.Select(
		"t.theme_id",
		"COUNT(*) AS record_count",
		"MIN(t.ingested_at) AS first_ingested_at",
		"MAX(t.ingested_at) AS last_ingested_at",
	).
		From("culldron.theses t").
		GroupBy("t.theme_id").
		OrderBy("record_count DESC", "MIN(t.thesis_id) ASC").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
