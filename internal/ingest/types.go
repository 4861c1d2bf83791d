package ingest

import (
	"context"
	"time"

	"horse.fit/culldron/internal/cluster"
)

// Article is one feed entry handed to the coordinator.
type Article struct {
	PostURL     string
	PostTitle   string
	Content     string
	PublishedAt *time.Time
	FeedURL     string
}

// Record is the persisted form of an ingested article.
type Record struct {
	ThemeID       string
	ThesisText    string
	PostTitle     string
	PostURL       string
	PublishedAt   *time.Time
	IngestedAt    time.Time
	Embedding     []float64
	Language      string
	FeedURL       string
	SentenceCount int
}

type SkipReason string

const (
	SkipAlreadyIngested SkipReason = "already_ingested"
	SkipEmptyContent    SkipReason = "empty_content"
	SkipEmptyThesis     SkipReason = "empty_thesis"
	SkipNoEmbedding     SkipReason = "no_embedding"
)

// Outcome reports what happened to a single article. Exactly one of Record and
// Reason is set.
type Outcome struct {
	Record *Record
	Reason SkipReason
}

func (o Outcome) Skipped() bool {
	return o.Record == nil
}

// Result counts a batch. Total is always Ingested + Skipped.
type Result struct {
	Ingested int
	Skipped  int
	Total    int
	Reasons  map[SkipReason]int
}

func (r *Result) add(outcome Outcome) {
	if outcome.Skipped() {
		r.Skipped++
		if r.Reasons == nil {
			r.Reasons = make(map[SkipReason]int, 4)
		}
		r.Reasons[outcome.Reason]++
		return
	}
	r.Ingested++
}

// AllSkipped is true for a non-empty batch in which nothing was ingested.
func (r Result) AllSkipped() bool {
	return r.Total > 0 && r.Total == r.Skipped
}

// Assessment is the theme and embedding chosen for one article.
type Assessment struct {
	ThemeID   string
	Embedding []float64
	// SentenceCount is the number of sentence vectors that voted; 0 on fallback.
	SentenceCount int
	Votes         int
	Matched       bool
	Fallback      bool
	// Reason is set when no usable embedding could be produced.
	Reason SkipReason
}

// Store persists records. Lookups and inserts go through a Tx so a batch sees
// its own pending writes.
type Store interface {
	cluster.EntrySource
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	ExistsByURL(ctx context.Context, postURL string) (bool, error)
	// Insert returns false when a record with the same post_url already exists.
	Insert(ctx context.Context, record Record) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ThesisExtractor selects the thesis sentences of cleaned content.
type ThesisExtractor interface {
	Extract(ctx context.Context, content string, topN int) ([]string, error)
}

// LanguageDetector returns an ISO 639-1 code or "" when unsure.
type LanguageDetector interface {
	Detect(text string) string
}
