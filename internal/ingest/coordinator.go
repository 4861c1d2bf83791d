// Package ingest turns articles into thesis records and assigns each one to a
// theme. Coordinator handles articles; Service wraps it with feed fetching and
// ingest run bookkeeping.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/culldron/internal/cluster"
	"horse.fit/culldron/internal/embedding"
	"horse.fit/culldron/internal/globaltime"
	"horse.fit/culldron/internal/langdetect"
	"horse.fit/culldron/internal/reader"
	"horse.fit/culldron/internal/thesis"
)

type Options struct {
	// TopN is the thesis size; values < 1 use thesis.DefaultTopN.
	TopN int
	// Threshold is the inclusive cosine cutoff for joining a theme.
	Threshold float64
	// NewThemeID mints theme ids; nil uses cluster.NewThemeID.
	NewThemeID cluster.IDFunc
	// Index is the shared corpus index; nil builds one over the store.
	Index *cluster.Index
	// Detector tags records with a language; nil stores "und".
	Detector LanguageDetector
}

type Coordinator struct {
	store     Store
	index     *cluster.Index
	extractor ThesisExtractor
	embedder  embedding.Embedder
	matcher   *cluster.Matcher
	detector  LanguageDetector
	topN      int
	logger    zerolog.Logger
}

func NewCoordinator(
	store Store,
	extractor ThesisExtractor,
	embedder embedding.Embedder,
	logger zerolog.Logger,
	opts Options,
) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("thesis extractor is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be within [0,1], got %v", opts.Threshold)
	}

	topN := opts.TopN
	if topN < 1 {
		topN = thesis.DefaultTopN
	}
	index := opts.Index
	if index == nil {
		index = cluster.NewIndex(store)
	}

	return &Coordinator{
		store:     store,
		index:     index,
		extractor: extractor,
		embedder:  embedder,
		matcher:   cluster.NewMatcher(opts.Threshold, opts.NewThemeID),
		detector:  opts.Detector,
		topN:      topN,
		logger:    logger,
	}, nil
}

// IngestOne ingests a single article in its own transaction.
func (c *Coordinator) IngestOne(ctx context.Context, article Article) (Outcome, error) {
	outcomes, err := c.run(ctx, []Article{article})
	if err != nil {
		return Outcome{}, err
	}
	return outcomes[0], nil
}

// IngestBatch ingests articles in order inside one transaction. Any unexpected
// error rolls the whole batch back. Every article is matched against the corpus
// as committed when the batch started; records of the same batch are not
// matchable until it commits.
func (c *Coordinator) IngestBatch(ctx context.Context, articles []Article) (Result, error) {
	result := Result{Total: len(articles)}
	if len(articles) == 0 {
		return result, nil
	}

	outcomes, err := c.run(ctx, articles)
	if err != nil {
		return Result{}, err
	}
	for _, outcome := range outcomes {
		result.add(outcome)
	}

	c.logger.Info().
		Int("total", result.Total).
		Int("ingested", result.Ingested).
		Int("skipped", result.Skipped).
		Msg("batch committed")
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, articles []Article) ([]Outcome, error) {
	corpus, err := c.index.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load theme index: %w", err)
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	outcomes := make([]Outcome, 0, len(articles))
	for _, article := range articles {
		outcome, err := c.ingestTx(ctx, tx, corpus, article)
		if err != nil {
			return nil, fmt.Errorf("ingest %q: %w", article.PostURL, err)
		}
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return outcomes, nil
}

func (c *Coordinator) ingestTx(ctx context.Context, tx Tx, corpus []cluster.Entry, article Article) (Outcome, error) {
	postURL := strings.TrimSpace(article.PostURL)
	if postURL == "" {
		return Outcome{}, fmt.Errorf("post_url is required")
	}
	log := c.logger.With().Str("post_url", postURL).Logger()

	exists, err := tx.ExistsByURL(ctx, postURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup post_url: %w", err)
	}
	if exists {
		log.Info().Str("reason", string(SkipAlreadyIngested)).Msg("article skipped")
		return Outcome{Reason: SkipAlreadyIngested}, nil
	}

	content := reader.Clean(article.Content)
	if content == "" {
		log.Info().Str("reason", string(SkipEmptyContent)).Msg("article skipped")
		return Outcome{Reason: SkipEmptyContent}, nil
	}

	sentences, err := c.extractor.Extract(ctx, content, c.topN)
	if err != nil {
		return Outcome{}, fmt.Errorf("extract thesis: %w", err)
	}
	if len(sentences) == 0 {
		log.Info().Str("reason", string(SkipEmptyThesis)).Msg("article skipped")
		return Outcome{Reason: SkipEmptyThesis}, nil
	}

	assessment, err := c.Assess(ctx, sentences, content, corpus)
	if err != nil {
		return Outcome{}, err
	}
	if assessment.Reason != "" {
		log.Warn().Str("reason", string(assessment.Reason)).Msg("article skipped")
		return Outcome{Reason: assessment.Reason}, nil
	}

	record := Record{
		ThemeID:       assessment.ThemeID,
		ThesisText:    thesis.Join(sentences),
		PostTitle:     strings.TrimSpace(article.PostTitle),
		PostURL:       postURL,
		PublishedAt:   normalizeTime(article),
		IngestedAt:    globaltime.UTC(),
		Embedding:     assessment.Embedding,
		Language:      c.detectLanguage(content),
		FeedURL:       strings.TrimSpace(article.FeedURL),
		SentenceCount: assessment.SentenceCount,
	}

	inserted, err := tx.Insert(ctx, record)
	if err != nil {
		return Outcome{}, fmt.Errorf("insert record: %w", err)
	}
	if !inserted {
		log.Info().Str("reason", string(SkipAlreadyIngested)).Msg("article skipped on insert conflict")
		return Outcome{Reason: SkipAlreadyIngested}, nil
	}

	log.Info().
		Str("theme_id", record.ThemeID).
		Bool("matched", assessment.Matched).
		Bool("fallback", assessment.Fallback).
		Int("votes", assessment.Votes).
		Int("sentences", assessment.SentenceCount).
		Msg("article ingested")
	return Outcome{Record: &record}, nil
}

// Assess embeds the thesis sentences, lets every usable sentence vote for the
// theme the matcher picks against corpus, and averages the usable vectors.
// When no sentence vector is usable the cleaned content is embedded and
// matched instead. Assessment.Reason is set when that fails too.
func (c *Coordinator) Assess(ctx context.Context, sentences []string, content string, corpus []cluster.Entry) (Assessment, error) {
	vectors, err := c.embedder.Embed(ctx, sentences)
	if err != nil {
		return Assessment{}, fmt.Errorf("embed thesis sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return Assessment{}, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(sentences), len(vectors))
	}

	tally := cluster.NewTally()
	usable := make([][]float64, 0, len(vectors))
	matched := make(map[string]bool, len(vectors))
	for _, vector := range vectors {
		if !embedding.Usable(vector) {
			continue
		}
		decision := c.matcher.Match(vector, corpus)
		tally.Vote(decision.ThemeID)
		matched[decision.ThemeID] = decision.Matched
		usable = append(usable, vector)
	}

	if len(usable) > 0 {
		mean, err := cluster.Mean(usable)
		if err != nil {
			return Assessment{}, fmt.Errorf("average sentence embeddings: %w", err)
		}
		themeID, votes, _ := tally.Winner()
		return Assessment{
			ThemeID:       themeID,
			Embedding:     mean,
			SentenceCount: len(usable),
			Votes:         votes,
			Matched:       matched[themeID],
		}, nil
	}

	vector, err := embedding.EmbedOne(ctx, c.embedder, content)
	if err != nil {
		return Assessment{}, fmt.Errorf("embed content: %w", err)
	}
	if !embedding.Usable(vector) {
		return Assessment{Reason: SkipNoEmbedding}, nil
	}

	decision := c.matcher.Match(vector, corpus)
	return Assessment{
		ThemeID:   decision.ThemeID,
		Embedding: vector,
		Matched:   decision.Matched,
		Fallback:  true,
	}, nil
}

func (c *Coordinator) detectLanguage(content string) string {
	if c.detector == nil {
		return langdetect.Undetermined
	}
	return langdetect.Tag(c.detector.Detect(content))
}

func normalizeTime(article Article) *time.Time {
	if article.PublishedAt == nil || article.PublishedAt.IsZero() {
		return nil
	}
	normalized := article.PublishedAt.UTC()
	return &normalized
}
