package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/culldron/internal/globaltime"
)

const (
	maxIngestErrorLength = 4000
	defaultFetchParallel = 4
)

// FeedSource fetches the current entries of a feed.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]Article, error)
}

// RunLedger records one row per feed ingestion attempt.
type RunLedger interface {
	StartRun(ctx context.Context, feedURL string, startedAt time.Time) (int64, error)
	CompleteRun(ctx context.Context, runID int64, result Result, finishedAt time.Time) error
	FailRun(ctx context.Context, runID int64, message string, finishedAt time.Time) error
}

type Service struct {
	coordinator *Coordinator
	feeds       FeedSource
	runs        RunLedger
	logger      zerolog.Logger
}

// FeedResult is the outcome of one feed in a multi-feed run.
type FeedResult struct {
	FeedURL string
	Result  Result
	Err     error
}

// NewService wires feed ingestion. runs may be nil to skip bookkeeping.
func NewService(coordinator *Coordinator, feeds FeedSource, runs RunLedger, logger zerolog.Logger) *Service {
	return &Service{
		coordinator: coordinator,
		feeds:       feeds,
		runs:        runs,
		logger:      logger,
	}
}

func (s *Service) Coordinator() *Coordinator {
	return s.coordinator
}

// IngestFeed fetches feedURL and ingests its entries as one batch.
func (s *Service) IngestFeed(ctx context.Context, feedURL string) (Result, error) {
	if s == nil || s.coordinator == nil || s.feeds == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return Result{}, fmt.Errorf("feed_url is required")
	}

	runID, err := s.startRun(ctx, feedURL)
	if err != nil {
		return Result{}, err
	}

	articles, err := s.feeds.Fetch(ctx, feedURL)
	if err != nil {
		return Result{}, s.failRun(ctx, runID, fmt.Errorf("fetch feed: %w", err))
	}
	return s.ingestFetched(ctx, runID, feedURL, articles)
}

// IngestFeeds fetches all feeds concurrently and ingests them one after the
// other. A failing feed does not stop the others.
func (s *Service) IngestFeeds(ctx context.Context, feedURLs []string) ([]FeedResult, error) {
	if s == nil || s.coordinator == nil || s.feeds == nil {
		return nil, fmt.Errorf("ingest service is not initialized")
	}

	fetched := make([][]Article, len(feedURLs))
	fetchErrs := make([]error, len(feedURLs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(defaultFetchParallel)
	for i, feedURL := range feedURLs {
		group.Go(func() error {
			articles, err := s.feeds.Fetch(groupCtx, strings.TrimSpace(feedURL))
			if err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				fetchErrs[i] = fmt.Errorf("fetch feed: %w", err)
				return nil
			}
			fetched[i] = articles
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	results := make([]FeedResult, 0, len(feedURLs))
	for i, feedURL := range feedURLs {
		feedURL = strings.TrimSpace(feedURL)
		out := FeedResult{FeedURL: feedURL}

		runID, err := s.startRun(ctx, feedURL)
		if err != nil {
			return results, err
		}
		if fetchErrs[i] != nil {
			out.Err = s.failRun(ctx, runID, fetchErrs[i])
		} else {
			out.Result, out.Err = s.ingestFetched(ctx, runID, feedURL, fetched[i])
		}
		if out.Err != nil {
			s.logger.Error().Err(out.Err).Str("feed_url", feedURL).Msg("feed ingestion failed")
		}
		results = append(results, out)
	}
	return results, nil
}

func (s *Service) ingestFetched(ctx context.Context, runID int64, feedURL string, articles []Article) (Result, error) {
	for i := range articles {
		if strings.TrimSpace(articles[i].FeedURL) == "" {
			articles[i].FeedURL = feedURL
		}
	}

	result, err := s.coordinator.IngestBatch(ctx, articles)
	if err != nil {
		return Result{}, s.failRun(ctx, runID, err)
	}

	if s.runs != nil {
		if err := s.runs.CompleteRun(ctx, runID, result, globaltime.UTC()); err != nil {
			return Result{}, fmt.Errorf("mark ingest run completed: %w", err)
		}
	}

	s.logger.Info().
		Int64("run_id", runID).
		Str("feed_url", feedURL).
		Int("total", result.Total).
		Int("ingested", result.Ingested).
		Int("skipped", result.Skipped).
		Msg("feed ingested")
	return result, nil
}

func (s *Service) startRun(ctx context.Context, feedURL string) (int64, error) {
	if s.runs == nil {
		return 0, nil
	}
	runID, err := s.runs.StartRun(ctx, feedURL, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert ingest run: %w", err)
	}
	return runID, nil
}

// failRun records cause on the run and returns it.
func (s *Service) failRun(ctx context.Context, runID int64, cause error) error {
	if s.runs == nil {
		return cause
	}
	msg := truncateErrorMessage(strings.TrimSpace(cause.Error()), maxIngestErrorLength)
	if err := s.runs.FailRun(ctx, runID, msg, globaltime.UTC()); err != nil {
		return fmt.Errorf("ingest failed (%v); failed to mark run failed: %w", cause, err)
	}
	return cause
}

// truncateErrorMessage cuts msg to at most limit bytes without splitting a rune.
func truncateErrorMessage(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	return strings.ToValidUTF8(msg[:limit], "")
}
