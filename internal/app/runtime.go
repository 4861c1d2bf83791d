package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/culldron/internal/cli"
	"horse.fit/culldron/internal/cluster"
	"horse.fit/culldron/internal/config"
	"horse.fit/culldron/internal/db"
	"horse.fit/culldron/internal/embedding"
	"horse.fit/culldron/internal/feed"
	"horse.fit/culldron/internal/ingest"
	"horse.fit/culldron/internal/langdetect"
	"horse.fit/culldron/internal/logging"
	"horse.fit/culldron/internal/thesis"
)

// runtime holds the dependencies shared by the ingesting commands. The
// embedder is built once here and injected everywhere it is needed.
type runtime struct {
	pool        *db.Pool
	store       *db.ThesisStore
	coordinator *ingest.Coordinator
	service     *ingest.Service
}

type runtimeOptions struct {
	fullText bool
}

func loadConfigAndLogger(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		envLoader.LoadOrWarn(os.Stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts runtimeOptions) (*runtime, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	embedder := embedding.NewClient(embedding.ClientOptions{
		Endpoint:       cfg.EmbeddingEndpoint,
		MaxLength:      cfg.EmbeddingMaxLength,
		RequestTimeout: cfg.EmbeddingRequestTimeout,
	})

	extractor, err := thesis.NewExtractor(embedder)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	store := db.NewThesisStore(pool)
	coordinator, err := ingest.NewCoordinator(
		store,
		extractor,
		embedder,
		logging.Component(logger, "ingest"),
		ingest.Options{
			TopN:      cfg.ThesisTopN,
			Threshold: cfg.ThemeMatchThreshold,
			Index:     cluster.NewIndex(store),
			Detector:  langdetect.NewLingua(),
		},
	)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	fetcher := feed.NewFetcher(feed.Options{
		Timeout:   cfg.FeedFetchTimeout,
		UserAgent: cfg.FeedUserAgent,
		FullText:  opts.fullText,
	}, logging.Component(logger, "feed"))

	service := ingest.NewService(coordinator, fetcher, db.NewRunLedger(pool), logging.Component(logger, "feed_ingest"))

	logger.Debug().
		Str("embedding_endpoint", embedder.Endpoint()).
		Float64("threshold", cfg.ThemeMatchThreshold).
		Int("top_n", cfg.ThesisTopN).
		Msg("runtime initialized")

	return &runtime{
		pool:        pool,
		store:       store,
		coordinator: coordinator,
		service:     service,
	}, nil
}

func (r *runtime) Close() {
	if r == nil || r.pool == nil {
		return
	}
	_ = r.pool.Close()
}
