package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/culldron/internal/cli"
	"horse.fit/culldron/internal/feed"
	"horse.fit/culldron/internal/ingest"
)

func runPoll(args []string) int {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	feedsFile := fs.String("feeds-file", "", "Path to feeds.yaml (defaults to FEEDS_FILE)")
	interval := fs.Duration("interval", 0, "Repeat every interval until interrupted; 0 runs once")
	fullText := fs.Bool("full-text", false, "Fetch each post page when the feed body is empty")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *interval < 0 {
		fmt.Fprintln(os.Stderr, "--interval must be >= 0")
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	path := strings.TrimSpace(*feedsFile)
	if path == "" {
		path = cfg.FeedsFile
	}
	list, err := feed.LoadList(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load feeds: %v\n", err)
		return 1
	}
	urls := list.URLs()
	if len(urls) == 0 {
		fmt.Fprintf(os.Stderr, "No enabled feeds in %s\n", path)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{fullText: *fullText})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	if *interval == 0 {
		if failed := pollOnce(ctx, rt.service, urls, logger); failed > 0 {
			return 1
		}
		return 0
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		pollOnce(ctx, rt.service, urls, logger)

		select {
		case <-ctx.Done():
			logger.Info().Msg("poll stopped")
			return 0
		case <-ticker.C:
		}
	}
}

// pollOnce ingests every feed and returns the number of feeds that failed.
func pollOnce(ctx context.Context, service *ingest.Service, urls []string, logger zerolog.Logger) int {
	started := time.Now()
	results, err := service.IngestFeeds(ctx, urls)
	if err != nil {
		logger.Error().Err(err).Msg("poll cycle aborted")
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		return len(urls)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", res.FeedURL, res.Err)
			continue
		}
		printResult(res.FeedURL, res.Result)
	}

	logger.Info().
		Int("feeds", len(urls)).
		Int("failed", failed).
		Dur("elapsed", time.Since(started)).
		Msg("poll cycle finished")
	return failed
}
