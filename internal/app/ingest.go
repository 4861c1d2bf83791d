package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"horse.fit/culldron/internal/cli"
	"horse.fit/culldron/internal/ingest"
	payloadschema "horse.fit/culldron/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	feedURL := fs.String("feed-url", "", "RSS or Atom feed URL (required)")
	fullText := fs.Bool("full-text", false, "Fetch each post page when the feed body is empty")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*feedURL) == "" {
		fmt.Fprintln(os.Stderr, "--feed-url is required")
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := commandContext(*timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{fullText: *fullText})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	result, err := rt.service.IngestFeed(ctx, strings.TrimSpace(*feedURL))
	if err != nil {
		logger.Error().Err(err).Str("feed_url", *feedURL).Msg("feed ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	printResult(strings.TrimSpace(*feedURL), result)
	return 0
}

func runIngestFile(args []string) int {
	fs := flag.NewFlagSet("ingest-file", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	path := fs.String("file", "", "Path to a JSON article payload or array of payloads (required)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	raw, err := os.ReadFile(strings.TrimSpace(*path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *path, err)
		return 1
	}
	payloads, err := payloadschema.ValidateArticlePayloads(json.RawMessage(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", *path, err)
		return 1
	}

	articles := make([]ingest.Article, 0, len(payloads))
	for _, payload := range payloads {
		articles = append(articles, payload.Article())
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := commandContext(*timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	result, err := rt.coordinator.IngestBatch(ctx, articles)
	if err != nil {
		logger.Error().Err(err).Str("file", *path).Msg("file ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	printResult(strings.TrimSpace(*path), result)
	return 0
}

// commandContext is cancelled by SIGINT, SIGTERM or the timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	timed, cancel := context.WithTimeout(ctx, timeout)
	return timed, func() {
		cancel()
		stop()
	}
}

func printResult(source string, result ingest.Result) {
	fmt.Printf(
		"ingest source=%s total=%d ingested=%d skipped=%d%s\n",
		source,
		result.Total,
		result.Ingested,
		result.Skipped,
		formatReasons(result.Reasons),
	)
}

func formatReasons(reasons map[ingest.SkipReason]int) string {
	if len(reasons) == 0 {
		return ""
	}
	keys := make([]string, 0, len(reasons))
	for reason := range reasons {
		keys = append(keys, string(reason))
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%d", key, reasons[ingest.SkipReason(key)])
	}
	return b.String()
}
