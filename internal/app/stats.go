package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/culldron/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	session, err := openReadSession(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer session.Close()

	stats, err := session.pool.QueryStats(session.ctx, defaultUTCDay())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := writeJSON(os.Stdout, stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"theses", fmt.Sprintf("%d", stats.Theses)},
		{"themes", fmt.Sprintf("%d", stats.Themes)},
		{"ingested_today", fmt.Sprintf("%d", stats.IngestedToday)},
		{"last_ingested_at", formatUTCTimestampPtr(stats.LastIngestedAt)},
		{"runs_running", fmt.Sprintf("%d", stats.Runs.Running)},
		{"runs_completed", fmt.Sprintf("%d", stats.Runs.Completed)},
		{"runs_failed", fmt.Sprintf("%d", stats.Runs.Failed)},
	}
	if err := writeTable(os.Stdout, []string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
