package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/culldron/internal/cli"
	"horse.fit/culldron/internal/db"
)

type themesOutput struct {
	Themes []db.ThemeSummary `json:"themes"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func runThemes(args []string) int {
	fs := flag.NewFlagSet("themes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	limit := fs.Int("limit", 20, "Max themes to return")
	offset := fs.Int("offset", 0, "Themes to skip")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "themes does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "--offset must be >= 0")
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

	store := db.NewThesisStore(session.pool)
	themes, err := store.ListThemes(session.ctx, db.ThemeListOptions{Limit: *limit, Offset: *offset})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list themes: %v\n", err)
		return 1
	}
	total, err := store.CountThemes(session.ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count themes: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		out := themesOutput{Themes: themes, Total: total, Limit: *limit, Offset: *offset}
		if err := writeJSON(os.Stdout, out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(themes))
	for _, theme := range themes {
		rows = append(rows, []string{
			theme.ThemeID,
			fmt.Sprintf("%d", theme.Count),
			formatUTCTimestamp(theme.FirstIngestedAt),
			formatUTCTimestamp(theme.LastIngestedAt),
		})
	}
	if err := writeTable(os.Stdout, []string{"theme_id", "records", "first_ingested", "last_ingested"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "showing %d of %d themes\n", len(themes), total)
	return 0
}

func runTheme(args []string) int {
	fs := flag.NewFlagSet("theme", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	themeID := fs.String("id", "", "Theme id (required)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	id := strings.TrimSpace(*themeID)
	if id == "" && fs.NArg() == 1 {
		id = strings.TrimSpace(fs.Arg(0))
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "--id is required")
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

	records, err := db.NewThesisStore(session.pool).ThemeRecords(session.ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load theme: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "Theme not found: %s\n", id)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := writeJSON(os.Stdout, records); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			formatUTCTimestampPtr(record.PublishedAt),
			formatUTCTimestamp(record.IngestedAt),
			truncateForTable(record.PostTitle, 48),
			truncateForTable(record.ThesisText, 96),
			record.PostURL,
		})
	}
	if err := writeTable(os.Stdout, []string{"published", "ingested", "title", "thesis", "url"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
