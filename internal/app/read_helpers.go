package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"horse.fit/culldron/internal/cli"
	"horse.fit/culldron/internal/db"
	"horse.fit/culldron/internal/globaltime"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// readSession is a database connection bounded by one command timeout.
type readSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *db.Pool
}

func openReadSession(timeout time.Duration, envLoader *cli.EnvLoader) (*readSession, error) {
	cfg, _, err := loadConfigAndLogger(envLoader)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &readSession{ctx: ctx, cancel: cancel, pool: pool}, nil
}

func (s *readSession) Close() {
	_ = s.pool.Close()
	s.cancel()
}

func defaultUTCDay() time.Time {
	return globaltime.UTC().Truncate(24 * time.Hour)
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = strings.ToLower(strings.TrimSpace(defaultFormat))
	}
	if format != outputFormatTable && format != outputFormatJSON {
		return "", fmt.Errorf("--format must be table or json")
	}
	return format, nil
}

// truncateForTable flattens whitespace so a cell stays on one line, then
// shortens it to maxLen runes with a trailing "...".
func truncateForTable(value string, maxLen int) string {
	flat := strings.Join(strings.Fields(value), " ")
	if maxLen <= 0 || utf8.RuneCountInString(flat) <= maxLen {
		return flat
	}
	runes := []rune(flat)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatUTCTimestamp(*value)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, cells := range append([][]string{headers}, rows...) {
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
