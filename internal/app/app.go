package app

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage(os.Stderr)
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "ingest-file":
		return runIngestFile(args[1:])
	case "poll":
		return runPoll(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "themes":
		return runThemes(args[1:])
	case "theme":
		return runTheme(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage(os.Stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "culldron CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  culldron <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  health       Verify database connectivity")
	fmt.Fprintln(w, "  ingest       Fetch one feed and ingest its posts")
	fmt.Fprintln(w, "  ingest-file  Ingest article payload JSON from a file")
	fmt.Fprintln(w, "  poll         Ingest every feed listed in feeds.yaml")
	fmt.Fprintln(w, "  validate     Validate article payload JSON files against the schema")
	fmt.Fprintln(w, "  themes       List themes by size")
	fmt.Fprintln(w, "  theme        Show the timeline of one theme")
	fmt.Fprintln(w, "  stats        Show corpus and ingest run counts")
	fmt.Fprintln(w, "  serve        Start Echo API server")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Use \"culldron <command> -h\" for command-specific flags.")
}
