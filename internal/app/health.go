package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/culldron/internal/cli"
)

// runHealth opens the pool, which also applies migrations, and pings it.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	started := time.Now()
	session, err := openReadSession(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer session.Close()

	if err := session.pool.Ping(session.ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	fmt.Printf("ok: database ping successful (%s)\n", time.Since(started).Round(time.Millisecond))
	return 0
}
