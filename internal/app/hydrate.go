package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/cli"
	"github.com/KasiaMirowska/shift-track/internal/runner"
)

func runHydrate(args []string) int {
	fs := flag.NewFlagSet("hydrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	var sourceIDs int64List
	fs.Var(&sourceIDs, "source-id", "Source id to hydrate (repeatable)")
	limit := fs.Int("limit", 0, "Backlog size when no --source-id is given (default HYDRATE_BACKLOG_LIMIT)")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, *timeout)
	defer timeoutCancel()

	result, err := runner.HydrateBacklog(ctx, cfg, logger, sourceIDs, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hydrate failed: %v\n", err)
		return 1
	}

	fmt.Printf("attempted=%d hydrated=%d failed=%d\n", result.Attempted, result.Hydrated, result.Failed)
	return 0
}
