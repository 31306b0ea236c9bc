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

func runIngest(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	static := fs.Bool("static", false, "Use the built-in static feed catalog instead of feed rows")
	linkedOnly := fs.Bool("linked-only", false, "Poll only feeds linked to an enabled watch")
	concurrency := fs.Int("concurrency", 0, "Adapters processed in parallel (default INGEST_CONCURRENCY)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Bound for the whole run")
	trigger := fs.String("trigger", "cli", "Trigger label recorded on the ingest run")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *concurrency < 0 {
		fmt.Fprintln(os.Stderr, "--concurrency must be >= 0")
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

	summary, err := runner.RunOnce(ctx, cfg, logger, runner.RunOptions{
		Static:      *static,
		LinkedOnly:  *linkedOnly,
		Concurrency: *concurrency,
		Trigger:     *trigger,
	})

	for _, rep := range summary.Adapters {
		status := "ok"
		if rep.Err != nil {
			status = "failed"
		}
		fmt.Printf("adapter=%s status=%s fetched=%d kept=%d inserted=%d linked=%d hydrated=%d hydrate_failed=%d elapsed=%s\n",
			rep.AdapterID, status, rep.Fetched, rep.Kept, rep.Inserted, rep.Linked, rep.Hydrated, rep.HydrateFailed, rep.Elapsed.Round(time.Millisecond))
	}
	t := summary.Totals
	fmt.Printf("run_uuid=%s adapters=%d adapters_failed=%d fetched=%d kept=%d inserted=%d linked=%d hydrated=%d\n",
		summary.RunUUID, t.AdaptersTotal, t.AdaptersFailed, t.ItemsFetched, t.ItemsKept, t.ItemsInserted, t.LinksCreated, t.Hydrated)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}
	return 0
}
