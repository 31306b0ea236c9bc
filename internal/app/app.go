package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "run", "run-once", "ingest":
		return runIngest(args[1:])
	case "hydrate":
		return runHydrate(args[1:])
	case "feeds":
		return runFeeds(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "shifttrack CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  shifttrack <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity and apply migrations")
	fmt.Fprintln(os.Stderr, "  run        Poll feeds, match watches, persist and hydrate (aliases: run-once, ingest)")
	fmt.Fprintln(os.Stderr, "  hydrate    Backfill article text for sources without it")
	fmt.Fprintln(os.Stderr, "  feeds      Seed or list the feed catalog (feeds seed | feeds list)")
	fmt.Fprintln(os.Stderr, "  watch      Create or update a subject watch (watch create | watch update)")
	fmt.Fprintln(os.Stderr, "  serve      Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"shifttrack <command> -h\" for command-specific flags.")
}
