package app

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/adapter"
	"github.com/KasiaMirowska/shift-track/internal/cli"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/feedresolve"
)

func runFeeds(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shifttrack feeds <seed|list> [flags]")
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "seed":
		return runFeedsSeed(args[1:])
	case "list":
		return runFeedsList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown feeds command: %s\n", args[0])
		return 2
	}
}

func runFeedsSeed(args []string) int {
	fs := flag.NewFlagSet("feeds seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "Catalog YAML file (default: built-in catalog)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	catalog, err := loadCatalog(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid catalog: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel, pool, err := connectPool(cfg, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	tx, err := pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to begin transaction: %v\n", err)
		return 1
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := catalog.Seed(ctx, tx)
	if err != nil {
		logger.Error().Err(err).Msg("feed catalog seed failed")
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		return 1
	}
	defaultFeedID, err := feedresolve.NewPgCatalog(tx, cfg.DefaultFeedURL).DefaultFeedID(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ensure default feed: %v\n", err)
		return 1
	}
	if err := tx.Commit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to commit seed: %v\n", err)
		return 1
	}

	logger.Info().Int("publications", result.Publications).Int("feeds", result.Feeds).Int64("default_feed_id", defaultFeedID).Msg("feed catalog seeded")
	fmt.Printf("publications=%d feeds=%d default_feed_id=%d\n", result.Publications, result.Feeds, defaultFeedID)
	return 0
}

func runFeedsList(args []string) int {
	fs := flag.NewFlagSet("feeds list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	linkedOnly := fs.Bool("linked-only", false, "Only feeds linked to an enabled watch")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel, pool, err := connectPool(cfg, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	feeds, err := pool.ListEnabledFeeds(ctx, *linkedOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list feeds: %v\n", err)
		return 1
	}

	for _, f := range feeds {
		score := "-"
		if f.QualityScore != nil {
			score = fmt.Sprintf("%.2f", *f.QualityScore)
		}
		fmt.Printf("feed_id=%d kind=%s section=%s publication=%s quality=%s url=%s\n",
			f.FeedID, f.Kind, f.Section, f.PublicationSlug, score, f.URL)
	}
	fmt.Printf("total=%d\n", len(feeds))
	return 0
}

func loadCatalog(path string) (adapter.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return adapter.DefaultCatalog()
	}
	return adapter.LoadCatalogFile(path)
}
