package app

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/cli"
	"github.com/KasiaMirowska/shift-track/internal/logging"
	"github.com/KasiaMirowska/shift-track/internal/watch"
)

func runWatch(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shifttrack watch <create|update> [flags]")
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "create":
		return runWatchCreate(args[1:])
	case "update":
		return runWatchUpdate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown watch command: %s\n", args[0])
		return 2
	}
}

func runWatchCreate(args []string) int {
	fs := flag.NewFlagSet("watch create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	subjectID := fs.Int64("subject-id", 0, "Existing subject id")
	subject := fs.String("subject", "", "Subject name (created when missing)")
	subjectType := fs.String("type", "TOPIC", "Subject type: PERSON, ORGANIZATION, POLICY or TOPIC")
	query := fs.String("query", "", "Watch query (default: the quoted subject name)")
	var feedURLs stringList
	fs.Var(&feedURLs, "feed-url", "Extra feed URL to link (repeatable)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *subjectID <= 0 && strings.TrimSpace(*subject) == "" {
		fmt.Fprintln(os.Stderr, "--subject or --subject-id is required")
		return 2
	}
	if _, err := watch.ParseSubjectType(*subjectType); err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	svc := watch.NewService(pool, logging.Component(logger, "watch"), watch.Options{
		DefaultFeedURL: cfg.DefaultFeedURL,
		FeedLimit:      cfg.FeedResolverLimit,
	})
	result, err := svc.CreateWatch(ctx, watch.CreateInput{
		SubjectID:   *subjectID,
		SubjectName: *subject,
		SubjectType: *subjectType,
		Query:       *query,
		FeedURLs:    feedURLs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Create watch failed: %v\n", err)
		return 1
	}

	printWatchResult(result)
	return 0
}

func runWatchUpdate(args []string) int {
	fs := flag.NewFlagSet("watch update", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	watchUUID := fs.String("watch-uuid", "", "Watch UUID")
	query := fs.String("query", "", "New watch query (blank keeps the current one)")
	enable := fs.Bool("enable", false, "Enable the watch")
	disable := fs.Bool("disable", false, "Disable the watch")
	var feedURLs stringList
	fs.Var(&feedURLs, "feed-url", "Extra feed URL to link (repeatable)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if strings.TrimSpace(*watchUUID) == "" {
		fmt.Fprintln(os.Stderr, "--watch-uuid is required")
		return 2
	}
	if *enable && *disable {
		fmt.Fprintln(os.Stderr, "--enable and --disable are mutually exclusive")
		return 2
	}

	var enabled *bool
	switch {
	case *enable:
		v := true
		enabled = &v
	case *disable:
		v := false
		enabled = &v
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

	svc := watch.NewService(pool, logging.Component(logger, "watch"), watch.Options{
		DefaultFeedURL: cfg.DefaultFeedURL,
		FeedLimit:      cfg.FeedResolverLimit,
	})
	result, err := svc.UpdateWatch(ctx, watch.UpdateInput{
		WatchUUID: *watchUUID,
		Query:     *query,
		Enabled:   enabled,
		FeedURLs:  feedURLs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Update watch failed: %v\n", err)
		return 1
	}

	printWatchResult(result)
	return 0
}

func printWatchResult(r watch.Result) {
	fmt.Printf("watch_id=%d watch_uuid=%s subject_id=%d subject_slug=%s enabled=%t subject_created=%t\n",
		r.WatchID, r.WatchUUID, r.SubjectID, r.SubjectSlug, r.Enabled, r.SubjectCreated)
	fmt.Printf("query=%s\n", r.Query)
	ids := make([]string, 0, len(r.FeedIDs))
	for _, id := range r.FeedIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	fmt.Printf("feed_ids=%s\n", strings.Join(ids, ","))
}
