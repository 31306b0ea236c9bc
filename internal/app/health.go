package app

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KasiaMirowska/shift-track/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel, pool, err := connectPool(cfg, *timeout)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database ping failed")
		fmt.Fprintf(os.Stderr, "Database ping failed: %v\n", err)
		return 1
	}

	logger.Info().Str("environment", cfg.Environment).Msg("health check ok")
	fmt.Println("status=ok database=reachable migrations=applied")
	return 0
}
