package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/cli"
	"github.com/KasiaMirowska/shift-track/internal/config"
	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/logging"
)

// parseFlags maps flag parsing to an exit code. ok is false when the caller
// should return code immediately.
func parseFlags(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// loadRuntime loads the .env file, config and logger for a command.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func connectPool(cfg *config.Config, timeout time.Duration) (context.Context, context.CancelFunc, *db.Pool, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return ctx, cancel, pool, nil
}

type int64List []int64

func (l *int64List) String() string {
	return fmt.Sprint([]int64(*l))
}

func (l *int64List) Set(raw string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	*l = append(*l, v)
	return nil
}

type stringList []string

func (l *stringList) String() string {
	return fmt.Sprint([]string(*l))
}

func (l *stringList) Set(raw string) error {
	*l = append(*l, raw)
	return nil
}
