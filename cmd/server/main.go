// Package main implements the entry point for the gap-fill exercise API
// server, which serves cached, generated and seeded exercises and keeps the
// exercise store replenished in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/phrazzld/gapfill-api/internal/redact"
)

// options holds the command line flags.
type options struct {
	migrate string
	seed    bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&opts.migrate, "migrate", "", "run a migration command (up, down, status, version) and exit")
	fs.BoolVar(&opts.seed, "seed", false, "import the static seed bank into the exercise store and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.migrate != "" && opts.seed {
		return options{}, fmt.Errorf("-migrate and -seed cannot be combined")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("server exited with error", redact.Attr(err))
		os.Exit(1)
	}
}

// run loads configuration, prepares the database and then either executes a
// one-shot command or serves HTTP until ctx is canceled.
func run(ctx context.Context, opts options) error {
	cfg, log, err := initializeApp()
	if err != nil {
		return err
	}
	ctx = logger.WithLogger(ctx, log)

	db, err := setupAppDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", redact.Attr(err))
		}
	}()

	if opts.migrate != "" {
		return runMigrations(ctx, db, opts.migrate, log)
	}
	if err := runMigrations(ctx, db, "up", log); err != nil {
		return err
	}
	if opts.seed {
		return importSeeds(ctx, cfg, db, log)
	}

	app, err := newApplication(ctx, cfg, log, db, dependencies{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	logConfig(cfg, log)
	return cfg, log, nil
}

// logConfig reports the effective configuration without secrets.
func logConfig(cfg *config.Config, log *slog.Logger) {
	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("model", cfg.LLM.ModelName),
		slog.String("mastery_backend", cfg.Mastery.Backend),
		slog.Int("max_concurrent", cfg.Queue.MaxConcurrent),
		slog.Bool("on_demand_enabled", cfg.Resolver.OnDemandEnabled))
	log.Debug("database configuration",
		slog.String("url", redact.String(cfg.Database.URL)),
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns))
	log.Debug("llm configuration", slog.Bool("api_key_present", cfg.LLM.GeminiAPIKey != ""))
}
