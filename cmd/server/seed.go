package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/phrazzld/gapfill-api/internal/platform/postgres"
	"github.com/phrazzld/gapfill-api/internal/seedbank"
)

// importSeeds writes the embedded seed bank into the exercise store.
// Exercises already present are skipped, so running it twice is harmless.
func importSeeds(ctx context.Context, cfg *config.Config, db *sql.DB, log *slog.Logger) error {
	bank, err := seedbank.Default(cfg.Exercise.Languages)
	if err != nil {
		return fmt.Errorf("failed to load seed bank: %w", err)
	}

	exercises := postgres.NewPostgresExerciseStore(db, cfg.Exercise.Languages, log)
	if _, err := bank.Import(ctx, exercises, log); err != nil {
		return err
	}
	return nil
}
