// Package config loads server, database, model, queue, resolver and mastery
// settings from an optional config.yaml and GAPFILL_* environment variables,
// and validates them before anything is wired.
package config
