// Package postgres implements the exercise and queue stores on PostgreSQL.
// Deduplication is enforced by a unique index on the exercise dedup key, and
// queue items are claimed with FOR UPDATE SKIP LOCKED. The goose migrations
// live in the embedded migrations directory.
package postgres
