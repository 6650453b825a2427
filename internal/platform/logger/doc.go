// Package logger sets up structured logging with log/slog and carries
// request-scoped loggers through context.Context.
package logger
