// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON output in production, text
// output everywhere else, and every record carries the environment name.
package logger
