// Package logger provides structured logging functionality for the application.
//
// Services log JSON through log/slog. Interactive tools use the console format,
// which renders the same slog records through charmbracelet/log. Request-scoped
// loggers travel in a context.Context.
package logger
