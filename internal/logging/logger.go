// Package logging defines the structured, context-aware logger every
// component receives, and its log/slog implementation.
package logging

import "context"

// Logger takes variadic key/value pairs after the message:
//
//	log.Info(ctx, "starting server", "addr", addr, "service", name)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)

	// Warn is for refused requests and other unusual but harmless events.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
