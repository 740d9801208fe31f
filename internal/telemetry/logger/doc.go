// Package logger provides structured logging for boxstore.
//
// It wraps log/slog with a small Logger interface, a process-wide level that
// can be changed at runtime, and redaction of credentials: attributes whose
// key names a secret are replaced, and passwords embedded in connection URLs
// are masked.
//
// Request-scoped fields travel in the context:
//
//	ctx = logger.WithRequestID(ctx, checkoutID)
//	logger.L(ctx).Debug("checkout acquired", "attempts", n)
//
// Components that take a *slog.Logger get one from Slog.
package logger
