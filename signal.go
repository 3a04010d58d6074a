package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context canceled by the first SIGINT or SIGTERM,
// which aborts an in-flight sign-in, connect or query. Once it fires the
// handler is released, so a second signal terminates the process the usual
// way even if a driver ignores cancellation.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		if parent.Err() == nil {
			logger.Info("interrupted, canceling current operation")
		}
	}()

	return ctx
}
