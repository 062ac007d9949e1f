package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ticket-sync/internal/auth"
	"ticket-sync/internal/config"
	"ticket-sync/internal/dataverse"
	"ticket-sync/internal/job"
	"ticket-sync/internal/logging"
	"ticket-sync/internal/metrics"
	"ticket-sync/internal/store"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

// setupError marks a failure before the job started: configuration, logger,
// identity provider or database handle.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }

func (e *setupError) Unwrap() error { return e.err }

// exitCode maps the outcome of a run to the process exit status. Any failure
// of the job itself, auth, fetch or persist, is exitFailed.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var se *setupError
	var ie *config.InvalidError
	if errors.As(err, &se) || errors.As(err, &ie) {
		return exitConfig
	}
	return exitFailed
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ticket-sync: %v\n", err)
		return exitCode(&setupError{err})
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ticket-sync: %v\n", err)
		return exitCode(&setupError{err})
	}
	defer logger.Sync()

	provider, err := auth.NewProvider(cfg.Auth, logger)
	if err != nil {
		logger.Error("failed to set up identity provider", zap.Error(err))
		return exitCode(&setupError{err})
	}

	st, err := store.Open(cfg.DB, logger)
	if err != nil {
		logger.Error("failed to set up ticket store", zap.Error(err))
		return exitCode(&setupError{err})
	}
	defer st.Close()

	m := metrics.NewRun()
	j := job.New(
		auth.NewAuthenticator(provider, cfg.Auth.Scope, logger),
		dataverse.NewClient(cfg.Source.URL, cfg.Source.Timeout, logger),
		st,
		m,
		logger,
	)

	sum, runErr := j.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if runErr != nil {
		logger.Error("ticket sync failed", zap.Error(runErr))
		return exitCode(runErr)
	}
	logger.Info("ticket sync complete",
		zap.Int("fetched", sum.Fetched), zap.Int("written", sum.Written), zap.Int("skipped", sum.Skipped))
	return exitCode(nil)
}
