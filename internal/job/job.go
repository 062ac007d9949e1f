package job

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ticket-sync/internal/dataverse"
	"ticket-sync/internal/metrics"
	"ticket-sync/internal/store"
)

type Authenticator interface {
	AcquireCredential(ctx context.Context) (string, error)
}

type Fetcher interface {
	FetchTickets(ctx context.Context, token string) ([]dataverse.Record, error)
}

type Persister interface {
	Replace(ctx context.Context, records []dataverse.Record) (store.Result, error)
}

// Summary describes one completed or failed run.
type Summary struct {
	Fetched int
	Written int
	Skipped int
}

// Job runs authenticate, fetch and persist strictly in that order.
type Job struct {
	Auth      Authenticator
	Fetcher   Fetcher
	Persister Persister
	Metrics   *metrics.Run
	Logger    *zap.Logger

	now func() time.Time
}

func New(a Authenticator, f Fetcher, p Persister, m *metrics.Run, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRun()
	}
	return &Job{Auth: a, Fetcher: f, Persister: p, Metrics: m, Logger: logger, now: time.Now}
}

// Run performs one sync. The first failing step ends the run and its error is
// returned unchanged; later steps are not attempted.
func (j *Job) Run(ctx context.Context) (sum Summary, err error) {
	start := j.now()
	defer func() {
		j.Metrics.Finish(start, j.now(), err)
	}()

	token, err := j.Auth.AcquireCredential(ctx)
	if err != nil {
		j.Logger.Error("could not acquire credential", zap.Error(err))
		return sum, err
	}

	records, err := j.Fetcher.FetchTickets(ctx, token)
	j.Metrics.ObserveFetch(len(records), statusCode(err))
	if err != nil {
		j.Logger.Error("could not fetch tickets", zap.Error(err))
		return sum, err
	}
	sum.Fetched = len(records)
	j.Logger.Info("fetched tickets", zap.Int("count", sum.Fetched))

	res, err := j.Persister.Replace(ctx, records)
	j.Metrics.ObservePersist(res.Written, res.Skipped)
	if err != nil {
		j.Logger.Error("could not write tickets", zap.Error(err))
		return sum, err
	}
	sum.Written, sum.Skipped = res.Written, res.Skipped
	return sum, nil
}

func statusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *dataverse.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
