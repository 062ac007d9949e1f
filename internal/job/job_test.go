package job

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticket-sync/internal/auth"
	"ticket-sync/internal/dataverse"
	"ticket-sync/internal/metrics"
	"ticket-sync/internal/store"
)

type staticAuth struct {
	token string
	err   error
}

func (a staticAuth) AcquireCredential(context.Context) (string, error) { return a.token, a.err }

type countingPersister struct {
	calls int
}

func (p *countingPersister) Replace(context.Context, []dataverse.Record) (store.Result, error) {
	p.calls++
	return store.Result{}, nil
}

func newSQLiteStore(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "job.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE tickets (
		cr42f_ticketid_pk TEXT, cr42f_affectedasset TEXT, cr42f_lastupdated TEXT,
		cr42f_status TEXT, cr42f_resolutionnotesnew TEXT, cr42f_ticketid TEXT)`)
	require.NoError(t, err)

	s, err := store.New(db, store.SQLite, "tickets", store.DefaultColumns, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, db
}

func statuses(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT cr42f_ticketid_pk, cr42f_status, cr42f_ticketid FROM tickets`)
	require.NoError(t, err)
	defer rows.Close()
	got := map[string]string{}
	for rows.Next() {
		var id, status, guid string
		require.NoError(t, rows.Scan(&id, &status, &guid))
		got[id] = status + "/" + guid
	}
	require.NoError(t, rows.Err())
	return got
}

func TestRunReplacesOnlyChangedTicket(t *testing.T) {
	var body atomic.Value
	body.Store(`{"value": [
		{"cr42f_ticketid_pk": "T1", "cr42f_status": "Open", "cr42f_ticketid": "g1"},
		{"cr42f_ticketid_pk": "T2", "cr42f_status": "Open", "cr42f_ticketid": "g2"}]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	st, db := newSQLiteStore(t)
	m := metrics.NewRun()
	j := New(staticAuth{token: "tok"}, dataverse.NewClient(srv.URL, 0, logger), st, m, logger)

	sum, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Fetched: 2, Written: 2}, sum)
	assert.Equal(t, map[string]string{"T1": "Open/g1", "T2": "Open/g2"}, statuses(t, db))

	body.Store(`{"value": [{"cr42f_ticketid_pk": "T1", "cr42f_status": "Resolved", "cr42f_ticketid": "g1"}]}`)
	sum, err = j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Fetched: 1, Written: 1}, sum)
	assert.Equal(t, map[string]string{"T1": "Resolved/g1", "T2": "Open/g2"}, statuses(t, db))

	assert.Equal(t, 1.0, gaugeValue(t, m, "ticket_sync_written_records"))
	assert.Equal(t, 1.0, gaugeValue(t, m, "ticket_sync_fetched_records"))
	assert.Equal(t, 1.0, gaugeValue(t, m, "ticket_sync_last_run_success"))
}

func TestRunZeroTickets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()

	p := &countingPersister{}
	j := New(staticAuth{token: "tok"}, dataverse.NewClient(srv.URL, 0, nil), p, nil, zaptest.NewLogger(t))

	sum, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Equal(t, 1, p.calls)
}

func TestRunAuthFailureStops(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	authErr := &auth.Error{Interactive: errors.New("consent declined")}
	p := &countingPersister{}
	j := New(staticAuth{err: authErr}, dataverse.NewClient(srv.URL, 0, nil), p, nil, zaptest.NewLogger(t))

	_, err := j.Run(context.Background())
	var ae *auth.Error
	require.True(t, errors.As(err, &ae))
	assert.Zero(t, hits.Load())
	assert.Zero(t, p.calls)
}

func TestRunFetchFailureSkipsPersist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := &countingPersister{}
	m := metrics.NewRun()
	j := New(staticAuth{token: "tok"}, dataverse.NewClient(srv.URL, 0, nil), p, m, zaptest.NewLogger(t))

	sum, err := j.Run(context.Background())
	var se *dataverse.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, Summary{}, sum)
	assert.Zero(t, p.calls)

	assert.Equal(t, 404.0, gaugeValue(t, m, "ticket_sync_fetch_status_code"))
	assert.Equal(t, 0.0, gaugeValue(t, m, "ticket_sync_last_run_success"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 200, statusCode(nil))
	assert.Equal(t, 503, statusCode(&dataverse.StatusError{Code: 503}))
	assert.Equal(t, 0, statusCode(errors.New("dial tcp: refused")))
}

func gaugeValue(t *testing.T, m *metrics.Run, name string) float64 {
	t.Helper()
	mfs, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("%s not gathered", name)
	return 0
}
