package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ticket-sync/internal/config"
	"ticket-sync/internal/dataverse"
)

// Columns names the destination columns. Key must also appear in Fields.
type Columns struct {
	Key    string
	Fields []string
}

// DefaultColumns mirrors the source field names one to one.
var DefaultColumns = Columns{
	Key: dataverse.FieldTicketID,
	Fields: []string{
		dataverse.FieldTicketID,
		dataverse.FieldAffectedAsset,
		dataverse.FieldLastUpdated,
		dataverse.FieldStatus,
		dataverse.FieldResolutionNotes,
		dataverse.FieldGUID,
	},
}

// Result counts what one Replace call did.
type Result struct {
	Written int
	Skipped int
}

// Error is a failed persistence step. The transaction it happened in has been
// rolled back.
type Error struct {
	Op  string
	Key any
	Err error
}

func (e *Error) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("store: %s %v: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Store writes tickets into one table with delete-then-insert.
type Store struct {
	db        *sql.DB
	cols      Columns
	deleteSQL string
	insertSQL string
	logger    *zap.Logger
}

func New(db *sql.DB, d Dialect, table string, cols Columns, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	qtable, err := d.QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	qkey, err := d.QuoteIdent(cols.Key)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols.Fields))
	marks := make([]string, len(cols.Fields))
	hasKey := false
	for i, f := range cols.Fields {
		if names[i], err = d.QuoteIdent(f); err != nil {
			return nil, err
		}
		marks[i] = d.Placeholder(i + 1)
		hasKey = hasKey || f == cols.Key
	}
	if !hasKey {
		return nil, fmt.Errorf("store: key column %q missing from fields", cols.Key)
	}

	return &Store{
		db:        db,
		cols:      cols,
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE %s = %s", qtable, qkey, d.Placeholder(1)),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			qtable, strings.Join(names, ", "), strings.Join(marks, ", ")),
		logger: logger.With(zap.String("table", table)),
	}, nil
}

// Open connects to the configured database. The pool is capped at one
// connection; a run never needs more.
func Open(c config.DB, logger *zap.Logger) (*Store, error) {
	d, err := DialectFor(c.Driver)
	if err != nil {
		return nil, err
	}
	dsn := c.Name
	if d.Driver == SQLServer.Driver {
		dsn = SQLServerDSN(c)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	s, err := New(db, d, c.Table, DefaultColumns, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SQLServerDSN builds the connection URL with encryption on and server
// certificate validation relaxed.
func SQLServerDSN(c config.DB) string {
	q := url.Values{}
	q.Set("database", c.Name)
	q.Set("encrypt", "true")
	q.Set("TrustServerCertificate", "true")
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Server, strconv.Itoa(c.Port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (s *Store) Close() error { return s.db.Close() }

// Replace deletes and re-inserts every record by key inside one transaction
// on one connection. Records without a key are skipped. Any failure rolls the
// whole batch back.
func (s *Store) Replace(ctx context.Context, records []dataverse.Record) (Result, error) {
	var res Result
	if len(records) == 0 {
		return res, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return Result{}, &Error{Op: "connect", Err: err}
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, &Error{Op: "begin", Err: err}
	}
	// No-op once committed.
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, s.deleteSQL)
	if err != nil {
		return Result{}, &Error{Op: "prepare delete", Err: err}
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return Result{}, &Error{Op: "prepare insert", Err: err}
	}
	defer ins.Close()

	args := make([]any, len(s.cols.Fields))
	for i, r := range records {
		key, ok := r.Key(s.cols.Key)
		if !ok {
			s.logger.Warn("skipping ticket without key", zap.Int("index", i))
			res.Skipped++
			continue
		}
		if _, err := del.ExecContext(ctx, key); err != nil {
			return Result{}, &Error{Op: "delete", Key: key, Err: err}
		}
		for j, f := range s.cols.Fields {
			args[j] = r.Value(f)
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return Result{}, &Error{Op: "insert", Key: key, Err: err}
		}
		res.Written++
	}

	if err := tx.Commit(); err != nil {
		return Result{}, &Error{Op: "commit", Err: err}
	}
	s.logger.Info("tickets written", zap.Int("written", res.Written), zap.Int("skipped", res.Skipped))
	return res, nil
}
