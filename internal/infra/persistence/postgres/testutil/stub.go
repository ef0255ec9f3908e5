// Package testutil provides a stub database/sql driver for postgres store tests.
// It serves the state table DDL, the bucket upsert and the snapshot select.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// StubConn records statements and keeps upserted rows per table. Rows are
// keyed by their first column, matching the ON CONFLICT target.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	RowsErr    error
	FailTables map[string]bool
	// CommitErrs are returned by successive commits before they start succeeding.
	CommitErrs []error
	Commits    int
}

var driverSeq atomic.Int64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements not supported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. Only INSERT ... ON CONFLICT
// changes state; anything else is recorded and accepted.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	table, cols, ok := between(query, "INTO ", "(", ")")
	if !ok {
		return driver.RowsAffected(0), nil
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("exec fail for %s", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", table)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	rows := c.Tables[table][:0:0]
	for _, existing := range c.Tables[table] {
		if existing[cols[0]] != row[cols[0]] {
			rows = append(rows, existing)
		}
	}
	c.Tables[table] = append(rows, row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for "SELECT cols FROM table".
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	upper := strings.ToUpper(query)
	from := strings.Index(upper, " FROM ")
	if !strings.HasPrefix(upper, "SELECT ") || from == -1 {
		return nil, fmt.Errorf("stub: cannot parse query %q", query)
	}
	cols := splitColumns(query[len("SELECT "):from])
	table := strings.ToLower(strings.Fields(query[from+len(" FROM "):])[0])
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	out := &stubRows{cols: cols, err: c.RowsErr}
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

type stubTx struct {
	conn *StubConn
}

func (t stubTx) Commit() error {
	if len(t.conn.CommitErrs) > 0 {
		err := t.conn.CommitErrs[0]
		t.conn.CommitErrs = t.conn.CommitErrs[1:]
		return err
	}
	t.conn.Commits++
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

// between extracts "table(col, ...)" following keyword.
func between(query, keyword, open, closing string) (string, []string, bool) {
	idx := strings.Index(strings.ToUpper(query), keyword)
	if idx == -1 {
		return "", nil, false
	}
	rest := query[idx+len(keyword):]
	name, tail, ok := strings.Cut(rest, open)
	if !ok {
		return "", nil, false
	}
	inner, _, ok := strings.Cut(tail, closing)
	if !ok {
		return "", nil, false
	}
	return strings.ToLower(strings.TrimSpace(name)), splitColumns(inner), true
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
