package testutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "fields"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext upsert: %v", err)
		}
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to replace row, got %v", conn.Tables["state"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "fields" || string(dest[1].([]byte)) != `{"a":2}` {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM state WHERE bucket=$1", []driver.NamedValue{{Value: "fields"}}); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if len(conn.Tables["state"]) != 0 {
		t.Fatalf("expected row deleted")
	}
}

func TestStubTxCommitErrorsDrainInOrder(t *testing.T) {
	_, conn := NewStubDB()
	first := errors.New("first")
	conn.CommitErrs = []error{first}
	tx, err := conn.BeginTx(context.Background(), driver.TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, first) {
		t.Fatalf("expected queued commit error, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("expected commit to succeed after queue drained: %v", err)
	}
	if conn.Commits != 1 {
		t.Fatalf("expected one successful commit, got %d", conn.Commits)
	}
}
