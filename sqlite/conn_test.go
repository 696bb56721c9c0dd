package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sentinel-conn/conn"
	"github.com/kroma-labs/sentinel-conn/internal/conntest"
)

const schema = `
CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT NOT NULL, balance INTEGER NOT NULL);
INSERT INTO accounts (id, owner, balance) VALUES (1, 'alice', 100), (2, 'bob', 50);
`

type account struct {
	ID      int64  `db:"id"`
	Owner   string `db:"owner"`
	Balance int64  `db:"balance"`
}

func newTestConn(t *testing.T) (*Conn, *conntest.Telemetry) {
	t.Helper()

	tel := conntest.NewTelemetry(t)
	c, err := Establish(t.Context(), ":memory:", tel.Options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.BatchExecute(t.Context(), schema))
	tel.Exporter.Reset()

	return c, tel
}

func balance(t *testing.T, c conn.Connection, id int64) int64 {
	t.Helper()

	var balances []int64
	require.NoError(t, conn.LoadAll(t.Context(), c, &balances, "SELECT balance FROM accounts WHERE id = ?", id))
	require.Len(t, balances, 1)
	return balances[0]
}

func TestEstablish(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "given in-memory database, then connects",
			dsn:     ":memory:",
			wantErr: assert.NoError,
		},
		{
			name:    "given file database, then connects",
			dsn:     filepath.Join(t.TempDir(), "orders.db"),
			wantErr: assert.NoError,
		},
		{
			name:    "given missing directory, then returns establish error",
			dsn:     "file:" + filepath.Join(t.TempDir(), "missing", "orders.db") + "?mode=ro",
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := conntest.NewTelemetry(t)

			c, err := Establish(t.Context(), tt.dsn, tel.Options...)
			tt.wantErr(t, err)

			span := tel.FindSpan(t, conn.OpEstablish)
			assert.Equal(t, trace.SpanKindClient, span.SpanKind)
			assert.Equal(t, System, conntest.Attrs(span)[semconv.DBSystemKey].AsString())

			if err != nil {
				assert.Nil(t, c)
				var connErr *conn.ConnectionError
				require.ErrorAs(t, err, &connErr)
				assert.Equal(t, conn.KindEstablish, connErr.Kind)
				assert.Equal(t, codes.Error, span.Status.Code)
				return
			}
			require.NoError(t, c.Close())
		})
	}
}

func TestConn_Capabilities(t *testing.T) {
	c, tel := newTestConn(t)
	ctx := t.Context()

	n, err := c.ExecuteReturningCount(ctx, "UPDATE accounts SET balance = balance + ? WHERE balance < ?", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var accounts []account
	require.NoError(t, conn.LoadAll(ctx, c, &accounts, "SELECT id, owner, balance FROM accounts ORDER BY id"))
	assert.Equal(t, []account{
		{ID: 1, Owner: "alice", Balance: 110},
		{ID: 2, Owner: "bob", Balance: 60},
	}, accounts)

	assert.Equal(t, []string{conn.OpExecuteReturningCount, conn.OpLoad}, tel.SpanNames())
	for _, span := range tel.Spans() {
		attrs := conntest.Attrs(span)
		assert.Equal(t, System, attrs[semconv.DBSystemKey].AsString())
		_, hasName := attrs[semconv.DBNameKey]
		assert.False(t, hasName)
	}
}

func TestConn_LoadIsLazy(t *testing.T) {
	c, _ := newTestConn(t)

	rows, err := c.Load(t.Context(), "SELECT owner FROM accounts ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		require.NoError(t, rows.Scan(&owner))
		owners = append(owners, owner)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"alice", "bob"}, owners)
}

func TestConn_QueryErrors(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantErrorType string
	}{
		{
			name:          "given malformed statement, then returns driver error",
			query:         "SELEC 1",
			wantErrorType: "1",
		},
		{
			name:          "given duplicate primary key, then returns constraint error",
			query:         "INSERT INTO accounts (id, owner, balance) VALUES (1, 'mallory', 0)",
			wantErrorType: "constraint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tel := newTestConn(t)

			err := c.BatchExecute(t.Context(), tt.query)
			require.Error(t, err)

			span := tel.FindSpan(t, conn.OpBatchExecute)
			assert.Equal(t, codes.Error, span.Status.Code)
			assert.Equal(t, err.Error(), span.Status.Description)
			assert.Equal(t, tt.wantErrorType, conntest.Attrs(span)["error.type"].AsString())
		})
	}
}

func TestConn_Transaction(t *testing.T) {
	errOverdraft := errors.New("overdraft")

	transfer := func(amount int64) conn.TxFunc {
		return func(ctx context.Context, tx conn.Connection) error {
			if _, err := tx.ExecuteReturningCount(ctx,
				"UPDATE accounts SET balance = balance - ? WHERE id = 1", amount); err != nil {
				return err
			}
			if _, err := tx.ExecuteReturningCount(ctx,
				"UPDATE accounts SET balance = balance + ? WHERE id = 2", amount); err != nil {
				return err
			}

			var balances []int64
			if err := conn.LoadAll(ctx, tx, &balances, "SELECT balance FROM accounts WHERE id = 1"); err != nil {
				return err
			}
			if balances[0] < 0 {
				return errOverdraft
			}
			return nil
		}
	}

	tests := []struct {
		name      string
		begin     func(c *Conn) func(context.Context, conn.TxFunc) error
		amount    int64
		wantErr   error
		wantAlice int64
		wantBob   int64
	}{
		{
			name:      "given deferred transaction success, then commits",
			begin:     func(c *Conn) func(context.Context, conn.TxFunc) error { return c.Transaction },
			amount:    30,
			wantAlice: 70,
			wantBob:   80,
		},
		{
			name:      "given deferred transaction failure, then rolls back",
			begin:     func(c *Conn) func(context.Context, conn.TxFunc) error { return c.Transaction },
			amount:    300,
			wantErr:   errOverdraft,
			wantAlice: 100,
			wantBob:   50,
		},
		{
			name:      "given immediate transaction success, then commits",
			begin:     func(c *Conn) func(context.Context, conn.TxFunc) error { return c.ImmediateTransaction },
			amount:    100,
			wantAlice: 0,
			wantBob:   150,
		},
		{
			name:      "given exclusive transaction failure, then rolls back",
			begin:     func(c *Conn) func(context.Context, conn.TxFunc) error { return c.ExclusiveTransaction },
			amount:    101,
			wantErr:   errOverdraft,
			wantAlice: 100,
			wantBob:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tel := newTestConn(t)

			err := tt.begin(c)(t.Context(), transfer(tt.amount))
			if tt.wantErr != nil {
				assert.Same(t, tt.wantErr, err)
			} else {
				assert.NoError(t, err)
			}

			txSpan := tel.FindSpan(t, conn.OpTransaction)
			children := 0
			for _, span := range tel.Spans() {
				if span.Parent.SpanID() == txSpan.SpanContext.SpanID() {
					children++
				}
			}
			// begin, two updates, one load, commit or rollback
			assert.Equal(t, 5, children)

			assert.Equal(t, tt.wantAlice, balance(t, c, 1))
			assert.Equal(t, tt.wantBob, balance(t, c, 2))
			assert.False(t, c.TransactionState(t.Context()).InTransaction())
		})
	}
}

func TestConn_NestedTransaction(t *testing.T) {
	c, _ := newTestConn(t)
	errInner := errors.New("inner failed")

	err := c.Transaction(t.Context(), func(ctx context.Context, tx conn.Connection) error {
		if _, err := tx.ExecuteReturningCount(ctx, "UPDATE accounts SET balance = 0 WHERE id = 1"); err != nil {
			return err
		}

		innerErr := tx.Transaction(ctx, func(ctx context.Context, tx conn.Connection) error {
			if _, err := tx.ExecuteReturningCount(ctx, "UPDATE accounts SET balance = 0 WHERE id = 2"); err != nil {
				return err
			}
			return errInner
		})
		assert.Same(t, errInner, innerErr)
		assert.Equal(t, 1, tx.TransactionState(ctx).Depth())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), balance(t, c, 1))
	assert.Equal(t, int64(50), balance(t, c, 2))
}

func TestConn_ImmediateTransactionCannotNest(t *testing.T) {
	c, _ := newTestConn(t)

	err := c.Transaction(t.Context(), func(ctx context.Context, _ conn.Connection) error {
		return c.ImmediateTransaction(ctx, func(context.Context, conn.Connection) error {
			return nil
		})
	})
	assert.ErrorIs(t, err, conn.ErrAlreadyInTransaction)
	assert.False(t, c.TransactionState(t.Context()).InTransaction())
}

func TestTransact(t *testing.T) {
	c, _ := newTestConn(t)

	owner, err := conn.Transact(t.Context(), c, func(ctx context.Context, tx conn.Connection) (string, error) {
		var owners []string
		if err := conn.LoadAll(ctx, tx, &owners, "SELECT owner FROM accounts WHERE id = ?", 2); err != nil {
			return "", err
		}
		return owners[0], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
}

func TestConn_Close(t *testing.T) {
	tel := conntest.NewTelemetry(t)
	c, err := Establish(t.Context(), ":memory:", tel.Options...)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Error(t, c.BatchExecute(t.Context(), "SELECT 1"))
}
