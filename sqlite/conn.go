package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kroma-labs/sentinel-conn/conn"
)

const (
	// System is the db.system value for SQLite.
	System = "sqlite"

	// DefaultDriverName is the database/sql driver registered by modernc.org/sqlite.
	DefaultDriverName = "sqlite"
)

// Compile-time interface check.
var _ conn.Connection = (*Conn)(nil)

// Conn is an instrumented SQLite connection. It is not safe for concurrent use.
type Conn struct {
	inner *conn.Native
	in    *conn.Instrument
}

// Establish opens a SQLite database. dsn is a file path or URI understood
// by modernc.org/sqlite, e.g. "file:orders.db?_pragma=foreign_keys(1)" or
// ":memory:".
func Establish(ctx context.Context, dsn string, opts ...conn.Option) (*Conn, error) {
	opts = append([]conn.Option{conn.WithDriverName(DefaultDriverName)}, opts...)
	in := conn.NewInstrument(System, errorType, opts...)

	return conn.Call(ctx, in, conn.OpEstablish, "", func(ctx context.Context) (*Conn, error) {
		in.Logger().Debug().Msg("establishing sqlite connection")
		inner, err := conn.OpenNative(ctx, in.DriverName(), dsn)
		if err != nil {
			return nil, conn.NewConnectionError(System, conn.KindEstablish, err)
		}

		in.TrackOpen(ctx)
		return &Conn{inner: inner, in: in}, nil
	})
}

// BatchExecute implements conn.Connection. query may hold several
// statements separated by semicolons.
func (c *Conn) BatchExecute(ctx context.Context, query string) error {
	return conn.Exec(ctx, c.in, conn.OpBatchExecute, query, func(ctx context.Context) error {
		c.in.Logger().Debug().Msg("executing batch query")
		return c.inner.BatchExecute(ctx, query)
	})
}

// ExecuteReturningCount implements conn.Connection.
func (c *Conn) ExecuteReturningCount(ctx context.Context, query string, args ...any) (int64, error) {
	return conn.Call(ctx, c.in, conn.OpExecuteReturningCount, query, func(ctx context.Context) (int64, error) {
		return c.inner.ExecuteReturningCount(ctx, query, args...)
	})
}

// Load implements conn.Connection.
func (c *Conn) Load(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return conn.Call(ctx, c.in, conn.OpLoad, query, func(ctx context.Context) (*sql.Rows, error) {
		return c.inner.Load(ctx, query, args...)
	})
}

// Transaction implements conn.Connection. SQLite's plain BEGIN is deferred:
// locks are taken by the first statement that needs them.
func (c *Conn) Transaction(ctx context.Context, fn conn.TxFunc) error {
	return c.transaction(ctx, "", fn)
}

// ImmediateTransaction runs fn in a transaction that takes the write lock
// up front ("BEGIN IMMEDIATE"). It cannot be nested.
func (c *Conn) ImmediateTransaction(ctx context.Context, fn conn.TxFunc) error {
	return c.transaction(ctx, "BEGIN IMMEDIATE", fn)
}

// ExclusiveTransaction runs fn in a transaction that also keeps readers on
// other connections out ("BEGIN EXCLUSIVE"). It cannot be nested.
func (c *Conn) ExclusiveTransaction(ctx context.Context, fn conn.TxFunc) error {
	return c.transaction(ctx, "BEGIN EXCLUSIVE", fn)
}

func (c *Conn) transaction(ctx context.Context, beginSQL string, fn conn.TxFunc) error {
	return conn.Exec(ctx, c.in, conn.OpTransaction, "", func(ctx context.Context) error {
		return conn.RunTransaction(ctx, c, c.inner.TransactionState(ctx), beginSQL, fn)
	})
}

// TransactionState implements conn.Connection.
func (c *Conn) TransactionState(ctx context.Context) *conn.TransactionManager {
	_, span := c.in.Start(ctx, conn.OpTransactionState, "")
	defer span.End(nil)
	return c.inner.TransactionState(ctx)
}

// Close implements conn.Connection.
func (c *Conn) Close() error {
	c.in.Logger().Debug().Msg("closing sqlite connection")
	c.in.TrackClose(context.Background())
	return c.inner.Close()
}

// errorType names the common SQLite primary result codes and falls back to
// the numeric code for the rest.
func errorType(err error) string {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}

	code := sqliteErr.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY:
		return "busy"
	case sqlite3.SQLITE_LOCKED:
		return "locked"
	case sqlite3.SQLITE_CONSTRAINT:
		return "constraint"
	case sqlite3.SQLITE_READONLY:
		return "readonly"
	case sqlite3.SQLITE_CANTOPEN:
		return "cantopen"
	}
	return strconv.Itoa(code)
}
