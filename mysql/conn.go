package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/kroma-labs/sentinel-conn/conn"
)

const (
	// System is the db.system value for MySQL.
	System = "mysql"

	// DefaultDriverName is the database/sql driver registered by go-sql-driver/mysql.
	DefaultDriverName = "mysql"
)

// Compile-time interface check.
var _ conn.Connection = (*Conn)(nil)

// Conn is an instrumented MySQL connection. It is not safe for concurrent use.
type Conn struct {
	inner *conn.Native
	in    *conn.Instrument
}

// Establish opens a MySQL session. The DSN is passed to the driver as is,
// e.g. "user:pass@tcp(localhost:3306)/orders_db?parseTime=true&multiStatements=true".
// Without multiStatements=true, BatchExecute accepts a single statement only.
func Establish(ctx context.Context, dsn string, opts ...conn.Option) (*Conn, error) {
	opts = append([]conn.Option{conn.WithDriverName(DefaultDriverName)}, opts...)
	in := conn.NewInstrument(System, errorType, opts...)

	return conn.Call(ctx, in, conn.OpEstablish, "", func(ctx context.Context) (*Conn, error) {
		in.Logger().Debug().Msg("establishing mysql connection")
		inner, err := conn.OpenNative(ctx, in.DriverName(), dsn)
		if err != nil {
			return nil, conn.NewConnectionError(System, conn.KindEstablish, err)
		}

		in.TrackOpen(ctx)
		return &Conn{inner: inner, in: in}, nil
	})
}

// BatchExecute implements conn.Connection.
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

// Transaction implements conn.Connection.
func (c *Conn) Transaction(ctx context.Context, fn conn.TxFunc) error {
	return conn.Exec(ctx, c.in, conn.OpTransaction, "", func(ctx context.Context) error {
		return conn.RunTransaction(ctx, c, c.inner.TransactionState(ctx), "", fn)
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
	c.in.Logger().Debug().Msg("closing mysql connection")
	c.in.TrackClose(context.Background())
	return c.inner.Close()
}

// errorType reports the server error number of MySQL errors, and bad_conn
// for connections the driver has given up on.
func errorType(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return conn.ErrorTypeBadConn
	}
	return ""
}
