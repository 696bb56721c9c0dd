package conn

import (
	"context"
	"database/sql"
	"errors"
)

// Compile-time interface check.
var _ Connection = (*Native)(nil)

// Native is an uninstrumented connection: one database/sql session pinned
// out of a private *sql.DB. Backends wrap it; it is also what identity
// resolution runs on, so that query never produces a span.
type Native struct {
	db   *sql.DB
	conn *sql.Conn
	tm   TransactionManager
}

// OpenNative opens a session with the registered database/sql driver.
// The DSN is passed to the driver unmodified. On failure nothing is left
// open.
func OpenNative(ctx context.Context, driverName, dsn string) (*Native, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	n, err := NewNative(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

// NewNative pins a single session from db. The Native takes ownership of db
// and closes it on Close; db must not be shared.
func NewNative(ctx context.Context, db *sql.DB) (*Native, error) {
	// One session per handle; the pool never grows past it.
	db.SetMaxOpenConns(1)

	c, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &Native{
		db:   db,
		conn: c,
	}, nil
}

// BatchExecute implements Connection.
func (n *Native) BatchExecute(ctx context.Context, query string) error {
	_, err := n.conn.ExecContext(ctx, query)
	return err
}

// ExecuteReturningCount implements Connection.
func (n *Native) ExecuteReturningCount(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := n.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Load implements Connection.
func (n *Native) Load(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return n.conn.QueryContext(ctx, query, args...)
}

// Transaction implements Connection.
func (n *Native) Transaction(ctx context.Context, fn TxFunc) error {
	return RunTransaction(ctx, n, &n.tm, "", fn)
}

// TransactionState implements Connection.
func (n *Native) TransactionState(_ context.Context) *TransactionManager {
	return &n.tm
}

// Close implements Connection. Calls after Close return sql.ErrConnDone.
func (n *Native) Close() error {
	return errors.Join(n.conn.Close(), n.db.Close())
}
