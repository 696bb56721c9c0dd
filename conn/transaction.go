package conn

import (
	"context"
	"errors"
	"strconv"
)

const savepointPrefix = "sentinel_savepoint_"

// TransactionManager keeps the transaction nesting state of one session.
// The outermost level uses BEGIN/COMMIT/ROLLBACK; inner levels use
// savepoints. All statements are issued through the BatchExecutor passed
// in, so an instrumented connection gets a span for each of them.
//
// The zero value is ready to use.
type TransactionManager struct {
	depth  int
	broken bool
}

// Depth returns the current nesting depth; zero outside a transaction.
func (m *TransactionManager) Depth() int {
	return m.depth
}

// InTransaction reports whether a transaction is open.
func (m *TransactionManager) InTransaction() bool {
	return m.depth > 0
}

// Begin opens a transaction, or a savepoint when one is already open.
func (m *TransactionManager) Begin(ctx context.Context, e BatchExecutor) error {
	if m.broken {
		return ErrBrokenTransactionManager
	}

	query := "BEGIN"
	if m.depth > 0 {
		query = "SAVEPOINT " + savepointName(m.depth)
	}

	if err := e.BatchExecute(ctx, query); err != nil {
		return err
	}
	m.depth++
	return nil
}

// BeginWith opens a top-level transaction with custom SQL, such as
// "BEGIN IMMEDIATE". It fails with ErrAlreadyInTransaction when nested.
func (m *TransactionManager) BeginWith(ctx context.Context, e BatchExecutor, query string) error {
	if m.broken {
		return ErrBrokenTransactionManager
	}
	if m.depth != 0 {
		return ErrAlreadyInTransaction
	}

	if err := e.BatchExecute(ctx, query); err != nil {
		return err
	}
	m.depth++
	return nil
}

// Commit commits the innermost level.
//
// A failed top-level COMMIT is followed by a ROLLBACK; a failed savepoint
// release is followed by a rollback to that savepoint. Either way the
// level is closed and the commit error is returned, joined with the
// rollback error if that failed too.
func (m *TransactionManager) Commit(ctx context.Context, e BatchExecutor) error {
	switch m.depth {
	case 0:
		return ErrNotInTransaction
	case 1:
		err := e.BatchExecute(ctx, "COMMIT")
		if err == nil {
			m.depth = 0
			return nil
		}
		return m.rollbackAfter(ctx, e, err)
	default:
		name := savepointName(m.depth - 1)
		err := e.BatchExecute(ctx, "RELEASE SAVEPOINT "+name)
		if err == nil {
			m.depth--
			return nil
		}
		return m.rollbackAfter(ctx, e, err)
	}
}

// rollbackAfter rolls back after a failed commit and returns the commit
// error, joined with the rollback error only if there is one.
func (m *TransactionManager) rollbackAfter(ctx context.Context, e BatchExecutor, err error) error {
	if rbErr := m.Rollback(ctx, e); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	return err
}

// Rollback rolls back the innermost level. The level is closed even when
// the statement fails; a failed top-level ROLLBACK breaks the manager.
func (m *TransactionManager) Rollback(ctx context.Context, e BatchExecutor) error {
	switch m.depth {
	case 0:
		return ErrNotInTransaction
	case 1:
		m.depth = 0
		if err := e.BatchExecute(ctx, "ROLLBACK"); err != nil {
			m.broken = true
			return err
		}
		return nil
	default:
		m.depth--
		return e.BatchExecute(ctx, "ROLLBACK TO SAVEPOINT "+savepointName(m.depth))
	}
}

// RunTransaction runs fn between Begin and Commit on tm, issuing the
// statements through c. When beginSQL is non-empty it replaces BEGIN and
// the transaction must be top-level.
//
// fn's error is returned as is after a rollback; if the rollback fails as
// well both are returned joined. A panic in fn rolls back and re-panics.
func RunTransaction(
	ctx context.Context,
	c Connection,
	tm *TransactionManager,
	beginSQL string,
	fn TxFunc,
) error {
	var err error
	if beginSQL == "" {
		err = tm.Begin(ctx, c)
	} else {
		err = tm.BeginWith(ctx, c, beginSQL)
	}
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tm.Rollback(ctx, c)
			panic(p)
		}
	}()

	if err := fn(ctx, c); err != nil {
		if rbErr := tm.Rollback(ctx, c); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tm.Commit(ctx, c)
}

func savepointName(depth int) string {
	return savepointPrefix + strconv.Itoa(depth)
}
