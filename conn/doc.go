// Package conn defines the connection capability surface shared by the
// instrumented backends and the building blocks they are made of.
//
// # Capability Surface
//
// Every backend (postgres, mysql, sqlite) returns a handle that implements
// Connection:
//
//	BatchExecute(ctx, query)                 // statements, no rows
//	ExecuteReturningCount(ctx, query, ...)   // affected row count
//	Load(ctx, query, ...)                    // forward-only *sql.Rows
//	Transaction(ctx, fn)                     // commit on nil, rollback on error
//	TransactionState(ctx)                    // nesting bookkeeping
//
// A handle owns exactly one physical session. It is not safe for concurrent
// use: callers serialize access, for example one handle per worker.
//
// # Transactions
//
// Transactions are driven by a TransactionManager that issues BEGIN, COMMIT
// and ROLLBACK through the handle itself, falling back to savepoints when
// nested:
//
//	err := c.Transaction(ctx, func(ctx context.Context, tx conn.Connection) error {
//	    _, err := tx.ExecuteReturningCount(ctx, "UPDATE accounts SET balance = balance - $1", 10)
//	    return err
//	})
//
// Use Transact to carry a value out of the callback:
//
//	id, err := conn.Transact(ctx, c, func(ctx context.Context, tx conn.Connection) (int64, error) {
//	    return tx.ExecuteReturningCount(ctx, "DELETE FROM sessions")
//	})
//
// # Instrumentation
//
// Instrument wraps each capability call in an OpenTelemetry client span
// carrying db.system and, when resolved, the connection identity:
//
//   - db.name, db.version
//   - net.peer.ip, net.peer.port
//
// Errors are recorded on the span and returned to the caller untouched.
// Call durations are recorded on the db.client.operation.duration histogram.
package conn
