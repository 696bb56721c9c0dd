// Package postgres provides an instrumented PostgreSQL connection.
//
// Establish opens a single session through database/sql (pgx by default)
// and, before returning, asks the server for the database name, version and
// network address of the session. Those values are attached to every span
// the connection emits and are never queried again:
//
//	c, err := postgres.Establish(ctx, dsn,
//	    conn.WithTracerProvider(tp),
//	    conn.WithLogger(log),
//	)
//	if err != nil {
//	    if conn.IsConfigurationError(err) {
//	        // connected, but the session identity could not be read
//	    }
//	    return err
//	}
//	defer c.Close()
//
//	n, err := c.ExecuteReturningCount(ctx, "UPDATE orders SET status = $1 WHERE id = $2", "paid", id)
//
// Sessions over a unix socket have no server address, so establishing one
// fails with a configuration error.
//
// To use lib/pq or another driver instead of pgx, import it and pass
// conn.WithDriverName.
package postgres
