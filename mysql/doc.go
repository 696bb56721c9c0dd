// Package mysql provides an instrumented MySQL connection over
// github.com/go-sql-driver/mysql.
//
// Spans carry db.system="mysql" and no identity fields:
//
//	c, err := mysql.Establish(ctx, "app:secret@tcp(db:3306)/orders_db?multiStatements=true",
//	    conn.WithTracerProvider(tp),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// The DSN is passed to the driver unmodified. The driver rejects a
// BatchExecute query holding more than one statement unless the DSN sets
// multiStatements=true.
package mysql
