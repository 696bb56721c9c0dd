package conn

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// BatchExecutor runs SQL that returns no rows. The transaction manager
// drives transactions through it.
type BatchExecutor interface {
	BatchExecute(ctx context.Context, query string) error
}

// Loader runs a query and returns its rows.
type Loader interface {
	Load(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxFunc is the body of a transaction. It receives the connection the
// transaction was started on; nested calls go through the same handle.
type TxFunc func(ctx context.Context, c Connection) error

// Connection is the capability surface shared by every backend.
//
// A Connection owns exactly one session and is not safe for concurrent use.
// Each method has exclusive use of the handle until it returns.
type Connection interface {
	BatchExecutor
	Loader

	// ExecuteReturningCount runs a statement and returns the number of
	// affected rows.
	ExecuteReturningCount(ctx context.Context, query string, args ...any) (int64, error)

	// Transaction runs fn inside a transaction. A nil result commits, an
	// error rolls back and is returned as is. Nested calls use savepoints.
	Transaction(ctx context.Context, fn TxFunc) error

	// TransactionState exposes the transaction bookkeeping of the session.
	TransactionState(ctx context.Context) *TransactionManager

	// Close releases the session.
	Close() error
}

// Transact runs fn in a transaction on c and returns its value.
// On failure the zero value and fn's error are returned.
func Transact[T any](
	ctx context.Context,
	c Connection,
	fn func(ctx context.Context, c Connection) (T, error),
) (T, error) {
	var out T
	err := c.Transaction(ctx, func(ctx context.Context, tx Connection) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// LoadAll runs query through l and scans every row into dest, which must
// be a non-nil pointer to a slice. Struct elements are matched to columns
// by their `db` tag. Any other element type, including sql.Scanner
// implementations and structs without exported fields such as time.Time,
// is scanned from a single column. Pointer elements are allocated per row.
//
// Example:
//
//	var users []struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//	err := conn.LoadAll(ctx, c, &users, "SELECT id, name FROM users")
//
//	var ids []int64
//	err = conn.LoadAll(ctx, c, &ids, "SELECT id FROM users")
func LoadAll(ctx context.Context, l Loader, dest any, query string, args ...any) error {
	value := reflect.ValueOf(dest)
	if value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("conn: LoadAll destination must be a non-nil pointer to a slice, got %T", dest)
	}

	rows, err := l.Load(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	slice := value.Elem()
	elem := slice.Type().Elem()
	base := reflectx.Deref(elem)
	scannable := isScannable(base)

	r := &sqlx.Rows{Rows: rows, Mapper: columnMapper}
	for r.Next() {
		vp := reflect.New(base)
		if scannable {
			err = r.Scan(vp.Interface())
		} else {
			err = r.StructScan(vp.Interface())
		}
		if err != nil {
			return err
		}

		if elem.Kind() == reflect.Pointer {
			slice.Set(reflect.Append(slice, vp))
		} else {
			slice.Set(reflect.Append(slice, vp.Elem()))
		}
	}
	return r.Err()
}

var (
	columnMapper = reflectx.NewMapperFunc("db", sqlx.NameMapper)
	scannerType  = reflect.TypeFor[sql.Scanner]()
)

// isScannable reports whether t is read from a single column rather than
// mapped field by field.
func isScannable(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	return len(columnMapper.TypeMap(t).Index) == 0
}
