package sqlite

import (
	"context"
	"database/sql/driver"

	"modernc.org/sqlite"

	"github.com/kroma-labs/sentinel-conn/conn"
)

// OpRegisterFunction is the span name of RegisterFunction.
const OpRegisterFunction = "register_function"

// Function is the implementation of a scalar SQL function.
type Function func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error)

// RegisterFunction makes a scalar SQL function available to SQLite
// connections. nArgs is the number of arguments, or -1 for any. A
// deterministic function always returns the same result for the same
// arguments, which lets SQLite use it in indexes and constant folding.
//
// The registration is process-wide and only applies to connections
// established after it. Registering a name twice fails.
func RegisterFunction(
	ctx context.Context,
	name string,
	nArgs int32,
	deterministic bool,
	fn Function,
	opts ...conn.Option,
) error {
	in := conn.NewInstrument(System, errorType, opts...)

	return conn.Exec(ctx, in, OpRegisterFunction, "", func(context.Context) error {
		in.Logger().Debug().
			Str("function", name).
			Bool("deterministic", deterministic).
			Msg("registering sqlite function")

		if deterministic {
			return sqlite.RegisterDeterministicScalarFunction(name, nArgs, fn)
		}
		return sqlite.RegisterScalarFunction(name, nArgs, fn)
	})
}
