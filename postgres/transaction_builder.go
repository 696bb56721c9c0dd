package postgres

import (
	"context"
	"strings"

	"github.com/kroma-labs/sentinel-conn/conn"
)

type isolationLevel string

const (
	isolationReadCommitted  isolationLevel = "READ COMMITTED"
	isolationRepeatableRead isolationLevel = "REPEATABLE READ"
	isolationSerializable   isolationLevel = "SERIALIZABLE"
)

// TransactionBuilder configures a top-level PostgreSQL transaction.
// The zero configuration runs a plain "BEGIN TRANSACTION".
//
// Example:
//
//	err := c.BuildTransaction().
//	    Serializable().
//	    ReadOnly().
//	    Deferrable().
//	    Run(ctx, func(ctx context.Context, tx conn.Connection) error {
//	        return conn.LoadAll(ctx, tx, &report, "SELECT ...")
//	    })
type TransactionBuilder struct {
	c          *Conn
	isolation  isolationLevel
	readOnly   *bool
	deferrable *bool
}

// BuildTransaction starts configuring a transaction on c.
func (c *Conn) BuildTransaction() *TransactionBuilder {
	return &TransactionBuilder{c: c}
}

// ReadCommitted sets the isolation level to READ COMMITTED.
func (b *TransactionBuilder) ReadCommitted() *TransactionBuilder {
	b.isolation = isolationReadCommitted
	return b
}

// RepeatableRead sets the isolation level to REPEATABLE READ.
func (b *TransactionBuilder) RepeatableRead() *TransactionBuilder {
	b.isolation = isolationRepeatableRead
	return b
}

// Serializable sets the isolation level to SERIALIZABLE.
func (b *TransactionBuilder) Serializable() *TransactionBuilder {
	b.isolation = isolationSerializable
	return b
}

// ReadOnly sets the access mode to READ ONLY.
func (b *TransactionBuilder) ReadOnly() *TransactionBuilder {
	b.readOnly = boolPtr(true)
	return b
}

// ReadWrite sets the access mode to READ WRITE.
func (b *TransactionBuilder) ReadWrite() *TransactionBuilder {
	b.readOnly = boolPtr(false)
	return b
}

// Deferrable only has an effect on SERIALIZABLE READ ONLY transactions.
func (b *TransactionBuilder) Deferrable() *TransactionBuilder {
	b.deferrable = boolPtr(true)
	return b
}

// NotDeferrable sets NOT DEFERRABLE.
func (b *TransactionBuilder) NotDeferrable() *TransactionBuilder {
	b.deferrable = boolPtr(false)
	return b
}

// SQL returns the statement that opens the transaction.
func (b *TransactionBuilder) SQL() string {
	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION")

	if b.isolation != "" {
		sb.WriteString(" ISOLATION LEVEL ")
		sb.WriteString(string(b.isolation))
	}

	if b.readOnly != nil {
		if *b.readOnly {
			sb.WriteString(" READ ONLY")
		} else {
			sb.WriteString(" READ WRITE")
		}
	}

	if b.deferrable != nil {
		if *b.deferrable {
			sb.WriteString(" DEFERRABLE")
		} else {
			sb.WriteString(" NOT DEFERRABLE")
		}
	}

	return sb.String()
}

// Run executes fn in the configured transaction. It fails with
// conn.ErrAlreadyInTransaction when a transaction is already open on the
// connection, since these settings only apply at the top level.
func (b *TransactionBuilder) Run(ctx context.Context, fn conn.TxFunc) error {
	c := b.c
	return conn.Exec(ctx, c.in, conn.OpTransaction, "", func(ctx context.Context) error {
		return conn.RunTransaction(ctx, c, c.inner.TransactionState(ctx), b.SQL(), fn)
	})
}

func boolPtr(v bool) *bool {
	return &v
}
