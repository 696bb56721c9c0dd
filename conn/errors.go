package conn

import (
	"errors"
	"fmt"
)

// Transaction manager misuse errors. They are returned before any SQL is sent.
var (
	// ErrAlreadyInTransaction is returned when a top-level transaction with
	// custom BEGIN SQL is requested while one is already open.
	ErrAlreadyInTransaction = errors.New("conn: already in a transaction")

	// ErrNotInTransaction is returned by Commit or Rollback at depth zero.
	ErrNotInTransaction = errors.New("conn: not in a transaction")

	// ErrBrokenTransactionManager is returned once a top-level ROLLBACK has
	// failed and the session state can no longer be trusted.
	ErrBrokenTransactionManager = errors.New("conn: transaction manager is broken")
)

// ConnectionErrorKind classifies why establishing a connection failed.
type ConnectionErrorKind int

const (
	// KindEstablish means the native driver could not open the session.
	KindEstablish ConnectionErrorKind = iota

	// KindConfiguration means the session opened but post-connect setup
	// (identity resolution) failed. The session has been discarded.
	KindConfiguration
)

// String implements fmt.Stringer.
func (k ConnectionErrorKind) String() string {
	switch k {
	case KindEstablish:
		return "establish"
	case KindConfiguration:
		return "configuration"
	default:
		return fmt.Sprintf("ConnectionErrorKind(%d)", int(k))
	}
}

// ConnectionError is returned by a backend's Establish. No usable
// connection exists when it is returned.
type ConnectionError struct {
	// System is the db.system of the backend, e.g. "postgresql".
	System string

	// Kind tells raw connect failures from configuration failures.
	Kind ConnectionErrorKind

	// Err is the underlying driver error, unmodified.
	Err error
}

// NewConnectionError creates a ConnectionError.
func NewConnectionError(system string, kind ConnectionErrorKind, err error) *ConnectionError {
	return &ConnectionError{
		System: system,
		Kind:   kind,
		Err:    err,
	}
}

// Error implements error.
func (e *ConnectionError) Error() string {
	if e.Kind == KindConfiguration {
		return fmt.Sprintf("%s: couldn't set up connection configuration: %v", e.System, e.Err)
	}
	return fmt.Sprintf("%s: failed to establish connection: %v", e.System, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is a ConnectionError of kind
// KindConfiguration.
func IsConfigurationError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Kind == KindConfiguration
}
