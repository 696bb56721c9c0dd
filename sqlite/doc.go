// Package sqlite provides an instrumented SQLite connection over the pure Go
// modernc.org/sqlite driver.
//
// Besides the common capabilities it offers ImmediateTransaction and
// ExclusiveTransaction, and RegisterFunction for custom scalar functions.
package sqlite
