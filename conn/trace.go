package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strings"
)

// Error type classifications for the error.type attribute.
// Backends report driver-specific codes first; these are the fallback.
const (
	ErrorTypeTimeout       = "timeout"
	ErrorTypeCancelled     = "cancelled"
	ErrorTypeBadConn       = "bad_conn"
	ErrorTypeConnDone      = "conn_done"
	ErrorTypeNoRows        = "no_rows"
	ErrorTypeConfiguration = "configuration"
	ErrorTypeTransaction   = "transaction"
	ErrorTypeUnknown       = "unknown"
)

// Regex patterns for query sanitization.
var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	// Example matches: 'hello', 'it\'s', 'foo''bar'
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches numeric literals (integers and floats).
	// Example matches: 123, 45.67, 0.5
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals.
	// Example matches: 0xDEADBEEF, 0xFF, 0x1a2b
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// extractOperation extracts the SQL operation (first word) from a query.
// Returns uppercase operation name or empty string if query is empty.
//
// Example:
//
//	extractOperation("SELECT * FROM users") // returns "SELECT"
//	extractOperation("insert into users")   // returns "INSERT"
//	extractOperation("")                    // returns ""
func extractOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	spaceIdx := strings.IndexAny(query, " \t\n\r")
	if spaceIdx == -1 {
		return strings.ToUpper(query)
	}

	return strings.ToUpper(query[:spaceIdx])
}

// DefaultQuerySanitizer is a basic query sanitizer that replaces
// literal values with placeholders to prevent sensitive data from
// appearing in traces.
//
// What it sanitizes:
//   - String literals: 'john' → '?'
//   - Numeric literals: 123, 45.67 → ?
//   - Hex literals: 0xDEADBEEF → ?
//
// Example:
//
//	DefaultQuerySanitizer("SELECT * FROM users WHERE id = 123")
//	// returns "SELECT * FROM users WHERE id = ?"
func DefaultQuerySanitizer(query string) string {
	query = stringLiteralRegex.ReplaceAllString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")
	return query
}

// classifyError returns an error.type classification for the given error.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	if IsConfigurationError(err) {
		return ErrorTypeConfiguration
	}

	switch {
	case errors.Is(err, driver.ErrBadConn):
		return ErrorTypeBadConn
	case errors.Is(err, sql.ErrConnDone):
		return ErrorTypeConnDone
	case errors.Is(err, sql.ErrNoRows):
		return ErrorTypeNoRows
	case errors.Is(err, ErrAlreadyInTransaction),
		errors.Is(err, ErrNotInTransaction),
		errors.Is(err, ErrBrokenTransactionManager):
		return ErrorTypeTransaction
	}

	return ErrorTypeUnknown
}
