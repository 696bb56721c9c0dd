package database

import (
	"context"

	_ "github.com/lib/pq" // Register postgres driver
	"github.com/rs/zerolog"

	"github.com/kroma-labs/sentinel-conn/conn"
	"github.com/kroma-labs/sentinel-conn/example/postgres/internal/config"
	"github.com/kroma-labs/sentinel-conn/postgres"
)

// DB wraps one instrumented PostgreSQL connection
type DB struct {
	*postgres.Conn
	log zerolog.Logger
}

// New establishes the connection. The server identity (database name,
// version, address) is resolved here once and attached to every span.
func New(ctx context.Context, log zerolog.Logger) (*DB, error) {
	c, err := postgres.Establish(ctx, config.DefaultDSN,
		conn.WithDriverName(config.DefaultDriver),
		conn.WithInstanceName(config.DefaultInstance),
		conn.WithStatement(),
		conn.WithQuerySanitizer(conn.DefaultQuerySanitizer),
		conn.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	id := c.Identity()
	log.Info().
		Str("db.name", id.Name).
		Str("net.peer.ip", id.PeerIP).
		Int("net.peer.port", id.PeerPort).
		Msg("connected")

	return &DB{Conn: c, log: log}, nil
}
