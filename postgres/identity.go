package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kroma-labs/sentinel-conn/conn"
)

// identityQuery reads the connection identity in one round-trip.
// See https://www.postgresql.org/docs/current/functions-info.html
//
//	current_database()   -> db.name
//	inet_server_addr()   -> net.peer.ip
//	inet_server_port()   -> net.peer.port
//	version()            -> db.version
const identityQuery = "SELECT current_database() AS current_database, " +
	"host(inet_server_addr()) AS inet_server_addr, " +
	"inet_server_port() AS inet_server_port, " +
	"version() AS version"

// errNoNetworkIdentity is returned for sessions without a network peer,
// e.g. connections over a unix socket.
var errNoNetworkIdentity = errors.New("server address and port are not available for this session")

type identityRow struct {
	CurrentDatabase string         `db:"current_database"`
	InetServerAddr  sql.NullString `db:"inet_server_addr"`
	InetServerPort  sql.NullInt32  `db:"inet_server_port"`
	Version         string         `db:"version"`
}

// resolveIdentity runs identityQuery once on l and decodes the single row.
func resolveIdentity(ctx context.Context, l conn.Loader) (conn.Identity, error) {
	var rows []identityRow
	if err := conn.LoadAll(ctx, l, &rows, identityQuery); err != nil {
		return conn.Identity{}, err
	}

	if len(rows) != 1 {
		return conn.Identity{}, fmt.Errorf("connection information: expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if !row.InetServerAddr.Valid || !row.InetServerPort.Valid {
		return conn.Identity{}, errNoNetworkIdentity
	}

	return conn.Identity{
		Name:     row.CurrentDatabase,
		Version:  row.Version,
		PeerIP:   row.InetServerAddr.String,
		PeerPort: int(row.InetServerPort.Int32),
	}, nil
}
