package conn

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Attribute keys not covered by the semconv version in use.
const (
	dbVersionKey   = attribute.Key("db.version")
	netPeerIPKey   = attribute.Key("net.peer.ip")
	netPeerPortKey = attribute.Key("net.peer.port")
	dbInstanceKey  = attribute.Key("db.instance")
	errorTypeKey   = attribute.Key("error.type")
)

// Identity is a snapshot of the server a connection is attached to.
// It is resolved once when the connection is established and never
// refreshed, even if the session's reported values change later.
type Identity struct {
	// Name is the database the session is connected to.
	Name string

	// Version is the server version string.
	Version string

	// PeerIP is the server network address.
	PeerIP string

	// PeerPort is the server network port.
	PeerPort int
}

// Attributes returns the identity as span attributes. All four are always
// present together.
func (id Identity) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.DBNameKey.String(id.Name),
		dbVersionKey.String(id.Version),
		netPeerIPKey.String(id.PeerIP),
		netPeerPortKey.Int(id.PeerPort),
	}
}
