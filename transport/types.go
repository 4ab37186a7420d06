// Package transport is the collaborator the messenger core consumes for
// moving bytes between long-term public keys. It deliberately does not
// implement the DHT, onion routing, the full net-crypto key-exchange
// handshake, or the TCP relay protocol — those live in a separate
// subsystem per the core's design (see the root package's doc comment)
// and are reached through this same interface once wired up. What this
// package provides is the framing, the per-connection reliable/unreliable
// packet semantics, and a concrete UDP implementation good enough to
// exercise the messenger core end to end.
package transport

import "net"

// ConnStatus is the connection state of a single device-to-device channel.
type ConnStatus uint8

const (
	// StatusNotConnected means no channel is currently established.
	StatusNotConnected ConnStatus = iota
	// StatusConnected means the channel is up and can carry packets.
	StatusConnected
)

// Kind reports which physical path a connection is currently using. It is
// coarser than ConnStatus: a connection can be StatusConnected over either
// Kind.
type Kind uint8

const (
	// KindUnknown means connected, but the path could not be classified.
	KindUnknown Kind = iota
	KindUDP
	KindTCP
)

// StatusChangeHandler is invoked whenever a Connection's status changes.
// friendIndex/deviceIndex are opaque integers threaded through by the
// caller at Open time, letting one handler serve every connection without
// a closure per friend.
type StatusChangeHandler func(friendIndex, deviceIndex int, status ConnStatus, kind Kind)

// LosslessPacketHandler receives a reliably-delivered application payload.
type LosslessPacketHandler func(friendIndex, deviceIndex int, data []byte)

// LossyPacketHandler receives an unreliable application payload.
type LossyPacketHandler func(friendIndex, deviceIndex int, data []byte)

// Connection is a handle to one device's channel to a remote public key.
// It is the "transport-connection handle" the data model in §3 refers to:
// the messenger core holds it, but the transport owns its lifetime.
type Connection interface {
	// Close releases the connection. The transport may keep the handle
	// valid but disconnected, or free it entirely; callers must not use
	// it again either way.
	Close() error

	// Status reports whether the channel is currently up, and over what
	// kind of path.
	Status() (ConnStatus, Kind)

	// SendLossless queues a reliably-delivered packet and returns the
	// packet number later passed to IsAcked. It returns an error
	// (ErrSendQueueFull) instead of blocking when the send queue is full.
	SendLossless(data []byte) (packetNumber uint32, err error)

	// SendLossy best-effort sends an unreliable packet. It never blocks.
	SendLossy(data []byte) error

	// IsAcked reports whether the remote end has acknowledged the given
	// reliable packet number. Used by the receipt queue (§4.4).
	IsAcked(packetNumber uint32) bool

	// FreeSendQueueSlots reports how many more reliable packets can be
	// queued before SendLossless starts failing. Used by the file-chunk
	// budget calculation in §4.3.
	FreeSendQueueSlots() int

	// Congested reports whether the connection believes it has reached
	// its maximum achievable throughput; file-chunk requests should back
	// off while this is true.
	Congested() bool
}

// Transport opens Connections to public keys and dispatches their
// inbound packets to registered, connection-agnostic handlers.
type Transport interface {
	// Open establishes (or returns an already-open) Connection to
	// publicKey, tagging it with the caller's friend/device indices so
	// later callbacks can be routed back without extra bookkeeping.
	Open(publicKey [32]byte, friendIndex, deviceIndex int) (Connection, error)

	// RegisterPeerAddress tells the transport where a public key can be
	// reached. In a full stack this would be learned from the DHT;
	// without that subsystem present, callers supply it directly (e.g.
	// from an out-of-band bootstrap or a prior session).
	RegisterPeerAddress(publicKey [32]byte, addr net.Addr) error

	// OnStatusChange/OnLosslessPacket/OnLossyPacket register the single,
	// global callback used for every connection the transport manages.
	OnStatusChange(h StatusChangeHandler)
	OnLosslessPacket(h LosslessPacketHandler)
	OnLossyPacket(h LossyPacketHandler)

	// LocalAddr returns the transport's bound local address.
	LocalAddr() net.Addr

	// Close shuts the transport down and releases all connections.
	Close() error
}

// ErrSendQueueFull is returned by Connection.SendLossless when the
// reliable send queue has no free slots.
type sendQueueFullError struct{}

func (sendQueueFullError) Error() string { return "transport: send queue full" }

// ErrSendQueueFull is the sentinel value compared against with errors.Is.
var ErrSendQueueFull error = sendQueueFullError{}
