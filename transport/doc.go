// Package transport provides the packet-framing and UDP transport used by
// the messenger core to move bytes between long-term public keys. See
// [Transport] and [Connection] for the interfaces the core depends on, and
// [UDPTransport] for the concrete implementation.
package transport
