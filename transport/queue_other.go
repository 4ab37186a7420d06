//go:build !unix

package transport

import "net"

// sndbufSlotEstimate has no portable, non-unix way to read SO_SNDBUF
// through the standard library, so non-unix platforms fall back to the
// fixed default.
func sndbufSlotEstimate(pc net.PacketConn, avgPacketSize int) int {
	return defaultQueueSlots
}
