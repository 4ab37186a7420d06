//go:build unix

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// sndbufSlotEstimate derives a rough reliable-packet send-queue depth from
// the kernel's SO_SNDBUF for the underlying socket, the same figure the
// kernel uses to decide when a UDP write would block. Dividing by an
// average datagram size turns "bytes of kernel buffer" into "packets we
// can have outstanding", the unit FreeSendQueueSlots needs.
func sndbufSlotEstimate(pc net.PacketConn, avgPacketSize int) int {
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		return defaultQueueSlots
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return defaultQueueSlots
	}

	var sndbuf int
	controlErr := raw.Control(func(fd uintptr) {
		v, gerr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
		if gerr == nil {
			sndbuf = v
		}
	})
	if controlErr != nil || sndbuf <= 0 {
		return defaultQueueSlots
	}

	if avgPacketSize <= 0 {
		avgPacketSize = 512
	}
	slots := sndbuf / avgPacketSize
	if slots <= 0 {
		return defaultQueueSlots
	}
	return slots
}
