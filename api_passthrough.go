package messenger

import (
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/dispatch"
)

// SendLosslessPacket sends a reliably-delivered custom packet whose
// leading id byte falls in [dispatch.LosslessRangeStart,
// dispatch.LosslessRangeEnd] to every Online device of friendIndex (spec
// §6 "custom lossy and lossless packet handlers"). The inbound side is
// surfaced through the single global [Callbacks.LosslessPacket] upcall.
func (m *Messenger) SendLosslessPacket(friendIndex int, id uint8, data []byte) error {
	if dispatch.ID(id) < dispatch.LosslessRangeStart || dispatch.ID(id) > dispatch.LosslessRangeEnd {
		return apperr.InvalidPacketID
	}
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return err
	}
	if !f.IsOnline() {
		return apperr.NotOnline
	}
	packet := append([]byte{id}, data...)
	if _, _, ok := m.sendToOnlineDevices(f, packet); !ok {
		return apperr.SendFailed
	}
	return nil
}

// SendLossyPacket best-effort sends a custom packet whose leading id byte
// falls in [dispatch.LossyRangeStart, dispatch.LossyRangeEnd] on
// friendIndex's primary device.
func (m *Messenger) SendLossyPacket(friendIndex int, id uint8, data []byte) error {
	if dispatch.ID(id) < dispatch.LossyRangeStart || dispatch.ID(id) > dispatch.LossyRangeEnd {
		return apperr.InvalidPacketID
	}
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return err
	}
	conn := m.primaryOnlineDevice(f)
	if conn == nil {
		return apperr.NotOnline
	}
	packet := append([]byte{id}, data...)
	if err := conn.SendLossy(packet); err != nil {
		return apperr.SendFailed
	}
	return nil
}

// RegisterLossyPacketHandler installs (or, passing nil, removes) the
// custom lossy-packet passthrough callback for one friend, mirroring the
// teacher stack's per-peer handler registration (§6). Unlike
// [Callbacks.LosslessPacket], there is no single global lossy handler:
// a friend's unreliable channel is too chatty for one callback to
// usefully demultiplex across the whole roster.
func (m *Messenger) RegisterLossyPacketHandler(friendIndex int, h func(data []byte)) {
	m.dispatch.RegisterLossyHandler(friendIndex, h)
}
