package messenger

import (
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/friend"
)

// sendToOnlineDevices writes payload to every currently-Online device of
// f, fanning out per §9 "Multi-device" ("writes should fan out to every
// device currently Online and succeed if at least one send succeeds").
// It returns the device index and packet number of the most recently
// observed successful send, the §9 open-question resolution: keying a
// receipt off the last device in iteration order (as the reference
// implementation does) risks never resolving if that particular device
// later fails over, whereas the most recent success is always one the
// transport is actively acknowledging against. Packet numbers are scoped
// to a connection, so the device index travels with the packet number so
// a later IsAcked query lands on the right connection.
func (m *Messenger) sendToOnlineDevices(f *friend.Friend, payload []byte) (deviceIndex int, packetNumber uint32, ok bool) {
	for i := range f.Devices {
		d := &f.Devices[i]
		if d.Status != friend.DeviceOnline || d.Conn == nil {
			continue
		}
		pn, err := d.Conn.SendLossless(payload)
		if err != nil {
			continue
		}
		deviceIndex, packetNumber, ok = i, pn, true
	}
	return deviceIndex, packetNumber, ok
}

// sendOnlinePacket sends the zero-payload Online ping on one device,
// triggering the peer's !Online -> Online transition on receipt (§4.5).
func (m *Messenger) sendOnlinePacket(d *friend.Device) {
	if d.Conn == nil {
		return
	}
	_, _ = d.Conn.SendLossless([]byte{byte(dispatch.Online)})
}
