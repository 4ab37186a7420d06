package messenger

import (
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/messaging"
)

// SendMessage encodes and sends a Message/Action packet to every
// currently-Online device of a friend, assigns the next message-id,
// enqueues a receipt keyed off the most recent successful send, and returns
// the message-id (spec §4.2 "Outbound encoding").
func (m *Messenger) SendMessage(friendIndex int, text string, action bool) (uint32, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return 0, err
	}
	if !f.IsOnline() {
		return 0, apperr.NotOnline
	}

	kind := messaging.Normal
	if action {
		kind = messaging.Action
	}
	body, err := messaging.Encode(kind, text)
	if err != nil {
		return 0, err
	}

	id := byte(dispatch.Message)
	if action {
		id = byte(dispatch.Action)
	}
	packet := append([]byte{id}, body...)

	deviceIndex, packetNumber, ok := m.sendToOnlineDevices(f, packet)
	if !ok {
		return 0, apperr.SendFailed
	}

	messageID := f.NextMessageID
	f.NextMessageID++
	f.Receipts = append(f.Receipts, friend.Receipt{
		DeviceIndex:  deviceIndex,
		PacketNumber: packetNumber,
		MessageID:    messageID,
	})

	return messageID, nil
}
