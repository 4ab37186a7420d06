package messenger

import (
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/transport"
	"github.com/sirupsen/logrus"
)

// wireDispatchCallbacks rebuilds the dispatcher's callback table from the
// application-facing one, translating only where the two shapes differ
// (file-control op aliasing, the lossy passthrough's per-friend
// registration). Called once at construction and again whenever the
// application replaces its Callbacks via SetCallbacks.
func (m *Messenger) wireDispatchCallbacks() {
	m.dispatch.SetCallbacks(dispatch.Callbacks{
		NameChange:          m.cb.NameChange,
		StatusMessageChange: m.cb.StatusMessageChange,
		UserStatusChange:    m.cb.UserStatusChange,
		TypingChange:        m.cb.TypingChange,
		FriendMessage:       m.cb.FriendMessage,
		FileSendRequest:     m.cb.FileSendRequest,
		FileControl:         m.cb.FileControl,
		FileData:            m.cb.FileData,
		Msi:                 m.cb.Msi,
		LosslessPacket:      m.cb.LosslessPacket,
	})
}

// wireTransport registers the Messenger as the single global handler for
// every connection the transport manages (spec §6 "Transport
// (consumed)"), routing status changes into roster device-state
// transitions and inbound packets into the dispatcher.
func (m *Messenger) wireTransport() {
	m.transport.OnStatusChange(m.onTransportStatusChange)
	m.transport.OnLosslessPacket(func(friendIndex, deviceIndex int, data []byte) {
		m.dispatch.Handle(friendIndex, deviceIndex, data, true)
	})
	m.transport.OnLossyPacket(func(friendIndex, deviceIndex int, data []byte) {
		m.dispatch.Handle(friendIndex, deviceIndex, data, false)
	})
}

func (m *Messenger) onTransportStatusChange(friendIndex, deviceIndex int, status transport.ConnStatus, kind transport.Kind) {
	f, ok := m.roster.Get(friendIndex)
	if !ok {
		return
	}

	logger := logrus.WithFields(logrus.Fields{
		"function":     "Messenger.onTransportStatusChange",
		"friend_index": friendIndex,
		"device_index": deviceIndex,
		"status":       status,
	})

	if status == transport.StatusNotConnected {
		_, becameOffline := f.SetDeviceStatus(deviceIndex, friend.NoDev)
		if becameOffline {
			logger.Info("friend device disconnected, friend went offline")
			m.onFriendOffline(friendIndex)
		}
		return
	}

	// A transport-level connect does not by itself mean Online (spec
	// §4.2: the Online transition only happens on receipt of the
	// zero-payload Online packet). It moves the device from NoDev to
	// Pending and announces ourselves on it (glossary "Online packet") so
	// the peer can make the same transition.
	if f.Devices[deviceIndex].Status == friend.NoDev {
		f.Devices[deviceIndex].Status = friend.Pending
	}
	m.sendOnlinePacket(&f.Devices[deviceIndex])
}

func (m *Messenger) onFriendOffline(friendIndex int) {
	delete(m.fileProgress, friendIndex)
	if m.cb.ConnectionStatusChange != nil {
		m.cb.ConnectionStatusChange(friendIndex, ConnNone)
	}
}
