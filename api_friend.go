package messenger

import (
	"fmt"

	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/friend"
	"github.com/sirupsen/logrus"
)

// AddFriend validates a public address and friend-request payload and
// creates a new roster entry in state Added (spec §4.1). On success it
// also opens the transport connection that will carry the request and
// later traffic.
func (m *Messenger) AddFriend(address crypto.Address, payload []byte) (int, error) {
	idx, err := m.roster.AddFriend(address, payload)
	if err != nil && err != apperr.SetNewNospam {
		return idx, err
	}
	if err == apperr.SetNewNospam {
		return idx, err
	}

	if openErr := m.openFriendDevice(idx, 0, address.PublicKey); openErr != nil {
		_ = m.roster.DeleteFriend(idx)
		return -1, fmt.Errorf("messenger: open transport connection: %w", openErr)
	}
	return idx, nil
}

// AddFriendNoRequest creates a friend directly in state Confirmed,
// skipping the request handshake (spec §4.1) — used for save restore and
// for accepting an inbound request the application has already approved.
func (m *Messenger) AddFriendNoRequest(publicKey [32]byte) (int, error) {
	idx, err := m.roster.AddFriendNoRequest(publicKey)
	if err != nil {
		return idx, err
	}
	if openErr := m.openFriendDevice(idx, 0, publicKey); openErr != nil {
		_ = m.roster.DeleteFriend(idx)
		return -1, fmt.Errorf("messenger: open transport connection: %w", openErr)
	}
	m.requests.Clear(publicKey)
	return idx, nil
}

func (m *Messenger) openFriendDevice(friendIndex, deviceIndex int, publicKey [32]byte) error {
	conn, err := m.transport.Open(publicKey, friendIndex, deviceIndex)
	if err != nil {
		return err
	}
	f, ok := m.roster.Get(friendIndex)
	if !ok {
		return apperr.InvalidFriend
	}
	for len(f.Devices) <= deviceIndex {
		f.Devices = append(f.Devices, friend.Device{})
	}
	f.Devices[deviceIndex].Conn = conn
	return nil
}

// AddDevice attaches an additional device under an existing friend
// identity (§9 "Multi-device") and opens its own transport connection.
func (m *Messenger) AddDevice(friendIndex int, publicKey [32]byte) error {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return err
	}
	deviceIndex := len(f.Devices)
	if err := m.roster.AddDevice(friendIndex, publicKey, friend.NoDev); err != nil {
		return err
	}
	return m.openFriendDevice(friendIndex, deviceIndex, publicKey)
}

// DeleteFriend sends a best-effort Offline notification, releases the
// friend's transport handles, and frees its roster slot for reuse (spec
// §4.1).
func (m *Messenger) DeleteFriend(friendIndex int) error {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return err
	}

	if f.IsOnline() {
		m.sendToOnlineDevices(f, []byte{byte(dispatch.Offline)})
	}

	delete(m.fileProgress, friendIndex)

	logrus.WithFields(logrus.Fields{
		"function":     "Messenger.DeleteFriend",
		"friend_index": friendIndex,
	}).Info("deleting friend")

	return m.roster.DeleteFriend(friendIndex)
}

// GetFriendConnectionStatus reports the coalesced, debounced connection
// kind for a friend (spec §4.1, §4.5).
func (m *Messenger) GetFriendConnectionStatus(friendIndex int) (ConnKind, error) {
	return m.roster.GetFriendConnectionStatus(friendIndex)
}

// NumFriends is the high-water mark + 1 of allocated roster slots.
func (m *Messenger) NumFriends() int { return m.roster.NumFriends() }

// FriendStatus reports a friend's contact-lifecycle state.
func (m *Messenger) FriendStatus(friendIndex int) (Status, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return NoFriend, err
	}
	return f.Status, nil
}

// FriendPublicKey returns a friend's primary device public key.
func (m *Messenger) FriendPublicKey(friendIndex int) ([32]byte, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return [32]byte{}, err
	}
	return f.PublicKey(), nil
}
