package messenger

import (
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/friend"
)

// SetNickname updates the self identity's published nickname and marks
// every friend's name-sent flag false so the next Tick republishes it
// (spec §4.2 "Outbound encoding").
func (m *Messenger) SetNickname(name string) error {
	if _, err := dispatch.EncodeNickname(name); err != nil {
		return err
	}
	m.selfName = name
	m.forEachFriend(func(idx int, f *friend.Friend) { f.Sent.Name = false })
	return nil
}

// SelfNickname returns the self identity's currently published nickname.
func (m *Messenger) SelfNickname() string { return m.selfName }

// SetStatusMessage updates the self identity's published status message
// and marks every friend's status-message-sent flag false.
func (m *Messenger) SetStatusMessage(message string) error {
	if _, err := dispatch.EncodeStatusMessage(message); err != nil {
		return err
	}
	m.selfStatusMessage = message
	m.forEachFriend(func(idx int, f *friend.Friend) { f.Sent.StatusMessage = false })
	return nil
}

// SelfStatusMessage returns the self identity's currently published
// status message.
func (m *Messenger) SelfStatusMessage() string { return m.selfStatusMessage }

// UserStatus enumerates the self identity's published presence (spec §3
// "a user-status enum {None, Away, Busy}").
type UserStatus = uint8

const (
	UserStatusNone UserStatus = iota
	UserStatusAway
	UserStatusBusy
)

// SetUserStatus updates the self identity's published presence enum and
// marks every friend's user-status-sent flag false.
func (m *Messenger) SetUserStatus(status UserStatus) error {
	if status > UserStatusBusy {
		return apperr.TooLong
	}
	m.selfUserStatus = status
	m.forEachFriend(func(idx int, f *friend.Friend) { f.Sent.UserStatus = false })
	return nil
}

// SelfUserStatus returns the self identity's currently published presence.
func (m *Messenger) SelfUserStatus() uint8 { return m.selfUserStatus }

// SetTyping updates whether the local user is typing to one specific
// friend and marks that friend's typing-sent flag false. Typing is
// addressed per-conversation, unlike nickname/status-message/user-status
// which broadcast identically to every friend.
func (m *Messenger) SetTyping(friendIndex int, typing bool) error {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return err
	}
	if m.selfTyping == nil {
		m.selfTyping = make(map[int]bool)
	}
	m.selfTyping[friendIndex] = typing
	f.Sent.Typing = false
	return nil
}

func (m *Messenger) forEachFriend(fn func(idx int, f *friend.Friend)) {
	n := m.roster.NumFriends()
	for i := 0; i < n; i++ {
		f, ok := m.roster.Get(i)
		if !ok {
			continue
		}
		fn(i, f)
	}
}
