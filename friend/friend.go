// Package friend implements the friend roster (spec §3, §4.1): the
// per-contact record, its devices, and the contact-lifecycle state
// machine driving status from Added through Online.
package friend

import (
	"time"

	"github.com/nocturne-im/messenger/file"
	"github.com/nocturne-im/messenger/limits"
	"github.com/nocturne-im/messenger/transport"
)

// Status is a friend's position in the contact-lifecycle state machine.
type Status uint8

const (
	// NoFriend marks a free roster slot.
	NoFriend Status = iota
	// Added means a friend request has been created but not yet sent.
	Added
	// Requested means the request packet has been sent at least once.
	Requested
	// Confirmed means the friend accepted (or was added without a
	// request) but no device has been heard from yet.
	Confirmed
	// Online means at least one device is currently Online.
	Online
)

// DeviceStatus is a single device's connection state within a friend.
type DeviceStatus uint8

const (
	NoDev DeviceStatus = iota
	Pending
	DeviceConfirmed
	DeviceOnline
)

// ConnKind is the externally visible connection path for a friend,
// coalesced across devices and debounced against momentary flapping
// (§4.5).
type ConnKind uint8

const (
	ConnNone ConnKind = iota
	ConnUDP
	ConnTCP
	ConnUnknown
)

// Device is one of possibly several connections under a single friend
// identity (§9 Design Notes "Multi-device").
type Device struct {
	PublicKey [32]byte
	Conn      transport.Connection
	Status    DeviceStatus
}

// Receipt binds a local message-id to the transport packet-number whose
// acknowledgment resolves it, and the device that packet number was
// assigned by — packet numbers are scoped to a single connection, so
// draining a receipt means asking that specific device, not any device
// currently online (§4.4).
type Receipt struct {
	DeviceIndex  int
	PacketNumber uint32
	MessageID    uint32
}

// SentFlags tracks which of a friend's presence fields still need to be
// (re)published; each is cleared to false ("needs resend") on every
// !Online -> Online transition.
type SentFlags struct {
	Name          bool
	StatusMessage bool
	UserStatus    bool
	Typing        bool
}

// Friend is one roster entry, identified by its stable index in Roster.
type Friend struct {
	Status  Status
	Devices []Device

	RequestPayload  []byte
	RequestNospam   [4]byte
	RequestLastSent time.Time
	RequestTimeout  time.Duration

	Nickname      string
	StatusMessage string
	UserStatus    uint8
	Typing        bool
	Sent          SentFlags

	NextMessageID uint32
	Receipts      []Receipt

	FilesOutgoing   [limits.MaxConcurrentFilePipes]file.Slot
	FilesIncoming   [limits.MaxConcurrentFilePipes]file.Slot
	NumSendingFiles int

	LastConnKind ConnKind
	LastSeen     time.Time
}

// PublicKey returns the friend's primary (first-added) device key, the
// one the roster indexes friends by.
func (f *Friend) PublicKey() [32]byte {
	if len(f.Devices) == 0 {
		return [32]byte{}
	}
	return f.Devices[0].PublicKey
}

// IsOnline reports whether any device is Online, the invariant §3 ties
// Friend.Status == Online to.
func (f *Friend) IsOnline() bool {
	for _, d := range f.Devices {
		if d.Status == DeviceOnline {
			return true
		}
	}
	return false
}

// recomputeStatus derives Status == Online from device state without
// otherwise disturbing a status that's already at least Confirmed,
// honoring the "strictly nondecreasing except Online<->Confirmed" rule.
func (f *Friend) recomputeStatus() {
	if f.IsOnline() {
		f.Status = Online
		return
	}
	if f.Status == Online {
		f.Status = Confirmed
	}
}
