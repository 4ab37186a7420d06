package messenger

import (
	cryptorand "crypto/rand"
	"fmt"

	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/file"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/friendreq"
	"github.com/nocturne-im/messenger/limits"
	"github.com/nocturne-im/messenger/transport"
	"github.com/sirupsen/logrus"
)

// ConnKind re-exports friend.ConnKind so callers never need to import
// the friend package directly for the connection-status API.
type ConnKind = friend.ConnKind

const (
	ConnNone    = friend.ConnNone
	ConnUDP     = friend.ConnUDP
	ConnTCP     = friend.ConnTCP
	ConnUnknown = friend.ConnUnknown
)

// Status re-exports friend.Status, the contact-lifecycle state machine
// position (spec §3, §4.1).
type Status = friend.Status

const (
	NoFriend  = friend.NoFriend
	Added     = friend.Added
	Requested = friend.Requested
	Confirmed = friend.Confirmed
	Online    = friend.Online
)

// Messenger is the Messenger core described by the specification: the
// friend roster, its packet dispatcher, its file-transfer engine, and
// the per-tick lifecycle driver, wired to a [transport.Transport] and a
// [friendreq.Manager].
//
// A Messenger is not safe for concurrent use: every method and Tick must
// run on the same goroutine, per the single-threaded cooperative
// concurrency model in spec §5.
type Messenger struct {
	options *Options
	tp      TimeProvider

	keyPair *crypto.KeyPair
	nospam  [4]byte

	selfName          string
	selfStatusMessage string
	selfUserStatus    uint8
	selfTyping        map[int]bool

	roster    *friend.Roster
	dispatch  *dispatch.Dispatcher
	requests  *friendreq.Manager
	transport transport.Transport

	cb Callbacks

	coreConnKind ConnKind

	fileProgress map[int]*friendFileProgress
}

// friendFileProgress tracks per-slot stall-detection bookkeeping for one
// friend's sending and receiving file-transfer arrays (SUPPLEMENTED
// FEATURES "Stall detection"). Kept out of friend.Friend itself so that
// type stays a plain value safe to embed in fixed-size arrays.
type friendFileProgress struct {
	Outgoing [limits.MaxConcurrentFilePipes]file.Progress
	Incoming [limits.MaxConcurrentFilePipes]file.Progress
}

// New creates a Messenger from the given options, generating a fresh key
// pair if one wasn't supplied.
func New(options *Options) (*Messenger, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.Transport == nil {
		return nil, fmt.Errorf("messenger: Options.Transport is required")
	}
	if options.TimeProvider == nil {
		options.TimeProvider = systemTimeProvider{}
	}

	var keyPair *crypto.KeyPair
	var err error
	if options.SecretKey != ([32]byte{}) {
		keyPair, err = crypto.FromSecretKey(options.SecretKey)
	} else {
		keyPair, err = crypto.GenerateKeyPair()
	}
	if err != nil {
		return nil, fmt.Errorf("messenger: generate key pair: %w", err)
	}

	nospam := options.Nospam
	if nospam == ([4]byte{}) {
		if _, err := cryptorand.Read(nospam[:]); err != nil {
			return nil, fmt.Errorf("messenger: generate nospam: %w", err)
		}
	}

	roster := friend.NewRoster(keyPair.Public, options.TimeProvider)
	roster.SetDefaultRequestTimeout(options.FriendRequestTimeout)

	m := &Messenger{
		options:           options,
		tp:                options.TimeProvider,
		keyPair:           keyPair,
		nospam:            nospam,
		selfName:          options.Name,
		selfStatusMessage: options.StatusMessage,
		roster:            roster,
		requests:          friendreq.NewManager(),
		transport:         options.Transport,
		fileProgress:      make(map[int]*friendFileProgress),
	}
	m.dispatch = dispatch.New(roster, dispatch.Callbacks{})
	m.wireDispatchCallbacks()
	m.wireRequests()
	m.wireTransport()

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"public_key": fmt.Sprintf("%x", keyPair.Public[:8]),
	}).Info("messenger created")

	return m, nil
}

// SelfPublicKey returns the local identity's long-term public key.
func (m *Messenger) SelfPublicKey() [32]byte { return m.keyPair.Public }

// SelfAddress returns the local identity's public, shareable friend
// address (spec §3 "Friend address (public)").
func (m *Messenger) SelfAddress() crypto.Address {
	return crypto.NewAddress(m.keyPair.Public, m.nospam)
}

// SetNospam rotates the anti-spam cookie published in SelfAddress,
// invalidating any cached invite built from the old value (§3 glossary
// "Nospam").
func (m *Messenger) SetNospam(nospam [4]byte) { m.nospam = nospam }

func (m *Messenger) friendOrErr(friendIndex int) (*friend.Friend, error) {
	f, ok := m.roster.Get(friendIndex)
	if !ok {
		return nil, apperr.InvalidFriend
	}
	return f, nil
}
