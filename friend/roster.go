package friend

import (
	"fmt"
	"time"

	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/limits"
	"github.com/nocturne-im/messenger/transport"
	"github.com/sirupsen/logrus"
)

// DefaultFriendRequestTimeout is the initial retry interval for an
// unacknowledged friend request (§4.6); it doubles on each failed attempt.
const DefaultFriendRequestTimeout = 8 * time.Second

// TimeProvider allows deterministic testing of request-retry timing.
type TimeProvider interface {
	Now() time.Time
}

type systemTimeProvider struct{}

func (systemTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = systemTimeProvider{}

// Roster owns the friend list, keyed by stable, opaque integer indices
// (spec §9 "Handle pointers vs indices"). Growth never invalidates an
// outstanding index.
type Roster struct {
	friends        []*Friend
	byPublicKey    map[[32]byte]int
	selfPublicKey  [32]byte
	tp             TimeProvider
	requestTimeout time.Duration
}

// NewRoster creates an empty roster for a local identity.
func NewRoster(selfPublicKey [32]byte, tp TimeProvider) *Roster {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &Roster{
		byPublicKey:    make(map[[32]byte]int),
		selfPublicKey:  selfPublicKey,
		tp:             tp,
		requestTimeout: DefaultFriendRequestTimeout,
	}
}

// SetDefaultRequestTimeout overrides the initial retry interval newly
// added friends start with; it has no effect on friends already added.
func (r *Roster) SetDefaultRequestTimeout(d time.Duration) {
	if d > 0 {
		r.requestTimeout = d
	}
}

// NumFriends is the high-water mark + 1: the index one past the highest
// non-None slot.
func (r *Roster) NumFriends() int {
	for i := len(r.friends) - 1; i >= 0; i-- {
		if r.friends[i].Status != NoFriend {
			return i + 1
		}
	}
	return 0
}

// Get returns the friend at index n, if any.
func (r *Roster) Get(n int) (*Friend, bool) {
	if n < 0 || n >= len(r.friends) {
		return nil, false
	}
	if r.friends[n].Status == NoFriend {
		return nil, false
	}
	return r.friends[n], true
}

// allocate finds the first NoFriend slot, or appends a new one.
func (r *Roster) allocate() int {
	for i, f := range r.friends {
		if f.Status == NoFriend {
			return i
		}
	}
	r.friends = append(r.friends, &Friend{Status: NoFriend})
	return len(r.friends) - 1
}

// AddFriend validates a public address and friend-request payload and
// creates a new roster entry in state Added (spec §4.1).
func (r *Roster) AddFriend(address crypto.Address, payload []byte) (int, error) {
	if _, err := crypto.ParseAddress(address.Bytes()); err != nil {
		return -1, apperr.BadChecksum
	}
	if len(payload) == 0 {
		return -1, apperr.NoMessage
	}
	if len(payload) > limits.MaxFriendRequestMessageLength {
		return -1, apperr.TooLong
	}
	if address.PublicKey == r.selfPublicKey {
		return -1, apperr.OwnKey
	}

	if idx, exists := r.byPublicKey[address.PublicKey]; exists {
		existing := r.friends[idx]
		if existing.Status >= Confirmed {
			return idx, apperr.AlreadySent
		}
		if existing.RequestNospam != address.Nospam {
			existing.RequestNospam = address.Nospam
			return idx, apperr.SetNewNospam
		}
		return idx, apperr.AlreadySent
	}

	idx := r.allocate()
	now := r.tp.Now()
	r.friends[idx] = &Friend{
		Status:          Added,
		Devices:         []Device{{PublicKey: address.PublicKey, Status: NoDev}},
		RequestPayload:  append([]byte(nil), payload...),
		RequestNospam:   address.Nospam,
		RequestTimeout:  r.requestTimeout,
		RequestLastSent: now,
		LastSeen:        now,
	}
	r.byPublicKey[address.PublicKey] = idx

	logrus.WithFields(logrus.Fields{
		"function":   "Roster.AddFriend",
		"public_key": publicKeyLogField(address.PublicKey),
		"index":      idx,
	}).Info("friend added")

	return idx, nil
}

// AddFriendNoRequest creates a Confirmed friend directly, used on save
// restore and when accepting an inbound request (spec §4.1).
func (r *Roster) AddFriendNoRequest(publicKey [32]byte) (int, error) {
	if publicKey == r.selfPublicKey {
		return -1, apperr.OwnKey
	}
	if idx, exists := r.byPublicKey[publicKey]; exists {
		return idx, apperr.AlreadySent
	}

	idx := r.allocate()
	now := r.tp.Now()
	r.friends[idx] = &Friend{
		Status:   Confirmed,
		Devices:  []Device{{PublicKey: publicKey, Status: NoDev}},
		LastSeen: now,
	}
	r.byPublicKey[publicKey] = idx

	logrus.WithFields(logrus.Fields{
		"function":   "Roster.AddFriendNoRequest",
		"public_key": publicKeyLogField(publicKey),
		"index":      idx,
	}).Info("friend added without request")

	return idx, nil
}

// AddDevice attaches an additional device to an existing friend,
// completing the multi-device facility described in §9.
func (r *Roster) AddDevice(n int, publicKey [32]byte, status DeviceStatus) error {
	f, ok := r.Get(n)
	if !ok {
		return apperr.InvalidFriend
	}
	for _, d := range f.Devices {
		if d.PublicKey == publicKey {
			return nil
		}
	}
	f.Devices = append(f.Devices, Device{PublicKey: publicKey, Status: status})
	f.recomputeStatus()
	return nil
}

// DeleteFriend releases a friend's transport handles, discards its
// receipts and file slots, and frees the index for reuse (spec §4.1).
// Sending the best-effort Offline notification is the caller's
// responsibility (the messenger package does it before calling this,
// since only it knows the dispatcher's wire encoding for Offline).
func (r *Roster) DeleteFriend(n int) error {
	f, ok := r.Get(n)
	if !ok {
		return apperr.InvalidFriend
	}

	for _, d := range f.Devices {
		if d.Conn != nil {
			_ = d.Conn.Close()
		}
	}

	delete(r.byPublicKey, f.PublicKey())
	r.friends[n] = &Friend{Status: NoFriend}

	logrus.WithFields(logrus.Fields{
		"function": "Roster.DeleteFriend",
		"index":    n,
	}).Info("friend deleted")

	return nil
}

// GetFriendConnectionStatus reports the coalesced, debounced connection
// kind for a friend (spec §4.1, §4.5).
func (r *Roster) GetFriendConnectionStatus(n int) (ConnKind, error) {
	f, ok := r.Get(n)
	if !ok {
		return ConnNone, apperr.InvalidFriend
	}
	if !f.IsOnline() {
		return ConnNone, nil
	}

	kind := ConnNone
	for _, d := range f.Devices {
		if d.Status != DeviceOnline || d.Conn == nil {
			continue
		}
		_, tk := d.Conn.Status()
		switch tk {
		case transport.KindUDP:
			kind = ConnUDP
		case transport.KindTCP:
			if kind != ConnUDP {
				kind = ConnTCP
			}
		default:
			if kind == ConnNone {
				kind = ConnUnknown
			}
		}
	}

	if kind == ConnUnknown && f.LastConnKind != ConnNone && f.LastConnKind != ConnUnknown {
		return f.LastConnKind, nil
	}

	f.LastConnKind = kind
	return kind, nil
}

func publicKeyLogField(pk [32]byte) string {
	return fmt.Sprintf("%x", pk[:8])
}
