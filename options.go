package messenger

import (
	"time"

	"github.com/nocturne-im/messenger/transport"
)

// Options configures a new [Messenger], mirroring the teacher stack's
// Options/NewOptions constructor pattern: the tunables (friend-request
// retry timing, file stall timeout) are overridable fields with
// defaults filled in by [NewOptions].
type Options struct {
	// Transport is the collaborator used to open per-device connections
	// and move packets. Required.
	Transport transport.Transport

	// SecretKey seeds the self identity's key pair. If zero, a fresh
	// key pair is generated.
	SecretKey [32]byte

	// Nospam is the self identity's initial anti-spam cookie. If zero,
	// a random value is generated.
	Nospam [4]byte

	// Name and StatusMessage seed the self identity's published fields.
	Name          string
	StatusMessage string

	// FriendRequestTimeout is the initial retry interval for an
	// unacknowledged friend request (§4.6); it doubles on each failed
	// attempt.
	FriendRequestTimeout time.Duration

	// FileStallTimeout bounds how long a Transferring file slot may go
	// without forward progress before the tick driver force-kills it. A
	// zero value disables stall detection.
	FileStallTimeout time.Duration

	// TimeProvider allows deterministic testing of retry/timeout logic.
	// If nil, the system clock is used.
	TimeProvider TimeProvider
}

// TimeProvider is the dependency-injectable clock used throughout the
// core (roster retry timers, file stall detection) so tests never need
// time.Sleep.
type TimeProvider interface {
	Now() time.Time
}

type systemTimeProvider struct{}

func (systemTimeProvider) Now() time.Time { return time.Now() }

// NewOptions returns an Options populated with the messenger core's
// default tunables. Callers still must set Transport before calling New.
func NewOptions() *Options {
	return &Options{
		FriendRequestTimeout: 8 * time.Second,
		FileStallTimeout:     30 * time.Second,
		TimeProvider:         systemTimeProvider{},
	}
}
