// Package apperr defines the discriminated result codes the messenger
// core's public operations return (spec §7). Every public API call maps
// to exactly one outcome — these values are never wrapped as causes of
// other errors; they are returned directly so callers can switch on them
// with ==.
package apperr

// Error is a small typed sentinel, following the same idiom as the
// teacher's ErrDirectoryTraversal-style package errors but collected into
// one discriminated enum since the spec calls for a single result type
// per operation rather than one var per package.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

// Input-validation errors.
const (
	TooLong           Error = "value exceeds maximum length"
	NoMessage         Error = "message is required"
	BadChecksum       Error = "address checksum mismatch"
	OwnKey            Error = "cannot add own public key as friend"
	InvalidFriend     Error = "friend number does not exist"
	InvalidFileNumber Error = "file number does not exist"
	BadPosition       Error = "chunk position does not match transferred bytes"
	BadControl        Error = "file control operation not valid for slot state"
	InvalidPacketID   Error = "custom packet id outside the registered passthrough range"
)

// State-violation errors.
const (
	NotOnline       Error = "friend is not online"
	NotTransferring Error = "file slot is not transferring"
	NotPaused       Error = "file slot is not paused"
	AlreadyPaused   Error = "file slot already paused by this side"
	PausedByOther   Error = "file slot paused by the remote peer"
	BadState        Error = "operation not valid in current slot state"
)

// Resource errors.
const (
	NoMem         Error = "allocation failed"
	NoSlots       Error = "no free file-transfer slots"
	SendQueueFull Error = "transport send queue full"
	SendFailed    Error = "transport send failed"
)

// Already-known / semi-success errors.
const (
	AlreadySent  Error = "friend request already sent"
	SetNewNospam Error = "existing friend's nospam updated"
)
