// Package file implements the per-friend, per-direction file-transfer
// slot state machine (spec §4.3): request/accept/pause/seek/kill control,
// chunk-request budgeting on the sending side, and chunked write-through
// on the receiving side.
package file

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/limits"
	"github.com/sirupsen/logrus"
)

// Status is a file-transfer slot's position in its state machine.
type Status uint8

const (
	// None means the slot is free.
	None Status = iota
	// NotAccepted means a request has been made but not yet accepted.
	NotAccepted
	// Transferring means bytes are actively flowing.
	Transferring
	// Finished means all bytes were sent; awaiting the final ACK.
	Finished
)

// Pause bit flags, independently settable by either side of a transfer.
const (
	PauseUS    uint8 = 1 << 0
	PauseOther uint8 = 1 << 1
)

// Unknown is the sentinel size for a streaming transfer of unknown length.
const Unknown uint64 = ^uint64(0)

// CryptoMinQueueLength mirrors the reference implementation's reserved
// transport queue headroom; MinSlotsFree is a quarter of it, held back
// from file traffic so control and message packets are never starved.
const (
	CryptoMinQueueLength = 32
	MinSlotsFree         = CryptoMinQueueLength / 4
)

// Slot is one entry in a friend's fixed-size array of concurrent
// outgoing or incoming file transfers.
type Slot struct {
	Status           Status
	Size             uint64
	Transferred      uint64
	Requested        uint64
	PauseMask        uint8
	SlotsAllocated   int
	ID               [32]byte
	LastPacketNumber uint32
	FileType         uint32
	Name             string
}

// NewFileID generates a random 32-byte file identifier. It mixes a v4
// UUID into the first 16 bytes and fills the remainder with additional
// random bytes, so the id is unique without hand-rolled randomness
// bookkeeping beyond what uuid.NewRandom already does.
func NewFileID() ([32]byte, error) {
	var id [32]byte
	u, err := uuid.NewRandom()
	if err != nil {
		return id, err
	}
	copy(id[:16], u[:])
	if _, err := rand.Read(id[16:]); err != nil {
		return id, err
	}
	return id, nil
}

// BeginSend moves a free outgoing slot to NotAccepted, mirroring
// new_filesender. size may be Unknown for a streaming transfer.
func (s *Slot) BeginSend(fileType uint32, size uint64, id [32]byte) error {
	if s.Status != None {
		return apperr.NoSlots
	}
	s.Status = NotAccepted
	s.FileType = fileType
	s.Size = size
	s.ID = id
	s.Transferred = 0
	s.Requested = 0
	s.PauseMask = 0
	s.SlotsAllocated = 0
	s.LastPacketNumber = 0
	return nil
}

// BeginReceive moves a free incoming slot to NotAccepted on a
// FileSendRequest from the peer.
func (s *Slot) BeginReceive(fileType uint32, size uint64, id [32]byte, name string) error {
	if s.Status != None {
		return apperr.NoSlots
	}
	if len(name) > limits.MaxFileNameLength {
		return apperr.TooLong
	}
	s.Status = NotAccepted
	s.FileType = fileType
	s.Size = size
	s.ID = id
	s.Name = name
	s.Transferred = 0
	s.Requested = 0
	s.PauseMask = 0
	return nil
}

// Accept implements the Accept control op. On a NotAccepted slot it is
// the receiver's initial acceptance of the offer, moving to Transferring.
// On an already-Transferring slot it resumes a transfer this side
// previously paused; it is an error to resume a slot only the other side
// has paused.
func (s *Slot) Accept() error {
	switch s.Status {
	case NotAccepted:
		s.Status = Transferring
		return nil
	case Transferring:
		if s.PauseMask&PauseUS == 0 {
			if s.PauseMask&PauseOther != 0 {
				return apperr.PausedByOther
			}
			return apperr.NotPaused
		}
		s.PauseMask &^= PauseUS
		return nil
	default:
		return apperr.BadControl
	}
}

// Pause sets the PAUSE_US (sending side) or PAUSE_OTHER (receiving side
// observing the remote's pause) bit.
func (s *Slot) Pause(us bool) error {
	if s.Status != Transferring {
		return apperr.NotTransferring
	}
	bit := PauseOther
	if us {
		bit = PauseUS
	}
	if s.PauseMask&bit != 0 {
		return apperr.AlreadyPaused
	}
	s.PauseMask |= bit
	return nil
}

// Kill unconditionally frees the slot.
func (s *Slot) Kill() {
	*s = Slot{}
}

// Seek repositions a not-yet-accepted incoming transfer, per §4.3's
// receiver-only seek rule.
func (s *Slot) Seek(position uint64) error {
	if s.Status != NotAccepted {
		return apperr.BadState
	}
	if s.Size != Unknown && position >= s.Size {
		return apperr.BadPosition
	}
	s.Transferred = position
	s.Requested = position
	return nil
}

// ValidateOutgoingChunk checks the preconditions file_data(slot, position,
// bytes) must satisfy before the core will emit a FileData packet.
func (s *Slot) ValidateOutgoingChunk(position uint64, length int) error {
	if s.Status != Transferring {
		return apperr.NotTransferring
	}
	if length > limits.MaxFileChunkLength {
		return apperr.TooLong
	}
	if s.Size != Unknown && uint64(length) > s.Size-s.Transferred {
		return apperr.TooLong
	}
	if position != s.Transferred {
		return apperr.BadPosition
	}
	if s.Size != Unknown && s.Transferred+uint64(length) < s.Size && length == 0 {
		return apperr.BadControl
	}
	return nil
}

// CommitOutgoingChunk advances sender-side bookkeeping after a FileData
// packet for this slot has actually been sent, returning true once the
// slot has reached Finished.
func (s *Slot) CommitOutgoingChunk(length int, packetNumber uint32) bool {
	s.Transferred += uint64(length)
	if s.SlotsAllocated > 0 {
		s.SlotsAllocated--
	}
	finished := (s.Size == Unknown && length == 0) || (s.Size != Unknown && s.Transferred >= s.Size)
	if finished {
		s.Status = Finished
		s.LastPacketNumber = packetNumber
	}
	return finished
}

// FinalizeIfAcked frees a Finished slot once its last packet number has
// been acknowledged by the transport.
func (s *Slot) FinalizeIfAcked(isAcked func(uint32) bool) bool {
	if s.Status != Finished {
		return false
	}
	if !isAcked(s.LastPacketNumber) {
		return false
	}
	s.Kill()
	return true
}

// WriteChunk applies an inbound FileData chunk to a receiving slot,
// returning whether this was the terminal (length == 0, or final-byte)
// chunk. Chunks that don't extend the stream in order are dropped
// silently per the dispatcher's malformed-packet rule.
func (s *Slot) WriteChunk(position uint64, data []byte) (accepted bool, terminal bool) {
	if s.Status != Transferring {
		return false, false
	}
	if position != s.Transferred {
		logrus.WithFields(logrus.Fields{
			"function": "Slot.WriteChunk",
			"expected": s.Transferred,
			"got":      position,
		}).Debug("dropping out-of-order file chunk")
		return false, false
	}

	length := len(data)
	if s.Size != Unknown {
		remaining := s.Size - s.Transferred
		if uint64(length) > remaining {
			length = int(remaining)
		}
	}

	s.Transferred += uint64(length)

	if length == 0 || (s.Size != Unknown && s.Transferred >= s.Size) {
		s.Kill()
		return true, true
	}
	return true, false
}
