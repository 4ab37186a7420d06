package file

import (
	"testing"
	"time"

	"github.com/nocturne-im/messenger/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginSendRejectsNonNoneSlot(t *testing.T) {
	s := &Slot{Status: Transferring}
	err := s.BeginSend(0, 100, [32]byte{})
	assert.ErrorIs(t, err, apperr.NoSlots)
}

func TestBeginReceiveRejectsLongName(t *testing.T) {
	s := &Slot{}
	longName := make([]byte, 256)
	err := s.BeginReceive(0, 100, [32]byte{}, string(longName))
	assert.ErrorIs(t, err, apperr.TooLong)
}

func TestAcceptReceiverTransition(t *testing.T) {
	s := &Slot{Status: NotAccepted}
	require.NoError(t, s.Accept())
	assert.Equal(t, Transferring, s.Status)
}

func TestAcceptReceiverWrongState(t *testing.T) {
	s := &Slot{Status: None}
	assert.ErrorIs(t, s.Accept(), apperr.BadControl)
}

func TestPauseContention(t *testing.T) {
	// A pauses locally; its own Accept resumes it.
	a := &Slot{Status: Transferring}
	require.NoError(t, a.Pause(true))
	assert.NoError(t, a.Accept())

	// B observes the remote pause (PauseOther) and cannot resume it locally.
	b := &Slot{Status: Transferring, PauseMask: PauseOther}
	assert.ErrorIs(t, b.Accept(), apperr.PausedByOther)
}

func TestPauseAlreadyPaused(t *testing.T) {
	s := &Slot{Status: Transferring}
	require.NoError(t, s.Pause(true))
	assert.ErrorIs(t, s.Pause(true), apperr.AlreadyPaused)
}

func TestKillFreesSlot(t *testing.T) {
	s := &Slot{Status: Transferring, Transferred: 10}
	s.Kill()
	assert.Equal(t, None, s.Status)
	assert.Equal(t, uint64(0), s.Transferred)
}

func TestSeekOnlyWhileNotAccepted(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 1000}
	assert.ErrorIs(t, s.Seek(10), apperr.BadState)

	s.Status = NotAccepted
	require.NoError(t, s.Seek(1048576))
	assert.Equal(t, uint64(1048576), s.Transferred)
	assert.Equal(t, uint64(1048576), s.Requested)
}

func TestValidateOutgoingChunkPositionMismatch(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 100, Transferred: 10}
	err := s.ValidateOutgoingChunk(5, 10)
	assert.ErrorIs(t, err, apperr.BadPosition)
}

func TestValidateOutgoingChunkTooLarge(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 100, Transferred: 0}
	err := s.ValidateOutgoingChunk(0, 2000)
	assert.ErrorIs(t, err, apperr.TooLong)
}

func TestCommitOutgoingChunkReachesFinished(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 10, Transferred: 5}
	finished := s.CommitOutgoingChunk(5, 42)
	assert.True(t, finished)
	assert.Equal(t, Finished, s.Status)
	assert.Equal(t, uint32(42), s.LastPacketNumber)
}

func TestFinalizeIfAckedWaitsForAck(t *testing.T) {
	s := &Slot{Status: Finished, LastPacketNumber: 7}
	assert.False(t, s.FinalizeIfAcked(func(uint32) bool { return false }))
	assert.Equal(t, Finished, s.Status)

	assert.True(t, s.FinalizeIfAcked(func(uint32) bool { return true }))
	assert.Equal(t, None, s.Status)
}

func TestWriteChunkZeroLengthTerminal(t *testing.T) {
	s := &Slot{Status: Transferring, Size: Unknown, Transferred: 50}
	accepted, terminal := s.WriteChunk(50, nil)
	assert.True(t, accepted)
	assert.True(t, terminal)
	assert.Equal(t, None, s.Status)
}

func TestWriteChunkOutOfOrderDropped(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 100, Transferred: 10}
	accepted, terminal := s.WriteChunk(20, []byte("data"))
	assert.False(t, accepted)
	assert.False(t, terminal)
	assert.Equal(t, uint64(10), s.Transferred)
}

func TestWriteChunkClampsToSize(t *testing.T) {
	s := &Slot{Status: Transferring, Size: 12, Transferred: 10}
	accepted, terminal := s.WriteChunk(10, []byte("abcdefgh"))
	assert.True(t, accepted)
	assert.True(t, terminal)
	assert.Equal(t, None, s.Status)
}

func TestNewFileIDUnique(t *testing.T) {
	a, err := NewFileID()
	require.NoError(t, err)
	b, err := NewFileID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckStallDetectsNoProgress(t *testing.T) {
	slot := &Slot{Status: Transferring, Transferred: 100}
	p := &Progress{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, CheckStall(slot, p, base, DefaultStallTimeout))
	assert.False(t, CheckStall(slot, p, base.Add(10*time.Second), DefaultStallTimeout))
	assert.True(t, CheckStall(slot, p, base.Add(31*time.Second), DefaultStallTimeout))
}

func TestCheckStallResetsOnProgress(t *testing.T) {
	slot := &Slot{Status: Transferring, Transferred: 100}
	p := &Progress{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	CheckStall(slot, p, base, DefaultStallTimeout)
	slot.Transferred = 200
	assert.False(t, CheckStall(slot, p, base.Add(40*time.Second), DefaultStallTimeout))
}
