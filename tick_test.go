package messenger

import (
	"testing"
	"time"

	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an injectable TimeProvider letting tests advance time in
// exact, deterministic steps instead of sleeping.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTickRetriesFriendRequestOnTimeout(t *testing.T) {
	clock := newFakeClock()
	m, _ := newTestMessenger(t, func(o *Options) {
		o.TimeProvider = clock
		o.FriendRequestTimeout = 5 * time.Second
	})

	var sent int
	m.SetCallbacks(Callbacks{
		OutgoingFriendRequest: func(publicKey [32]byte, packet []byte) { sent++ },
	})

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.NewAddress(peer.Public, [4]byte{1, 2, 3, 4})
	idx, err := m.AddFriend(addr, []byte("hello"))
	require.NoError(t, err)

	m.Tick()
	assert.Equal(t, 1, sent)
	status, err := m.FriendStatus(idx)
	require.NoError(t, err)
	assert.Equal(t, Requested, status)

	// Before the timeout elapses, Tick must not revert/resend.
	clock.Advance(2 * time.Second)
	m.Tick()
	assert.Equal(t, 1, sent)

	// After the timeout elapses, the friend reverts to Added with a
	// doubled timeout, and the next Tick resends.
	clock.Advance(4 * time.Second)
	m.Tick()
	status, err = m.FriendStatus(idx)
	require.NoError(t, err)
	assert.Equal(t, Added, status)
	assert.Equal(t, 1, sent)

	m.Tick()
	status, err = m.FriendStatus(idx)
	require.NoError(t, err)
	assert.Equal(t, Requested, status)
	assert.Equal(t, 2, sent)

	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, f.RequestTimeout)
}

func TestTickResendsPresenceOnceOnline(t *testing.T) {
	clock := newFakeClock()
	m, tr := newTestMessenger(t, func(o *Options) { o.TimeProvider = clock })

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	idx, err := m.AddFriendNoRequest(peer.Public)
	require.NoError(t, err)
	bringOnline(m, tr, idx, peer.Public)

	conn := tr.connOf(peer.Public)
	require.NotNil(t, conn)

	m.Tick()

	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	assert.True(t, f.Sent.Name)
	assert.True(t, f.Sent.StatusMessage)
	assert.True(t, f.Sent.UserStatus)
	assert.True(t, f.Sent.Typing)

	sentBefore := len(conn.lossless)
	m.Tick()
	assert.Equal(t, sentBefore, len(conn.lossless), "already-sent presence fields must not be resent")
}

func TestTickDrainsAcknowledgedReceipts(t *testing.T) {
	clock := newFakeClock()
	m, tr := newTestMessenger(t, func(o *Options) { o.TimeProvider = clock })

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	idx, err := m.AddFriendNoRequest(peer.Public)
	require.NoError(t, err)
	bringOnline(m, tr, idx, peer.Public)

	var delivered []uint32
	m.SetCallbacks(Callbacks{
		ReadReceipt: func(friendIndex int, messageID uint32) { delivered = append(delivered, messageID) },
	})

	id1, err := m.SendMessage(idx, "first", false)
	require.NoError(t, err)
	id2, err := m.SendMessage(idx, "second", false)
	require.NoError(t, err)

	conn := tr.connOf(peer.Public)
	require.NotNil(t, conn)

	// Nothing acked yet: draining must not fire any callback.
	m.Tick()
	assert.Empty(t, delivered)

	// Ack only the first packet; the FIFO head drains, the second (still
	// outstanding) blocks further draining even though it comes right
	// after in the queue.
	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	require.Len(t, f.Receipts, 2)
	conn.ack(f.Receipts[0].PacketNumber)

	m.Tick()
	assert.Equal(t, []uint32{id1}, delivered)

	conn.ack(f.Receipts[len(f.Receipts)-1].PacketNumber) // whatever remains
	m.Tick()
	assert.Equal(t, []uint32{id1, id2}, delivered)
	assert.Empty(t, f.Receipts)
}

func TestTickRequestsOutgoingFileChunks(t *testing.T) {
	clock := newFakeClock()
	m, tr := newTestMessenger(t, func(o *Options) { o.TimeProvider = clock })

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	idx, err := m.AddFriendNoRequest(peer.Public)
	require.NoError(t, err)
	bringOnline(m, tr, idx, peer.Public)

	fileNumber, err := m.FileSend(idx, 0, 4096, "photo.png")
	require.NoError(t, err)

	// The peer "accepts": simulate the inbound FileControl(Accept) packet
	// addressed to our outgoing array (Direction = DirOutgoing, since the
	// direction field names the recipient's, i.e. our, local array).
	slotIndex, _ := dispatch.DecodeFileNumber(uint32(fileNumber))
	wire := dispatch.EncodeFileControl(dispatch.FileControlPacket{
		Direction: dispatch.DirOutgoing,
		Slot:      uint8(slotIndex),
		Op:        dispatch.OpAccept,
	})
	tr.deliverLossless(idx, 0, append([]byte{byte(dispatch.FileControl)}, wire...))

	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	require.Equal(t, file.Transferring, f.FilesOutgoing[slotIndex].Status)

	var requested []int
	m.SetCallbacks(Callbacks{
		FileReqChunk: func(friendIndex, fn int, position uint64, length int) {
			requested = append(requested, length)
		},
	})

	m.Tick()
	assert.NotEmpty(t, requested, "tick should request at least one chunk for a Transferring outgoing slot")
}

func TestTickKillsStalledTransfer(t *testing.T) {
	clock := newFakeClock()
	m, tr := newTestMessenger(t, func(o *Options) {
		o.TimeProvider = clock
		o.FileStallTimeout = 10 * time.Second
	})

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	idx, err := m.AddFriendNoRequest(peer.Public)
	require.NoError(t, err)
	bringOnline(m, tr, idx, peer.Public)

	fileNumber, err := m.FileSend(idx, 0, 4096, "stall.bin")
	require.NoError(t, err)
	slotIndex, _ := dispatch.DecodeFileNumber(uint32(fileNumber))
	wire := dispatch.EncodeFileControl(dispatch.FileControlPacket{
		Direction: dispatch.DirOutgoing,
		Slot:      uint8(slotIndex),
		Op:        dispatch.OpAccept,
	})
	tr.deliverLossless(idx, 0, append([]byte{byte(dispatch.FileControl)}, wire...))

	var killedFileNumber = -1
	m.SetCallbacks(Callbacks{
		FileControl: func(friendIndex, fn int, op FileControlOp) {
			if op == FileControlKill {
				killedFileNumber = fn
			}
		},
	})

	m.Tick() // establishes initial progress baseline, no time has passed
	clock.Advance(15 * time.Second)
	m.Tick()

	assert.Equal(t, fileNumber, killedFileNumber)

	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	assert.Equal(t, file.None, f.FilesOutgoing[slotIndex].Status)
}

func TestTickDebouncesCoreConnectionChange(t *testing.T) {
	clock := newFakeClock()
	m, tr := newTestMessenger(t, func(o *Options) { o.TimeProvider = clock })

	var changes []ConnKind
	m.SetCallbacks(Callbacks{
		CoreConnectionChange: func(kind ConnKind) { changes = append(changes, kind) },
	})

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	idx, err := m.AddFriendNoRequest(peer.Public)
	require.NoError(t, err)

	m.Tick()
	assert.Empty(t, changes, "no online friends yet: no connection-change event")

	bringOnline(m, tr, idx, peer.Public)
	f, ok := m.roster.Get(idx)
	require.True(t, ok)
	f.LastConnKind = ConnUDP

	m.Tick()
	require.Len(t, changes, 1)
	assert.Equal(t, ConnUDP, changes[0])

	// No further change once stable.
	m.Tick()
	assert.Len(t, changes, 1)
}
