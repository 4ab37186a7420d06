package messenger

import (
	"time"

	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/file"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/friendreq"
	"github.com/nocturne-im/messenger/messaging"
	"github.com/sirupsen/logrus"
)

// Tick drives the friend-request retry loop, presence republishing,
// connection-kind debouncing, receipt draining, and file-chunk-request
// engine for every friend, once per call (spec §4.6). The application is
// expected to call it at least every min(50ms, transport-requested
// interval); Tick itself is non-blocking and never suspends.
func (m *Messenger) Tick() {
	now := m.tp.Now()
	for i := 0; i < m.roster.NumFriends(); i++ {
		f, ok := m.roster.Get(i)
		if !ok {
			continue
		}
		m.tickRequestState(i, f, now)
		if f.IsOnline() {
			m.tickOnlineFriend(i, f, now)
		}
	}
	m.tickCoreConnection()
}

// tickRequestState implements §4.6 steps 1-2: Added friends attempt a
// send and advance to Requested; Requested friends whose retry timeout
// has elapsed revert to Added with a doubled timeout so the next Tick
// call re-attempts.
func (m *Messenger) tickRequestState(friendIndex int, f *friend.Friend, now time.Time) {
	switch f.Status {
	case friend.Added:
		m.sendFriendRequest(friendIndex, f, now)
	case friend.Requested:
		if now.Sub(f.RequestLastSent) > f.RequestTimeout {
			f.Status = friend.Added
			f.RequestTimeout *= 2
			logrus.WithFields(logrus.Fields{
				"function":     "Messenger.tickRequestState",
				"friend_index": friendIndex,
				"new_timeout":  f.RequestTimeout,
			}).Debug("friend request timed out, reverting to Added")
		}
	}
}

// sendFriendRequest builds a fresh encrypted request (a new nonce each
// attempt — reusing one across retries would let a single intercepted
// packet replay) and hands it to the application for out-of-band
// delivery, since the recipient has no roster entry yet and therefore no
// transport connection keyed by friend/device index to receive it on.
func (m *Messenger) sendFriendRequest(friendIndex int, f *friend.Friend, now time.Time) {
	if m.cb.OutgoingFriendRequest == nil {
		return
	}
	req, err := friendreq.New(string(f.RequestPayload), m.tp)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Messenger.sendFriendRequest",
			"friend_index": friendIndex,
			"error":        err.Error(),
		}).Warn("failed to build friend request")
		return
	}
	packet, err := req.Encrypt(m.keyPair, f.PublicKey())
	if err != nil {
		return
	}

	m.cb.OutgoingFriendRequest(f.PublicKey(), packet)
	f.Status = friend.Requested
	f.RequestLastSent = now

	logrus.WithFields(logrus.Fields{
		"function":     "Messenger.sendFriendRequest",
		"friend_index": friendIndex,
		"public_key":   logPublicKey(f.PublicKey()),
	}).Info("friend request sent")
}

// tickOnlineFriend implements §4.6 step 3 for a single Online friend:
// republish any stale presence field, debounce the externally visible
// connection kind, drain acknowledged receipts, and drive the file
// engine on both directions.
func (m *Messenger) tickOnlineFriend(friendIndex int, f *friend.Friend, now time.Time) {
	m.resendPresence(friendIndex, f)
	_, _ = m.roster.GetFriendConnectionStatus(friendIndex)
	m.drainReceipts(friendIndex, f)
	m.tickFiles(friendIndex, f, now)
	f.LastSeen = now
}

func (m *Messenger) resendPresence(friendIndex int, f *friend.Friend) {
	if !f.Sent.Name {
		if payload, err := dispatch.EncodeNickname(m.selfName); err == nil {
			packet := append([]byte{byte(dispatch.Nickname)}, payload...)
			if _, _, ok := m.sendToOnlineDevices(f, packet); ok {
				f.Sent.Name = true
			}
		}
	}
	if !f.Sent.StatusMessage {
		if payload, err := dispatch.EncodeStatusMessage(m.selfStatusMessage); err == nil {
			packet := append([]byte{byte(dispatch.StatusMessage)}, payload...)
			if _, _, ok := m.sendToOnlineDevices(f, packet); ok {
				f.Sent.StatusMessage = true
			}
		}
	}
	if !f.Sent.UserStatus {
		packet := []byte{byte(dispatch.UserStatus), m.selfUserStatus}
		if _, _, ok := m.sendToOnlineDevices(f, packet); ok {
			f.Sent.UserStatus = true
		}
	}
	if !f.Sent.Typing {
		packet := append([]byte{byte(dispatch.Typing)}, dispatch.EncodeTyping(m.selfTyping[friendIndex])...)
		if _, _, ok := m.sendToOnlineDevices(f, packet); ok {
			f.Sent.Typing = true
		}
	}
}

// drainReceipts pops every acknowledged FIFO head entry and invokes the
// ReadReceipt upcall, stopping at the first still-outstanding one (§4.4).
// A receipt is asked of the specific device its packet number was
// assigned by; a device that has since gone offline reports every
// packet number as unacknowledged, so its receipts simply never drain
// (discarded instead on the friend's next Online->!Online transition,
// per §4.3 "Liveness").
func (m *Messenger) drainReceipts(friendIndex int, f *friend.Friend) {
	if len(f.Receipts) == 0 {
		return
	}
	converted := make([]messaging.Receipt, len(f.Receipts))
	devices := make([]int, len(f.Receipts))
	for i, r := range f.Receipts {
		converted[i] = messaging.Receipt{PacketNumber: r.PacketNumber, MessageID: r.MessageID}
		devices[i] = r.DeviceIndex
	}

	idx := 0
	isAcked := func(packetNumber uint32) bool {
		deviceIndex := devices[idx]
		if deviceIndex < 0 || deviceIndex >= len(f.Devices) {
			return false
		}
		conn := f.Devices[deviceIndex].Conn
		if conn == nil {
			return false
		}
		acked := conn.IsAcked(packetNumber)
		idx++
		return acked
	}

	remaining := messaging.Drain(converted, isAcked, func(messageID uint32) {
		if m.cb.ReadReceipt != nil {
			m.cb.ReadReceipt(friendIndex, messageID)
		}
	})
	f.Receipts = f.Receipts[len(f.Receipts)-len(remaining):]
}

func (m *Messenger) tickFiles(friendIndex int, f *friend.Friend, now time.Time) {
	progress := m.fileProgress[friendIndex]
	if progress == nil {
		progress = &friendFileProgress{}
		m.fileProgress[friendIndex] = progress
	}

	conn := m.primaryOnlineDevice(f)
	var free int
	var congested bool
	var isAcked func(uint32) bool
	if conn != nil {
		free = conn.FreeSendQueueSlots() - file.MinSlotsFree
		congested = conn.Congested()
		isAcked = conn.IsAcked
	} else {
		isAcked = func(uint32) bool { return false }
	}
	if free < 0 {
		free = 0
	}

	_, freed := file.RequestChunks(f.FilesOutgoing[:], free, congested, isAcked, func(slotIndex int, position uint64, length int) {
		if m.cb.FileReqChunk != nil {
			fileNumber := int(dispatch.EncodeFileNumber(slotIndex, false))
			m.cb.FileReqChunk(friendIndex, fileNumber, position, length)
		}
	})
	if freed > 0 {
		f.NumSendingFiles -= freed
		if f.NumSendingFiles < 0 {
			f.NumSendingFiles = 0
		}
	}

	m.checkStalls(friendIndex, f, f.FilesOutgoing[:], progress.Outgoing[:], now, false)
	m.checkStalls(friendIndex, f, f.FilesIncoming[:], progress.Incoming[:], now, true)
}

// checkStalls force-kills any Transferring slot that has made no
// progress for longer than the configured stall timeout, notifying the
// application via the same FileControl(Kill) upcall a peer-initiated
// kill would produce so callers don't need a separate code path.
func (m *Messenger) checkStalls(friendIndex int, f *friend.Friend, slots []file.Slot, progress []file.Progress, now time.Time, incoming bool) {
	timeout := m.options.FileStallTimeout
	for i := range slots {
		slot := &slots[i]
		if !file.CheckStall(slot, &progress[i], now, timeout) {
			continue
		}
		wasOutgoing := !incoming
		slot.Kill()
		progress[i] = file.Progress{}
		if wasOutgoing && f.NumSendingFiles > 0 {
			f.NumSendingFiles--
		}
		if m.cb.FileControl != nil {
			fileNumber := int(dispatch.EncodeFileNumber(i, incoming))
			m.cb.FileControl(friendIndex, fileNumber, FileControlKill)
		}
		logrus.WithFields(logrus.Fields{
			"function":     "Messenger.checkStalls",
			"friend_index": friendIndex,
			"slot":         i,
			"incoming":     incoming,
		}).Warn("file transfer stalled, killed")
	}
}

// tickCoreConnection reports a coarse, debounced "are we reachable at
// all" signal derived from the best connection kind among every friend,
// standing in for the DHT/onion-layer connection state a full stack
// would report directly (out of scope per the root package doc comment).
func (m *Messenger) tickCoreConnection() {
	best := ConnNone
	for i := 0; i < m.roster.NumFriends(); i++ {
		f, ok := m.roster.Get(i)
		if !ok || !f.IsOnline() {
			continue
		}
		switch f.LastConnKind {
		case friend.ConnUDP:
			best = ConnUDP
		case friend.ConnTCP:
			if best != ConnUDP {
				best = ConnTCP
			}
		case friend.ConnUnknown:
			if best == ConnNone {
				best = ConnUnknown
			}
		}
	}
	if best != m.coreConnKind {
		m.coreConnKind = best
		if m.cb.CoreConnectionChange != nil {
			m.cb.CoreConnectionChange(best)
		}
	}
}
