package dispatch

import (
	"github.com/nocturne-im/messenger/file"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/messaging"
	"github.com/sirupsen/logrus"
)

// Callbacks are the application upcalls a Dispatcher invokes while
// handling inbound packets. Every field is optional; a nil callback is
// simply skipped.
type Callbacks struct {
	NameChange          func(friendIndex int, name string)
	StatusMessageChange func(friendIndex int, message string)
	UserStatusChange    func(friendIndex int, status uint8)
	TypingChange        func(friendIndex int, typing bool)
	FriendMessage       func(friendIndex int, message string, isAction bool)
	InviteGroupchat     func(friendIndex int, data []byte)
	FileSendRequest     func(friendIndex int, fileNumber int, fileType uint32, size uint64, fileID [32]byte, name string)
	FileControl         func(friendIndex int, fileNumber int, op FileControlOp)
	FileData            func(friendIndex int, fileNumber int, position uint64, data []byte)
	Msi                 func(friendIndex int, data []byte)
	LosslessPacket      func(friendIndex int, data []byte)
}

// Dispatcher routes decrypted, already-authenticated per-friend payloads
// to roster/file-transfer mutations and application upcalls (§4.2).
type Dispatcher struct {
	roster        *friend.Roster
	cb            Callbacks
	lossyHandlers map[int]func(data []byte)
}

// New creates a Dispatcher bound to a roster and a set of upcalls.
func New(roster *friend.Roster, cb Callbacks) *Dispatcher {
	return &Dispatcher{roster: roster, cb: cb, lossyHandlers: make(map[int]func(data []byte))}
}

// SetCallbacks replaces the dispatcher's upcall table without disturbing
// registered lossy-packet passthrough handlers.
func (d *Dispatcher) SetCallbacks(cb Callbacks) {
	d.cb = cb
}

// RegisterLossyHandler installs the custom-packet passthrough callback
// for one friend's unreliable channel (SUPPLEMENTED FEATURES "custom
// lossy and lossless packet handlers"). A nil handler removes it.
func (d *Dispatcher) RegisterLossyHandler(friendIndex int, h func(data []byte)) {
	if h == nil {
		delete(d.lossyHandlers, friendIndex)
		return
	}
	d.lossyHandlers[friendIndex] = h
}

// Handle processes one inbound payload ({packet_id, payload} per §4.2)
// from a given friend's device. reliable says which channel the packet
// arrived on; routing does not consult it, and the LossyRange/LosslessRange
// custom-packet bands are told apart by packet id alone.
func (d *Dispatcher) Handle(friendIndex, deviceIndex int, payload []byte, reliable bool) {
	logger := logrus.WithFields(logrus.Fields{
		"function":     "Dispatcher.Handle",
		"friend_index": friendIndex,
		"device_index": deviceIndex,
	})

	if len(payload) == 0 {
		logger.Debug("dropping zero-length packet")
		return
	}

	f, ok := d.roster.Get(friendIndex)
	if !ok {
		logger.Debug("dropping packet for unknown friend")
		return
	}

	id := ID(payload[0])
	body := payload[1:]

	if !f.IsOnline() && id != Online {
		logger.WithField("packet_id", id).Debug("dropping non-Online packet from offline friend")
		return
	}

	switch {
	case id == Online:
		f.SetDeviceStatus(deviceIndex, friend.DeviceOnline)
	case id == Offline:
		f.SetDeviceStatus(deviceIndex, friend.NoDev)
	case id == Nickname:
		d.handleNickname(f, friendIndex, body)
	case id == StatusMessage:
		d.handleStatusMessage(f, friendIndex, body)
	case id == UserStatus:
		d.handleUserStatus(f, friendIndex, body)
	case id == Typing:
		d.handleTyping(f, friendIndex, body)
	case id == Message || id == Action:
		d.handleMessage(friendIndex, body, id == Action)
	case id == InviteGroupchat:
		if len(body) == 0 {
			return
		}
		if d.cb.InviteGroupchat != nil {
			d.cb.InviteGroupchat(friendIndex, body)
		}
	case id == FileSendRequest:
		d.handleFileSendRequest(f, friendIndex, body)
	case id == FileControl:
		d.handleFileControl(f, friendIndex, body)
	case id == FileData:
		d.handleFileData(f, friendIndex, body)
	case id == Msi:
		if len(body) == 0 {
			return
		}
		if d.cb.Msi != nil {
			d.cb.Msi(friendIndex, body)
		}
	case id >= LosslessRangeStart && id <= LosslessRangeEnd:
		if d.cb.LosslessPacket != nil {
			d.cb.LosslessPacket(friendIndex, payload)
		}
	case id >= LossyRangeStart && id <= LossyRangeEnd:
		if h, ok := d.lossyHandlers[friendIndex]; ok {
			h(payload)
		}
	default:
		logger.WithField("packet_id", id).Debug("dropping unrecognized packet id")
	}
}

func (d *Dispatcher) handleNickname(f *friend.Friend, friendIndex int, body []byte) {
	name, err := DecodeNickname(body)
	if err != nil {
		return
	}
	f.Nickname = name
	if d.cb.NameChange != nil {
		d.cb.NameChange(friendIndex, name)
	}
}

func (d *Dispatcher) handleStatusMessage(f *friend.Friend, friendIndex int, body []byte) {
	msg, err := DecodeStatusMessage(body)
	if err != nil {
		return
	}
	f.StatusMessage = msg
	if d.cb.StatusMessageChange != nil {
		d.cb.StatusMessageChange(friendIndex, msg)
	}
}

func (d *Dispatcher) handleUserStatus(f *friend.Friend, friendIndex int, body []byte) {
	status, err := DecodeUserStatus(body)
	if err != nil {
		return
	}
	f.UserStatus = status
	if d.cb.UserStatusChange != nil {
		d.cb.UserStatusChange(friendIndex, status)
	}
}

func (d *Dispatcher) handleTyping(f *friend.Friend, friendIndex int, body []byte) {
	typing, err := DecodeTyping(body)
	if err != nil {
		return
	}
	f.Typing = typing
	if d.cb.TypingChange != nil {
		d.cb.TypingChange(friendIndex, typing)
	}
}

func (d *Dispatcher) handleMessage(friendIndex int, body []byte, isAction bool) {
	text, err := messaging.Decode(body)
	if err != nil {
		return
	}
	if d.cb.FriendMessage != nil {
		d.cb.FriendMessage(friendIndex, text, isAction)
	}
}

func (d *Dispatcher) handleFileSendRequest(f *friend.Friend, friendIndex int, body []byte) {
	p, err := DecodeFileSendRequest(body)
	if err != nil {
		return
	}
	if int(p.Slot) >= len(f.FilesIncoming) {
		return
	}
	slot := &f.FilesIncoming[p.Slot]
	if err := slot.BeginReceive(p.FileType, p.Size, p.FileID, p.Name); err != nil {
		return
	}
	if d.cb.FileSendRequest != nil {
		d.cb.FileSendRequest(friendIndex, EncodeFileNumber(int(p.Slot), true), p.FileType, p.Size, p.FileID, p.Name)
	}
}

func (d *Dispatcher) handleFileControl(f *friend.Friend, friendIndex int, body []byte) {
	p, err := DecodeFileControl(body)
	if err != nil {
		return
	}

	var slots []file.Slot
	if p.Direction == DirIncoming {
		slots = f.FilesIncoming[:]
	} else {
		slots = f.FilesOutgoing[:]
	}
	if int(p.Slot) >= len(slots) {
		return
	}
	slot := &slots[p.Slot]

	switch p.Op {
	case OpPause:
		_ = slot.Pause(false)
	case OpAccept:
		if err := slot.Accept(); err != nil {
			return
		}
	case OpKill:
		slot.Kill()
		if p.Direction == DirOutgoing && f.NumSendingFiles > 0 {
			f.NumSendingFiles--
		}
	case OpSeek:
		_ = slot.Seek(DecodeSeekPosition(p.Extra))
	default:
		return
	}

	if d.cb.FileControl != nil {
		d.cb.FileControl(friendIndex, EncodeFileNumber(int(p.Slot), p.Direction == DirIncoming), p.Op)
	}
}

func (d *Dispatcher) handleFileData(f *friend.Friend, friendIndex int, body []byte) {
	p, err := DecodeFileData(body)
	if err != nil {
		return
	}
	if int(p.Slot) >= len(f.FilesIncoming) {
		return
	}
	slot := &f.FilesIncoming[p.Slot]

	chunk := p.Chunk
	if slot.Size != file.Unknown {
		remaining := slot.Size - slot.Transferred
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
	}

	before := slot.Transferred
	accepted, terminal := slot.WriteChunk(before, chunk)
	if !accepted {
		return
	}

	fileNumber := EncodeFileNumber(int(p.Slot), true)
	if d.cb.FileData == nil {
		return
	}
	if len(chunk) > 0 {
		d.cb.FileData(friendIndex, fileNumber, before, chunk)
	}
	if terminal {
		d.cb.FileData(friendIndex, fileNumber, before+uint64(len(chunk)), nil)
	}
}
