package messenger

import (
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/dispatch"
	"github.com/nocturne-im/messenger/file"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/transport"
	"github.com/sirupsen/logrus"
)

// FileSend begins sending a file to friendIndex: it claims a free
// outgoing slot, generates a file id, and announces the transfer with a
// FileSendRequest packet (spec §4.3 "new_filesender"). size may be
// [file.Unknown] for a streaming transfer of unknown length.
func (m *Messenger) FileSend(friendIndex int, fileType uint32, size uint64, name string) (int, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return 0, err
	}
	if !f.IsOnline() {
		return 0, apperr.NotOnline
	}

	slotIndex := -1
	for i := range f.FilesOutgoing {
		if f.FilesOutgoing[i].Status == file.None {
			slotIndex = i
			break
		}
	}
	if slotIndex == -1 {
		return 0, apperr.NoSlots
	}

	fileID, err := file.NewFileID()
	if err != nil {
		return 0, err
	}

	slot := &f.FilesOutgoing[slotIndex]
	if err := slot.BeginSend(fileType, size, fileID); err != nil {
		return 0, err
	}

	payload, err := dispatch.EncodeFileSendRequest(dispatch.FileSendRequestPacket{
		Slot:     uint8(slotIndex),
		FileType: fileType,
		Size:     size,
		FileID:   fileID,
		Name:     name,
	})
	if err != nil {
		slot.Kill()
		return 0, err
	}

	packet := append([]byte{byte(dispatch.FileSendRequest)}, payload...)
	if _, _, ok := m.sendToOnlineDevices(f, packet); !ok {
		slot.Kill()
		return 0, apperr.SendFailed
	}

	f.NumSendingFiles++
	fileNumber := dispatch.EncodeFileNumber(slotIndex, false)

	logrus.WithFields(logrus.Fields{
		"function":     "Messenger.FileSend",
		"friend_index": friendIndex,
		"slot":         slotIndex,
		"size":         size,
	}).Info("file transfer started")

	return int(fileNumber), nil
}

// FileData delivers one chunk of an outgoing transfer in response to the
// FileReqChunk upcall (spec §4.3 "Chunk delivery (sender side)"). A
// length of 0 is only valid as the transfer's final chunk.
func (m *Messenger) FileData(friendIndex, fileNumber int, position uint64, data []byte) error {
	f, slot, _, err := m.outgoingSlot(friendIndex, fileNumber)
	if err != nil {
		return err
	}
	if !f.IsOnline() {
		return apperr.NotOnline
	}
	if err := slot.ValidateOutgoingChunk(position, len(data)); err != nil {
		return err
	}

	conn := m.primaryOnlineDevice(f)
	if conn == nil {
		return apperr.NotOnline
	}
	if conn.FreeSendQueueSlots() < file.MinSlotsFree {
		return apperr.SendQueueFull
	}

	slotIndex, _ := dispatch.DecodeFileNumber(uint32(fileNumber))
	wire, err := dispatch.EncodeFileData(uint8(slotIndex), data)
	if err != nil {
		return err
	}

	packetNumber, err := conn.SendLossless(wire)
	if err != nil {
		return apperr.SendQueueFull
	}

	slot.CommitOutgoingChunk(len(data), packetNumber)
	return nil
}

// FileControl applies a Pause, Accept, or Kill control operation to one
// of a friend's file-transfer slots, both locally and over the wire
// (spec §4.3 "Control semantics"). Use [Messenger.FileSeek] for Seek,
// which carries an additional position argument.
func (m *Messenger) FileControl(friendIndex, fileNumber int, op FileControlOp) error {
	if op == FileControlSeek {
		return apperr.BadControl
	}
	f, slot, wireDir, err := m.anySlot(friendIndex, fileNumber)
	if err != nil {
		return err
	}

	switch op {
	case FileControlPause:
		if err := slot.Pause(true); err != nil {
			return err
		}
	case FileControlAccept:
		if err := slot.Accept(); err != nil {
			return err
		}
	case FileControlKill:
		outgoing := wireDir == dispatch.DirIncoming
		slot.Kill()
		if outgoing && f.NumSendingFiles > 0 {
			f.NumSendingFiles--
		}
	default:
		return apperr.BadControl
	}

	return m.sendFileControl(f, fileNumber, wireDir, op, nil)
}

// FileSeek repositions a not-yet-accepted incoming transfer (spec §4.3
// "Seek", receiver-only).
func (m *Messenger) FileSeek(friendIndex, fileNumber int, position uint64) error {
	_, incoming := dispatch.DecodeFileNumber(uint32(fileNumber))
	if !incoming {
		return apperr.BadControl
	}
	f, slot, wireDir, err := m.anySlot(friendIndex, fileNumber)
	if err != nil {
		return err
	}
	if err := slot.Seek(position); err != nil {
		return err
	}
	return m.sendFileControl(f, fileNumber, wireDir, FileControlSeek, dispatch.EncodeSeekExtra(position))
}

func (m *Messenger) sendFileControl(f *friend.Friend, fileNumber int, wireDir dispatch.FileDirection, op FileControlOp, extra []byte) error {
	slotIndex, _ := dispatch.DecodeFileNumber(uint32(fileNumber))
	wire := dispatch.EncodeFileControl(dispatch.FileControlPacket{
		Direction: wireDir,
		Slot:      uint8(slotIndex),
		Op:        op,
		Extra:     extra,
	})
	packet := append([]byte{byte(dispatch.FileControl)}, wire...)
	if _, _, ok := m.sendToOnlineDevices(f, packet); !ok {
		return apperr.SendFailed
	}
	return nil
}

// outgoingSlot resolves a file_number to a friend and its outgoing slot,
// rejecting a file_number that addresses the incoming array.
func (m *Messenger) outgoingSlot(friendIndex, fileNumber int) (*friend.Friend, *file.Slot, dispatch.FileDirection, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return nil, nil, 0, err
	}
	slotIndex, incoming := dispatch.DecodeFileNumber(uint32(fileNumber))
	if incoming || slotIndex < 0 || slotIndex >= len(f.FilesOutgoing) {
		return nil, nil, 0, apperr.InvalidFileNumber
	}
	return f, &f.FilesOutgoing[slotIndex], dispatch.DirIncoming, nil
}

// anySlot resolves a file_number to either array depending on its
// direction bit, and the wire Direction a control packet about it must
// carry (the recipient's local array, per dispatch's doc comment).
func (m *Messenger) anySlot(friendIndex, fileNumber int) (*friend.Friend, *file.Slot, dispatch.FileDirection, error) {
	f, err := m.friendOrErr(friendIndex)
	if err != nil {
		return nil, nil, 0, err
	}
	slotIndex, incoming := dispatch.DecodeFileNumber(uint32(fileNumber))
	if incoming {
		if slotIndex < 0 || slotIndex >= len(f.FilesIncoming) {
			return nil, nil, 0, apperr.InvalidFileNumber
		}
		return f, &f.FilesIncoming[slotIndex], dispatch.DirOutgoing, nil
	}
	if slotIndex < 0 || slotIndex >= len(f.FilesOutgoing) {
		return nil, nil, 0, apperr.InvalidFileNumber
	}
	return f, &f.FilesOutgoing[slotIndex], dispatch.DirIncoming, nil
}

// primaryOnlineDevice returns the connection of the first Online device,
// the one whose queue depth gates chunk budgeting (§4.3 "Chunk
// requests").
func (m *Messenger) primaryOnlineDevice(f *friend.Friend) transport.Connection {
	for i := range f.Devices {
		d := &f.Devices[i]
		if d.Status == friend.DeviceOnline && d.Conn != nil {
			return d.Conn
		}
	}
	return nil
}
