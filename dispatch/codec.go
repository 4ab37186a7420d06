package dispatch

import (
	"encoding/binary"

	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/limits"
)

// ErrMalformed is returned by every decode function on a payload that
// fails its length or field-specific validation. Per §4.2's dispatcher
// rule, the caller must drop the packet silently rather than disconnect.
var ErrMalformed = apperr.Error("dispatch: malformed packet")

// EncodeUserStatus/DecodeUserStatus carry the 1-byte enum verbatim.
func EncodeUserStatus(status uint8) []byte { return []byte{status} }

func DecodeUserStatus(payload []byte) (uint8, error) {
	if len(payload) != 1 {
		return 0, ErrMalformed
	}
	return payload[0], nil
}

// EncodeTyping/DecodeTyping carry the 1-byte boolean verbatim.
func EncodeTyping(typing bool) []byte {
	if typing {
		return []byte{1}
	}
	return []byte{0}
}

func DecodeTyping(payload []byte) (bool, error) {
	if len(payload) != 1 {
		return false, ErrMalformed
	}
	return payload[0] != 0, nil
}

// EncodeNickname validates and returns a Nickname payload.
func EncodeNickname(name string) ([]byte, error) {
	if err := limits.ValidateSizeAllowEmpty([]byte(name), limits.MaxNameLength); err != nil {
		return nil, apperr.TooLong
	}
	return []byte(name), nil
}

// DecodeNickname returns the validated payload as a plain Go string. Spec
// §4.2 asks the C ABI to NUL-terminate a local copy before the upcall,
// since that contract hands out a pointer and a length separately; a Go
// callback's string parameter already carries its own length.
func DecodeNickname(payload []byte) (string, error) {
	if len(payload) > limits.MaxNameLength {
		return "", ErrMalformed
	}
	return string(payload), nil
}

// EncodeStatusMessage validates and returns a StatusMessage payload.
func EncodeStatusMessage(msg string) ([]byte, error) {
	if err := limits.ValidateSizeAllowEmpty([]byte(msg), limits.MaxStatusMessageLength); err != nil {
		return nil, apperr.TooLong
	}
	return []byte(msg), nil
}

// DecodeStatusMessage returns the validated payload as a plain Go string,
// for the same reason DecodeNickname doesn't NUL-terminate it.
func DecodeStatusMessage(payload []byte) (string, error) {
	if len(payload) > limits.MaxStatusMessageLength {
		return "", ErrMalformed
	}
	return string(payload), nil
}

// FileSendRequestPacket is the decoded form of a FileSendRequest packet:
// slot(1) || type(4 BE) || size(8 BE) || file_id(32) || name(0..255).
type FileSendRequestPacket struct {
	Slot     uint8
	FileType uint32
	Size     uint64
	FileID   [32]byte
	Name     string
}

func EncodeFileSendRequest(p FileSendRequestPacket) ([]byte, error) {
	if len(p.Name) > limits.MaxFileNameLength {
		return nil, apperr.TooLong
	}
	out := make([]byte, 1+4+8+32+len(p.Name))
	out[0] = p.Slot
	binary.BigEndian.PutUint32(out[1:5], p.FileType)
	binary.BigEndian.PutUint64(out[5:13], p.Size)
	copy(out[13:45], p.FileID[:])
	copy(out[45:], p.Name)
	return out, nil
}

func DecodeFileSendRequest(payload []byte) (FileSendRequestPacket, error) {
	if len(payload) < 45 || len(payload)-45 > limits.MaxFileNameLength {
		return FileSendRequestPacket{}, ErrMalformed
	}
	var p FileSendRequestPacket
	p.Slot = payload[0]
	p.FileType = binary.BigEndian.Uint32(payload[1:5])
	p.Size = binary.BigEndian.Uint64(payload[5:13])
	copy(p.FileID[:], payload[13:45])
	p.Name = string(payload[45:])
	return p, nil
}

// FileControlPacket is the decoded form of a FileControl packet:
// direction(1) || slot(1) || op(1) || extra(0..). Extra carries the
// 8-byte big-endian seek position for OpSeek and is empty otherwise.
type FileControlPacket struct {
	Direction FileDirection
	Slot      uint8
	Op        FileControlOp
	Extra     []byte
}

func EncodeFileControl(p FileControlPacket) []byte {
	out := make([]byte, 3+len(p.Extra))
	out[0] = byte(p.Direction)
	out[1] = p.Slot
	out[2] = byte(p.Op)
	copy(out[3:], p.Extra)
	return out
}

func EncodeSeekExtra(position uint64) []byte {
	extra := make([]byte, 8)
	binary.BigEndian.PutUint64(extra, position)
	return extra
}

func DecodeFileControl(payload []byte) (FileControlPacket, error) {
	if len(payload) < 3 {
		return FileControlPacket{}, ErrMalformed
	}
	p := FileControlPacket{
		Direction: FileDirection(payload[0]),
		Slot:      payload[1],
		Op:        FileControlOp(payload[2]),
		Extra:     payload[3:],
	}
	if p.Op == OpSeek && len(p.Extra) != 8 {
		return FileControlPacket{}, ErrMalformed
	}
	return p, nil
}

func DecodeSeekPosition(extra []byte) uint64 {
	return binary.BigEndian.Uint64(extra)
}

// FileDataPacket is the decoded form of a FileData packet: slot(1) ||
// chunk(0..1015). FileData always targets the receiver's incoming array
// (§4.2).
type FileDataPacket struct {
	Slot  uint8
	Chunk []byte
}

func EncodeFileData(slot uint8, chunk []byte) ([]byte, error) {
	if len(chunk) > limits.MaxFileChunkLength {
		return nil, apperr.TooLong
	}
	out := make([]byte, 1+len(chunk))
	out[0] = slot
	copy(out[1:], chunk)
	return out, nil
}

func DecodeFileData(payload []byte) (FileDataPacket, error) {
	if len(payload) < 1 || len(payload)-1 > limits.MaxFileChunkLength {
		return FileDataPacket{}, ErrMalformed
	}
	return FileDataPacket{Slot: payload[0], Chunk: payload[1:]}, nil
}
