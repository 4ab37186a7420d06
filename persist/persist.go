// Package persist implements the on-disk save/restore format for the
// messenger core's self identity and friend roster (spec §6 "Persisted
// save format"): a flat sequence of typed, length-prefixed sections, one
// of which (FRIENDS) carries a versioned, fixed-field friend record
// format big-endian on the wire, mirroring how dispatch/codec.go frames
// the per-friend sub-protocol.
package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SectionType identifies the payload carried by one section of a save.
type SectionType uint16

const (
	SectionFriends       SectionType = 1
	SectionOldFriends    SectionType = 2
	SectionName          SectionType = 3
	SectionStatusMessage SectionType = 4
	SectionStatus        SectionType = 5
	SectionTCPRelay      SectionType = 6
)

// sectionCookie tags every section so a loader can sanity-check it isn't
// reading a foreign or corrupted file before trusting the length prefix.
const sectionCookie uint32 = 0x1590fade

// ErrTruncated is returned when a save blob ends in the middle of a
// section header or body.
var ErrTruncated = errors.New("persist: truncated save data")

// ErrBadCookie is returned when a section's cookie doesn't match, which
// means the offset bookkeeping has drifted or the data isn't a save file.
var ErrBadCookie = errors.New("persist: bad section cookie")

// Section is one `{type, len, cookie, bytes}` record of a save blob.
type Section struct {
	Type SectionType
	Body []byte
}

// EncodeSection frames one section: type(2 BE) || len(4 BE) || cookie(4 BE) || body.
func EncodeSection(typ SectionType, body []byte) []byte {
	out := make([]byte, 2+4+4+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(typ))
	binary.BigEndian.PutUint32(out[2:6], uint32(len(body)))
	binary.BigEndian.PutUint32(out[6:10], sectionCookie)
	copy(out[10:], body)
	return out
}

// DecodeSections parses a concatenation of sections produced by
// EncodeSection (or compatible legacy writers using the same cookie).
func DecodeSections(data []byte) ([]Section, error) {
	var sections []Section
	for len(data) > 0 {
		if len(data) < 10 {
			return nil, ErrTruncated
		}
		typ := SectionType(binary.BigEndian.Uint16(data[0:2]))
		length := binary.BigEndian.Uint32(data[2:6])
		cookie := binary.BigEndian.Uint32(data[6:10])
		if cookie != sectionCookie {
			return nil, ErrBadCookie
		}
		if uint32(len(data)-10) < length {
			return nil, ErrTruncated
		}
		body := data[10 : 10+length]
		sections = append(sections, Section{Type: typ, Body: append([]byte(nil), body...)})
		data = data[10+length:]
	}
	return sections, nil
}

// Identity is the persisted self section: NAME, STATUSMESSAGE and STATUS
// bodies combined, plus the key material the save format's caller (the
// messenger package) threads in separately since §6 scopes NAME and
// STATUSMESSAGE as plain UTF-8 bodies with no length prefix of their own
// (the section header already carries the length).
type Identity struct {
	Nickname      string
	StatusMessage string
	UserStatus    uint8
}

// EncodeName/EncodeStatusMessage/EncodeStatus return the section body for
// each of the three self-identity section types.
func EncodeName(name string) []byte         { return []byte(name) }
func EncodeStatusMessage(msg string) []byte { return []byte(msg) }
func EncodeStatus(userStatus uint8) []byte  { return []byte{userStatus} }

func DecodeStatus(body []byte) (uint8, error) {
	if len(body) != 1 {
		return 0, fmt.Errorf("persist: STATUS section must be 1 byte, got %d", len(body))
	}
	return body[0], nil
}

// SavedDevice is one SAVED_DEVICE record within a SAVED_FRIEND.
type SavedDevice struct {
	Status    uint8
	PublicKey [32]byte
}

// SavedFriend mirrors the FRIENDS v1 SAVED_FRIEND wire record (§6).
type SavedFriend struct {
	Status         uint8
	RequestPayload []byte
	Name           string
	StatusMessage  string
	UserStatus     uint8
	RequestNospam  uint32
	LastSeenUnix   uint64
	Devices        []SavedDevice
}

const (
	maxRequestPayload = 1024
	maxSavedName      = 128
	maxSavedStatusMsg = 1007
	friendsVersion1   = 1
)

// EncodeFriends builds the FRIENDS v1 section body: a version byte
// followed by one fixed-layout record per friend.
func EncodeFriends(friends []SavedFriend) ([]byte, error) {
	buf := []byte{friendsVersion1}
	for _, f := range friends {
		rec, err := encodeSavedFriend(f)
		if err != nil {
			return nil, err
		}
		buf = append(buf, rec...)
	}
	return buf, nil
}

func encodeSavedFriend(f SavedFriend) ([]byte, error) {
	if len(f.RequestPayload) > maxRequestPayload {
		return nil, fmt.Errorf("persist: request payload exceeds %d bytes", maxRequestPayload)
	}
	if len(f.Name) > maxSavedName {
		return nil, fmt.Errorf("persist: name exceeds %d bytes", maxSavedName)
	}
	if len(f.StatusMessage) > maxSavedStatusMsg {
		return nil, fmt.Errorf("persist: status message exceeds %d bytes", maxSavedStatusMsg)
	}
	if len(f.Devices) > 255 {
		return nil, fmt.Errorf("persist: too many devices: %d", len(f.Devices))
	}

	size := 1 + maxRequestPayload + 2 + maxSavedName + 2 + maxSavedStatusMsg + 2 + 1 + 4 + 8 + 1 + len(f.Devices)*33
	out := make([]byte, size)
	off := 0

	out[off] = f.Status
	off++

	copy(out[off:off+maxRequestPayload], f.RequestPayload)
	off += maxRequestPayload
	binary.BigEndian.PutUint16(out[off:off+2], uint16(len(f.RequestPayload)))
	off += 2

	copy(out[off:off+maxSavedName], f.Name)
	off += maxSavedName
	binary.BigEndian.PutUint16(out[off:off+2], uint16(len(f.Name)))
	off += 2

	copy(out[off:off+maxSavedStatusMsg], f.StatusMessage)
	off += maxSavedStatusMsg
	binary.BigEndian.PutUint16(out[off:off+2], uint16(len(f.StatusMessage)))
	off += 2

	out[off] = f.UserStatus
	off++

	binary.LittleEndian.PutUint32(out[off:off+4], f.RequestNospam)
	off += 4

	binary.BigEndian.PutUint64(out[off:off+8], f.LastSeenUnix)
	off += 8

	out[off] = uint8(len(f.Devices))
	off++

	for _, d := range f.Devices {
		out[off] = d.Status
		off++
		copy(out[off:off+32], d.PublicKey[:])
		off += 32
	}

	return out, nil
}

// DecodeFriends parses a FRIENDS section body produced by EncodeFriends.
// Only version 1 is understood; a higher version is rejected rather than
// guessed at, since a silent partial parse would corrupt the roster.
func DecodeFriends(body []byte) ([]SavedFriend, error) {
	if len(body) < 1 {
		return nil, ErrTruncated
	}
	version := body[0]
	if version != friendsVersion1 {
		return nil, fmt.Errorf("persist: unsupported FRIENDS version %d", version)
	}
	data := body[1:]

	var out []SavedFriend
	for len(data) > 0 {
		f, rest, err := decodeSavedFriend(data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		data = rest
	}
	return out, nil
}

func decodeSavedFriend(data []byte) (SavedFriend, []byte, error) {
	const fixedHeader = 1 + maxRequestPayload + 2 + maxSavedName + 2 + maxSavedStatusMsg + 2 + 1 + 4 + 8 + 1
	if len(data) < fixedHeader {
		return SavedFriend{}, nil, ErrTruncated
	}

	var f SavedFriend
	off := 0

	f.Status = data[off]
	off++

	infoLen := binary.BigEndian.Uint16(data[off+maxRequestPayload : off+maxRequestPayload+2])
	if int(infoLen) > maxRequestPayload {
		return SavedFriend{}, nil, fmt.Errorf("persist: corrupt info_size %d", infoLen)
	}
	f.RequestPayload = append([]byte(nil), data[off:off+int(infoLen)]...)
	off += maxRequestPayload + 2

	nameLen := binary.BigEndian.Uint16(data[off+maxSavedName : off+maxSavedName+2])
	if int(nameLen) > maxSavedName {
		return SavedFriend{}, nil, fmt.Errorf("persist: corrupt name_length %d", nameLen)
	}
	f.Name = string(data[off : off+int(nameLen)])
	off += maxSavedName + 2

	msgLen := binary.BigEndian.Uint16(data[off+maxSavedStatusMsg : off+maxSavedStatusMsg+2])
	if int(msgLen) > maxSavedStatusMsg {
		return SavedFriend{}, nil, fmt.Errorf("persist: corrupt statusmessage_length %d", msgLen)
	}
	f.StatusMessage = string(data[off : off+int(msgLen)])
	off += maxSavedStatusMsg + 2

	f.UserStatus = data[off]
	off++

	f.RequestNospam = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	f.LastSeenUnix = binary.BigEndian.Uint64(data[off : off+8])
	off += 8

	devCount := int(data[off])
	off++

	if len(data[off:]) < devCount*33 {
		return SavedFriend{}, nil, ErrTruncated
	}
	f.Devices = make([]SavedDevice, devCount)
	for i := 0; i < devCount; i++ {
		f.Devices[i].Status = data[off]
		off++
		copy(f.Devices[i].PublicKey[:], data[off:off+32])
		off += 32
	}

	return f, data[off:], nil
}

// LegacySavedFriend is one OLDFRIENDS record: the pre-multi-device save
// format, a single implicit device embedded directly in the friend record
// instead of a SAVED_DEVICE list. Loader-only (§6) — nothing in this
// module writes OLDFRIENDS anymore.
type LegacySavedFriend struct {
	Status        uint8
	PublicKey     [32]byte
	Nospam        uint32
	Name          string
	StatusMessage string
	UserStatus    uint8
	LastSeenUnix  uint64
}

const legacyRecordSize = 1 + 32 + 4 + maxSavedName + 2 + maxSavedStatusMsg + 2 + 1 + 8

// DecodeOldFriends parses an OLDFRIENDS section body. Per the §9 open
// question, name and status-message fields are present unconditionally
// in the stored bytes; it is the caller's job (mirroring the v1 loader)
// to ignore them when Status is below Confirmed.
func DecodeOldFriends(body []byte) ([]LegacySavedFriend, error) {
	var out []LegacySavedFriend
	for len(body) > 0 {
		if len(body) < legacyRecordSize {
			return nil, ErrTruncated
		}
		var f LegacySavedFriend
		off := 0

		f.Status = body[off]
		off++

		copy(f.PublicKey[:], body[off:off+32])
		off += 32

		f.Nospam = binary.LittleEndian.Uint32(body[off : off+4])
		off += 4

		nameLen := binary.BigEndian.Uint16(body[off+maxSavedName : off+maxSavedName+2])
		if int(nameLen) > maxSavedName {
			return nil, fmt.Errorf("persist: corrupt legacy name_length %d", nameLen)
		}
		f.Name = string(body[off : off+int(nameLen)])
		off += maxSavedName + 2

		msgLen := binary.BigEndian.Uint16(body[off+maxSavedStatusMsg : off+maxSavedStatusMsg+2])
		if int(msgLen) > maxSavedStatusMsg {
			return nil, fmt.Errorf("persist: corrupt legacy statusmessage_length %d", msgLen)
		}
		f.StatusMessage = string(body[off : off+int(msgLen)])
		off += maxSavedStatusMsg + 2

		f.UserStatus = body[off]
		off++

		f.LastSeenUnix = binary.BigEndian.Uint64(body[off : off+8])
		off += 8

		out = append(out, f)
		body = body[off:]
	}
	return out, nil
}

// TCPRelayNode is one entry of a TCP_RELAY section (§6), packed node list
// capped at 8 relays per the spec's save format.
type TCPRelayNode struct {
	PublicKey [32]byte
	Host      string
	Port      uint16
}

// MaxTCPRelays is the cap on persisted relay nodes (§6 "up to 8 relays").
const MaxTCPRelays = 8

// EncodeTCPRelays packs up to MaxTCPRelays nodes into a TCP_RELAY body.
func EncodeTCPRelays(nodes []TCPRelayNode) ([]byte, error) {
	if len(nodes) > MaxTCPRelays {
		nodes = nodes[:MaxTCPRelays]
	}
	var buf []byte
	buf = append(buf, uint8(len(nodes)))
	for _, n := range nodes {
		if len(n.Host) > 255 {
			return nil, fmt.Errorf("persist: relay host too long: %q", n.Host)
		}
		rec := make([]byte, 32+2+1+len(n.Host))
		copy(rec[0:32], n.PublicKey[:])
		binary.BigEndian.PutUint16(rec[32:34], n.Port)
		rec[34] = uint8(len(n.Host))
		copy(rec[35:], n.Host)
		buf = append(buf, rec...)
	}
	return buf, nil
}

// DecodeTCPRelays unpacks a TCP_RELAY section body produced by EncodeTCPRelays.
func DecodeTCPRelays(body []byte) ([]TCPRelayNode, error) {
	if len(body) < 1 {
		return nil, ErrTruncated
	}
	count := int(body[0])
	data := body[1:]
	out := make([]TCPRelayNode, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 35 {
			return nil, ErrTruncated
		}
		var n TCPRelayNode
		copy(n.PublicKey[:], data[0:32])
		n.Port = binary.BigEndian.Uint16(data[32:34])
		hostLen := int(data[34])
		if len(data) < 35+hostLen {
			return nil, ErrTruncated
		}
		n.Host = string(data[35 : 35+hostLen])
		out = append(out, n)
		data = data[35+hostLen:]
	}
	return out, nil
}
