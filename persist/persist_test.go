package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionRoundTrip(t *testing.T) {
	body := []byte("alice")
	blob := EncodeSection(SectionName, body)

	sections, err := DecodeSections(blob)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, SectionName, sections[0].Type)
	assert.Equal(t, body, sections[0].Body)
}

func TestDecodeSectionsConcatenated(t *testing.T) {
	blob := append(EncodeSection(SectionName, []byte("alice")), EncodeSection(SectionStatus, []byte{1})...)
	sections, err := DecodeSections(blob)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, SectionName, sections[0].Type)
	assert.Equal(t, SectionStatus, sections[1].Type)
}

func TestDecodeSectionsTruncated(t *testing.T) {
	blob := EncodeSection(SectionName, []byte("alice"))
	_, err := DecodeSections(blob[:len(blob)-2])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeSectionsBadCookie(t *testing.T) {
	blob := EncodeSection(SectionName, []byte("alice"))
	blob[6] ^= 0xFF
	_, err := DecodeSections(blob)
	assert.ErrorIs(t, err, ErrBadCookie)
}

func testSavedFriend(seed byte) SavedFriend {
	var pk [32]byte
	pk[0] = seed
	return SavedFriend{
		Status:         3,
		RequestPayload: []byte("hello"),
		Name:           "bob",
		StatusMessage:  "hi there",
		UserStatus:     1,
		RequestNospam:  0xDEADBEEF,
		LastSeenUnix:   1700000000,
		Devices: []SavedDevice{
			{Status: 4, PublicKey: pk},
		},
	}
}

func TestFriendsRoundTrip(t *testing.T) {
	friends := []SavedFriend{testSavedFriend(1), testSavedFriend(2)}
	body, err := EncodeFriends(friends)
	require.NoError(t, err)

	decoded, err := DecodeFriends(body)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, friends, decoded)
}

func TestFriendsRoundTripEmptyList(t *testing.T) {
	body, err := EncodeFriends(nil)
	require.NoError(t, err)
	decoded, err := DecodeFriends(body)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestFriendsRejectsOversizedRequestPayload(t *testing.T) {
	f := testSavedFriend(1)
	f.RequestPayload = make([]byte, maxRequestPayload+1)
	_, err := EncodeFriends([]SavedFriend{f})
	assert.Error(t, err)
}

func TestDecodeFriendsRejectsUnsupportedVersion(t *testing.T) {
	_, err := DecodeFriends([]byte{2})
	assert.Error(t, err)
}

func TestDecodeFriendsTruncated(t *testing.T) {
	body, err := EncodeFriends([]SavedFriend{testSavedFriend(1)})
	require.NoError(t, err)
	_, err = DecodeFriends(body[:len(body)-5])
	assert.Error(t, err)
}

func TestTCPRelaysRoundTrip(t *testing.T) {
	var pk [32]byte
	pk[0] = 9
	nodes := []TCPRelayNode{
		{PublicKey: pk, Host: "relay.example.com", Port: 33445},
	}
	body, err := EncodeTCPRelays(nodes)
	require.NoError(t, err)

	decoded, err := DecodeTCPRelays(body)
	require.NoError(t, err)
	assert.Equal(t, nodes, decoded)
}

func TestTCPRelaysCapsAtEight(t *testing.T) {
	nodes := make([]TCPRelayNode, 12)
	body, err := EncodeTCPRelays(nodes)
	require.NoError(t, err)
	decoded, err := DecodeTCPRelays(body)
	require.NoError(t, err)
	assert.Len(t, decoded, MaxTCPRelays)
}

func TestDecodeOldFriendsRoundTripViaManualEncode(t *testing.T) {
	var pk [32]byte
	pk[0] = 7
	name := "carol"
	statusMsg := "legacy status"

	rec := make([]byte, legacyRecordSize)
	off := 0
	rec[off] = 3
	off++
	copy(rec[off:off+32], pk[:])
	off += 32
	off += 4 // nospam, zero
	copy(rec[off:off+len(name)], name)
	off += maxSavedName
	rec[off] = 0
	rec[off+1] = byte(len(name))
	off += 2
	copy(rec[off:off+len(statusMsg)], statusMsg)
	off += maxSavedStatusMsg
	rec[off] = 0
	rec[off+1] = byte(len(statusMsg))
	off += 2
	rec[off] = 2 // userstatus
	off++
	// last_seen_time left zero

	decoded, err := DecodeOldFriends(rec)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, pk, decoded[0].PublicKey)
	assert.Equal(t, name, decoded[0].Name)
	assert.Equal(t, statusMsg, decoded[0].StatusMessage)
	assert.Equal(t, uint8(2), decoded[0].UserStatus)
}

func TestDecodeOldFriendsTruncated(t *testing.T) {
	_, err := DecodeOldFriends(make([]byte, legacyRecordSize-1))
	assert.ErrorIs(t, err, ErrTruncated)
}
