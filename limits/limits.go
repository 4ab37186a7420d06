// Package limits provides centralized per-field size limits for the
// messenger core's wire formats. This ensures consistent validation across
// the roster, dispatcher, and file-transfer engine instead of each package
// hardcoding its own numbers.
package limits

import "errors"

const (
	// MaxNameLength is the maximum byte length of a nickname (§3).
	MaxNameLength = 128

	// MaxStatusMessageLength is the maximum byte length of a status message (§3).
	MaxStatusMessageLength = 1007

	// MaxFriendRequestMessageLength is the maximum byte length of an
	// add_friend request payload (§4.1).
	MaxFriendRequestMessageLength = 1016

	// MaxMessageLength is the maximum byte length of a Message/Action
	// payload (§4.2).
	MaxMessageLength = 1016

	// MaxFileChunkLength is the maximum byte length of a single FileData
	// chunk payload (§4.2, §4.3).
	MaxFileChunkLength = 1015

	// MaxConcurrentFilePipes is the number of file-transfer slots tracked
	// per friend, per direction (§3).
	MaxConcurrentFilePipes = 256

	// MaxFileNameLength is the maximum byte length of a transferred
	// file's name field (§4.2 FileSendRequest).
	MaxFileNameLength = 255

	// AddressSize is the byte length of a public friend address (§3).
	AddressSize = 38

	// FriendRequestNospamSize is the byte length of the nospam cookie
	// embedded in a friend address (§3).
	FriendRequestNospamSize = 4

	// FileIDSize is the byte length of a file transfer's random id (§4.2).
	FileIDSize = 32
)

// ErrMessageEmpty indicates an empty payload was provided where at least
// one byte is required.
var ErrMessageEmpty = errors.New("limits: empty message")

// ErrMessageTooLarge indicates a payload exceeds the specified maximum size.
var ErrMessageTooLarge = errors.New("limits: message too large")

// ValidateSize validates data against maxSize, requiring at least one byte.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > maxSize {
		return ErrMessageTooLarge
	}
	return nil
}

// ValidateSizeAllowEmpty validates data against maxSize without requiring
// any minimum length, for fields like nickname or status message that are
// legally empty.
func ValidateSizeAllowEmpty(data []byte, maxSize int) error {
	if len(data) > maxSize {
		return ErrMessageTooLarge
	}
	return nil
}
