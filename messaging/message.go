// Package messaging implements the Message/Action sub-protocol codec and
// the per-friend read-receipt queue (spec §4.2, §4.4). Encryption and
// reliable delivery are the transport's job; this package only frames
// and tracks application-visible text messages.
package messaging

import (
	"github.com/nocturne-im/messenger/apperr"
	"github.com/nocturne-im/messenger/limits"
)

// Kind distinguishes a regular message from a /me-style action.
type Kind uint8

const (
	Normal Kind = iota
	Action
)

// Encode builds the sub-protocol payload for a Message/Action packet:
// the packet id itself is prefixed by the dispatcher, so this returns
// only the UTF-8 text body after validating its length.
func Encode(kind Kind, text string) ([]byte, error) {
	if err := limits.ValidateSize([]byte(text), limits.MaxMessageLength); err != nil {
		if err == limits.ErrMessageEmpty {
			return nil, apperr.NoMessage
		}
		return nil, apperr.TooLong
	}
	return []byte(text), nil
}

// Decode validates an inbound Message/Action payload and returns it as a
// plain Go string. Spec §4.2 asks the C ABI to NUL-terminate a local copy
// before the upcall, since that contract hands out a pointer and a
// length separately; a Go callback receives a string that already
// carries its own length, so there is nothing to terminate.
func Decode(payload []byte) (string, error) {
	if err := limits.ValidateSize(payload, limits.MaxMessageLength); err != nil {
		return "", err
	}
	return string(payload), nil
}
