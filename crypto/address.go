package crypto

import (
	"encoding/hex"
	"errors"
)

// AddressSize is the wire size of a public friend address: a 32-byte
// public key, a 4-byte nospam cookie, and a 2-byte checksum.
const AddressSize = 38

// ErrInvalidAddressLength is returned when a caller hands in a byte slice
// that isn't exactly AddressSize bytes long.
var ErrInvalidAddressLength = errors.New("crypto: invalid address length")

// ErrAddressChecksum is returned when a parsed address's trailing checksum
// doesn't match the recomputed one, meaning the address was corrupted or
// hand-edited.
var ErrAddressChecksum = errors.New("crypto: address checksum mismatch")

// Address is the public, shareable form of a friend identity: a long-term
// public key plus a rotatable anti-spam cookie (nospam) and the checksum
// that protects both against transcription errors. It is only ever used to
// bootstrap add_friend — it plays no further role once a friend is on the
// roster.
type Address struct {
	PublicKey [32]byte
	Nospam    [4]byte
	Checksum  [2]byte
}

// NewAddress builds an Address from a public key and nospam, computing the
// checksum.
func NewAddress(publicKey [32]byte, nospam [4]byte) Address {
	a := Address{PublicKey: publicKey, Nospam: nospam}
	a.Checksum = checksum(a.PublicKey, a.Nospam)
	return a
}

// ParseAddress decodes a 38-byte wire address, verifying its checksum.
func ParseAddress(data []byte) (Address, error) {
	if len(data) != AddressSize {
		return Address{}, ErrInvalidAddressLength
	}

	var a Address
	copy(a.PublicKey[:], data[0:32])
	copy(a.Nospam[:], data[32:36])
	copy(a.Checksum[:], data[36:38])

	if a.Checksum != checksum(a.PublicKey, a.Nospam) {
		return Address{}, ErrAddressChecksum
	}
	return a, nil
}

// ParseAddressHex decodes the conventional hex-string presentation of an
// address (76 hex characters).
func ParseAddressHex(s string) (Address, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	return ParseAddress(data)
}

// Bytes serializes the address to its 38-byte wire form.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressSize)
	copy(out[0:32], a.PublicKey[:])
	copy(out[32:36], a.Nospam[:])
	copy(out[36:38], a.Checksum[:])
	return out
}

// String renders the address as a hex string.
func (a Address) String() string {
	return hex.EncodeToString(a.Bytes())
}

// checksum computes the byte-pairwise XOR of the public key and nospam
// (36 bytes total), folded into the 2 checksum bytes: each input byte is
// XORed into checksum[i%2], which is equivalent to treating the 36 bytes as
// 18 little-endian uint16s and XORing them together.
func checksum(publicKey [32]byte, nospam [4]byte) [2]byte {
	var out [2]byte
	for i, b := range publicKey {
		out[i%2] ^= b
	}
	for i, b := range nospam {
		out[(32+i)%2] ^= b
	}
	return out
}
