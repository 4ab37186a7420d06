package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"
)

// MaxMessageSize caps any single plaintext passed to Encrypt, preventing
// excessive memory use from a malformed caller.
const MaxMessageSize = 1024 * 1024

// Nonce is a 24-byte value used once per encryption operation.
type Nonce [24]byte

// GenerateNonce creates a cryptographically secure random nonce.
//
//export ToxGenerateNonce
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "GenerateNonce",
			"error":    err.Error(),
		}).Error("failed to generate nonce")
		return Nonce{}, err
	}
	return nonce, nil
}

// Encrypt seals a message for recipientPK using authenticated public-key
// encryption (NaCl box / Curve25519-XSalsa20-Poly1305).
//
//export ToxEncrypt
func Encrypt(message []byte, nonce Nonce, recipientPK [32]byte, senderSK [32]byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, errors.New("empty message")
	}
	if len(message) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	sealed := box.Seal(nil, message, (*[24]byte)(&nonce), (*[32]byte)(&recipientPK), (*[32]byte)(&senderSK))

	logrus.WithFields(logrus.Fields{
		"function":       "Encrypt",
		"message_size":   len(message),
		"encrypted_size": len(sealed),
	}).Debug("message encrypted")

	return sealed, nil
}

// Decrypt opens a message sealed by Encrypt. senderPK/recipientSK must be the
// same pair (in reverse) used to seal it.
//
//export ToxDecrypt
func Decrypt(ciphertext []byte, nonce Nonce, senderPK [32]byte, recipientSK [32]byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, errors.New("empty ciphertext")
	}

	opened, ok := box.Open(nil, ciphertext, (*[24]byte)(&nonce), (*[32]byte)(&senderPK), (*[32]byte)(&recipientSK))
	if !ok {
		return nil, errors.New("decryption failed: authentication failed")
	}
	return opened, nil
}
