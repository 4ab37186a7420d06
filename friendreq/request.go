// Package friendreq implements the friend-request authorization layer the
// messenger core consumes as a collaborator (spec §1, §6): encrypting and
// decrypting the out-of-band request payload exchanged before a friend
// exists in the roster, and filtering duplicate inbound requests before
// they reach the application callback.
package friendreq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/limits"
	"github.com/sirupsen/logrus"
)

// ErrMessageEmpty is returned when a request carries no message.
var ErrMessageEmpty = errors.New("friendreq: message cannot be empty")

// ErrMessageTooLong is returned when a request message exceeds
// limits.MaxFriendRequestMessageLength.
var ErrMessageTooLong = errors.New("friendreq: message too long")

// ErrShortPacket is returned when a wire packet is too small to contain a
// sender public key and nonce.
var ErrShortPacket = errors.New("friendreq: packet too short")

// TimeProvider allows deterministic testing of request timestamps.
type TimeProvider interface {
	Now() time.Time
}

type systemTimeProvider struct{}

func (systemTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = systemTimeProvider{}

// Request is a friend request, either outgoing (constructed locally) or
// incoming (decrypted from the wire).
type Request struct {
	SenderPublicKey [32]byte
	Message         string
	Nonce           crypto.Nonce
	Timestamp       time.Time
}

// New builds an outgoing friend request carrying message, timestamped
// from tp. The sender's key pair is supplied later, to Encrypt.
func New(message string, tp TimeProvider) (*Request, error) {
	if tp == nil {
		tp = defaultTimeProvider
	}
	if len(message) == 0 {
		return nil, ErrMessageEmpty
	}
	if len(message) > limits.MaxFriendRequestMessageLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMessageTooLong, len(message))
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("friendreq: generate nonce: %w", err)
	}

	return &Request{
		Message:   message,
		Nonce:     nonce,
		Timestamp: tp.Now(),
	}, nil
}

// Encrypt seals the request for recipientPK, producing the wire packet
// `sender_pk(32) || nonce(24) || ciphertext`.
func (r *Request) Encrypt(senderKeyPair *crypto.KeyPair, recipientPK [32]byte) ([]byte, error) {
	encrypted, err := crypto.Encrypt([]byte(r.Message), r.Nonce, recipientPK, senderKeyPair.Private)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Request.Encrypt",
			"public_key": fmt.Sprintf("%x", senderKeyPair.Public[:8]),
			"error":      err.Error(),
		}).Error("failed to encrypt friend request")
		return nil, fmt.Errorf("friendreq: encrypt: %w", err)
	}

	packet := make([]byte, 32+24+len(encrypted))
	copy(packet[0:32], senderKeyPair.Public[:])
	copy(packet[32:56], r.Nonce[:])
	copy(packet[56:], encrypted)
	return packet, nil
}

// Decrypt opens a wire packet produced by Encrypt, using recipientSK as
// the local private key.
func Decrypt(packet []byte, recipientSK [32]byte, tp TimeProvider) (*Request, error) {
	if tp == nil {
		tp = defaultTimeProvider
	}
	if len(packet) < 56 {
		return nil, ErrShortPacket
	}

	var senderPK [32]byte
	var nonce crypto.Nonce
	copy(senderPK[:], packet[0:32])
	copy(nonce[:], packet[32:56])

	decrypted, err := crypto.Decrypt(packet[56:], nonce, senderPK, recipientSK)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Decrypt",
			"public_key": fmt.Sprintf("%x", senderPK[:8]),
			"error":      err.Error(),
		}).Warn("failed to decrypt friend request")
		return nil, fmt.Errorf("friendreq: decrypt: %w", err)
	}

	return &Request{
		SenderPublicKey: senderPK,
		Message:         string(decrypted),
		Nonce:           nonce,
		Timestamp:       tp.Now(),
	}, nil
}

// Handler decides whether an inbound request should reach the application.
// It returns false to silently reject (e.g. a duplicate already pending).
type Handler func(request *Request) bool

// Manager tracks pending inbound requests and filters duplicates by
// sender public key before invoking the registered Handler, matching the
// "initialize with a filter function the Messenger provides" contract of
// spec §6.
type Manager struct {
	mu      sync.Mutex
	pending map[[32]byte]*Request
	handler Handler
}

// NewManager creates an empty request manager.
func NewManager() *Manager {
	return &Manager{pending: make(map[[32]byte]*Request)}
}

// SetHandler installs the callback invoked for new, non-duplicate requests.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Offer submits an inbound request to the manager. It refreshes an
// existing pending request from the same sender rather than creating a
// duplicate, and reports whether the request was newly accepted for
// delivery to the application.
func (m *Manager) Offer(req *Request) bool {
	m.mu.Lock()
	if existing, ok := m.pending[req.SenderPublicKey]; ok {
		existing.Message = req.Message
		existing.Timestamp = req.Timestamp
		m.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "Manager.Offer",
			"public_key": fmt.Sprintf("%x", req.SenderPublicKey[:8]),
		}).Debug("refreshed duplicate friend request")
		return false
	}
	m.pending[req.SenderPublicKey] = req
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler(req)
	}
	return true
}

// Clear removes a pending request once the application has resolved it
// (accepted via add_friend_norequest or rejected).
func (m *Manager) Clear(senderPublicKey [32]byte) {
	m.mu.Lock()
	delete(m.pending, senderPublicKey)
	m.mu.Unlock()
}

// Pending returns the currently outstanding requests.
func (m *Manager) Pending() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, 0, len(m.pending))
	for _, r := range m.pending {
		out = append(out, r)
	}
	return out
}
