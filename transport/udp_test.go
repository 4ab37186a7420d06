package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (*UDPTransport, *UDPTransport, [32]byte, [32]byte) {
	t.Helper()

	a, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	b, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	var pkA, pkB [32]byte
	pkA[0] = 0xAA
	pkB[0] = 0xBB

	require.NoError(t, a.RegisterPeerAddress(pkB, b.LocalAddr()))
	require.NoError(t, b.RegisterPeerAddress(pkA, a.LocalAddr()))

	return a, b, pkA, pkB
}

func TestUDPTransportLosslessRoundTrip(t *testing.T) {
	a, b, pkA, pkB := newLoopbackPair(t)

	received := make(chan []byte, 1)
	b.OnLosslessPacket(func(friendIndex, deviceIndex int, data []byte) {
		received <- data
	})

	connA, err := a.Open(pkB, 1, 0)
	require.NoError(t, err)
	_, err = b.Open(pkA, 1, 0)
	require.NoError(t, err)

	packetNumber, err := connA.SendLossless([]byte("hello"))
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, []byte("hello"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lossless delivery")
	}

	assert.Eventually(t, func() bool {
		return connA.IsAcked(packetNumber)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUDPTransportLossyRoundTrip(t *testing.T) {
	a, b, pkA, pkB := newLoopbackPair(t)

	received := make(chan []byte, 1)
	b.OnLossyPacket(func(friendIndex, deviceIndex int, data []byte) {
		received <- data
	})

	connA, err := a.Open(pkB, 2, 0)
	require.NoError(t, err)
	_, err = b.Open(pkA, 2, 0)
	require.NoError(t, err)

	require.NoError(t, connA.SendLossy([]byte("ping")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("ping"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lossy delivery")
	}
}

func TestUDPTransportStatusChangeOnRegister(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	var pk [32]byte
	pk[0] = 0x01

	var mu sync.Mutex
	var gotStatus ConnStatus
	notified := make(chan struct{}, 1)
	a.OnStatusChange(func(friendIndex, deviceIndex int, status ConnStatus, kind Kind) {
		mu.Lock()
		gotStatus = status
		mu.Unlock()
		notified <- struct{}{}
	})

	conn, err := a.Open(pk, 0, 0)
	require.NoError(t, err)
	status, _ := conn.Status()
	assert.Equal(t, StatusNotConnected, status)

	other, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	require.NoError(t, a.RegisterPeerAddress(pk, other.LocalAddr()))

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("status change handler never fired")
	}

	mu.Lock()
	assert.Equal(t, StatusConnected, gotStatus)
	mu.Unlock()

	status, kind := conn.Status()
	assert.Equal(t, StatusConnected, status)
	assert.Equal(t, KindUDP, kind)
}

func TestUDPTransportSendLosslessWithoutAddressFails(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	var pk [32]byte
	pk[0] = 0x02
	conn, err := a.Open(pk, 0, 0)
	require.NoError(t, err)

	_, err = conn.SendLossless([]byte("x"))
	assert.Error(t, err)
}

func TestUDPTransportDropsUnregisteredSender(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	b, err := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	received := make(chan []byte, 1)
	a.OnLossyPacket(func(friendIndex, deviceIndex int, data []byte) {
		received <- data
	})

	var pkA [32]byte
	pkA[0] = 0x99
	require.NoError(t, b.RegisterPeerAddress(pkA, a.LocalAddr()))
	connB, err := b.Open(pkA, 0, 0)
	require.NoError(t, err)
	require.NoError(t, connB.SendLossy([]byte("ping")))

	select {
	case <-received:
		t.Fatal("handler should not fire for an unregistered sender address")
	case <-time.After(200 * time.Millisecond):
	}
}
