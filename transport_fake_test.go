package messenger

import (
	"net"
	"sync"

	"github.com/nocturne-im/messenger/transport"
)

// fakeAddr and fakeTransport are a minimal in-memory stand-in for a real
// transport, grounded in the teacher's async.MockTransport (record every
// send, let the test simulate inbound delivery and status changes
// directly) adapted to this module's friendIndex/deviceIndex-keyed
// Transport interface instead of the teacher's packet-type routing.
type fakeAddr struct{ s string }

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return a.s }

type fakeConnection struct {
	mu sync.Mutex

	status transport.ConnStatus
	kind   transport.Kind

	nextPacketNumber uint32
	acked            map[uint32]bool
	lossless         [][]byte
	lossy            [][]byte

	freeSlots int
	congested bool
	sendErr   error
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		status:    transport.StatusConnected,
		kind:      transport.KindUDP,
		acked:     make(map[uint32]bool),
		freeSlots: 32,
	}
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = transport.StatusNotConnected
	return nil
}

func (c *fakeConnection) Status() (transport.ConnStatus, transport.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.kind
}

func (c *fakeConnection) SendLossless(data []byte) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	c.nextPacketNumber++
	pn := c.nextPacketNumber
	c.lossless = append(c.lossless, append([]byte(nil), data...))
	return pn, nil
}

func (c *fakeConnection) SendLossy(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lossy = append(c.lossy, append([]byte(nil), data...))
	return nil
}

func (c *fakeConnection) IsAcked(packetNumber uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked[packetNumber]
}

func (c *fakeConnection) ack(packetNumber uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked[packetNumber] = true
}

func (c *fakeConnection) FreeSendQueueSlots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeSlots
}

func (c *fakeConnection) Congested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.congested
}

func (c *fakeConnection) lastLossless() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lossless) == 0 {
		return nil
	}
	return c.lossless[len(c.lossless)-1]
}

type fakeTransport struct {
	mu    sync.Mutex
	conns map[[32]byte]*fakeConnection

	statusHandler   transport.StatusChangeHandler
	losslessHandler transport.LosslessPacketHandler
	lossyHandler    transport.LossyPacketHandler

	openErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: make(map[[32]byte]*fakeConnection)}
}

func (t *fakeTransport) Open(publicKey [32]byte, friendIndex, deviceIndex int) (transport.Connection, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	conn := newFakeConnection()
	t.conns[publicKey] = conn
	return conn, nil
}

func (t *fakeTransport) RegisterPeerAddress(publicKey [32]byte, addr net.Addr) error {
	return nil
}

func (t *fakeTransport) OnStatusChange(h transport.StatusChangeHandler) { t.statusHandler = h }
func (t *fakeTransport) OnLosslessPacket(h transport.LosslessPacketHandler) {
	t.losslessHandler = h
}
func (t *fakeTransport) OnLossyPacket(h transport.LossyPacketHandler) { t.lossyHandler = h }

func (t *fakeTransport) LocalAddr() net.Addr { return fakeAddr{s: "fake:0"} }

func (t *fakeTransport) Close() error { return nil }

// connOf returns the fake connection opened for publicKey, if any.
func (t *fakeTransport) connOf(publicKey [32]byte) *fakeConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[publicKey]
}

// deliverLossless simulates an inbound reliable packet arriving for the
// given friend/device, the same way a real transport would invoke the
// handler it was given via OnLosslessPacket.
func (t *fakeTransport) deliverLossless(friendIndex, deviceIndex int, data []byte) {
	if t.losslessHandler != nil {
		t.losslessHandler(friendIndex, deviceIndex, data)
	}
}

// connect marks a device's connection up and fires the status-change
// handler exactly as a real transport completing its handshake would.
func (t *fakeTransport) connect(friendIndex, deviceIndex int) {
	if t.statusHandler != nil {
		t.statusHandler(friendIndex, deviceIndex, transport.StatusConnected, transport.KindUDP)
	}
}
