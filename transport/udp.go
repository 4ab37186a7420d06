package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultQueueSlots is the reliable send-queue depth used when the local
// platform offers no way to introspect the socket send buffer.
const defaultQueueSlots = 256

// maxDatagramSize bounds a single read from the UDP socket. The messenger
// core's own packets are small; this only needs to be larger than any
// frame this package itself produces plus the largest lossless/lossy
// payload a caller hands to Send.
const maxDatagramSize = 2048

// congestionWindowLow is the fraction of queue slots below which a
// connection reports itself Congested.
const congestionWindowLow = 0.1

// UDPTransport is a concrete [Transport] built on a single bound UDP
// socket. It has no notion of the DHT, onion routing, or the full
// net-crypto handshake: peer reachability is supplied directly by the
// caller through RegisterPeerAddress, and every packet it frames is
// already the caller's ciphertext.
type UDPTransport struct {
	conn net.PacketConn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	peerAddrs   map[[32]byte]net.Addr
	addrToPeer  map[string][32]byte
	connections map[[32]byte]*udpConnection

	statusHandler   StatusChangeHandler
	losslessHandler LosslessPacketHandler
	lossyHandler    LossyPacketHandler

	queueSlots int
}

// NewUDPTransport binds a UDP socket at addr (e.g. "0.0.0.0:33445" or
// ":0" for an ephemeral port) and starts its read loop.
func NewUDPTransport(addr string) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDPTransport{
		conn:        conn,
		ctx:         ctx,
		cancel:      cancel,
		peerAddrs:   make(map[[32]byte]net.Addr),
		addrToPeer:  make(map[string][32]byte),
		connections: make(map[[32]byte]*udpConnection),
		queueSlots:  sndbufSlotEstimate(conn, 512),
	}

	t.wg.Add(1)
	go t.readLoop()

	logrus.WithFields(logrus.Fields{
		"function": "NewUDPTransport",
		"addr":     conn.LocalAddr().String(),
	}).Info("udp transport listening")

	return t, nil
}

func (t *UDPTransport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-t.ctx.Done():
				return
			default:
				logrus.WithFields(logrus.Fields{
					"function": "readLoop",
					"error":    err.Error(),
				}).Debug("udp read error")
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		t.handleDatagram(data, addr)
	}
}

func (t *UDPTransport) handleDatagram(data []byte, addr net.Addr) {
	t.mu.RLock()
	pk, known := t.addrToPeer[addr.String()]
	t.mu.RUnlock()
	if !known {
		logrus.WithFields(logrus.Fields{
			"function": "handleDatagram",
			"addr":     addr.String(),
		}).Debug("dropping datagram from unregistered address")
		return
	}

	f, err := decodeFrame(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleDatagram",
			"error":    err.Error(),
		}).Debug("dropping malformed frame")
		return
	}

	t.mu.RLock()
	conn := t.connections[pk]
	t.mu.RUnlock()
	if conn == nil {
		return
	}

	switch f.kind {
	case frameAck:
		conn.markAcked(f.packetNumber)
	case frameReliable:
		conn.sendAck(f.packetNumber)
		if t.losslessHandler != nil {
			t.losslessHandler(conn.friendIndex, conn.deviceIndex, f.payload)
		}
	case frameUnreliable:
		if t.lossyHandler != nil {
			t.lossyHandler(conn.friendIndex, conn.deviceIndex, f.payload)
		}
	}
}

// Open implements [Transport].
func (t *UDPTransport) Open(publicKey [32]byte, friendIndex, deviceIndex int) (Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.connections[publicKey]; ok {
		return conn, nil
	}

	conn := &udpConnection{
		t:           t,
		publicKey:   publicKey,
		friendIndex: friendIndex,
		deviceIndex: deviceIndex,
		acked:       make(map[uint32]bool),
	}
	if _, hasAddr := t.peerAddrs[publicKey]; hasAddr {
		conn.status = StatusConnected
		conn.kind = KindUDP
	}
	t.connections[publicKey] = conn
	return conn, nil
}

// RegisterPeerAddress implements [Transport].
func (t *UDPTransport) RegisterPeerAddress(publicKey [32]byte, addr net.Addr) error {
	if addr == nil {
		return fmt.Errorf("transport: nil address")
	}

	t.mu.Lock()
	t.peerAddrs[publicKey] = addr
	t.addrToPeer[addr.String()] = publicKey
	conn, existed := t.connections[publicKey]
	if existed {
		conn.mu.Lock()
		wasConnected := conn.status == StatusConnected
		conn.status = StatusConnected
		conn.kind = KindUDP
		conn.mu.Unlock()
		if !wasConnected && t.statusHandler != nil {
			t.statusHandler(conn.friendIndex, conn.deviceIndex, StatusConnected, KindUDP)
		}
	}
	t.mu.Unlock()
	return nil
}

// OnStatusChange implements [Transport].
func (t *UDPTransport) OnStatusChange(h StatusChangeHandler) {
	t.mu.Lock()
	t.statusHandler = h
	t.mu.Unlock()
}

// OnLosslessPacket implements [Transport].
func (t *UDPTransport) OnLosslessPacket(h LosslessPacketHandler) {
	t.mu.Lock()
	t.losslessHandler = h
	t.mu.Unlock()
}

// OnLossyPacket implements [Transport].
func (t *UDPTransport) OnLossyPacket(h LossyPacketHandler) {
	t.mu.Lock()
	t.lossyHandler = h
	t.mu.Unlock()
}

// LocalAddr implements [Transport].
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close implements [Transport].
func (t *UDPTransport) Close() error {
	t.cancel()
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// udpConnection implements [Connection] for a single remote public key
// reached over the owning UDPTransport's socket.
type udpConnection struct {
	t           *UDPTransport
	publicKey   [32]byte
	friendIndex int
	deviceIndex int

	mu               sync.Mutex
	status           ConnStatus
	kind             Kind
	nextPacketNumber uint32
	acked            map[uint32]bool
	inFlight         int
}

func (c *udpConnection) peerAddr() (net.Addr, bool) {
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()
	addr, ok := c.t.peerAddrs[c.publicKey]
	return addr, ok
}

// Close implements [Connection].
func (c *udpConnection) Close() error {
	c.mu.Lock()
	c.status = StatusNotConnected
	c.mu.Unlock()
	return nil
}

// Status implements [Connection].
func (c *udpConnection) Status() (ConnStatus, Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.kind
}

// SendLossless implements [Connection].
func (c *udpConnection) SendLossless(data []byte) (uint32, error) {
	addr, ok := c.peerAddr()
	if !ok {
		return 0, fmt.Errorf("transport: no address registered for peer")
	}

	c.mu.Lock()
	if c.inFlight >= c.t.queueSlots {
		c.mu.Unlock()
		return 0, ErrSendQueueFull
	}
	packetNumber := c.nextPacketNumber
	c.nextPacketNumber++
	c.acked[packetNumber] = false
	c.inFlight++
	c.mu.Unlock()

	_, err := c.t.conn.WriteTo(encodeReliable(packetNumber, data), addr)
	if err != nil {
		return 0, fmt.Errorf("transport: write reliable: %w", err)
	}
	return packetNumber, nil
}

// SendLossy implements [Connection].
func (c *udpConnection) SendLossy(data []byte) error {
	addr, ok := c.peerAddr()
	if !ok {
		return fmt.Errorf("transport: no address registered for peer")
	}
	_, err := c.t.conn.WriteTo(encodeUnreliable(data), addr)
	if err != nil {
		return fmt.Errorf("transport: write unreliable: %w", err)
	}
	return nil
}

// IsAcked implements [Connection].
func (c *udpConnection) IsAcked(packetNumber uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked[packetNumber]
}

// FreeSendQueueSlots implements [Connection].
func (c *udpConnection) FreeSendQueueSlots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	free := c.t.queueSlots - c.inFlight
	if free < 0 {
		return 0
	}
	return free
}

// Congested implements [Connection].
func (c *udpConnection) Congested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.t.queueSlots-c.inFlight) < float64(c.t.queueSlots)*congestionWindowLow
}

func (c *udpConnection) markAcked(packetNumber uint32) {
	c.mu.Lock()
	if already, tracked := c.acked[packetNumber]; tracked && !already {
		c.acked[packetNumber] = true
		if c.inFlight > 0 {
			c.inFlight--
		}
	}
	c.mu.Unlock()
}

func (c *udpConnection) sendAck(packetNumber uint32) {
	addr, ok := c.peerAddr()
	if !ok {
		return
	}
	if _, err := c.t.conn.WriteTo(encodeAck(packetNumber), addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendAck",
			"error":    err.Error(),
		}).Debug("failed to send ack")
	}
}
