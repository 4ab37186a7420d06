package messaging

// Ack is the collaborator query the receipt queue drains against: "has
// this transport packet-number been acknowledged yet?" (spec §4.4).
type Ack func(packetNumber uint32) bool

// Receipt binds a local message-id to the transport packet-number whose
// acknowledgment resolves it.
type Receipt struct {
	PacketNumber uint32
	MessageID    uint32
}

// Drain walks a FIFO receipts queue in order, invoking onDelivered for
// every head entry whose packet number is already acknowledged, and
// stopping at the first unacknowledged entry — read receipts only ever
// surface to the application in message-id order (§4.4, §8 scenario 6).
// It returns the remaining (undelivered) queue.
func Drain(receipts []Receipt, isAcked Ack, onDelivered func(messageID uint32)) []Receipt {
	i := 0
	for i < len(receipts) {
		if !isAcked(receipts[i].PacketNumber) {
			break
		}
		onDelivered(receipts[i].MessageID)
		i++
	}
	return receipts[i:]
}
