package messenger

import (
	"fmt"

	"github.com/nocturne-im/messenger/friendreq"
	"github.com/sirupsen/logrus"
)

func logPublicKey(pk [32]byte) string {
	return fmt.Sprintf("%x", pk[:8])
}

// HandleFriendRequestPacket decrypts a raw friend-request blob delivered by
// whatever out-of-band rendezvous mechanism the application wires up (DHT,
// onion service, introduction server — all out of scope per spec §1's
// "below" boundary) and offers it to the deduplicating [friendreq.Manager].
// A second packet from the same sender refreshes the pending request's
// message and timestamp without re-invoking the application callback.
func (m *Messenger) HandleFriendRequestPacket(packet []byte) error {
	req, err := friendreq.Decrypt(packet, m.keyPair.Private, m.tp)
	if err != nil {
		return err
	}
	m.requests.Offer(req)
	return nil
}

// wireRequests installs the Manager's new-request handler, translating it
// into the application-facing FriendRequest callback. Called once at
// construction; SetCallbacks rewires it so a later-installed callback takes
// effect for requests offered after that call.
func (m *Messenger) wireRequests() {
	m.requests.SetHandler(func(req *friendreq.Request) bool {
		if m.cb.FriendRequest == nil {
			return true
		}
		logrus.WithFields(logrus.Fields{
			"function":   "Messenger.wireRequests",
			"public_key": logPublicKey(req.SenderPublicKey),
		}).Info("friend request received")
		m.cb.FriendRequest(req.SenderPublicKey, req.Message)
		return true
	})
}
