// Package messenger implements the Messenger core of a decentralized
// peer-to-peer instant-messaging stack: the friend roster and its
// contact-lifecycle state machine, the per-friend packet dispatcher, the
// file-transfer engine, the read-receipt queue, and the per-tick
// lifecycle driver, wired to an external [transport.Transport] and a
// friend-request authorization layer ([friendreq.Manager]).
//
// The DHT, onion routing, net-crypto key exchange, the TCP relay
// protocol, and any UI/application layer are out of scope and are
// consumed as collaborators through the interfaces in the transport and
// friendreq packages.
//
// A [Messenger] is single-threaded and cooperative: every public method
// and [Messenger.Tick] run on the caller's goroutine, and application
// callbacks registered through [Callbacks] are invoked synchronously from
// within whichever call triggered them — usually Tick.
package messenger
