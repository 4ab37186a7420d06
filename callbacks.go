package messenger

import "github.com/nocturne-im/messenger/dispatch"

// Callbacks are the application upcalls a Messenger invokes, all
// synchronously from within the call (most often [Messenger.Tick]) that
// caused them, per spec §6 "Application (exposed)".
type Callbacks struct {
	// OutgoingFriendRequest hands the application an encrypted
	// friend-request packet to deliver to publicKey via whatever
	// rendezvous mechanism it wires up (DHT, onion service, introduction
	// server). Invoked by Tick each time an Added friend's request is
	// (re)sent, mirroring [Messenger.HandleFriendRequestPacket] on the
	// receiving end.
	OutgoingFriendRequest  func(publicKey [32]byte, packet []byte)
	FriendRequest          func(publicKey [32]byte, message string)
	FriendMessage          func(friendIndex int, message string, isAction bool)
	NameChange             func(friendIndex int, name string)
	StatusMessageChange    func(friendIndex int, message string)
	UserStatusChange       func(friendIndex int, status uint8)
	TypingChange           func(friendIndex int, typing bool)
	ReadReceipt            func(friendIndex int, messageID uint32)
	ConnectionStatusChange func(friendIndex int, kind ConnKind)
	CoreConnectionChange   func(kind ConnKind)
	FileSendRequest        func(friendIndex, fileNumber int, fileType uint32, size uint64, fileID [32]byte, name string)
	FileControl            func(friendIndex, fileNumber int, op FileControlOp)
	FileData               func(friendIndex, fileNumber int, position uint64, data []byte)
	FileReqChunk           func(friendIndex, fileNumber int, position uint64, length int)
	Msi                    func(friendIndex int, data []byte)

	// LosslessPacket delivers an inbound custom packet whose id falls in
	// dispatch.LosslessRange, from any friend. Use
	// [Messenger.RegisterLossyPacketHandler] instead for the lossy band,
	// which is registered per friend rather than as one global callback
	// (spec §6 "custom lossy and lossless packet handlers").
	LosslessPacket func(friendIndex int, data []byte)
}

// FileControlOp re-exports dispatch.FileControlOp so callers never need
// to import the dispatch package directly.
type FileControlOp = dispatch.FileControlOp

const (
	FileControlPause  = dispatch.OpPause
	FileControlAccept = dispatch.OpAccept
	FileControlKill   = dispatch.OpKill
	FileControlSeek   = dispatch.OpSeek
)

// SetCallbacks installs the application's upcall table, replacing any
// previously registered one. Spec §6 describes these as registered once;
// calling this again is allowed (useful in tests) but not expected in
// normal use.
func (m *Messenger) SetCallbacks(cb Callbacks) {
	m.cb = cb
	m.wireDispatchCallbacks()
	m.wireRequests()
}
