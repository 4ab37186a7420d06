// Package dispatch implements the per-friend sub-protocol (spec §4.2):
// decoding a packet id off the front of an inbound payload and routing it
// to the matching roster/file-transfer mutation, and encoding outbound
// setters and file-transfer packets for the transport to carry.
package dispatch

// ID is the single byte that leads every per-friend packet. Exact values
// are a deployment-local wire-compatibility choice, not a protocol
// requirement (§4.2).
type ID uint8

const (
	Online ID = iota
	Offline
	Nickname
	StatusMessage
	UserStatus
	Typing
	Message
	Action
	InviteGroupchat
	FileSendRequest
	FileControl
	FileData
	Msi
)

// LosslessRangeStart/End bound the reserved band for the reliable custom
// packet passthrough (§4.2 LosslessRange, SUPPLEMENTED FEATURES). IDs in
// this band never reach the built-in handlers above.
const (
	LosslessRangeStart ID = 160
	LosslessRangeEnd   ID = 199
)

// LossyRangeStart/End bound the reserved band for the unreliable custom
// packet passthrough (§4.2 LossyRange).
const (
	LossyRangeStart ID = 200
	LossyRangeEnd   ID = 254
)

// FileControlOp is the control operation carried by a FileControl packet.
type FileControlOp uint8

const (
	OpPause FileControlOp = iota
	OpAccept
	OpKill
	OpSeek
)

// FileDirection says which of the receiving side's slot arrays a
// FileSendRequest/FileControl/FileData packet addresses. A packet whose
// sender is offering or writing a file they are sending carries
// DirIncoming (it lands in our FilesIncoming); a control packet about a
// file we are sending to them carries DirOutgoing (it lands in our
// FilesOutgoing).
type FileDirection uint8

const (
	DirIncoming FileDirection = iota
	DirOutgoing
)
