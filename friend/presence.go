package friend

// SetDeviceStatus updates one device's connection state and recomputes
// the friend-level Status, reporting whether this transitioned the
// friend into or out of Online. On a !Online -> Online edge, every
// sent-flag is cleared so the lifecycle driver republishes presence
// (§4.5). This function sends nothing; the messenger sends its own
// Online packet when a device's transport connects.
func (f *Friend) SetDeviceStatus(deviceIndex int, status DeviceStatus) (becameOnline, becameOffline bool) {
	if deviceIndex < 0 || deviceIndex >= len(f.Devices) {
		return false, false
	}

	wasOnline := f.IsOnline()
	f.Devices[deviceIndex].Status = status
	f.recomputeStatus()
	nowOnline := f.IsOnline()

	if !wasOnline && nowOnline {
		f.Sent = SentFlags{}
		return true, false
	}
	if wasOnline && !nowOnline {
		f.ForceOffline()
		return false, true
	}
	return false, false
}

// ForceOffline discards every file slot and receipt without firing a
// terminal upcall, matching the liveness rule in §4.3/§4.5: the
// application observes the connection-status change instead.
func (f *Friend) ForceOffline() {
	for i := range f.FilesOutgoing {
		f.FilesOutgoing[i].Kill()
	}
	for i := range f.FilesIncoming {
		f.FilesIncoming[i].Kill()
	}
	f.NumSendingFiles = 0
	f.Receipts = nil
}
