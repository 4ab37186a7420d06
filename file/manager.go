package file

import "github.com/nocturne-im/messenger/limits"

// ChunkRequestFunc is the application upcall used to pull sendable bytes
// for an outgoing slot. A length of 0 signals end-of-stream.
type ChunkRequestFunc func(slotIndex int, position uint64, length int)

// RequestChunks drives the sending side of the per-tick file engine
// (§4.3 "Chunk requests (sender side)") across one friend's outgoing
// slot array. budget is the number of reliable packets this friend may
// still enqueue this tick; congested disables further requests even if
// budget remains. It returns the remaining budget and how many slots
// transitioned to None so the caller can adjust num_sending_files.
func RequestChunks(slots []Slot, budget int, congested bool, isAcked func(uint32) bool, request ChunkRequestFunc) (remainingBudget int, freed int) {
	for i := range slots {
		slot := &slots[i]

		if slot.Status == Finished {
			if slot.FinalizeIfAcked(isAcked) {
				request(i, 0, 0)
				freed++
			}
			continue
		}

		if slot.Status != Transferring || slot.PauseMask != 0 {
			continue
		}

		if slot.Size == 0 {
			// requested never advances past size (0 < 0 is false), so the
			// ordinary while loop below never fires for a zero-length
			// file; request the single terminal chunk once and wait for
			// the real FileData(slot, 0, nil) call to commit it and move
			// the slot to Finished. SlotsAllocated gates the request so
			// it isn't repeated every tick while that call is pending.
			if budget > 0 && !congested && slot.SlotsAllocated == 0 {
				request(i, 0, 0)
				slot.SlotsAllocated++
				budget--
			}
			continue
		}

		for budget > 0 && !congested && slot.Status == Transferring &&
			(slot.Size == Unknown || slot.Requested < slot.Size) {
			length := limits.MaxFileChunkLength
			if slot.Size != Unknown {
				remaining := slot.Size - slot.Requested
				if uint64(length) > remaining {
					length = int(remaining)
				}
			}
			request(i, slot.Requested, length)
			slot.Requested += uint64(length)
			slot.SlotsAllocated++
			budget--
		}
	}
	return budget, freed
}
