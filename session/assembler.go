package session

import (
	"sync"

	"lingokit/core"
)

// Assembler accumulates streamed content deltas into a single in-flight
// assistant message. It has two states: open, accepting deltas, and sealed,
// after the terminal marker or an error. Sealing happens exactly once; any
// delta arriving after the seal is dropped.
type Assembler struct {
	locker  sync.Locker
	message *core.Message
	sealed  bool
	applied int
	onDelta func(messageID, content string)
}

// NewAssembler creates an assembler targeting message. When locker is
// non-nil every mutation happens under it, so an owner holding the same lock
// can safely snapshot the message; otherwise the assembler locks privately.
// onDelta, if set, fires after each applied delta with the accumulated
// content so far.
func NewAssembler(message *core.Message, locker sync.Locker, onDelta func(messageID, content string)) *Assembler {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &Assembler{
		locker:  locker,
		message: message,
		onDelta: onDelta,
	}
}

// Apply appends a content delta to the tail of the target message, in
// arrival order. Deltas applied after sealing are ignored.
func (a *Assembler) Apply(delta string) {
	a.locker.Lock()
	if a.sealed {
		a.locker.Unlock()
		return
	}
	a.message.Content += delta
	a.applied++
	messageID, content := a.message.ID, a.message.Content
	a.locker.Unlock()

	if a.onDelta != nil {
		a.onDelta(messageID, content)
	}
}

// Seal finalizes the message. Further Apply calls become no-ops. Sealing an
// already sealed assembler does nothing.
func (a *Assembler) Seal() {
	a.locker.Lock()
	a.sealed = true
	a.locker.Unlock()
}

// Sealed reports whether the message has been finalized.
func (a *Assembler) Sealed() bool {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.sealed
}

// Applied returns how many deltas have been applied so far.
func (a *Assembler) Applied() int {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.applied
}
