package reactor

import "github.com/riftlabs/reactor/internal"

// Interest selects which directions a registration wants events for.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

const InterestReadWrite = InterestRead | InterestWrite

// Mask widens an interest into the readiness values that satisfy it. Closed
// states always satisfy their direction: a waiter blocked on reads must wake
// when the peer goes away.
func (i Interest) Mask() Ready {
	var r Ready
	if i&InterestRead != 0 {
		r |= ReadyReadable | ReadyReadClosed
	}
	if i&InterestWrite != 0 {
		r |= ReadyWritable | ReadyWriteClosed
	}
	return r
}

func (i Interest) pollFlags() internal.PollFlags {
	var flags internal.PollFlags
	if i&InterestRead != 0 {
		flags |= internal.PollRead
	}
	if i&InterestWrite != 0 {
		flags |= internal.PollWrite
	}
	return flags
}
