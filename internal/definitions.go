package internal

import "errors"

// ErrInterrupted is returned by Poll when a signal cut the wait short before
// any event was delivered. Callers retry on it.
var ErrInterrupted = errors.New("poll interrupted by a signal")

// PollFlags is the platform-neutral readiness set the backends translate
// kernel events into. Backends fold error conditions (EPOLLERR, EV_EOF and
// friends) into these bits so callers never see raw kernel flags.
type PollFlags uint8

const (
	PollRead PollFlags = 1 << iota
	PollWrite
	// PollReadHup means the peer shut down its write side; reads will not
	// block again.
	PollReadHup
	// PollWriteHup means the local write side is unusable.
	PollWriteHup
)

// Event is one readiness notification. Token is the opaque value supplied at
// registration time, carried through the kernel untouched.
type Event struct {
	Token uint32
	Flags PollFlags
}
