package reactor

import (
	"strings"

	"github.com/riftlabs/reactor/internal"
)

// Ready describes which operations are currently possible on a resource.
type Ready uint16

const (
	ReadyReadable Ready = 1 << iota
	ReadyWritable
	// ReadyReadClosed: the peer shut down its write half, reads will not
	// block again.
	ReadyReadClosed
	// ReadyWriteClosed: the local write half is unusable.
	ReadyWriteClosed
)

const ReadyAll = ReadyReadable | ReadyWritable | ReadyReadClosed | ReadyWriteClosed

func (r Ready) IsReadable() bool {
	return r&(ReadyReadable|ReadyReadClosed) != 0
}

func (r Ready) IsWritable() bool {
	return r&(ReadyWritable|ReadyWriteClosed) != 0
}

func (r Ready) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	if r&ReadyReadable != 0 {
		parts = append(parts, "readable")
	}
	if r&ReadyWritable != 0 {
		parts = append(parts, "writable")
	}
	if r&ReadyReadClosed != 0 {
		parts = append(parts, "read_closed")
	}
	if r&ReadyWriteClosed != 0 {
		parts = append(parts, "write_closed")
	}
	return strings.Join(parts, "|")
}

func readyFromPoll(flags internal.PollFlags) Ready {
	var r Ready
	if flags&internal.PollRead != 0 {
		r |= ReadyReadable
	}
	if flags&internal.PollWrite != 0 {
		r |= ReadyWritable
	}
	if flags&internal.PollReadHup != 0 {
		r |= ReadyReadClosed
	}
	if flags&internal.PollWriteHup != 0 {
		r |= ReadyWriteClosed
	}
	return r
}
