//go:build darwin || freebsd || dragonfly

package internal

import (
	"io"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poller is the kqueue backend. Tokens ride in the kevent udata field.
// Register, Deregister and Wake may be called concurrently with Poll; each
// performs its own kevent call instead of batching into a changelist.
type Poller struct {
	kq int

	wakeupToken uint32

	eventlist []unix.Kevent_t

	closed uint32
}

func NewPoller(wakeupToken uint32) (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	// A user-filter event acts as the wake primitive; it never maps to a
	// file descriptor.
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  uint64(kq),
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		unix.Close(kq)
		return nil, os.NewSyscallError("kevent_add_user", err)
	}

	return &Poller{kq: kq, wakeupToken: wakeupToken}, nil
}

func (p *Poller) Register(fd int, token uint32, flags PollFlags) error {
	var changes []unix.Kevent_t
	if flags&PollRead != 0 {
		changes = append(changes, keventFor(fd, unix.EVFILT_READ, token))
	}
	if flags&PollWrite != 0 {
		changes = append(changes, keventFor(fd, unix.EVFILT_WRITE, token))
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return os.NewSyscallError("kevent_add", err)
	}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// The fd may be registered for only one direction; ENOENT on the other
	// is expected.
	for _, change := range changes {
		_, err := unix.Kevent(p.kq, []unix.Kevent_t{change}, nil, nil)
		if err != nil && err != unix.ENOENT {
			return os.NewSyscallError("kevent_delete", err)
		}
	}
	return nil
}

func (p *Poller) Wake() error {
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{{
		Ident:  uint64(p.kq),
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	if err != nil {
		return os.NewSyscallError("kevent_trigger", err)
	}
	return nil
}

func (p *Poller) Poll(events []Event, timeoutMs int) (int, error) {
	if len(p.eventlist) < len(events) {
		p.eventlist = make([]unix.Kevent_t, len(events))
	}

	var timeout *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		timeout = &ts
	}

	n, err := unix.Kevent(p.kq, nil, p.eventlist[:len(events)], timeout)
	if err == unix.EINTR {
		return 0, ErrInterrupted
	}
	if err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		ev := &p.eventlist[i]

		if ev.Filter == unix.EVFILT_USER {
			events[i] = Event{Token: p.wakeupToken}
			continue
		}

		var flags PollFlags
		switch ev.Filter {
		case unix.EVFILT_READ:
			flags = PollRead
			if ev.Flags&unix.EV_EOF != 0 {
				flags |= PollReadHup
			}
		case unix.EVFILT_WRITE:
			flags = PollWrite
			if ev.Flags&unix.EV_EOF != 0 {
				flags |= PollWriteHup
			}
		}

		events[i] = Event{
			Token: uint32(uintptr(unsafe.Pointer(ev.Udata))),
			Flags: flags,
		}
	}

	return n, nil
}

func (p *Poller) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return io.EOF
	}
	return unix.Close(p.kq)
}

func keventFor(fd int, filter int16, token uint32) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		/* #nosec G103 -- token is an integer smuggled through udata, never dereferenced */
		Udata: (*byte)(unsafe.Pointer(uintptr(token))),
	}
}
