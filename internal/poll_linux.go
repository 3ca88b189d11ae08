//go:build linux

package internal

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Poller is the epoll backend. Register, Deregister and Wake are safe to call
// from any goroutine, including while another goroutine is blocked in Poll;
// epoll_ctl and epoll_wait do not exclude each other.
type Poller struct {
	// fd is the file descriptor returned by epoll_create1.
	fd int

	// waker unblocks a Poll in flight when written to. Its read end is
	// registered under wakeupToken, so the wakeup surfaces as an ordinary
	// event the caller can recognize.
	waker *EventFd

	wakeupToken uint32

	// epollEvents is the kernel-facing buffer, resized to match whatever
	// event slice the caller brings.
	epollEvents []unix.EpollEvent

	drainBuf [8]byte

	closed uint32
}

func NewPoller(wakeupToken uint32) (*Poller, error) {
	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	eventFd, err := NewEventFd(true)
	if err != nil {
		unix.Close(epollFd)
		return nil, err
	}

	p := &Poller{
		fd:          epollFd,
		waker:       eventFd,
		wakeupToken: wakeupToken,
	}

	if err := p.Register(eventFd.Fd(), wakeupToken, PollRead); err != nil {
		eventFd.Close()
		unix.Close(epollFd)
		return nil, err
	}

	return p, nil
}

// Register adds fd under token for the given interest. The token rides in the
// epoll data word and comes back verbatim on every event for this fd.
func (p *Poller) Register(fd int, token uint32, flags PollFlags) error {
	ev := unix.EpollEvent{
		Events: toEpoll(flags),
		Fd:     int32(token),
	}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl_add", err)
	}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return os.NewSyscallError("epoll_ctl_del", err)
	}
	return nil
}

// Wake makes the current or next Poll return promptly. Wakes coalesce: the
// eventfd counter is drained in one go when the wakeup event is seen.
func (p *Poller) Wake() error {
	_, err := p.waker.Write(1)
	if err == unix.EAGAIN {
		// Counter saturated; the pending wakeup has not been consumed yet,
		// which is all a wake needs.
		return nil
	}
	return err
}

// Poll blocks for at most timeoutMs (-1 blocks indefinitely, 0 polls) and
// fills events with whatever the kernel reports, in kernel order. A wait cut
// short by a signal comes back as ErrInterrupted.
func (p *Poller) Poll(events []Event, timeoutMs int) (int, error) {
	if len(p.epollEvents) < len(events) {
		p.epollEvents = make([]unix.EpollEvent, len(events))
	}

	n, err := unix.EpollWait(p.fd, p.epollEvents[:len(events)], timeoutMs)
	if err == unix.EINTR {
		return 0, ErrInterrupted
	}
	if err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		ev := &p.epollEvents[i]
		token := uint32(ev.Fd)
		if token == p.wakeupToken {
			p.drainWaker()
		}
		events[i] = Event{Token: token, Flags: fromEpoll(ev.Events)}
	}

	return n, nil
}

func (p *Poller) drainWaker() {
	for {
		if _, err := p.waker.Read(p.drainBuf[:]); err != nil {
			break
		}
	}
}

func (p *Poller) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return io.EOF
	}
	p.waker.Close()
	return unix.Close(p.fd)
}

func toEpoll(flags PollFlags) uint32 {
	var e uint32
	if flags&PollRead != 0 {
		e |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if flags&PollWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(e uint32) PollFlags {
	var flags PollFlags
	if e&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		flags |= PollRead
	}
	if e&unix.EPOLLOUT != 0 {
		flags |= PollWrite
	}
	if e&unix.EPOLLRDHUP != 0 {
		flags |= PollRead | PollReadHup
	}
	if e&unix.EPOLLHUP != 0 {
		flags |= PollRead | PollWrite | PollReadHup | PollWriteHup
	}
	if e&unix.EPOLLERR != 0 {
		flags |= PollRead | PollWrite
	}
	return flags
}
