//go:build linux || darwin || freebsd || dragonfly

package internal

import (
	"os"

	"golang.org/x/sys/unix"
)

// Pipe is a plain fd pair. The read end gets registered with a Poller (signal
// delivery routes through one of these); the write end is handed to whatever
// produces the notifications.
type Pipe struct {
	pipe [2]int
}

func NewPipe() (*Pipe, error) {
	p := &Pipe{}
	if err := unix.Pipe(p.pipe[:]); err != nil {
		return nil, os.NewSyscallError("pipe", err)
	}
	return p, nil
}

func (p *Pipe) SetReadNonblock() error {
	if err := unix.SetNonblock(p.pipe[0], true); err != nil {
		return os.NewSyscallError("pipe read set_nonblock", err)
	}
	return nil
}

func (p *Pipe) SetWriteNonblock() error {
	if err := unix.SetNonblock(p.pipe[1], true); err != nil {
		return os.NewSyscallError("pipe write set_nonblock", err)
	}
	return nil
}

func (p *Pipe) Write(b []byte) (int, error) {
	return unix.Write(p.pipe[1], b)
}

func (p *Pipe) Read(b []byte) (int, error) {
	return unix.Read(p.pipe[0], b)
}

func (p *Pipe) ReadFd() int {
	return p.pipe[0]
}

func (p *Pipe) WriteFd() int {
	return p.pipe[1]
}

func (p *Pipe) Close() error {
	if err := unix.Close(p.pipe[0]); err != nil {
		return err
	}
	return unix.Close(p.pipe[1])
}
