//go:build !linux && !darwin && !freebsd && !dragonfly

package internal

import "errors"

// ErrUnsupportedPlatform is returned by NewPoller on platforms without a poll
// backend.
var ErrUnsupportedPlatform = errors.New("reactor: this platform is not supported")

// Poller on unsupported platforms exists only so the package compiles; the
// constructor always fails, so no method is ever reached.
type Poller struct{}

func NewPoller(wakeupToken uint32) (*Poller, error) {
	return nil, ErrUnsupportedPlatform
}

func (p *Poller) Register(fd int, token uint32, flags PollFlags) error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Deregister(fd int) error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Wake() error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Poll(events []Event, timeoutMs int) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func (p *Poller) Close() error {
	return ErrUnsupportedPlatform
}
