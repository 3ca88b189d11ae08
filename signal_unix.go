//go:build linux || darwin || freebsd || dragonfly

package reactor

import "github.com/riftlabs/reactor/internal"

// SupportsSignals reports whether this platform can route signal delivery
// through the reactor.
func (h *Handle) SupportsSignals() bool {
	return true
}

// RegisterSignalReceiver registers fd under the reserved signal token. Events
// on it set the driver's pending-signal flag instead of dispatching to a
// slot.
func (h *Handle) RegisterSignalReceiver(fd int) error {
	return h.poller.Register(fd, uint32(TokenSignal), internal.PollRead)
}
