//go:build !linux && !darwin && !freebsd && !dragonfly

package reactor

import "github.com/riftlabs/reactor/internal"

// SupportsSignals reports whether this platform can route signal delivery
// through the reactor.
func (h *Handle) SupportsSignals() bool {
	return false
}

// RegisterSignalReceiver fails on platforms without a poll backend.
func (h *Handle) RegisterSignalReceiver(fd int) error {
	return internal.ErrUnsupportedPlatform
}
