package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/riftlabs/reactor/reactorerrors"
)

// ScheduledIo is the readiness state of one registered resource. One lives in
// every slab slot and is shared between the driver (which unions readiness in
// during dispatch) and the resource's owner (which consumes it and registers
// waiters).
//
// All readiness state is packed into one atomic word:
//
//	| shutdown (1) | generation (7) | tick (8) | readiness (16) |
//
// The generation field sits at the same bit positions as in a Token, so a raw
// token can be checked against the word with one mask. A mismatch means the
// slot was reused since the token was packed and the update must not touch
// the new occupant.
type ScheduledIo struct {
	state atomic.Uint32

	mu      sync.Mutex
	waiters []*Waiter
}

const (
	stateReadinessMask = 0xffff
	stateTickShift     = 16
	stateTickMask      = 0xff
	stateShutdown      = 1 << 31
)

// Waiter is one registered wakeup. It fires at most once.
type Waiter struct {
	interest Interest
	fn       func(Ready)
}

// ReadyEvent is a snapshot of consumable readiness, tagged with the tick it
// was observed at so a later clear can detect that the driver wrote in the
// meantime.
type ReadyEvent struct {
	Tick       uint8
	Ready      Ready
	IsShutdown bool
}

// TickOp tells SetReadiness what to do with the stored tick: the driver sets
// it to the current turn; consumers clear readiness only if the tick still
// matches the one they observed, so a concurrent driver write wins.
type TickOp struct {
	clear bool
	tick  uint8
}

func TickSet(tick uint8) TickOp   { return TickOp{tick: tick} }
func TickClear(tick uint8) TickOp { return TickOp{clear: true, tick: tick} }

// Reset prepares the slot for a new occupancy under the given generation.
// Called by the slab with the slot's page lock held, never concurrently with
// a live occupancy.
func (s *ScheduledIo) Reset(generation uint32) {
	s.state.Store((generation & generationMask) << generationShift)
	s.mu.Lock()
	s.waiters = s.waiters[:0]
	s.mu.Unlock()
}

// Generation reports the occupancy the slot currently runs under.
func (s *ScheduledIo) Generation() uint32 {
	return s.state.Load() >> generationShift & generationMask
}

// SetReadiness applies f to the current readiness, stamping the stored tick
// per op. It fails with ErrStale when token's generation no longer matches
// the slot (the event belongs to a previous occupant) and with ErrShutdown
// once the slot is terminally closed. The token check is what keeps an event
// queued for a long-gone resource from corrupting whoever holds the slot now.
func (s *ScheduledIo) SetReadiness(token Token, op TickOp, f func(Ready) Ready) error {
	return s.setReadiness(uint32(token), true, op, f)
}

func (s *ScheduledIo) setReadiness(token uint32, checkToken bool, op TickOp, f func(Ready) Ready) error {
	for {
		current := s.state.Load()

		if current&stateShutdown != 0 {
			return reactorerrors.ErrShutdown
		}
		if checkToken && current>>generationShift&generationMask != token>>generationShift&generationMask {
			return reactorerrors.ErrStale
		}

		tick := uint8(current >> stateTickShift & stateTickMask)
		if op.clear && tick != op.tick {
			// The driver wrote since this tick was observed; the clear
			// would erase readiness the consumer has not seen.
			return reactorerrors.ErrStale
		}

		next := uint32(f(Ready(current&stateReadinessMask)) & stateReadinessMask)
		if !op.clear {
			tick = op.tick
		}
		next |= uint32(tick) << stateTickShift
		next |= current & (generationMask << generationShift)

		if s.state.CompareAndSwap(current, next) {
			return nil
		}
	}
}

// Readiness snapshots the readiness bits satisfying interest.
func (s *ScheduledIo) Readiness(interest Interest) ReadyEvent {
	current := s.state.Load()
	return ReadyEvent{
		Tick:       uint8(current >> stateTickShift & stateTickMask),
		Ready:      Ready(current&stateReadinessMask) & interest.Mask(),
		IsShutdown: current&stateShutdown != 0,
	}
}

// ClearReadiness consumes the readiness carried by ev. If the driver wrote a
// newer tick in the meantime the clear is skipped, so freshly reported
// readiness is never lost.
func (s *ScheduledIo) ClearReadiness(ev ReadyEvent) {
	mask := ev.Ready &^ (ReadyReadClosed | ReadyWriteClosed) // closed states are permanent
	_ = s.setReadiness(0, false, TickClear(ev.Tick), func(current Ready) Ready {
		return current &^ mask
	})
}

// RegisterWaiter arms fn to fire once readiness intersecting interest is
// dispatched. Registration after shutdown fails so callers never wait on a
// dead slot.
func (s *ScheduledIo) RegisterWaiter(interest Interest, fn func(Ready)) (*Waiter, error) {
	s.mu.Lock()
	if s.state.Load()&stateShutdown != 0 {
		s.mu.Unlock()
		return nil, reactorerrors.ErrShutdown
	}
	w := &Waiter{interest: interest, fn: fn}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()
	return w, nil
}

// CancelWaiter removes a registered waiter. A no-op if it already fired.
func (s *ScheduledIo) CancelWaiter(w *Waiter) {
	s.mu.Lock()
	for i, other := range s.waiters {
		if other == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// Wake fires every waiter whose interest intersects ready. Waiters are
// detached under the lock but invoked outside it, so a waiter may safely
// re-register from its own callback.
func (s *ScheduledIo) Wake(ready Ready) {
	var fired []*Waiter

	s.mu.Lock()
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.interest.Mask()&ready != 0 {
			fired = append(fired, w)
		} else {
			kept = append(kept, w)
		}
	}
	s.waiters = kept
	s.mu.Unlock()

	for _, w := range fired {
		w.fn(ready)
	}
}

// Shutdown terminally closes the slot and releases every waiter exactly once.
// Safe to call more than once; later calls find no waiters left.
func (s *ScheduledIo) Shutdown() {
	for {
		current := s.state.Load()
		if s.state.CompareAndSwap(current, current|stateShutdown) {
			break
		}
	}
	s.Wake(ReadyAll)
}
