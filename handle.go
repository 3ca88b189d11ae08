package reactor

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/riftlabs/reactor/internal"
	"github.com/riftlabs/reactor/slab"
)

// Handle is the thread-shared side of the driver pair. Any goroutine may
// register and deregister resources, unpark a blocked turn, post work to the
// driver goroutine or initiate shutdown. The Handle stays valid for the
// lifetime of its Driver.
type Handle struct {
	poller   *internal.Poller
	dispatch *dispatcher
	metrics  Metrics

	postedMu sync.Mutex
	posted   *queue.Queue
}

// Registration ties together everything AddSource produced for one resource:
// the address and token under which events arrive, and the shared readiness
// slot. The owner keeps it to consume readiness and to deregister later.
type Registration struct {
	fd    int
	token Token
	addr  slab.Address
	io    *ScheduledIo
}

func (r *Registration) Token() Token { return r.token }

// Shared returns the readiness slot updated by the driver on every event for
// this resource.
func (r *Registration) Shared() *ScheduledIo { return r.io }

// AddSource registers fd with the reactor for the given interest. The slot
// allocated for it and the generation-stamped token are bound together for
// the lifetime of the registration; an event carrying a token from an older
// occupancy of the same slot will never reach the returned ScheduledIo.
func (h *Handle) AddSource(fd int, interest Interest) (*Registration, error) {
	addr, generation, io, err := h.dispatch.allocate()
	if err != nil {
		return nil, err
	}

	token := PackToken(generation, addr)

	if err := h.poller.Register(fd, uint32(token), interest.pollFlags()); err != nil {
		h.dispatch.release(addr)
		return nil, err
	}

	h.metrics.incrFdCount()

	return &Registration{fd: fd, token: token, addr: addr, io: io}, nil
}

// DeregisterSource removes the resource from the OS backend and returns its
// slot to the store. An event already in flight for it is dropped by the
// driver: the lookup misses, or the generation check fails once the slot is
// reused.
func (h *Handle) DeregisterSource(r *Registration) error {
	if err := h.poller.Deregister(r.fd); err != nil {
		return err
	}

	h.dispatch.release(r.addr)
	h.metrics.decrFdCount()
	return nil
}

// Unpark forces a driver blocked in a turn to wake up, or makes the next turn
// return immediately if none is blocked. Edge-triggered: any number of calls
// before the wake is consumed collapse into one.
func (h *Handle) Unpark() {
	if err := h.poller.Wake(); err != nil {
		panic("reactor: failed to wake the I/O driver: " + err.Error())
	}
}

// Post queues fn to run on the driver goroutine during its next turn and
// unparks it. Safe for concurrent use.
func (h *Handle) Post(fn func()) {
	h.postedMu.Lock()
	h.posted.Add(fn)
	h.postedMu.Unlock()

	h.Unpark()
}

// Metrics exposes the driver's counters.
func (h *Handle) Metrics() *Metrics {
	return &h.metrics
}

// shutdown wins the dispatcher transition at most once. The caller that gets
// true owns walking the live slots.
func (h *Handle) shutdown() bool {
	return h.dispatch.shutdown()
}

// runPosted executes queued closures. Only the driver goroutine calls this,
// from inside a turn.
func (h *Handle) runPosted() {
	var fns []func()

	h.postedMu.Lock()
	for h.posted.Length() > 0 {
		fns = append(fns, h.posted.Remove().(func()))
	}
	h.postedMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
