package reactor

import (
	"sync"

	"github.com/riftlabs/reactor/reactorerrors"
	"github.com/riftlabs/reactor/slab"
)

// dispatcher serializes slot allocation against shutdown. Allocation and
// shutdown checks share the read lock so registrations from many goroutines
// never contend with each other; only the one-time shutdown transition takes
// the write lock.
type dispatcher struct {
	mu         sync.RWMutex
	allocator  slab.Allocator[*ScheduledIo]
	isShutdown bool
}

func newDispatcher(allocator slab.Allocator[*ScheduledIo]) *dispatcher {
	return &dispatcher{allocator: allocator}
}

func (d *dispatcher) allocate() (slab.Address, uint32, *ScheduledIo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.isShutdown {
		return 0, 0, nil, reactorerrors.ErrShutdown
	}
	addr, generation, io, ok := d.allocator.Allocate()
	if !ok {
		return 0, 0, nil, reactorerrors.ErrAtCapacity
	}
	return addr, generation, io, nil
}

func (d *dispatcher) release(addr slab.Address) {
	d.allocator.Remove(addr)
}

// shutdown flips the flag, reporting whether this caller performed the
// transition. Exactly one concurrent caller observes true.
func (d *dispatcher) shutdown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isShutdown {
		return false
	}
	d.isShutdown = true
	return true
}
