package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/riftlabs/reactor/reactorerrors"
	"github.com/riftlabs/reactor/slab"
)

func newTestDispatcher() *dispatcher {
	s := slab.New(func() *ScheduledIo { return &ScheduledIo{} })
	return newDispatcher(s.Allocator())
}

func TestDispatcherAllocate(t *testing.T) {
	d := newTestDispatcher()

	addr, generation, io, err := d.allocate()
	if err != nil {
		t.Fatal(err)
	}
	if io == nil {
		t.Fatal("nil slot")
	}
	if io.Generation() != generation {
		t.Fatal("slot generation does not match the allocation")
	}

	d.release(addr)

	_, g1, _, err := d.allocate()
	if err != nil {
		t.Fatal(err)
	}
	if g1 != generation+1 {
		t.Fatalf("generation did not advance on reuse: %d -> %d", generation, g1)
	}
}

func TestDispatcherAllocateAfterShutdown(t *testing.T) {
	d := newTestDispatcher()

	if !d.shutdown() {
		t.Fatal("first shutdown must report performed")
	}

	_, _, _, err := d.allocate()
	if !errors.Is(err, reactorerrors.ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
}

func TestDispatcherShutdownOneWinner(t *testing.T) {
	d := newTestDispatcher()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.shutdown() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("%d goroutines observed the shutdown transition, want 1", winners.Load())
	}
}
