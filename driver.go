package reactor

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/eapache/queue"

	"github.com/riftlabs/reactor/internal"
	"github.com/riftlabs/reactor/slab"
)

// How often to compact the resource slab, in turns. The tick wraps at the
// same width, so compaction lands once per wrap.
const compactInterval = 255

// DefaultEvents is a reasonable event buffer size for most workloads.
const DefaultEvents = 1024

// Driver is the single-owner event loop: it owns the OS poll object, the
// reusable event buffer and the resource slab, and executes one turn (block
// then dispatch) per Park call. A Driver must only ever be polled by one
// goroutine at a time; everything shareable lives on its Handle.
type Driver struct {
	// Counts turns. Wrapping is fine: the tick only distinguishes
	// written-this-turn from not, never orders distant turns.
	tick uint8

	// Set when an event with TokenSignal arrives, cleared by
	// ConsumeSignalReady.
	signalReady bool

	// Reused across turns.
	events []internal.Event

	// State for every resource registered with this driver.
	resources *slab.Slab[*ScheduledIo]

	// The system event queue.
	poll *internal.Poller

	handle *Handle

	// Wall time spent per turn, microseconds.
	turnHist *hdrhistogram.Histogram
}

// New creates a driver/handle pair wired to a fresh OS poll object. nevents
// bounds how many events one turn can dispatch.
func New(nevents int) (*Driver, *Handle, error) {
	poller, err := internal.NewPoller(uint32(TokenWakeup))
	if err != nil {
		return nil, nil, err
	}

	resources := slab.New(func() *ScheduledIo { return &ScheduledIo{} })

	handle := &Handle{
		poller:   poller,
		dispatch: newDispatcher(resources.Allocator()),
		posted:   queue.New(),
	}

	driver := &Driver{
		events:    make([]internal.Event, nevents),
		resources: resources,
		poll:      poller,
		handle:    handle,
		turnHist:  hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
	}

	return driver, handle, nil
}

// Park blocks until an event arrives or another goroutine calls Unpark, then
// dispatches everything the kernel reported.
func (d *Driver) Park() {
	d.turn(-1)
}

// ParkTimeout is Park bounded by maxWait.
func (d *Driver) ParkTimeout(maxWait time.Duration) {
	timeoutMs := int(maxWait / time.Millisecond)
	if maxWait > 0 && timeoutMs == 0 {
		timeoutMs = 1
	}
	d.turn(timeoutMs)
}

// Shutdown closes the reactor. The first caller to win the dispatcher
// transition walks every live slot and releases its waiters; shutdown racing
// an in-flight turn is safe because only the winner walks.
func (d *Driver) Shutdown() {
	if d.handle.shutdown() {
		d.resources.ForEach(func(_ slab.Address, io *ScheduledIo) {
			io.Shutdown()
		})
	}
}

// Close releases the OS poll object. The driver must not be parked again.
func (d *Driver) Close() error {
	return d.poll.Close()
}

// TurnHistogram exposes the turn-duration histogram. Only meaningful between
// parks, from the goroutine that owns the driver.
func (d *Driver) TurnHistogram() *hdrhistogram.Histogram {
	return d.turnHist
}

func (d *Driver) turn(timeoutMs int) {
	d.tick++

	if d.tick == compactInterval {
		d.resources.Compact()
	}

	start := time.Now()

	n, err := d.poll.Poll(d.events, timeoutMs)
	switch {
	case err == nil:
	case err == internal.ErrInterrupted:
		// A signal interrupted the wait; nothing was delivered. The next
		// turn simply retries.
		n = 0
	default:
		// A broken multiplexer cannot be recovered from safely.
		panic(fmt.Sprintf("reactor: unexpected error when polling the I/O driver: %v", err))
	}

	readyCount := 0
	for i := 0; i < n; i++ {
		ev := &d.events[i]
		token := Token(ev.Token)

		switch token {
		case TokenWakeup:
			// The event's only purpose was to unblock the wait; run
			// whatever was posted for this goroutine and move on.
			d.handle.runPosted()
		case TokenSignal:
			d.signalReady = true
		default:
			d.dispatch(token, readyFromPoll(ev.Flags))
			readyCount++
		}
	}

	d.handle.metrics.incrReadyCountBy(int64(readyCount))
	_ = d.turnHist.RecordValue(time.Since(start).Microseconds())
}

func (d *Driver) dispatch(token Token, ready Ready) {
	io, ok := d.resources.Get(token.Address())
	if !ok {
		// Removed and not yet reused; the resource is gone.
		return
	}

	err := io.SetReadiness(token, TickSet(d.tick), func(current Ready) Ready {
		return current | ready
	})
	if err != nil {
		// Token no longer valid: the slot was reused since registration.
		// An expected race under concurrent teardown, not a fault.
		return
	}

	io.Wake(ready)
}
