//go:build linux || darwin || freebsd || dragonfly

package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/riftlabs/reactor/internal"
	"github.com/riftlabs/reactor/slab"
)

func setupDriverTest(t *testing.T) (*Driver, *Handle) {
	t.Helper()
	driver, handle, err := New(DefaultEvents)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { driver.Close() })
	return driver, handle
}

func testPipe(t *testing.T) *internal.Pipe {
	t.Helper()
	pipe, err := internal.NewPipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pipe.Close() })
	return pipe
}

func TestDispatchReadableEvent(t *testing.T) {
	driver, handle := setupDriverTest(t)
	pipe := testPipe(t)

	reg, err := handle.AddSource(pipe.ReadFd(), InterestRead)
	if err != nil {
		t.Fatal(err)
	}

	var woken Ready
	if _, err := reg.Shared().RegisterWaiter(InterestRead, func(r Ready) { woken = r }); err != nil {
		t.Fatal(err)
	}

	if _, err := pipe.Write([]byte{1}); err != nil {
		t.Fatal(err)
	}

	driver.ParkTimeout(time.Second)

	if woken&ReadyReadable == 0 {
		t.Fatalf("waiter woken with %s, want readable", woken)
	}
	if n := handle.Metrics().ReadyCount(); n != 1 {
		t.Fatalf("ready count %d, want 1", n)
	}
	if ev := reg.Shared().Readiness(InterestRead); ev.Ready&ReadyReadable == 0 {
		t.Fatal("readiness not recorded on the slot")
	}
}

func TestStaleEventDropped(t *testing.T) {
	driver, handle := setupDriverTest(t)
	pipe := testPipe(t)

	reg, err := handle.AddSource(pipe.ReadFd(), InterestRead)
	if err != nil {
		t.Fatal(err)
	}
	oldToken := reg.Token()

	if err := handle.DeregisterSource(reg); err != nil {
		t.Fatal(err)
	}

	// The freed slot is reused for a different resource.
	pipe2 := testPipe(t)
	reg2, err := handle.AddSource(pipe2.ReadFd(), InterestRead)
	if err != nil {
		t.Fatal(err)
	}
	if reg2.Token().Address() != oldToken.Address() {
		t.Fatalf("expected slot reuse, got address %d vs %d",
			reg2.Token().Address(), oldToken.Address())
	}
	if reg2.Token() == oldToken {
		t.Fatal("reused slot produced an identical token")
	}

	fired := false
	if _, err := reg2.Shared().RegisterWaiter(InterestRead, func(Ready) { fired = true }); err != nil {
		t.Fatal(err)
	}

	// A late event carrying the old token must not touch the new occupant.
	driver.dispatch(oldToken, ReadyReadable)

	if fired {
		t.Fatal("stale event woke the new occupant")
	}
	if ev := reg2.Shared().Readiness(InterestRead); ev.Ready != 0 {
		t.Fatalf("stale event mutated the new occupant: %s", ev.Ready)
	}

	// The current token still dispatches.
	driver.dispatch(reg2.Token(), ReadyReadable)
	if !fired {
		t.Fatal("current token did not dispatch")
	}
}

func TestUnknownSlotEventDropped(t *testing.T) {
	driver, handle := setupDriverTest(t)
	pipe := testPipe(t)

	reg, err := handle.AddSource(pipe.ReadFd(), InterestRead)
	if err != nil {
		t.Fatal(err)
	}
	token := reg.Token()
	if err := handle.DeregisterSource(reg); err != nil {
		t.Fatal(err)
	}

	// Removed but not reused: the lookup misses and nothing happens.
	driver.dispatch(token, ReadyReadable)
}

func TestUnparkLiveness(t *testing.T) {
	driver, handle := setupDriverTest(t)

	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		handle.Unpark()
	}()
	go func() {
		driver.Park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unpark did not release a blocked turn")
	}
}

func TestUnparkBeforePark(t *testing.T) {
	driver, handle := setupDriverTest(t)

	handle.Unpark()

	// The pending wake must make this return promptly even with no timeout.
	done := make(chan struct{})
	go func() {
		driver.Park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn blocked despite a pending unpark")
	}
}

func TestParkTimeoutBounded(t *testing.T) {
	driver, _ := setupDriverTest(t)

	start := time.Now()
	driver.ParkTimeout(20 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("bounded park blocked for %v", elapsed)
	}
}

func TestTickWraparound(t *testing.T) {
	driver, _ := setupDriverTest(t)

	// Enough turns to wrap the 8-bit tick twice, crossing the compaction
	// threshold both times.
	for i := 0; i < 2*256; i++ {
		driver.ParkTimeout(0)
	}
}

func TestCompactionCadence(t *testing.T) {
	driver, _ := setupDriverTest(t)

	// Materialize a second slab page and free every slot on it, so the next
	// compaction has something observable to release.
	inflate := func() {
		t.Helper()
		var addrs []slab.Address
		for i := 0; i < 40; i++ {
			addr, _, _, ok := driver.resources.Allocate()
			if !ok {
				t.Fatalf("allocation %d failed", i)
			}
			addrs = append(addrs, addr)
		}
		for _, addr := range addrs {
			driver.resources.Remove(addr)
		}
	}

	inflate()
	inflated := driver.resources.Reserved()

	// Compaction must land exactly once per tick wrap, nowhere else.
	var compactedAt []int
	for turn := 1; turn <= 2*256; turn++ {
		driver.ParkTimeout(0)
		if driver.resources.Reserved() < inflated {
			compactedAt = append(compactedAt, turn)
			inflate()
			if got := driver.resources.Reserved(); got != inflated {
				t.Fatalf("reserved %d slots after re-inflating, want %d", got, inflated)
			}
		}
	}

	if len(compactedAt) != 2 || compactedAt[0] != 255 || compactedAt[1] != 255+256 {
		t.Fatalf("compaction ran at turns %v, want [255 511]", compactedAt)
	}
}

func TestPostRunsOnDriverTurn(t *testing.T) {
	driver, handle := setupDriverTest(t)

	ran := make([]bool, 3)
	var wg sync.WaitGroup
	for i := range ran {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			handle.Post(func() { ran[i] = true })
		}()
	}
	wg.Wait()

	driver.ParkTimeout(time.Second)

	for i, ok := range ran {
		if !ok {
			t.Fatalf("posted closure %d did not run", i)
		}
	}
}

func TestShutdownReleasesEverySlotOnce(t *testing.T) {
	driver, handle := setupDriverTest(t)

	var mu sync.Mutex
	released := make(map[int]int)

	var pipes []*internal.Pipe
	for i := 0; i < 5; i++ {
		pipe := testPipe(t)
		pipes = append(pipes, pipe)

		reg, err := handle.AddSource(pipe.ReadFd(), InterestRead)
		if err != nil {
			t.Fatal(err)
		}
		i := i
		if _, err := reg.Shared().RegisterWaiter(InterestRead, func(Ready) {
			mu.Lock()
			released[i]++
			mu.Unlock()
		}); err != nil {
			t.Fatal(err)
		}
	}

	driver.Shutdown()
	driver.Shutdown()

	if len(released) != len(pipes) {
		t.Fatalf("%d slots released, want %d", len(released), len(pipes))
	}
	for i, n := range released {
		if n != 1 {
			t.Fatalf("slot %d released %d times", i, n)
		}
	}
}

func TestSignalRouting(t *testing.T) {
	driver, handle := setupDriverTest(t)

	if !handle.SupportsSignals() {
		t.Skip("no signal routing on this platform")
	}

	pipe := testPipe(t)
	if err := pipe.SetWriteNonblock(); err != nil {
		t.Fatal(err)
	}
	if err := handle.RegisterSignalReceiver(pipe.ReadFd()); err != nil {
		t.Fatal(err)
	}

	if driver.ConsumeSignalReady() {
		t.Fatal("signal flag set before any signal")
	}

	// Two deliveries collapse into one notification.
	if _, err := pipe.Write([]byte{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := pipe.Write([]byte{1}); err != nil {
		t.Fatal(err)
	}

	driver.ParkTimeout(time.Second)

	if !driver.ConsumeSignalReady() {
		t.Fatal("signal event not flagged")
	}
	if driver.ConsumeSignalReady() {
		t.Fatal("signal flag not cleared by consumption")
	}

	// No slot was allocated for the receiver.
	if n := handle.Metrics().FdCount(); n != 0 {
		t.Fatalf("signal receiver counted as a resource: %d", n)
	}
}
