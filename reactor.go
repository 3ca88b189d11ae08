// Package reactor is the I/O readiness driver at the base of an asynchronous
// runtime. It multiplexes registered file descriptors onto one OS event queue
// (epoll on Linux, kqueue on the BSDs and macOS) and turns raw readiness
// events into wakeups a scheduler can consume.
//
// New returns a Driver/Handle pair. The Driver is single-owner: exactly one
// goroutine parks it at a time. The Handle is freely shared: registration,
// deregistration, unparking and shutdown initiation are safe from any
// goroutine.
//
//	driver, handle, err := reactor.New(reactor.DefaultEvents)
//	if err != nil {
//		// ...
//	}
//	reg, err := handle.AddSource(fd, reactor.InterestRead)
//	// ...
//	for {
//		driver.Park()
//	}
//
// Each registration is identified by a token packing the slot address with
// the slot's generation at registration time. The driver checks the
// generation on every dispatch, so an event queued for a since-removed
// resource can never mutate the state of a new resource reusing the same
// slot. Stale events are dropped silently; staleness is an expected outcome
// of concurrent teardown, not an error.
package reactor
