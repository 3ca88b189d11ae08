//go:build linux || darwin || freebsd || dragonfly

// Measures driver turn latency under a synthetic event stream: one goroutine
// keeps a registered pipe readable while the main goroutine parks in a tight
// loop. Prints the turn-duration histogram the driver records and can serve
// fgprof profiles while running.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/felixge/fgprof"

	"github.com/riftlabs/reactor"
	"github.com/riftlabs/reactor/internal"
)

var (
	turns    = flag.Int("turns", 100_000, "number of turns to execute")
	interval = flag.Duration("interval", 10*time.Microsecond, "delay between event writes")
	profile  = flag.String("profile", "", "serve fgprof on this address, e.g. :6060")
)

func main() {
	flag.Parse()

	if *profile != "" {
		http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())
		go func() {
			if err := http.ListenAndServe(*profile, nil); err != nil {
				fmt.Fprintln(os.Stderr, "profile server:", err)
			}
		}()
	}

	driver, handle, err := reactor.New(reactor.DefaultEvents)
	if err != nil {
		panic(err)
	}
	defer driver.Close()

	pipe, err := internal.NewPipe()
	if err != nil {
		panic(err)
	}
	defer pipe.Close()
	if err := pipe.SetReadNonblock(); err != nil {
		panic(err)
	}

	reg, err := handle.AddSource(pipe.ReadFd(), reactor.InterestRead)
	if err != nil {
		panic(err)
	}

	stop := make(chan struct{})
	go func() {
		b := []byte{1}
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = pipe.Write(b)
			time.Sleep(*interval)
		}
	}()

	drain := make([]byte, 64)
	for i := 0; i < *turns; i++ {
		driver.Park()

		// Consume so the next turn blocks until the writer fires again.
		for {
			if _, err := pipe.Read(drain); err != nil {
				break
			}
		}
		reg.Shared().ClearReadiness(reg.Shared().Readiness(reactor.InterestRead))
	}
	close(stop)

	hist := driver.TurnHistogram()
	fmt.Printf("turns=%d events=%d\n", *turns, handle.Metrics().ReadyCount())
	fmt.Printf("turn latency (us): min=%d p50=%d p99=%d p99.9=%d max=%d\n",
		hist.Min(),
		hist.ValueAtQuantile(50),
		hist.ValueAtQuantile(99),
		hist.ValueAtQuantile(99.9),
		hist.Max(),
	)
}
