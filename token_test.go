package reactor

import (
	"testing"

	"github.com/riftlabs/reactor/slab"
)

func TestTokenRoundTrip(t *testing.T) {
	addrs := []slab.Address{0, 1, 31, 32, 1000, 1<<24 - 1}
	for generation := uint32(0); generation < 1<<slab.GenerationBits; generation++ {
		for _, addr := range addrs {
			token := PackToken(generation, addr)
			if token.Address() != addr {
				t.Fatalf("address corrupted: packed %d, got %d", addr, token.Address())
			}
			if token.Generation() != generation {
				t.Fatalf("generation corrupted: packed %d, got %d", generation, token.Generation())
			}
		}
	}
}

func TestTokenSentinelsNeverCollide(t *testing.T) {
	// Sentinels occupy bit 31; packing can only produce bits 0..30.
	for generation := uint32(0); generation < 1<<slab.GenerationBits; generation++ {
		for _, addr := range []slab.Address{0, 1, 1<<24 - 1} {
			token := PackToken(generation, addr)
			if token == TokenWakeup || token == TokenSignal {
				t.Fatalf("pack(%d, %d) collides with a sentinel", generation, addr)
			}
		}
	}

	if TokenWakeup == TokenSignal {
		t.Fatal("sentinels collide with each other")
	}
}

func TestTokenGenerationBitsMatchScheduledIo(t *testing.T) {
	// The driver hands raw tokens to SetReadiness; the generation must sit
	// at the same bit positions in both words for the check to work.
	io := &ScheduledIo{}
	io.Reset(5)

	token := PackToken(5, 123)
	if err := io.SetReadiness(token, TickSet(1), func(r Ready) Ready { return r }); err != nil {
		t.Fatalf("matching generation rejected: %v", err)
	}
}
