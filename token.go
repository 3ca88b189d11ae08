package reactor

import "github.com/riftlabs/reactor/slab"

// Token is the opaque word exchanged with the OS backend to identify which
// slot an event belongs to. The low 24 bits hold the slot address, the next
// 7 the slot's generation at registration time. Bit 31 is never produced by
// packing; the two sentinels live there, so they cannot collide with any
// packed value.
type Token uint32

const (
	addressBits = 24
	addressMask = 1<<addressBits - 1

	generationShift = addressBits
	generationMask  = 1<<slab.GenerationBits - 1
)

const (
	// TokenWakeup tags the event produced by Handle.Unpark. It carries no
	// resource payload; its only purpose is to unblock a turn.
	TokenWakeup Token = 1 << 31

	// TokenSignal tags events from the registered signal receiver.
	TokenSignal Token = 1<<31 | 1
)

// PackToken combines a generation and an address. Callers bound the slab so
// addresses always fit the field; values are masked, never validated.
func PackToken(generation uint32, addr slab.Address) Token {
	return Token((generation&generationMask)<<generationShift | uint32(addr)&addressMask)
}

func (t Token) Address() slab.Address {
	return slab.Address(uint32(t) & addressMask)
}

func (t Token) Generation() uint32 {
	return uint32(t) >> generationShift & generationMask
}
