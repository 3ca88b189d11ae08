// Package slab is a page-backed store of reusable slots addressed by dense
// integer addresses. Pages double in size and are materialized on first use,
// so the cost of a mostly-idle store is one page. An address stays valid for
// exactly as long as its slot is live; removal advances the slot's generation
// so that handles derived from a previous occupancy can be told apart from
// the current one.
package slab

import (
	"math/bits"
	"sync"
)

const (
	// GenerationBits is the width of the per-slot reuse counter. It is part
	// of the binary contract with whatever packs generations into tokens.
	GenerationBits = 7

	generationMask = 1<<GenerationBits - 1

	// firstPageSize slots on page 0, doubling per page. 19 pages keeps the
	// total just under 1<<24 addresses, the widest address a token can carry.
	firstPageSize = 32
	numPages      = 19
)

// Address names one slot. Addresses are reused after removal.
type Address uint32

// Entry is stored by value-semantics holders of the slab; Reset is called
// every time a slot is handed out, with the generation the occupancy runs
// under.
type Entry interface {
	Reset(generation uint32)
}

type slot[T Entry] struct {
	value      T
	generation uint32
	live       bool
	created    bool
}

type page[T Entry] struct {
	mu sync.Mutex

	// Materialized lazily to size on first allocation that reaches this page.
	slots []slot[T]

	// Indexes freed by Remove, reused LIFO.
	free []uint32

	// High-water mark of never-used indexes.
	next uint32

	size   uint32
	offset uint32
	used   uint32
}

// Slab stores values of type T. All methods are safe for concurrent use;
// Compact must only run from a single goroutine at a time (the driver's),
// though it may overlap with every other method.
type Slab[T Entry] struct {
	pages [numPages]page[T]
	newT  func() T
}

// New builds an empty slab. newT constructs a fresh entry the first time a
// slot is used; reused slots keep their entry and only see Reset.
func New[T Entry](newT func() T) *Slab[T] {
	s := &Slab[T]{newT: newT}
	size := uint32(firstPageSize)
	offset := uint32(0)
	for i := range s.pages {
		s.pages[i].size = size
		s.pages[i].offset = offset
		offset += size
		size <<= 1
	}
	return s
}

// Allocate hands out a free slot, returning its address, the generation this
// occupancy runs under and the shared entry. ok is false when every page is
// full.
func (s *Slab[T]) Allocate() (addr Address, generation uint32, value T, ok bool) {
	for i := range s.pages {
		p := &s.pages[i]
		p.mu.Lock()
		if p.used == p.size {
			p.mu.Unlock()
			continue
		}
		if p.slots == nil {
			p.slots = make([]slot[T], p.size)
		}

		var idx uint32
		if n := len(p.free); n > 0 {
			idx = p.free[n-1]
			p.free = p.free[:n-1]
		} else {
			idx = p.next
			p.next++
		}

		sl := &p.slots[idx]
		if !sl.created {
			sl.value = s.newT()
			sl.created = true
		}
		sl.live = true
		sl.value.Reset(sl.generation)
		p.used++

		addr = Address(p.offset + idx)
		generation = sl.generation
		value = sl.value
		p.mu.Unlock()
		return addr, generation, value, true
	}
	ok = false
	return
}

// Get returns the entry at addr, or ok=false if the address was never
// allocated or has been removed and not yet reused.
func (s *Slab[T]) Get(addr Address) (value T, ok bool) {
	p, idx := s.locate(addr)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil || !p.slots[idx].live {
		return
	}
	return p.slots[idx].value, true
}

// Remove frees the slot at addr and advances its generation so stale handles
// are rejected on the next occupancy. Removing a non-live address is a no-op.
func (s *Slab[T]) Remove(addr Address) {
	p, idx := s.locate(addr)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil || !p.slots[idx].live {
		return
	}
	sl := &p.slots[idx]
	sl.live = false
	sl.generation = (sl.generation + 1) & generationMask
	p.free = append(p.free, idx)
	p.used--
}

// ForEach visits every live slot exactly once.
func (s *Slab[T]) ForEach(fn func(Address, T)) {
	for i := range s.pages {
		p := &s.pages[i]
		p.mu.Lock()
		for idx := uint32(0); idx < p.next; idx++ {
			if p.slots[idx].live {
				fn(Address(p.offset+idx), p.slots[idx].value)
			}
		}
		p.mu.Unlock()
	}
}

// Compact releases the storage of pages with no live slots. Live addresses
// are never invalidated; page 0 is kept materialized since it is about to be
// reused anyway.
func (s *Slab[T]) Compact() {
	for i := 1; i < numPages; i++ {
		p := &s.pages[i]
		p.mu.Lock()
		if p.slots != nil && p.used == 0 {
			p.slots = nil
			p.free = p.free[:0]
			p.next = 0
		}
		p.mu.Unlock()
	}
}

// Reserved reports the number of slots currently backed by materialized
// pages, live or not. It shrinks only when Compact releases an empty page.
func (s *Slab[T]) Reserved() int {
	n := 0
	for i := range s.pages {
		p := &s.pages[i]
		p.mu.Lock()
		n += len(p.slots)
		p.mu.Unlock()
	}
	return n
}

// Len reports the number of live slots.
func (s *Slab[T]) Len() int {
	n := 0
	for i := range s.pages {
		p := &s.pages[i]
		p.mu.Lock()
		n += int(p.used)
		p.mu.Unlock()
	}
	return n
}

func (s *Slab[T]) locate(addr Address) (*page[T], uint32) {
	// Adding firstPageSize makes page boundaries powers of two, so the page
	// index falls out of the bit length.
	shifted := uint32(addr) + firstPageSize
	pageIdx := bits.Len32(shifted) - bits.Len32(firstPageSize)
	if pageIdx < 0 || pageIdx >= numPages {
		return nil, 0
	}
	p := &s.pages[pageIdx]
	return p, uint32(addr) - p.offset
}

// Allocator is a cheap handle for allocating and removing slots from any
// goroutine. All copies refer to the same slab.
type Allocator[T Entry] struct {
	s *Slab[T]
}

// Allocator returns a shareable allocation handle.
func (s *Slab[T]) Allocator() Allocator[T] {
	return Allocator[T]{s: s}
}

func (a Allocator[T]) Allocate() (Address, uint32, T, bool) {
	return a.s.Allocate()
}

func (a Allocator[T]) Remove(addr Address) {
	a.s.Remove(addr)
}
