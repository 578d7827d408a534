package device

import (
	"fmt"

	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

// Station is a processing cell with a single bounded buffer. Products being
// processed are locked and cannot be handed out.
type Station struct {
	base
	locked map[string]bool
}

var (
	_ Device    = (*Station)(nil)
	_ Emptyable = (*Station)(nil)
	_ Poppable  = (*Station)(nil)
	_ Pushable  = (*Station)(nil)
)

// NewStation creates a station whose buffer holds capacity products.
func NewStation(env *sim.Env, id string, capacity int) *Station {
	return &Station{
		base:   newBase(env, id, KindStation, map[string]int{BufferDefault: capacity}, BufferDefault),
		locked: make(map[string]bool),
	}
}

func (s *Station) IsFull() bool { return s.buffers[0].store.IsFull() }

// Lock marks a product as in process.
func (s *Station) Lock(productID string) { s.locked[productID] = true }

// Unlock releases a product locked by Lock.
func (s *Station) Unlock(productID string) { delete(s.locked, productID) }

// IsLocked reports whether a product is in process.
func (s *Station) IsLocked(productID string) bool { return s.locked[productID] }

// Pop hands out the head product unless it is locked. The selector is
// ignored.
func (s *Station) Pop(buffer, _ string) (*product.Product, error) {
	store, err := s.buffer(buffer)
	if err != nil {
		return nil, err
	}
	head, ok := store.Peek()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.id, bufferLabel(buffer), ErrEmpty)
	}
	if s.locked[head.ID] {
		return nil, fmt.Errorf("%s is processing %s: %w", s.id, head.ID, ErrLocked)
	}
	return s.popHead(buffer)
}

// Push stores prod, failing with ErrFull instead of waiting.
func (s *Station) Push(_ *sim.Proc, prod *product.Product, buffer string) error {
	return s.pushNow(prod, buffer)
}
