package device

import (
	"fmt"
	"maps"

	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

// Warehouse is the unbounded sink for finished goods. It only accepts
// products.
type Warehouse struct {
	base
	received map[string]int
}

var (
	_ Device    = (*Warehouse)(nil)
	_ Emptyable = (*Warehouse)(nil)
	_ Pushable  = (*Warehouse)(nil)
)

func NewWarehouse(env *sim.Env, id string) *Warehouse {
	return &Warehouse{
		base:     newBase(env, id, KindWarehouse, nil, BufferDefault),
		received: make(map[string]int),
	}
}

func (w *Warehouse) IsFull() bool { return false }

func (w *Warehouse) Push(_ *sim.Proc, prod *product.Product, buffer string) error {
	if err := w.pushNow(prod, buffer); err != nil {
		return err
	}
	w.received[prod.Type]++
	prod.AddHistory(w.env.Now(), fmt.Sprintf("Stored in %s", w.id))
	return nil
}

// Received returns the number of stored products per product type.
func (w *Warehouse) Received() map[string]int {
	return maps.Clone(w.received)
}

// RawMaterial is the unbounded source of new products. It is the only kind
// that hands out a specific product by id.
type RawMaterial struct {
	base
	created int
}

var (
	_ Device    = (*RawMaterial)(nil)
	_ Emptyable = (*RawMaterial)(nil)
	_ Poppable  = (*RawMaterial)(nil)
)

func NewRawMaterial(env *sim.Env, id string) *RawMaterial {
	return &RawMaterial{base: newBase(env, id, KindRawMaterial, nil, BufferDefault)}
}

func (r *RawMaterial) IsFull() bool { return false }

// CreateRawMaterial makes a new product and stores it.
func (r *RawMaterial) CreateRawMaterial(productType string, at float64, opts ...product.Option) *product.Product {
	prod := product.New(productType, r.id, at, opts...)
	// unbounded, cannot fail
	_ = r.Add(prod, "")
	r.created++
	return prod
}

// Created returns how many products this source made.
func (r *RawMaterial) Created() int { return r.created }

// Pop hands out the product with id selector, or the head when selector is
// empty.
func (r *RawMaterial) Pop(buffer, selector string) (*product.Product, error) {
	if selector == "" {
		return r.popHead(buffer)
	}
	store, err := r.buffer(buffer)
	if err != nil {
		return nil, err
	}
	if store.IsEmpty() {
		return nil, fmt.Errorf("%s %s: %w", r.id, bufferLabel(buffer), ErrEmpty)
	}
	prod, ok := store.Remove(func(p *product.Product) bool { return p.ID == selector })
	if !ok {
		return nil, fmt.Errorf("%s has no product %s: %w", r.id, selector, ErrNotFound)
	}
	return prod, nil
}
