// Package device models the buffered plant equipment an AGV serves.
//
// Devices are not addressed by concrete type. Callers dispatch on Kind and on
// the capability interfaces a device satisfies: Emptyable, Poppable and
// Pushable. Removal never suspends; insertion into conveyors suspends until
// there is room.
package device

import (
	"errors"
	"fmt"

	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

var (
	// ErrEmpty is returned when popping from an empty buffer.
	ErrEmpty = errors.New("buffer is empty")
	// ErrFull is returned by non-blocking insertions into a full buffer.
	ErrFull = errors.New("buffer is full")
	// ErrLocked is returned when the selected product is being processed.
	ErrLocked = errors.New("product is locked")
	// ErrNotFound is returned when a selector matches no product.
	ErrNotFound = errors.New("product not found")
	// ErrUnknownBuffer is returned for buffer names the device does not have.
	ErrUnknownBuffer = errors.New("unknown buffer")
)

// Kind tags a device with the transfer semantics it follows.
type Kind string

const (
	KindStation              Kind = "station"
	KindConveyor             Kind = "conveyor"
	KindTripleBufferConveyor Kind = "triple_buffer_conveyor"
	KindQualityChecker       Kind = "quality_checker"
	KindWarehouse            Kind = "warehouse"
	KindRawMaterial          Kind = "raw_material"
)

// SupportsSelector reports whether Pop honours a product selector for
// devices of this kind. Every other kind always hands out the head product.
func (k Kind) SupportsSelector() bool {
	return k == KindRawMaterial
}

// Buffer names.
const (
	BufferDefault = "buffer"
	BufferOutput  = "output_buffer"
	BufferMain    = "main"
	BufferUpper   = "upper"
	BufferLower   = "lower"
)

// Device is implemented by every piece of equipment.
type Device interface {
	ID() string
	Kind() Kind
	// IsFull reports whether the device cannot take another product.
	IsFull() bool
}

// Emptyable devices report the emptiness of a named buffer. An empty name
// selects the device's default buffer.
type Emptyable interface {
	IsEmpty(buffer string) bool
}

// Poppable devices hand out a product without suspending. selector is a
// product id and is ignored unless the kind supports selection.
type Poppable interface {
	Pop(buffer, selector string) (*product.Product, error)
}

// Pushable devices accept a product. Push may suspend p until there is room.
type Pushable interface {
	Push(p *sim.Proc, prod *product.Product, buffer string) error
}

// Returnable devices take back a product that was just popped, restoring
// it at the head of the buffer it came from.
type Returnable interface {
	Return(prod *product.Product, buffer string) error
}

// Inspector exposes buffer contents for reporting.
type Inspector interface {
	Buffers() map[string][]string
}

type buffer struct {
	name  string
	store *sim.Store[*product.Product]
}

// base carries the buffers shared by all device kinds.
type base struct {
	env     *sim.Env
	id      string
	kind    Kind
	buffers []buffer
}

func newBase(env *sim.Env, id string, kind Kind, capacities map[string]int, order ...string) base {
	b := base{env: env, id: id, kind: kind}
	for _, name := range order {
		b.buffers = append(b.buffers, buffer{name: name, store: sim.NewStore[*product.Product](env, capacities[name])})
	}
	return b
}

func (b *base) ID() string { return b.id }

func (b *base) Kind() Kind { return b.kind }

// buffer resolves name, falling back to the first buffer when name is empty.
func (b *base) buffer(name string) (*sim.Store[*product.Product], error) {
	if name == "" {
		return b.buffers[0].store, nil
	}
	for _, buf := range b.buffers {
		if buf.name == name {
			return buf.store, nil
		}
	}
	return nil, fmt.Errorf("%s has no buffer %q: %w", b.id, name, ErrUnknownBuffer)
}

func (b *base) IsEmpty(name string) bool {
	s, err := b.buffer(name)
	return err != nil || s.IsEmpty()
}

// Len returns the number of products in a buffer.
func (b *base) Len(name string) int {
	s, err := b.buffer(name)
	if err != nil {
		return 0
	}
	return s.Len()
}

// Products returns the products held in a buffer, head first.
func (b *base) Products(name string) []*product.Product {
	s, err := b.buffer(name)
	if err != nil {
		return nil
	}
	return s.Items()
}

// Add places prod into a buffer without suspending. It is used to seed
// devices and by producers outside the AGV protocol.
func (b *base) Add(prod *product.Product, name string) error {
	s, err := b.buffer(name)
	if err != nil {
		return err
	}
	if !s.TryPut(prod) {
		return fmt.Errorf("%s %s: %w", b.id, bufferLabel(name), ErrFull)
	}
	return nil
}

func (b *base) Return(prod *product.Product, name string) error {
	s, err := b.buffer(name)
	if err != nil {
		return err
	}
	if !s.Requeue(prod) {
		return fmt.Errorf("%s %s: %w", b.id, bufferLabel(name), ErrFull)
	}
	return nil
}

func (b *base) Buffers() map[string][]string {
	out := make(map[string][]string, len(b.buffers))
	for _, buf := range b.buffers {
		ids := make([]string, 0, buf.store.Len())
		for _, p := range buf.store.Items() {
			ids = append(ids, p.ID)
		}
		out[buf.name] = ids
	}
	return out
}

func (b *base) popHead(name string) (*product.Product, error) {
	s, err := b.buffer(name)
	if err != nil {
		return nil, err
	}
	prod, ok := s.TryGet()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", b.id, bufferLabel(name), ErrEmpty)
	}
	return prod, nil
}

func (b *base) pushNow(prod *product.Product, name string) error {
	return b.Add(prod, name)
}

func (b *base) pushWait(p *sim.Proc, prod *product.Product, name string) error {
	s, err := b.buffer(name)
	if err != nil {
		return err
	}
	return s.Put(p, prod)
}

func bufferLabel(name string) string {
	if name == "" {
		return BufferDefault
	}
	return name
}
