package device

import (
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

// Conveyor is a single-lane belt. Pushing onto a full belt waits for room.
type Conveyor struct {
	base
}

var (
	_ Device    = (*Conveyor)(nil)
	_ Emptyable = (*Conveyor)(nil)
	_ Poppable  = (*Conveyor)(nil)
	_ Pushable  = (*Conveyor)(nil)
)

func NewConveyor(env *sim.Env, id string, capacity int) *Conveyor {
	return &Conveyor{base: newBase(env, id, KindConveyor, map[string]int{BufferDefault: capacity}, BufferDefault)}
}

func (c *Conveyor) IsFull() bool { return c.buffers[0].store.IsFull() }

func (c *Conveyor) Pop(buffer, _ string) (*product.Product, error) {
	return c.popHead(buffer)
}

func (c *Conveyor) Push(p *sim.Proc, prod *product.Product, buffer string) error {
	return c.pushWait(p, prod, buffer)
}

// TripleBufferConveyor has a main lane and upper/lower side lanes. The
// default lane is main.
type TripleBufferConveyor struct {
	base
}

var (
	_ Device    = (*TripleBufferConveyor)(nil)
	_ Emptyable = (*TripleBufferConveyor)(nil)
	_ Poppable  = (*TripleBufferConveyor)(nil)
	_ Pushable  = (*TripleBufferConveyor)(nil)
)

func NewTripleBufferConveyor(env *sim.Env, id string, mainCapacity, sideCapacity int) *TripleBufferConveyor {
	caps := map[string]int{BufferMain: mainCapacity, BufferUpper: sideCapacity, BufferLower: sideCapacity}
	return &TripleBufferConveyor{base: newBase(env, id, KindTripleBufferConveyor, caps, BufferMain, BufferUpper, BufferLower)}
}

// IsFull reports whether every lane is full.
func (c *TripleBufferConveyor) IsFull() bool {
	for _, buf := range c.buffers {
		if !buf.store.IsFull() {
			return false
		}
	}
	return true
}

func (c *TripleBufferConveyor) Pop(buffer, _ string) (*product.Product, error) {
	return c.popHead(buffer)
}

func (c *TripleBufferConveyor) Push(p *sim.Proc, prod *product.Product, buffer string) error {
	return c.pushWait(p, prod, buffer)
}
