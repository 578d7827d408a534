package device

import (
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

// QualityChecker has an inspection input buffer and an output buffer for
// inspected products. Pop defaults to the output buffer, Push to the input.
type QualityChecker struct {
	base
}

var (
	_ Device    = (*QualityChecker)(nil)
	_ Emptyable = (*QualityChecker)(nil)
	_ Poppable  = (*QualityChecker)(nil)
	_ Pushable  = (*QualityChecker)(nil)
)

func NewQualityChecker(env *sim.Env, id string, capacity, outputCapacity int) *QualityChecker {
	caps := map[string]int{BufferDefault: capacity, BufferOutput: outputCapacity}
	return &QualityChecker{base: newBase(env, id, KindQualityChecker, caps, BufferDefault, BufferOutput)}
}

// IsFull reports whether the input buffer is full.
func (q *QualityChecker) IsFull() bool { return q.buffers[0].store.IsFull() }

func (q *QualityChecker) IsEmpty(buffer string) bool {
	if buffer == "" {
		buffer = BufferOutput
	}
	return q.base.IsEmpty(buffer)
}

func (q *QualityChecker) Pop(buffer, _ string) (*product.Product, error) {
	if buffer == "" {
		buffer = BufferOutput
	}
	return q.popHead(buffer)
}

// Push stores prod in the named buffer, failing with ErrFull instead of
// waiting.
func (q *QualityChecker) Push(_ *sim.Proc, prod *product.Product, buffer string) error {
	return q.pushNow(prod, buffer)
}
