package sim

import (
	"container/heap"
	"errors"
	"sort"
)

// ErrStopped is returned from every suspension point once the environment
// has been closed.
var ErrStopped = errors.New("simulation stopped")

// Env is a single-timeline discrete-event environment.
//
// Processes are goroutines, but the environment hands control to exactly one
// of them at a time: a process runs until it reaches a suspension point
// (Wait, Join, Store.Put, Store.Get) and then yields back to the scheduler,
// which advances the clock to the next event. No simulation state needs a
// lock as long as it is only touched from process bodies or from the
// goroutine calling Run.
type Env struct {
	now    float64
	seq    uint64
	queue  eventQueue
	yield  chan struct{}
	nextID uint64
	live   map[uint64]*Proc
	active *Proc
	closed bool
}

// NewEnv creates an environment whose clock starts at zero.
func NewEnv() *Env {
	return &Env{
		yield: make(chan struct{}),
		live:  make(map[uint64]*Proc),
	}
}

// Now returns the current simulated time in seconds.
func (e *Env) Now() float64 { return e.now }

// Active returns the process currently holding control, or nil when called
// from outside any process.
func (e *Env) Active() *Proc { return e.active }

// schedule registers fn to fire after delay simulated seconds.
func (e *Env) schedule(delay float64, fn func()) *event {
	if delay < 0 {
		delay = 0
	}
	e.seq++
	ev := &event{at: e.now + delay, seq: e.seq, fn: fn}
	heap.Push(&e.queue, ev)
	return ev
}

// Schedule runs fn after delay simulated seconds on the scheduler goroutine.
// fn must not block; spawn a process for anything that needs to wait.
func (e *Env) Schedule(delay float64, fn func()) {
	e.schedule(delay, fn)
}

// Step fires the next pending event. It returns false when the queue is empty.
func (e *Env) Step() bool {
	for e.queue.Len() > 0 {
		ev := heap.Pop(&e.queue).(*event)
		if ev.cancelled {
			continue
		}
		e.now = ev.at
		ev.fn()
		return true
	}
	return false
}

// Run fires events until none are left.
func (e *Env) Run() {
	for e.Step() {
	}
}

// RunUntil fires every event scheduled at or before until and then moves the
// clock to until.
func (e *Env) RunUntil(until float64) {
	for {
		next := e.nextEvent()
		if next == nil || next.at > until {
			break
		}
		e.Step()
	}
	if until > e.now {
		e.now = until
	}
}

// Peek returns the time of the next pending event.
func (e *Env) Peek() (float64, bool) {
	ev := e.nextEvent()
	if ev == nil {
		return 0, false
	}
	return ev.at, true
}

// RunProcess fires events until p has finished and returns its error.
// It returns ErrStopped if the queue drains while p is still parked.
func (e *Env) RunProcess(p *Proc) error {
	for !p.done {
		if !e.Step() {
			return ErrStopped
		}
	}
	return p.err
}

func (e *Env) nextEvent() *event {
	for {
		ev := e.queue.peek()
		if ev == nil || !ev.cancelled {
			return ev
		}
		heap.Pop(&e.queue)
	}
}

// wakeLater schedules p to resume at the current instant. The process stops
// being interruptible immediately so that a single wake-up is ever pending.
func (e *Env) wakeLater(p *Proc, err error) {
	p.parked = false
	p.detach = nil
	gen := p.gen
	e.schedule(0, func() { e.resume(p, gen, err) })
}

// resume hands control to p, delivering err from its suspension point, and
// blocks until p parks again or finishes. Wake-ups issued for an earlier
// suspension (gen mismatch) are dropped.
func (e *Env) resume(p *Proc, gen uint64, err error) {
	if p.done || p.gen != gen {
		return
	}
	p.gen++
	p.parked = false
	p.detach = nil
	prev := e.active
	e.active = p
	p.wake <- err
	<-e.yield
	e.active = prev
}

// Close stops the environment: every live process is woken with ErrStopped
// and allowed to unwind. Close must not be called from inside a process.
func (e *Env) Close() {
	e.closed = true
	for len(e.live) > 0 {
		ids := make([]uint64, 0, len(e.live))
		for id := range e.live {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			p, ok := e.live[id]
			if !ok {
				continue
			}
			if p.detach != nil {
				p.detach()
			}
			e.resume(p, p.gen, ErrStopped)
		}
	}
	e.queue = nil
}
