package sim

import (
	"errors"
	"fmt"
)

// Interrupted is delivered to a parked process that was interrupted from
// outside. Cause carries the reason given by the interrupter.
type Interrupted struct {
	Cause string
}

func (i *Interrupted) Error() string {
	return fmt.Sprintf("interrupted: %s", i.Cause)
}

// IsInterrupted reports whether err carries an interrupt and returns it.
func IsInterrupted(err error) (*Interrupted, bool) {
	var intr *Interrupted
	if errors.As(err, &intr) {
		return intr, true
	}
	return nil, false
}

// ProcFunc is the body of a simulated process.
type ProcFunc func(p *Proc) error

// Proc is a cooperative process on the simulated timeline.
type Proc struct {
	env  *Env
	id   uint64
	name string
	wake chan error

	done bool
	err  error

	// parked is true while the process sits at a suspension point that can
	// still be interrupted. detach unhooks it from whatever it waits on.
	parked bool
	detach func()
	gen    uint64

	joiners []*Proc
}

// Process starts fn as a new process. It begins running at the current
// simulated time, after every event already scheduled for this instant.
func (e *Env) Process(name string, fn ProcFunc) *Proc {
	e.nextID++
	p := &Proc{
		env:  e,
		id:   e.nextID,
		name: name,
		wake: make(chan error),
	}
	e.live[p.id] = p
	go p.run(fn)
	e.schedule(0, func() { e.resume(p, 0, nil) })
	return p
}

func (p *Proc) run(fn ProcFunc) {
	err := <-p.wake
	if err == nil {
		err = p.call(fn)
	}
	p.finish(err)
	p.env.yield <- struct{}{}
}

func (p *Proc) call(fn ProcFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process %s panicked: %v", p.name, r)
		}
	}()
	return fn(p)
}

func (p *Proc) finish(err error) {
	p.done = true
	p.err = err
	delete(p.env.live, p.id)
	for _, j := range p.joiners {
		p.env.wakeLater(j, nil)
	}
	p.joiners = nil
}

// park yields control to the scheduler until the process is resumed.
func (p *Proc) park(detach func()) error {
	if p.env.closed {
		if detach != nil {
			detach()
		}
		return ErrStopped
	}
	p.parked = true
	p.detach = detach
	p.env.yield <- struct{}{}
	return <-p.wake
}

// Name returns the name the process was started with.
func (p *Proc) Name() string { return p.name }

// Env returns the environment the process runs in.
func (p *Proc) Env() *Env { return p.env }

// Now returns the current simulated time.
func (p *Proc) Now() float64 { return p.env.now }

// Done reports whether the process body has returned.
func (p *Proc) Done() bool { return p.done }

// Err returns the error the process finished with.
func (p *Proc) Err() error { return p.err }

// Wait suspends the process for d simulated seconds. It returns an
// *Interrupted error if the process is interrupted before the time elapses.
func (p *Proc) Wait(d float64) error {
	gen := p.gen
	ev := p.env.schedule(d, func() { p.env.resume(p, gen, nil) })
	return p.park(func() { ev.cancelled = true })
}

// Join suspends the process until q finishes and returns q's error.
func (p *Proc) Join(q *Proc) error {
	if q.done {
		return q.err
	}
	q.joiners = append(q.joiners, p)
	if err := p.park(func() { q.joiners = removeProc(q.joiners, p) }); err != nil {
		return err
	}
	return q.err
}

// Interrupt wakes a parked process with an *Interrupted error carrying cause.
// It returns false if the process is not parked (not yet started, already
// finished, running, or already holding a pending interrupt).
func (p *Proc) Interrupt(cause string) bool {
	if p.done || !p.parked {
		return false
	}
	if p.detach != nil {
		p.detach()
	}
	p.env.wakeLater(p, &Interrupted{Cause: cause})
	return true
}

func (p *Proc) String() string {
	return fmt.Sprintf("%s#%d", p.name, p.id)
}

func removeProc(procs []*Proc, target *Proc) []*Proc {
	for i, q := range procs {
		if q == target {
			return append(procs[:i], procs[i+1:]...)
		}
	}
	return procs
}
