// Package agv implements an automated guided vehicle that lives on a
// simulated timeline.
//
// Commands are issued from a simulated process and complete when the
// vehicle is done. Movement and charging run as a separate task process so
// they can be interrupted with Interrupt; loading and unloading run inline
// in the caller. Every command reports its outcome as a Result.
package agv

import (
	"fmt"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/agvsim/internal/layout"
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
	"github.com/autopeer-io/agvsim/pkg/log"
)

// FaultSystem holds faults that are waiting for a vehicle to become idle.
type FaultSystem interface {
	// TakePendingFault removes and returns the fault pending for id.
	TakePendingFault(id string) (kind string, ok bool)
	// InjectNow puts the vehicle into fault immediately.
	InjectNow(id, kind string)
}

// KPI receives vehicle events for plant-level indicators.
type KPI interface {
	RegisterTaskComplete(agvID, lineID string)
	UpdateTransportTime(agvID, lineID string, seconds float64)
	UpdateFaultTime(agvID, lineID string, seconds float64)
	AddEnergyCost(sourceID, lineID string, seconds float64, peakHour bool)
	RegisterCharge(agvID, lineID string, active bool, seconds float64)
}

// DriveSource is the energy source id of a vehicle's driving.
func DriveSource(id string) string { return "AGV_" + id }

// ChargeSource is the energy source id of a vehicle's charger use.
func ChargeSource(id string) string { return "AGV_" + id + "_charging" }

// StatusPublisher ships status reports to an external consumer.
type StatusPublisher interface {
	PublishStatus(report StatusReport) error
}

// Option configures optional collaborators of an AGV.
type Option func(*AGV)

// WithFaults attaches the fault system consulted before going idle.
func WithFaults(f FaultSystem) Option {
	return func(a *AGV) { a.faults = f }
}

// WithKPI attaches the KPI collaborator.
func WithKPI(k KPI) Option {
	return func(a *AGV) { a.kpi = k }
}

// WithPublisher attaches the status publisher.
func WithPublisher(p StatusPublisher) Option {
	return func(a *AGV) { a.publisher = p }
}

// WithLogger overrides the logger. The vehicle id is added to it.
func WithLogger(l log.Logger) Option {
	return func(a *AGV) { a.logger = l }
}

// WithOperations sets the per-point operation declarations used to validate
// unloading.
func WithOperations(ops layout.OperationMap) Option {
	return func(a *AGV) { a.operations = ops }
}

// WithOracle sets the travel time oracle. Without one, travel times are
// derived from straight-line distances.
func WithOracle(o layout.Oracle) Option {
	return func(a *AGV) { a.oracle = o }
}

// AGV is a battery powered vehicle moving products between devices.
//
// An AGV must only be used from processes of the environment it was created
// in.
type AGV struct {
	env *sim.Env
	cfg Config

	logger     log.Logger
	faults     FaultSystem
	kpi        KPI
	publisher  StatusPublisher
	oracle     layout.Oracle
	operations layout.OperationMap

	fsm *fsm.FSM

	position     layout.Point
	currentPoint string
	targetPoint  string
	arriveAt     float64
	battery      float64
	payload      *sim.Store[*product.Product]
	stats        Stats

	currentTask *sim.Proc
	watchdog    *sim.Proc

	// set for the duration of one charge cycle
	chargeStart  *float64
	activeCharge bool
	// set while in fault
	faultStart *float64
}

// New creates a vehicle, publishes its initial status and starts the
// battery watchdog.
func New(env *sim.Env, cfg Config, opts ...Option) (*AGV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agv %q: %w", cfg.ID, err)
	}
	current, _ := cfg.Points.NameOf(cfg.Position)

	a := &AGV{
		env:          env,
		cfg:          cfg,
		logger:       log.Std(),
		position:     cfg.Position,
		currentPoint: current,
		battery:      cfg.BatteryLevel,
		payload:      sim.NewStore[*product.Product](env, cfg.PayloadCapacity),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.faults == nil {
		a.faults = nopFaults{}
	}
	if a.kpi == nil {
		a.kpi = nopKPI{}
	}
	if a.publisher == nil {
		a.publisher = nopPublisher{}
	}
	if a.oracle == nil {
		a.oracle = layout.NewStraightLine(cfg.Points, cfg.Speed)
	}
	a.logger = a.logger.WithValues("agv", cfg.ID).WithClock(env.Now)
	a.fsm = newStatusMachine(a)

	a.publish("initialized")

	interval := cfg.WatchdogInterval
	if interval == 0 {
		interval = DefaultWatchdogInterval
	}
	if interval > 0 {
		a.watchdog = env.Process(cfg.ID+"/watchdog", func(p *sim.Proc) error {
			return a.watch(p, interval)
		})
	}
	return a, nil
}

func (a *AGV) ID() string { return a.cfg.ID }

func (a *AGV) LineID() string { return a.cfg.LineID }

// Config returns the configuration the vehicle was built with.
func (a *AGV) Config() Config { return a.cfg }

func (a *AGV) Position() layout.Point { return a.position }

func (a *AGV) CurrentPoint() string { return a.currentPoint }

// TargetPoint returns the destination of the leg being driven, or "".
func (a *AGV) TargetPoint() string { return a.targetPoint }

// EstimatedTimeRemaining returns the seconds left on the current leg.
func (a *AGV) EstimatedTimeRemaining() float64 {
	if a.targetPoint == "" {
		return 0
	}
	return max(0, a.arriveAt-a.env.Now())
}

// Available reports whether the vehicle accepts a new command.
func (a *AGV) Available() bool { return a.canOperate() }

// Busy reports whether a movement or charging task is in flight.
func (a *AGV) Busy() bool { return a.currentTask != nil }

// Payload returns the carried products, oldest first.
func (a *AGV) Payload() []*product.Product { return a.payload.Items() }

func (a *AGV) IsPayloadFull() bool { return a.payload.IsFull() }

func (a *AGV) IsPayloadEmpty() bool { return a.payload.IsEmpty() }

// PathPoints returns the names of the points this vehicle can drive to.
func (a *AGV) PathPoints() []string { return a.cfg.Points.Names() }

// PointPosition returns the coordinate of a path point.
func (a *AGV) PointPosition(name string) (layout.Point, bool) {
	p, ok := a.cfg.Points[name]
	return p, ok
}

// Interrupt cancels the movement or charging task in flight. It returns
// false if there is nothing to interrupt.
func (a *AGV) Interrupt(cause string) bool {
	if a.currentTask == nil {
		return false
	}
	return a.currentTask.Interrupt(cause)
}

func (a *AGV) String() string {
	return fmt.Sprintf("AGV(id=%s, battery=%.1f%%, payload=%d/%d)", a.cfg.ID, a.battery, a.payload.Len(), a.cfg.PayloadCapacity)
}

// canOperate reports whether the vehicle accepts a new command.
func (a *AGV) canOperate() bool {
	return a.Status() == StatusIdle && a.currentTask == nil
}

// runTask runs body as the vehicle's current task and waits for it from p.
func (a *AGV) runTask(p *sim.Proc, name string, body func(t *sim.Proc) Result) Result {
	var res Result
	task := a.env.Process(a.cfg.ID+"/"+name, func(t *sim.Proc) error {
		defer func() { a.currentTask = nil }()
		res = body(t)
		return nil
	})
	a.currentTask = task
	err := p.Join(task)
	switch {
	case task.Done() && task.Err() != nil:
		a.logger.Error(task.Err(), "Task failed", "task", name)
		return fail(ReasonInternal, "%s failed: %v", name, task.Err())
	case err != nil:
		// the caller stopped waiting; the task keeps running
		return fail(ReasonInterrupted, "%s abandoned: %v", name, err)
	}
	return res
}

// interrupted converts the error of a suspension point into a Result.
func (a *AGV) interrupted(err error, what string) Result {
	cause := err.Error()
	if intr, ok := sim.IsInterrupted(err); ok {
		cause = intr.Cause
	}
	a.logger.Warn("Task interrupted", "task", what, "cause", cause)
	return fail(ReasonInterrupted, "%s interrupted: %s", what, cause)
}

type nopFaults struct{}

func (nopFaults) TakePendingFault(string) (string, bool) { return "", false }
func (nopFaults) InjectNow(string, string)               {}

type nopKPI struct{}

func (nopKPI) RegisterTaskComplete(string, string)          {}
func (nopKPI) UpdateTransportTime(string, string, float64)  {}
func (nopKPI) UpdateFaultTime(string, string, float64)      {}
func (nopKPI) AddEnergyCost(string, string, float64, bool)  {}
func (nopKPI) RegisterCharge(string, string, bool, float64) {}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(StatusReport) error { return nil }
