// Package fault keeps faults queued against vehicles until they reach a
// safe point, and repairs injected faults after a fixed time.
package fault

import (
	"fmt"
	"maps"
	"slices"

	"github.com/autopeer-io/agvsim/internal/sim"
	"github.com/autopeer-io/agvsim/pkg/log"
)

// Common AGV fault kinds.
const (
	KindPathBlocked   = "agv_path_blocked"
	KindSensorFailure = "agv_sensor_failure"
	KindBatteryDrain  = "agv_battery_drain"
	KindCollision     = "agv_collision"
)

// Target is something that can be repaired after a fault.
type Target interface {
	ID() string
	Recover(message string) bool
}

// Record describes one injected fault. End is zero while it is active.
type Record struct {
	TargetID string  `json:"target_id" yaml:"target_id"`
	Kind     string  `json:"kind" yaml:"kind"`
	Start    float64 `json:"start" yaml:"start"`
	End      float64 `json:"end,omitempty" yaml:"end,omitempty"`
}

// Registry is the in-memory fault collaborator.
type Registry struct {
	env        *sim.Env
	repairTime float64
	logger     log.Logger

	pending map[string]string
	targets map[string]Target
	active  map[string]*Record
	history []*Record
}

// NewRegistry creates a registry that repairs injected faults after
// repairTime simulated seconds. A repairTime of zero or less leaves faults
// in place until Repair is called.
func NewRegistry(env *sim.Env, repairTime float64) *Registry {
	return &Registry{
		env:        env,
		repairTime: repairTime,
		logger:     log.WithName("fault").WithClock(env.Now),
		pending:    make(map[string]string),
		targets:    make(map[string]Target),
		active:     make(map[string]*Record),
	}
}

// Register makes a target repairable by this registry.
func (r *Registry) Register(t Target) {
	r.targets[t.ID()] = t
}

// Schedule queues a fault for id. It replaces a fault already queued.
func (r *Registry) Schedule(id, kind string) {
	r.pending[id] = kind
	r.logger.Info("Fault pending", "target", id, "fault", kind)
}

// ScheduleAt queues a fault for id once the clock reaches at.
func (r *Registry) ScheduleAt(at float64, id, kind string) {
	r.env.Schedule(at-r.env.Now(), func() { r.Schedule(id, kind) })
}

// Pending returns the queued faults by target id.
func (r *Registry) Pending() map[string]string {
	return maps.Clone(r.pending)
}

// TakePendingFault removes and returns the fault queued for id.
func (r *Registry) TakePendingFault(id string) (string, bool) {
	kind, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return kind, ok
}

// InjectNow records the fault as active and schedules its repair.
func (r *Registry) InjectNow(id, kind string) {
	rec := &Record{TargetID: id, Kind: kind, Start: r.env.Now()}
	r.active[id] = rec
	r.history = append(r.history, rec)
	r.logger.Warn("Fault injected", "target", id, "fault", kind)

	if r.repairTime <= 0 {
		return
	}
	r.env.Process("repair/"+id, func(p *sim.Proc) error {
		if err := p.Wait(r.repairTime); err != nil {
			return err
		}
		r.Repair(id)
		return nil
	})
}

// Repair ends the active fault of id and recovers the target. It returns
// false if id has no active fault.
func (r *Registry) Repair(id string) bool {
	rec, ok := r.active[id]
	if !ok {
		return false
	}
	delete(r.active, id)
	rec.End = r.env.Now()
	r.logger.Info("Fault repaired", "target", id, "fault", rec.Kind)

	if t, ok := r.targets[id]; ok {
		t.Recover(fmt.Sprintf("repaired %s after %.1fs", rec.Kind, rec.End-rec.Start))
	}
	return true
}

// Active returns the ids of targets currently in fault.
func (r *Registry) Active() []string {
	return slices.Sorted(maps.Keys(r.active))
}

// History returns every injected fault in injection order.
func (r *Registry) History() []Record {
	out := make([]Record, 0, len(r.history))
	for _, rec := range r.history {
		out = append(out, *rec)
	}
	return out
}
