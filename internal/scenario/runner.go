package scenario

import (
	"context"
	"fmt"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/sim"
	"github.com/autopeer-io/agvsim/pkg/log"
)

const defaultPollInterval = 1.0

// CommandResult is the outcome of one scripted command.
type CommandResult struct {
	AGV     string     `json:"agv" yaml:"agv"`
	Step    int        `json:"step" yaml:"step"`
	Action  Action     `json:"action" yaml:"action"`
	Start   float64    `json:"start" yaml:"start"`
	End     float64    `json:"end" yaml:"end"`
	OK      bool       `json:"ok" yaml:"ok"`
	Reason  agv.Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message string     `json:"message" yaml:"message"`
	Product string     `json:"product,omitempty" yaml:"product,omitempty"`
}

// Runner plays the command scripts of a scenario.
type Runner struct {
	spec   *Spec
	plant  *Plant
	logger log.Logger

	scripts []*sim.Proc
	results []CommandResult
}

// NewRunner builds the plant of s and prepares one script process per
// vehicle.
func NewRunner(s *Spec, opts ...Option) (*Runner, error) {
	plant, err := Build(s, opts...)
	if err != nil {
		return nil, err
	}
	o := &options{logger: log.Std()}
	for _, opt := range opts {
		opt(o)
	}
	r := &Runner{spec: s, plant: plant, logger: o.logger.WithName("scenario").WithClock(plant.Env.Now)}

	for _, as := range s.AGVs {
		vehicle := plant.agvs[as.ID]
		commands := as.Commands
		r.scripts = append(r.scripts, plant.Env.Process("script/"+as.ID, func(p *sim.Proc) error {
			return r.play(p, vehicle, commands)
		}))
	}
	return r, nil
}

// Plant returns the plant the runner drives.
func (r *Runner) Plant() *Plant { return r.plant }

// Run advances the simulation until every script has finished, the horizon
// is reached or ctx is cancelled, and reports the final state. The plant is
// closed when Run returns.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	env := r.plant.Env
	defer r.plant.Close()

	horizon := r.spec.EffectiveHorizon()
	r.logger.Info("Starting scenario", "name", r.spec.Name, "agvs", len(r.spec.AGVs), "horizon", horizon)

	var stopped string
	for !r.finished() {
		if err := ctx.Err(); err != nil {
			return r.report("cancelled"), err
		}
		at, ok := env.Peek()
		if !ok {
			stopped = "stalled"
			r.logger.Warn("No pending events, scripts are blocked")
			break
		}
		if at > horizon {
			stopped = "horizon"
			env.RunUntil(horizon)
			break
		}
		env.Step()
	}
	if stopped == "" {
		stopped = "completed"
	}
	r.logger.Info("Scenario finished", "name", r.spec.Name, "outcome", stopped)
	return r.report(stopped), nil
}

func (r *Runner) finished() bool {
	for _, p := range r.scripts {
		if !p.Done() {
			return false
		}
	}
	return true
}

// play runs the commands of one vehicle in order.
func (r *Runner) play(p *sim.Proc, vehicle *agv.AGV, commands []CommandSpec) error {
	for i, c := range commands {
		if c.At > p.Now() {
			if err := p.Wait(c.At - p.Now()); err != nil {
				return err
			}
		}
		start := p.Now()
		res, err := r.execute(p, vehicle, c)
		if err != nil {
			return err
		}

		cr := CommandResult{
			AGV:     vehicle.ID(),
			Step:    i,
			Action:  c.Action,
			Start:   start,
			End:     p.Now(),
			OK:      res.OK,
			Reason:  res.Reason,
			Message: res.Message,
		}
		if res.Product != nil {
			cr.Product = res.Product.ID
		}
		r.results = append(r.results, cr)

		if !res.OK {
			r.logger.Warn("Command failed", "agv", vehicle.ID(), "step", i, "action", c.Action, "reason", res.Reason, "message", res.Message)
			if r.spec.StopOnFailure {
				return nil
			}
			continue
		}
		r.logger.Debug("Command done", "agv", vehicle.ID(), "step", i, "action", c.Action)
	}
	return nil
}

// execute runs one command. It only returns an error when the simulation
// is shutting down.
func (r *Runner) execute(p *sim.Proc, vehicle *agv.AGV, c CommandSpec) (agv.Result, error) {
	switch c.Action {
	case ActionMove:
		return vehicle.MoveTo(p, c.Target), nil
	case ActionLoad:
		return vehicle.LoadFrom(p, r.plant.devices[c.Device], c.Buffer, c.Product), nil
	case ActionUnload:
		return vehicle.UnloadTo(p, r.plant.devices[c.Device], c.Buffer), nil
	case ActionCharge:
		level := c.Level
		if level == 0 {
			level = 100
		}
		return vehicle.ChargeBattery(p, level), nil
	case ActionVoluntaryCharge:
		level := c.Level
		if level == 0 {
			level = agv.DefaultVoluntaryChargeLevel
		}
		return vehicle.VoluntaryCharge(p, level), nil
	case ActionEmergencyCharge:
		return vehicle.EmergencyCharge(p), nil
	case ActionWait:
		if err := p.Wait(c.Seconds); err != nil {
			return agv.Result{}, err
		}
		return agv.Result{OK: true, Message: fmt.Sprintf("waited %.1fs", c.Seconds)}, nil
	case ActionWaitAvailable:
		return r.waitAvailable(p, vehicle, c.Seconds)
	}
	return agv.Result{Reason: agv.ReasonInternal, Message: fmt.Sprintf("unknown action %q", c.Action)}, nil
}

// waitAvailable polls until the vehicle accepts commands again, e.g. after
// a fault has been repaired.
func (r *Runner) waitAvailable(p *sim.Proc, vehicle *agv.AGV, poll float64) (agv.Result, error) {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	start := p.Now()
	for !vehicle.Available() {
		if err := p.Wait(poll); err != nil {
			return agv.Result{}, err
		}
	}
	return agv.Result{OK: true, Message: fmt.Sprintf("available after %.1fs", p.Now()-start)}, nil
}
