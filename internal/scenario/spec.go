// Package scenario loads plant descriptions and drives their vehicles
// through scripted commands.
package scenario

import (
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/device"
	"github.com/autopeer-io/agvsim/internal/layout"
)

// DefaultHorizon caps runs whose scenario sets no horizon, in simulated
// seconds.
const DefaultHorizon = 24 * 60 * 60.0

// Action names a scripted command.
type Action string

const (
	ActionMove            Action = "move"
	ActionLoad            Action = "load"
	ActionUnload          Action = "unload"
	ActionCharge          Action = "charge"
	ActionVoluntaryCharge Action = "voluntary_charge"
	ActionEmergencyCharge Action = "emergency_charge"
	ActionWait            Action = "wait"
	ActionWaitAvailable   Action = "wait_available"
)

// Spec describes a plant and what its vehicles do.
//
// Names are carried in list entries rather than map keys since keys are
// case-folded by the loader.
type Spec struct {
	Name          string  `mapstructure:"name" json:"name" yaml:"name"`
	Horizon       float64 `mapstructure:"horizon" json:"horizon" yaml:"horizon"`
	RepairTime    float64 `mapstructure:"repair_time" json:"repair_time" yaml:"repair_time"`
	StopOnFailure bool    `mapstructure:"stop_on_failure" json:"stop_on_failure" yaml:"stop_on_failure"`

	Points     []PointSpec     `mapstructure:"points" json:"points" yaml:"points"`
	Paths      PathsSpec       `mapstructure:"paths" json:"paths" yaml:"paths"`
	Operations []OperationSpec `mapstructure:"operations" json:"operations,omitempty" yaml:"operations,omitempty"`
	Devices    []DeviceSpec    `mapstructure:"devices" json:"devices" yaml:"devices"`
	AGVs       []AGVSpec       `mapstructure:"agvs" json:"agvs" yaml:"agvs"`
	Faults     []FaultSpec     `mapstructure:"faults" json:"faults,omitempty" yaml:"faults,omitempty"`
	Interrupts []InterruptSpec `mapstructure:"interrupts" json:"interrupts,omitempty" yaml:"interrupts,omitempty"`
}

type PointSpec struct {
	Name string  `mapstructure:"name" json:"name" yaml:"name"`
	X    float64 `mapstructure:"x" json:"x" yaml:"x"`
	Y    float64 `mapstructure:"y" json:"y" yaml:"y"`
}

// PathsSpec is the travel time table. Without entries, travel times are
// derived from straight-line distances and each vehicle's speed.
type PathsSpec struct {
	Symmetric bool           `mapstructure:"symmetric" json:"symmetric" yaml:"symmetric"`
	Times     []PathTimeSpec `mapstructure:"times" json:"times,omitempty" yaml:"times,omitempty"`
}

type PathTimeSpec struct {
	From    string  `mapstructure:"from" json:"from" yaml:"from"`
	To      string  `mapstructure:"to" json:"to" yaml:"to"`
	Seconds float64 `mapstructure:"seconds" json:"seconds" yaml:"seconds"`
}

type OperationSpec struct {
	Point      string             `mapstructure:"point" json:"point" yaml:"point"`
	Device     string             `mapstructure:"device" json:"device" yaml:"device"`
	Operations []layout.Operation `mapstructure:"operations" json:"operations" yaml:"operations"`
	Buffer     string             `mapstructure:"buffer" json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

// DeviceSpec declares one device. Capacity is the size of the main buffer;
// SideCapacity sizes the upper and lower lanes of a triple buffer conveyor
// and OutputCapacity the output buffer of a quality checker.
type DeviceSpec struct {
	ID             string        `mapstructure:"id" json:"id" yaml:"id"`
	Kind           device.Kind   `mapstructure:"kind" json:"kind" yaml:"kind"`
	Capacity       int           `mapstructure:"capacity" json:"capacity,omitempty" yaml:"capacity,omitempty"`
	SideCapacity   int           `mapstructure:"side_capacity" json:"side_capacity,omitempty" yaml:"side_capacity,omitempty"`
	OutputCapacity int           `mapstructure:"output_capacity" json:"output_capacity,omitempty" yaml:"output_capacity,omitempty"`
	Locked         []string      `mapstructure:"locked" json:"locked,omitempty" yaml:"locked,omitempty"`
	Products       []ProductSpec `mapstructure:"products" json:"products,omitempty" yaml:"products,omitempty"`
}

// ProductSpec places Count products (at least one) in a device buffer
// before the run starts.
type ProductSpec struct {
	ID     string   `mapstructure:"id" json:"id,omitempty" yaml:"id,omitempty"`
	Type   string   `mapstructure:"type" json:"type" yaml:"type"`
	Order  string   `mapstructure:"order" json:"order,omitempty" yaml:"order,omitempty"`
	Route  []string `mapstructure:"route" json:"route,omitempty" yaml:"route,omitempty"`
	Buffer string   `mapstructure:"buffer" json:"buffer,omitempty" yaml:"buffer,omitempty"`
	Count  int      `mapstructure:"count" json:"count,omitempty" yaml:"count,omitempty"`
}

// AGVSpec declares one vehicle. Unset parameters take the values of
// agv.DefaultConfig.
type AGVSpec struct {
	ID       string `mapstructure:"id" json:"id" yaml:"id"`
	Line     string `mapstructure:"line" json:"line,omitempty" yaml:"line,omitempty"`
	Position string `mapstructure:"position" json:"position" yaml:"position"`

	Speed                *float64 `mapstructure:"speed" json:"speed,omitempty" yaml:"speed,omitempty"`
	PayloadCapacity      *int     `mapstructure:"payload_capacity" json:"payload_capacity,omitempty" yaml:"payload_capacity,omitempty"`
	OperationTime        *float64 `mapstructure:"operation_time" json:"operation_time,omitempty" yaml:"operation_time,omitempty"`
	BatteryLevel         *float64 `mapstructure:"battery_level" json:"battery_level,omitempty" yaml:"battery_level,omitempty"`
	LowBatteryThreshold  *float64 `mapstructure:"low_battery_threshold" json:"low_battery_threshold,omitempty" yaml:"low_battery_threshold,omitempty"`
	ChargingPoint        *string  `mapstructure:"charging_point" json:"charging_point,omitempty" yaml:"charging_point,omitempty"`
	ChargingSpeed        *float64 `mapstructure:"charging_speed" json:"charging_speed,omitempty" yaml:"charging_speed,omitempty"`
	ConsumptionPerMeter  *float64 `mapstructure:"consumption_per_meter" json:"consumption_per_meter,omitempty" yaml:"consumption_per_meter,omitempty"`
	ConsumptionPerAction *float64 `mapstructure:"consumption_per_action" json:"consumption_per_action,omitempty" yaml:"consumption_per_action,omitempty"`
	WatchdogInterval     *float64 `mapstructure:"watchdog_interval" json:"watchdog_interval,omitempty" yaml:"watchdog_interval,omitempty"`

	Commands []CommandSpec `mapstructure:"commands" json:"commands,omitempty" yaml:"commands,omitempty"`
}

// CommandSpec is one scripted step. At, when later than the current time,
// delays the step until then. Level is the charge target; Seconds the
// duration of a wait or the polling period of wait_available.
type CommandSpec struct {
	At      float64 `mapstructure:"at" json:"at,omitempty" yaml:"at,omitempty"`
	Action  Action  `mapstructure:"action" json:"action" yaml:"action"`
	Target  string  `mapstructure:"target" json:"target,omitempty" yaml:"target,omitempty"`
	Device  string  `mapstructure:"device" json:"device,omitempty" yaml:"device,omitempty"`
	Buffer  string  `mapstructure:"buffer" json:"buffer,omitempty" yaml:"buffer,omitempty"`
	Product string  `mapstructure:"product" json:"product,omitempty" yaml:"product,omitempty"`
	Level   float64 `mapstructure:"level" json:"level,omitempty" yaml:"level,omitempty"`
	Seconds float64 `mapstructure:"seconds" json:"seconds,omitempty" yaml:"seconds,omitempty"`
}

// FaultSpec queues a fault for a vehicle at the given time. The fault
// fires when the vehicle next completes a move or a charge.
type FaultSpec struct {
	At   float64 `mapstructure:"at" json:"at" yaml:"at"`
	AGV  string  `mapstructure:"agv" json:"agv" yaml:"agv"`
	Kind string  `mapstructure:"kind" json:"kind" yaml:"kind"`
}

// InterruptSpec cancels the movement or charging task of a vehicle.
type InterruptSpec struct {
	At    float64 `mapstructure:"at" json:"at" yaml:"at"`
	AGV   string  `mapstructure:"agv" json:"agv" yaml:"agv"`
	Cause string  `mapstructure:"cause" json:"cause" yaml:"cause"`
}

// PointSet returns the declared points by name.
func (s *Spec) PointSet() layout.Points {
	pts := make(layout.Points, len(s.Points))
	for _, p := range s.Points {
		pts[p.Name] = layout.Point{X: p.X, Y: p.Y}
	}
	return pts
}

// EffectiveHorizon returns Horizon, or DefaultHorizon if it is not set.
func (s *Spec) EffectiveHorizon() float64 {
	if s.Horizon <= 0 {
		return DefaultHorizon
	}
	return s.Horizon
}

// Config turns the vehicle declaration into an agv.Config.
func (a *AGVSpec) Config(points layout.Points) agv.Config {
	cfg := agv.DefaultConfig(a.ID)
	cfg.LineID = a.Line
	cfg.Points = points
	cfg.Position = points[a.Position]

	set(&cfg.Speed, a.Speed)
	set(&cfg.PayloadCapacity, a.PayloadCapacity)
	set(&cfg.OperationTime, a.OperationTime)
	set(&cfg.BatteryLevel, a.BatteryLevel)
	set(&cfg.LowBatteryThreshold, a.LowBatteryThreshold)
	set(&cfg.ChargingPoint, a.ChargingPoint)
	set(&cfg.ChargingSpeed, a.ChargingSpeed)
	set(&cfg.ConsumptionPerMeter, a.ConsumptionPerMeter)
	set(&cfg.ConsumptionPerAction, a.ConsumptionPerAction)
	set(&cfg.WatchdogInterval, a.WatchdogInterval)
	return cfg
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks the references between the parts of the scenario. Vehicle
// parameters are checked when the vehicles are built.
func (s *Spec) Validate() error {
	var errs []error
	points := s.PointSet()
	if len(points) != len(s.Points) {
		errs = append(errs, errors.New("point names must be unique"))
	}
	for _, pt := range s.Paths.Times {
		if _, ok := points[pt.From]; !ok {
			errs = append(errs, fmt.Errorf("path from unknown point %q", pt.From))
		}
		if _, ok := points[pt.To]; !ok {
			errs = append(errs, fmt.Errorf("path to unknown point %q", pt.To))
		}
	}

	devices := make(map[string]bool, len(s.Devices))
	for _, d := range s.Devices {
		if devices[d.ID] {
			errs = append(errs, fmt.Errorf("duplicate device %q", d.ID))
		}
		devices[d.ID] = true
	}
	for _, op := range s.Operations {
		if _, ok := points[op.Point]; !ok {
			errs = append(errs, fmt.Errorf("operations declared at unknown point %q", op.Point))
		}
		if !devices[op.Device] {
			errs = append(errs, fmt.Errorf("operations at %s refer to unknown device %q", op.Point, op.Device))
		}
	}

	agvs := make(map[string]bool, len(s.AGVs))
	for _, a := range s.AGVs {
		if agvs[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate agv %q", a.ID))
		}
		agvs[a.ID] = true
		if _, ok := points[a.Position]; !ok {
			errs = append(errs, fmt.Errorf("agv %s starts at unknown point %q", a.ID, a.Position))
		}
		for i, c := range a.Commands {
			if err := c.validate(points, devices); err != nil {
				errs = append(errs, fmt.Errorf("agv %s command %d: %w", a.ID, i, err))
			}
		}
	}
	for _, f := range s.Faults {
		if !agvs[f.AGV] {
			errs = append(errs, fmt.Errorf("fault for unknown agv %q", f.AGV))
		}
	}
	for _, in := range s.Interrupts {
		if !agvs[in.AGV] {
			errs = append(errs, fmt.Errorf("interrupt for unknown agv %q", in.AGV))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (c *CommandSpec) validate(points layout.Points, devices map[string]bool) error {
	switch c.Action {
	case ActionMove:
		if _, ok := points[c.Target]; !ok {
			return fmt.Errorf("move to unknown point %q", c.Target)
		}
	case ActionLoad, ActionUnload:
		if !devices[c.Device] {
			return fmt.Errorf("%s with unknown device %q", c.Action, c.Device)
		}
	case ActionCharge, ActionVoluntaryCharge:
		if c.Level < 0 || c.Level > 100 {
			return fmt.Errorf("charge level %v out of range", c.Level)
		}
	case ActionWait:
		if c.Seconds < 0 {
			return fmt.Errorf("negative wait %v", c.Seconds)
		}
	case ActionEmergencyCharge, ActionWaitAvailable:
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	return nil
}
