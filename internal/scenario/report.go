package scenario

import (
	"slices"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/device"
	"github.com/autopeer-io/agvsim/internal/fault"
	"github.com/autopeer-io/agvsim/internal/kpi"
)

// Report is the state of a plant at the end of a run.
type Report struct {
	Name     string          `json:"name" yaml:"name"`
	Outcome  string          `json:"outcome" yaml:"outcome"`
	EndTime  float64         `json:"end_time" yaml:"end_time"`
	AGVs     []AGVReport     `json:"agvs" yaml:"agvs"`
	Devices  []DeviceReport  `json:"devices" yaml:"devices"`
	Commands []CommandResult `json:"commands" yaml:"commands"`
	Faults   []fault.Record  `json:"faults,omitempty" yaml:"faults,omitempty"`
}

type AGVReport struct {
	ID       string            `json:"id" yaml:"id"`
	LineID   string            `json:"line_id,omitempty" yaml:"line_id,omitempty"`
	Status   agv.Status        `json:"status" yaml:"status"`
	Point    string            `json:"point" yaml:"point"`
	Battery  float64           `json:"battery_level" yaml:"battery_level"`
	Payload  []string          `json:"payload" yaml:"payload"`
	Charging agv.ChargingStats `json:"charging" yaml:"charging"`
	Stats    agv.Stats         `json:"stats" yaml:"stats"`
	KPI      kpi.Totals        `json:"kpi" yaml:"kpi"`
}

type DeviceReport struct {
	ID       string              `json:"id" yaml:"id"`
	Kind     device.Kind         `json:"kind" yaml:"kind"`
	Buffers  map[string][]string `json:"buffers,omitempty" yaml:"buffers,omitempty"`
	Received map[string]int      `json:"received,omitempty" yaml:"received,omitempty"`
	Created  int                 `json:"created,omitempty" yaml:"created,omitempty"`
}

// Failed returns the commands that did not succeed.
func (r *Report) Failed() []CommandResult {
	var out []CommandResult
	for _, c := range r.Commands {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// AGV returns the report of one vehicle.
func (r *Report) AGV(id string) (AGVReport, bool) {
	i := slices.IndexFunc(r.AGVs, func(a AGVReport) bool { return a.ID == id })
	if i < 0 {
		return AGVReport{}, false
	}
	return r.AGVs[i], true
}

// Device returns the report of one device.
func (r *Report) Device(id string) (DeviceReport, bool) {
	i := slices.IndexFunc(r.Devices, func(d DeviceReport) bool { return d.ID == id })
	if i < 0 {
		return DeviceReport{}, false
	}
	return r.Devices[i], true
}

func (r *Runner) report(outcome string) *Report {
	p := r.plant
	rep := &Report{
		Name:     r.spec.Name,
		Outcome:  outcome,
		EndTime:  p.Env.Now(),
		Commands: slices.Clone(r.results),
		Faults:   p.Faults.History(),
	}

	for _, a := range p.AGVs() {
		ar := AGVReport{
			ID:       a.ID(),
			LineID:   a.LineID(),
			Status:   a.Status(),
			Point:    a.CurrentPoint(),
			Battery:  a.BatteryLevel(),
			Payload:  []string{},
			Charging: a.ChargingStats(),
			Stats:    a.Stats(),
		}
		for _, prod := range a.Payload() {
			ar.Payload = append(ar.Payload, prod.ID)
		}
		ar.KPI, _ = p.KPI.Totals(a.ID())
		rep.AGVs = append(rep.AGVs, ar)
	}

	for _, id := range p.Devices() {
		d := p.devices[id]
		dr := DeviceReport{ID: id, Kind: d.Kind()}
		if in, ok := d.(device.Inspector); ok {
			dr.Buffers = in.Buffers()
		}
		switch d := d.(type) {
		case *device.Warehouse:
			dr.Received = d.Received()
		case *device.RawMaterial:
			dr.Created = d.Created()
		}
		rep.Devices = append(rep.Devices, dr)
	}
	return rep
}

// Totals sums the KPI totals of all vehicles.
func (r *Report) Totals() kpi.Totals {
	var t kpi.Totals
	for _, a := range r.AGVs {
		t.TasksCompleted += a.KPI.TasksCompleted
		t.TransportTime += a.KPI.TransportTime
		t.FaultTime += a.KPI.FaultTime
		t.ActiveCharges += a.KPI.ActiveCharges
		t.PassiveCharges += a.KPI.PassiveCharges
		t.ChargeTime += a.KPI.ChargeTime
		t.EnergySeconds += a.KPI.EnergySeconds
	}
	return t
}
