// Package kpi collects plant indicators reported by vehicles and exposes
// them as Prometheus metrics.
package kpi

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autopeer-io/agvsim/internal/agv"
)

const namespace = "agvsim"

// Totals aggregates the indicators of one vehicle.
type Totals struct {
	LineID          string  `json:"line_id,omitempty" yaml:"line_id,omitempty"`
	TasksCompleted  int     `json:"tasks_completed" yaml:"tasks_completed"`
	TransportTime   float64 `json:"transport_time" yaml:"transport_time"`
	FaultTime       float64 `json:"fault_time" yaml:"fault_time"`
	ActiveCharges   int     `json:"active_charges" yaml:"active_charges"`
	PassiveCharges  int     `json:"passive_charges" yaml:"passive_charges"`
	ChargeTime      float64 `json:"charge_time" yaml:"charge_time"`
	EnergySeconds   float64 `json:"energy_seconds" yaml:"energy_seconds"`
	PeakEnergyShare float64 `json:"peak_energy_share" yaml:"peak_energy_share"`

	peakEnergy float64
}

// Collector implements agv.KPI on top of Prometheus metrics. It also keeps
// per-vehicle totals for end of run reports.
type Collector struct {
	tasks     *prometheus.CounterVec
	transport *prometheus.HistogramVec
	fault     *prometheus.CounterVec
	energy    *prometheus.CounterVec
	charges   *prometheus.CounterVec
	charging  *prometheus.CounterVec

	mu     sync.Mutex
	totals map[string]*Totals
	// energy sources are not always vehicle ids
	sources map[string]string
}

var _ agv.KPI = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agv_tasks_completed_total",
				Help:      "Total number of transport legs completed by an AGV.",
			},
			[]string{"agv", "line"},
		),
		transport: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agv_transport_seconds",
				Help:      "Simulated duration of AGV transport legs.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"agv", "line"},
		),
		fault: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agv_fault_seconds_total",
				Help:      "Simulated time AGVs spent in fault.",
			},
			[]string{"agv", "line"},
		),
		energy: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "energy_seconds_total",
				Help:      "Simulated seconds of energy use per consumer (peak=true during peak hours).",
			},
			[]string{"source", "line", "peak"},
		),
		charges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agv_charges_total",
				Help:      "Total number of completed charge cycles (kind=active|passive).",
			},
			[]string{"agv", "line", "kind"},
		),
		charging: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agv_charge_seconds_total",
				Help:      "Simulated time spent in charge cycles.",
			},
			[]string{"agv", "line"},
		),
		totals:  make(map[string]*Totals),
		sources: make(map[string]string),
	}
	if reg != nil {
		reg.MustRegister(c.tasks, c.transport, c.fault, c.energy, c.charges, c.charging)
	}
	return c
}

// Track makes the energy sources of agvID count towards its totals.
func (c *Collector) Track(agvID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[agv.DriveSource(agvID)] = agvID
	c.sources[agv.ChargeSource(agvID)] = agvID
}

func (c *Collector) RegisterTaskComplete(agvID, lineID string) {
	c.tasks.WithLabelValues(agvID, lineID).Inc()
	c.update(agvID, lineID, func(t *Totals) { t.TasksCompleted++ })
}

func (c *Collector) UpdateTransportTime(agvID, lineID string, seconds float64) {
	c.transport.WithLabelValues(agvID, lineID).Observe(seconds)
	c.update(agvID, lineID, func(t *Totals) { t.TransportTime += seconds })
}

func (c *Collector) UpdateFaultTime(agvID, lineID string, seconds float64) {
	if seconds < 0 {
		return
	}
	c.fault.WithLabelValues(agvID, lineID).Add(seconds)
	c.update(agvID, lineID, func(t *Totals) { t.FaultTime += seconds })
}

func (c *Collector) AddEnergyCost(sourceID, lineID string, seconds float64, peakHour bool) {
	if seconds < 0 {
		return
	}
	peak := "false"
	if peakHour {
		peak = "true"
	}
	c.energy.WithLabelValues(sourceID, lineID, peak).Add(seconds)

	c.mu.Lock()
	agvID, ok := c.sources[sourceID]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.update(agvID, lineID, func(t *Totals) {
		t.EnergySeconds += seconds
		if peakHour {
			t.peakEnergy += seconds
		}
		if t.EnergySeconds > 0 {
			t.PeakEnergyShare = t.peakEnergy / t.EnergySeconds * 100
		}
	})
}

func (c *Collector) RegisterCharge(agvID, lineID string, active bool, seconds float64) {
	kind := "passive"
	if active {
		kind = "active"
	}
	c.charges.WithLabelValues(agvID, lineID, kind).Inc()
	c.charging.WithLabelValues(agvID, lineID).Add(max(0, seconds))
	c.update(agvID, lineID, func(t *Totals) {
		if active {
			t.ActiveCharges++
		} else {
			t.PassiveCharges++
		}
		t.ChargeTime += max(0, seconds)
	})
}

// Totals returns a copy of the totals of agvID.
func (c *Collector) Totals(agvID string) (Totals, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.totals[agvID]
	if !ok {
		return Totals{}, false
	}
	return *t, true
}

// All returns the totals of every vehicle by id.
func (c *Collector) All() map[string]Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Totals, len(c.totals))
	for id, t := range c.totals {
		out[id] = *t
	}
	return out
}

func (c *Collector) update(agvID, lineID string, fn func(*Totals)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.totals[agvID]
	if !ok {
		t = &Totals{LineID: lineID}
		c.totals[agvID] = t
	}
	fn(t)
}
