package scenario

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/device"
	"github.com/autopeer-io/agvsim/internal/fault"
	"github.com/autopeer-io/agvsim/internal/kpi"
	"github.com/autopeer-io/agvsim/internal/layout"
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
	"github.com/autopeer-io/agvsim/pkg/log"
)

// Plant is a built scenario: the environment with every device and vehicle
// in it.
type Plant struct {
	Env    *sim.Env
	Faults *fault.Registry
	KPI    *kpi.Collector

	agvs    map[string]*agv.AGV
	devices map[string]device.Device
	// declaration order
	agvOrder    []string
	deviceOrder []string
}

// Option configures how a plant is built.
type Option func(*options)

type options struct {
	publisher agv.StatusPublisher
	registry  prometheus.Registerer
	logger    log.Logger
}

// WithPublisher sends vehicle status reports to p.
func WithPublisher(p agv.StatusPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRegisterer registers the KPI metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger sets the logger of the plant and its vehicles.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Build creates the plant described by s.
func Build(s *Spec, opts ...Option) (*Plant, error) {
	o := &options{logger: log.Std()}
	for _, opt := range opts {
		opt(o)
	}

	env := sim.NewEnv()
	logger := o.logger.WithClock(env.Now)
	p := &Plant{
		Env:     env,
		Faults:  fault.NewRegistry(env, s.RepairTime),
		KPI:     kpi.NewCollector(o.registry),
		agvs:    make(map[string]*agv.AGV, len(s.AGVs)),
		devices: make(map[string]device.Device, len(s.Devices)),
	}

	for _, ds := range s.Devices {
		d, err := buildDevice(env, ds)
		if err != nil {
			env.Close()
			return nil, err
		}
		p.devices[ds.ID] = d
		p.deviceOrder = append(p.deviceOrder, ds.ID)
	}

	points := s.PointSet()
	ops := make(layout.OperationMap, len(s.Operations))
	for _, op := range s.Operations {
		ops[op.Point] = layout.PointOperations{DeviceID: op.Device, Operations: op.Operations, DefaultBuffer: op.Buffer}
	}

	var table *layout.PathTable
	if len(s.Paths.Times) > 0 {
		table = layout.NewPathTable(s.Paths.Symmetric)
		for _, pt := range s.Paths.Times {
			if err := table.Set(pt.From, pt.To, pt.Seconds); err != nil {
				env.Close()
				return nil, fmt.Errorf("path %s -> %s: %w", pt.From, pt.To, err)
			}
		}
	}

	for _, as := range s.AGVs {
		vopts := []agv.Option{
			agv.WithFaults(p.Faults),
			agv.WithKPI(p.KPI),
			agv.WithOperations(ops),
			agv.WithLogger(logger.WithName("agv")),
		}
		if o.publisher != nil {
			vopts = append(vopts, agv.WithPublisher(o.publisher))
		}
		if table != nil {
			vopts = append(vopts, agv.WithOracle(table))
		}
		a, err := agv.New(env, as.Config(points), vopts...)
		if err != nil {
			env.Close()
			return nil, err
		}
		p.Faults.Register(a)
		p.KPI.Track(a.ID())
		p.agvs[as.ID] = a
		p.agvOrder = append(p.agvOrder, as.ID)
	}

	for _, f := range s.Faults {
		p.Faults.ScheduleAt(f.At, f.AGV, f.Kind)
	}
	for _, in := range s.Interrupts {
		target, cause := p.agvs[in.AGV], in.Cause
		env.Schedule(in.At, func() {
			if !target.Interrupt(cause) {
				logger.Info("Nothing to interrupt", "agv", target.ID())
			}
		})
	}
	return p, nil
}

func buildDevice(env *sim.Env, ds DeviceSpec) (device.Device, error) {
	var d device.Device
	switch ds.Kind {
	case device.KindStation:
		s := device.NewStation(env, ds.ID, ds.Capacity)
		for _, id := range ds.Locked {
			s.Lock(id)
		}
		d = s
	case device.KindConveyor:
		d = device.NewConveyor(env, ds.ID, ds.Capacity)
	case device.KindTripleBufferConveyor:
		d = device.NewTripleBufferConveyor(env, ds.ID, ds.Capacity, ds.SideCapacity)
	case device.KindQualityChecker:
		d = device.NewQualityChecker(env, ds.ID, ds.Capacity, ds.OutputCapacity)
	case device.KindWarehouse:
		d = device.NewWarehouse(env, ds.ID)
	case device.KindRawMaterial:
		d = device.NewRawMaterial(env, ds.ID)
	default:
		return nil, fmt.Errorf("device %s: unknown kind %q", ds.ID, ds.Kind)
	}

	for _, ps := range ds.Products {
		if err := stock(d, ps); err != nil {
			return nil, fmt.Errorf("device %s: %w", ds.ID, err)
		}
	}
	return d, nil
}

type adder interface {
	Add(prod *product.Product, buffer string) error
}

// stock places the initial products of ps into d.
func stock(d device.Device, ps ProductSpec) error {
	count := max(1, ps.Count)
	if ps.ID != "" && count > 1 {
		return fmt.Errorf("product %s: an explicit id allows a single product", ps.ID)
	}
	for range count {
		var opts []product.Option
		if ps.ID != "" {
			opts = append(opts, product.WithID(ps.ID))
		}
		if ps.Order != "" {
			opts = append(opts, product.WithOrder(ps.Order))
		}
		if len(ps.Route) > 0 {
			opts = append(opts, product.WithRoute(ps.Route...))
		}

		if rm, ok := d.(*device.RawMaterial); ok {
			rm.CreateRawMaterial(ps.Type, 0, opts...)
			continue
		}
		a, ok := d.(adder)
		if !ok {
			return fmt.Errorf("%s cannot hold initial products", d.Kind())
		}
		if err := a.Add(product.New(ps.Type, d.ID(), 0, opts...), ps.Buffer); err != nil {
			return fmt.Errorf("stock %s: %w", ps.Type, err)
		}
	}
	return nil
}

// AGV returns the vehicle with the given id.
func (p *Plant) AGV(id string) (*agv.AGV, bool) {
	a, ok := p.agvs[id]
	return a, ok
}

// AGVs returns the vehicles in declaration order.
func (p *Plant) AGVs() []*agv.AGV {
	out := make([]*agv.AGV, 0, len(p.agvOrder))
	for _, id := range p.agvOrder {
		out = append(out, p.agvs[id])
	}
	return out
}

// Device returns the device with the given id.
func (p *Plant) Device(id string) (device.Device, bool) {
	d, ok := p.devices[id]
	return d, ok
}

// Devices returns the device ids in declaration order.
func (p *Plant) Devices() []string {
	return slices.Clone(p.deviceOrder)
}

// Close stops every process still running in the plant.
func (p *Plant) Close() {
	p.Env.Close()
}
