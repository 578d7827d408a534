package agv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/agvsim/internal/device"
	"github.com/autopeer-io/agvsim/internal/layout"
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

func seed(t *testing.T, dev interface {
	Add(*product.Product, string) error
}, buffer string, ids ...string) []*product.Product {
	t.Helper()
	var out []*product.Product
	for _, id := range ids {
		p := product.New("P1", "seed", 0, product.WithID(id))
		require.NoError(t, dev.Add(p, buffer))
		out = append(out, p)
	}
	return out
}

func TestLoadUnloadRoundTrip(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	st := device.NewStation(f.env, "StationA", 3)
	seed(t, st, "", "a", "b")

	var load, unload Result
	f.drive(t, func(p *sim.Proc) {
		load = a.LoadFrom(p, st, "", "")
		unload = a.UnloadTo(p, st, "")
	})

	require.True(t, load.OK, load.String())
	assert.Equal(t, "a", load.Product.ID)
	require.True(t, unload.OK, unload.String())
	assert.Same(t, load.Product, unload.Product)

	assert.Equal(t, 2, st.Len(""))
	assert.True(t, a.IsPayloadEmpty())
	assert.Equal(t, 2.0, f.env.Now())
	assert.Equal(t, 49.0, a.BatteryLevel())
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, "StationA", load.Product.Location)
	assert.Equal(t, []Status{StatusIdle, StatusInteracting, StatusIdle, StatusInteracting, StatusIdle}, f.pub.statuses())
}

func TestLoadPutsProductInPayload(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	st := device.NewStation(f.env, "StationA", 3)
	seed(t, st, "", "a")

	f.at(0.5, func() {
		assert.Equal(t, StatusInteracting, a.Status())
		assert.True(t, a.IsPayloadEmpty(), "the product is in transit during the operation")
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.LoadFrom(p, st, "", "") })

	require.True(t, res.OK)
	require.Len(t, a.Payload(), 1)
	assert.Equal(t, "a", a.Payload()[0].ID)
	assert.True(t, a.IsPayloadFull())
	last := res.Product.History[len(res.Product.History)-1]
	assert.Equal(t, "Loaded onto agv1 from StationA", last.Event)
}

func TestLoadFailuresLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture) device.Device
		buffer string
		want   Reason
	}{
		{
			name:  "empty station",
			setup: func(t *testing.T, f *fixture) device.Device { return device.NewStation(f.env, "S", 2) },
			want:  ReasonCapacity,
		},
		{
			name: "locked head",
			setup: func(t *testing.T, f *fixture) device.Device {
				st := device.NewStation(f.env, "S", 2)
				seed(t, st, "", "a", "b")
				st.Lock("a")
				return st
			},
			want: ReasonDeviceLocked,
		},
		{
			name: "payload full",
			setup: func(t *testing.T, f *fixture) device.Device {
				f.agv.payload.TryPut(product.New("P1", "x", 0))
				st := device.NewStation(f.env, "S", 2)
				seed(t, st, "", "a")
				return st
			},
			want: ReasonCapacity,
		},
		{
			name: "battery low",
			setup: func(t *testing.T, f *fixture) device.Device {
				f.agv.battery = 5
				st := device.NewStation(f.env, "S", 2)
				seed(t, st, "", "a")
				return st
			},
			want: ReasonBatteryLow,
		},
		{
			name:  "warehouse cannot be loaded from",
			setup: func(t *testing.T, f *fixture) device.Device { return device.NewWarehouse(f.env, "W") },
			want:  ReasonNotAllowed,
		},
		{
			name: "unknown quality checker buffer",
			setup: func(t *testing.T, f *fixture) device.Device {
				qc := device.NewQualityChecker(f.env, "QC", 2, 2)
				seed(t, qc, device.BufferOutput, "a")
				return qc
			},
			buffer: "side",
			want:   ReasonUnknownTarget,
		},
		{
			name: "empty conveyor lane",
			setup: func(t *testing.T, f *fixture) device.Device {
				c := device.NewTripleBufferConveyor(f.env, "C", 2, 1)
				seed(t, c, device.BufferMain, "a")
				return c
			},
			buffer: device.BufferUpper,
			want:   ReasonCapacity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "P0", nil)
			dev := tt.setup(t, f)
			before := len(f.agv.Payload())
			var buffersBefore map[string][]string
			if in, ok := dev.(device.Inspector); ok {
				buffersBefore = in.Buffers()
			}
			battery := f.agv.BatteryLevel()

			var res Result
			f.drive(t, func(p *sim.Proc) { res = f.agv.LoadFrom(p, dev, tt.buffer, "") })

			assert.False(t, res.OK)
			assert.Equal(t, tt.want, res.Reason, res.Message)
			assert.Len(t, f.agv.Payload(), before)
			assert.Equal(t, battery, f.agv.BatteryLevel())
			assert.Equal(t, StatusIdle, f.agv.Status())
			assert.Equal(t, 0.0, f.env.Now())
			if in, ok := dev.(device.Inspector); ok {
				assert.Equal(t, buffersBefore, in.Buffers())
			}
		})
	}
}

func TestLoadQualityCheckerDefaultsToOutputBuffer(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.PayloadCapacity = 2 })
	qc := device.NewQualityChecker(f.env, "QualityCheck", 2, 2)
	seed(t, qc, device.BufferDefault, "waiting")
	seed(t, qc, device.BufferOutput, "checked")

	var first, second Result
	f.drive(t, func(p *sim.Proc) {
		first = f.agv.LoadFrom(p, qc, "", "")
		second = f.agv.LoadFrom(p, qc, device.BufferDefault, "")
	})

	require.True(t, first.OK)
	assert.Equal(t, "checked", first.Product.ID)
	require.True(t, second.OK)
	assert.Equal(t, "waiting", second.Product.ID)
}

func TestSelectorOnlyHonouredByRawMaterial(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.PayloadCapacity = 2 })
	rm := device.NewRawMaterial(f.env, "RawMaterial")
	rm.CreateRawMaterial("P1", 0, product.WithID("r1"))
	rm.CreateRawMaterial("P2", 0, product.WithID("r2"))
	st := device.NewStation(f.env, "StationA", 2)
	seed(t, st, "", "s1", "s2")

	var fromRaw, fromStation Result
	f.drive(t, func(p *sim.Proc) {
		fromRaw = f.agv.LoadFrom(p, rm, "", "r2")
		fromStation = f.agv.LoadFrom(p, st, "", "s2")
	})

	require.True(t, fromRaw.OK)
	assert.Equal(t, "r2", fromRaw.Product.ID)
	require.True(t, fromStation.OK)
	assert.Equal(t, "s1", fromStation.Product.ID)
}

func TestUnloadRoutingViolationRestoresPayload(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	prod := product.New("P1", "RawMaterial", 0, product.WithRoute("StationB"))
	require.True(t, a.payload.TryPut(prod))
	st := device.NewStation(f.env, "StationA", 2)

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.UnloadTo(p, st, "") })

	assert.Equal(t, ReasonRoutingViolation, res.Reason)
	assert.Same(t, prod, res.Product)
	require.Len(t, a.Payload(), 1)
	assert.Same(t, prod, a.Payload()[0])
	assert.True(t, st.IsEmpty(""))
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, 50.0, a.BatteryLevel())
}

func TestUnloadFollowsRoute(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	prod := product.New("P1", "RawMaterial", 0, product.WithRoute("StationA", "StationB"))
	require.True(t, a.payload.TryPut(prod))
	st := device.NewStation(f.env, "StationA", 2)

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.UnloadTo(p, st, "") })

	require.True(t, res.OK, res.String())
	assert.Equal(t, "StationA", prod.Location)
	assert.Equal(t, "StationB", prod.NextStop())
}

func TestUnloadRespectsPointOperations(t *testing.T) {
	tests := []struct {
		name string
		ops  layout.PointOperations
		want Reason
	}{
		{"wrong device", layout.PointOperations{DeviceID: "StationB", Operations: []layout.Operation{layout.OpUnload}}, ReasonNotAllowed},
		{"unload not declared", layout.PointOperations{DeviceID: "QC", Operations: []layout.Operation{layout.OpLoad}}, ReasonNotAllowed},
		{"declared buffer is used", layout.PointOperations{DeviceID: "QC", Operations: []layout.Operation{layout.OpUnload}, DefaultBuffer: device.BufferOutput}, ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "P0", nil, WithOperations(layout.OperationMap{"P0": tt.ops}))
			qc := device.NewQualityChecker(f.env, "QC", 2, 2)
			require.True(t, f.agv.payload.TryPut(product.New("P1", "x", 0, product.WithID("p"))))

			var res Result
			f.drive(t, func(p *sim.Proc) { res = f.agv.UnloadTo(p, qc, "") })

			assert.Equal(t, tt.want, res.Reason, res.Message)
			if tt.want == ReasonNone {
				assert.Equal(t, 1, qc.Len(device.BufferOutput))
				assert.True(t, f.agv.IsPayloadEmpty())
			} else {
				assert.Len(t, f.agv.Payload(), 1)
			}
		})
	}
}

func TestUnloadFailuresKeepProduct(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.PayloadCapacity = 2 })
	a := f.agv
	full := device.NewStation(f.env, "Full", 1)
	seed(t, full, "", "x")
	qc := device.NewQualityChecker(f.env, "QC", 2, 1)
	seed(t, qc, device.BufferOutput, "y")
	rm := device.NewRawMaterial(f.env, "RawMaterial")

	var toFull, toEmptyPayload, toQCOutput, toRaw Result
	f.drive(t, func(p *sim.Proc) {
		toEmptyPayload = a.UnloadTo(p, qc, "")
		a.payload.TryPut(product.New("P1", "x", 0, product.WithID("first")))
		a.payload.TryPut(product.New("P1", "x", 0, product.WithID("second")))
		toFull = a.UnloadTo(p, full, "")
		toQCOutput = a.UnloadTo(p, qc, device.BufferOutput)
		toRaw = a.UnloadTo(p, rm, "")
	})

	assert.Equal(t, ReasonCapacity, toEmptyPayload.Reason)
	assert.Equal(t, ReasonCapacity, toFull.Reason)
	assert.Equal(t, ReasonCapacity, toQCOutput.Reason)
	assert.Equal(t, ReasonNotAllowed, toRaw.Reason)

	require.Len(t, a.Payload(), 2)
	assert.Equal(t, "first", a.Payload()[0].ID, "a failed unload puts the product back at the head")
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, 0.0, f.env.Now())
}

func TestUnloadToConveyorWaitsForRoom(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	c := device.NewTripleBufferConveyor(f.env, "Conveyor_CQ", 1, 1)
	seed(t, c, device.BufferMain, "blocking")
	require.False(t, c.IsFull(), "side lanes still have room")
	require.True(t, a.payload.TryPut(product.New("P1", "x", 0, product.WithID("mine"))))

	f.at(7, func() {
		assert.Equal(t, StatusInteracting, a.Status())
		_, err := c.Pop(device.BufferMain, "")
		assert.NoError(t, err)
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.UnloadTo(p, c, "") })

	require.True(t, res.OK, res.String())
	assert.Equal(t, 8.0, f.env.Now())
	assert.Equal(t, map[string][]string{"main": {"mine"}, "upper": {}, "lower": {}}, c.Buffers())
	assert.True(t, a.IsPayloadEmpty())
}

func TestUnloadToTripleBufferConveyorDefaultsToMain(t *testing.T) {
	f := newFixture(t, "P0", nil)
	c := device.NewTripleBufferConveyor(f.env, "Conveyor_CQ", 2, 1)
	require.True(t, f.agv.payload.TryPut(product.New("P1", "x", 0, product.WithID("p"))))

	var res Result
	f.drive(t, func(p *sim.Proc) { res = f.agv.UnloadTo(p, c, "") })

	require.True(t, res.OK)
	assert.Equal(t, 1, c.Len(device.BufferMain))
}

func TestUnloadToWarehouse(t *testing.T) {
	f := newFixture(t, "P0", nil)
	wh := device.NewWarehouse(f.env, "Warehouse")
	require.True(t, f.agv.payload.TryPut(product.New("P3", "x", 0)))

	var res Result
	f.drive(t, func(p *sim.Proc) { res = f.agv.UnloadTo(p, wh, "") })

	require.True(t, res.OK)
	assert.Equal(t, map[string]int{"P3": 1}, wh.Received())
}

type explodingDevice struct {
	*device.Station
}

func (e explodingDevice) Pop(string, string) (*product.Product, error) {
	panic("sensor failure")
}

func TestLoadRecoversFromDevicePanic(t *testing.T) {
	f := newFixture(t, "P0", nil)
	st := device.NewStation(f.env, "S", 2)
	seed(t, st, "", "a")

	var res Result
	f.drive(t, func(p *sim.Proc) { res = f.agv.LoadFrom(p, explodingDevice{st}, "", "") })

	assert.Equal(t, ReasonInternal, res.Reason)
	assert.Contains(t, res.Message, "sensor failure")
	assert.Equal(t, StatusIdle, f.agv.Status())
	assert.True(t, f.agv.IsPayloadEmpty())
}

type jammedDevice struct {
	*device.Station
}

func (j jammedDevice) Push(*sim.Proc, *product.Product, string) error {
	panic("conveyor jammed")
}

func TestUnloadRecoversFromDevicePanic(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	st := device.NewStation(f.env, "S", 2)
	prod := product.New("P1", "x", 0, product.WithID("held"))

	var res Result
	f.drive(t, func(p *sim.Proc) {
		require.True(t, a.payload.TryPut(prod))
		res = a.UnloadTo(p, jammedDevice{st}, "")
	})

	assert.Equal(t, ReasonInternal, res.Reason)
	assert.Contains(t, res.Message, "conveyor jammed")
	require.Len(t, a.Payload(), 1)
	assert.Same(t, prod, a.Payload()[0])
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, 0, st.Len(""))
}
