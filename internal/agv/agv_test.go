package agv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/agvsim/internal/layout"
	"github.com/autopeer-io/agvsim/internal/sim"
)

type recorder struct {
	reports []StatusReport
}

func (r *recorder) PublishStatus(rep StatusReport) error {
	r.reports = append(r.reports, rep)
	return nil
}

func (r *recorder) count(substr string) int {
	n := 0
	for _, rep := range r.reports {
		if rep.Message != nil && strings.Contains(*rep.Message, substr) {
			n++
		}
	}
	return n
}

func (r *recorder) statuses() []Status {
	out := make([]Status, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, rep.Status)
	}
	return out
}

type kpiCall struct {
	name    string
	id      string
	seconds float64
	active  bool
}

type fakeKPI struct {
	calls []kpiCall
}

func (k *fakeKPI) RegisterTaskComplete(agvID, _ string) {
	k.calls = append(k.calls, kpiCall{name: "task_complete", id: agvID})
}

func (k *fakeKPI) UpdateTransportTime(agvID, _ string, seconds float64) {
	k.calls = append(k.calls, kpiCall{name: "transport_time", id: agvID, seconds: seconds})
}

func (k *fakeKPI) UpdateFaultTime(agvID, _ string, seconds float64) {
	k.calls = append(k.calls, kpiCall{name: "fault_time", id: agvID, seconds: seconds})
}

func (k *fakeKPI) AddEnergyCost(sourceID, _ string, seconds float64, _ bool) {
	k.calls = append(k.calls, kpiCall{name: "energy", id: sourceID, seconds: seconds})
}

func (k *fakeKPI) RegisterCharge(agvID, _ string, active bool, seconds float64) {
	k.calls = append(k.calls, kpiCall{name: "charge", id: agvID, seconds: seconds, active: active})
}

func (k *fakeKPI) find(name string) []kpiCall {
	var out []kpiCall
	for _, c := range k.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type fakeFaults struct {
	pending  map[string]string
	injected []string
}

func (f *fakeFaults) TakePendingFault(id string) (string, bool) {
	kind, ok := f.pending[id]
	delete(f.pending, id)
	return kind, ok
}

func (f *fakeFaults) InjectNow(id, kind string) {
	f.injected = append(f.injected, id+":"+kind)
}

// testLayout: P0 is 10s from P1 and 5s from the charger P10; P1 is 13s
// from the charger.
func testLayout(t *testing.T) (layout.Points, *layout.PathTable) {
	t.Helper()
	points := layout.Points{
		"P0":  {X: 0, Y: 0},
		"P1":  {X: 20, Y: 0},
		"P10": {X: 0, Y: 10},
	}
	tbl := layout.NewPathTable(true)
	require.NoError(t, tbl.Set("P0", "P1", 10))
	require.NoError(t, tbl.Set("P1", "P10", 13))
	require.NoError(t, tbl.Set("P0", "P10", 5))
	return points, tbl
}

type fixture struct {
	env    *sim.Env
	agv    *AGV
	pub    *recorder
	kpi    *fakeKPI
	faults *fakeFaults
	table  *layout.PathTable
}

func newFixture(t *testing.T, at string, mutate func(*Config), opts ...Option) *fixture {
	t.Helper()
	points, tbl := testLayout(t)
	cfg := DefaultConfig("agv1")
	cfg.Points = points
	cfg.Position = points[at]
	cfg.WatchdogInterval = -1
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		env:    sim.NewEnv(),
		pub:    &recorder{},
		kpi:    &fakeKPI{},
		faults: &fakeFaults{pending: map[string]string{}},
		table:  tbl,
	}
	opts = append([]Option{WithOracle(tbl), WithPublisher(f.pub), WithKPI(f.kpi), WithFaults(f.faults)}, opts...)
	a, err := New(f.env, cfg, opts...)
	require.NoError(t, err)
	f.agv = a
	t.Cleanup(f.env.Close)
	return f
}

// drive runs fn as a process and returns once it has finished.
func (f *fixture) drive(t *testing.T, fn func(p *sim.Proc)) {
	t.Helper()
	p := f.env.Process("driver", func(p *sim.Proc) error {
		fn(p)
		return nil
	})
	require.NoError(t, f.env.RunProcess(p))
}

// at runs fn in its own process once the clock reaches when.
func (f *fixture) at(when float64, fn func()) {
	f.env.Process("observer", func(p *sim.Proc) error {
		if err := p.Wait(when - p.Now()); err != nil {
			return err
		}
		fn()
		return nil
	})
}

func TestNewValidatesConstruction(t *testing.T) {
	points, _ := testLayout(t)
	env := sim.NewEnv()

	cfg := DefaultConfig("agv1")
	cfg.Points = points
	cfg.Position = layout.Point{X: 7, Y: 7}
	_, err := New(env, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a path point")

	cfg.Position = points["P0"]
	cfg.ChargingPoint = "P99"
	_, err = New(env, cfg)
	require.Error(t, err)

	cfg.ChargingPoint = "P10"
	cfg.Speed = 0
	_, err = New(env, cfg)
	require.Error(t, err)

	cfg.ChargingSpeed = 0
	_, err = New(env, cfg)
	var agg utilerrors.Aggregate
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors(), 2)
}

func TestNewPublishesInitialStatus(t *testing.T) {
	f := newFixture(t, "P0", nil)
	require.Len(t, f.pub.reports, 1)
	rep := f.pub.reports[0]
	assert.Equal(t, "initialized", *rep.Message)
	assert.Equal(t, StatusIdle, rep.Status)
	assert.Equal(t, "P0", rep.CurrentPoint)
	assert.Nil(t, rep.TargetPoint)
	assert.Equal(t, "agv1", f.agv.ID())
	assert.Equal(t, []string{"P0", "P1", "P10"}, f.agv.PathPoints())
	assert.Equal(t, "AGV(id=agv1, battery=50.0%, payload=0/1)", f.agv.String())
}

func TestMoveToArrives(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	f.at(5, func() {
		assert.Equal(t, StatusMoving, a.Status())
		assert.Equal(t, "P1", a.TargetPoint())
		assert.Equal(t, 5.0, a.EstimatedTimeRemaining())
		assert.True(t, a.Busy())
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P1") })

	require.True(t, res.OK, res.String())
	assert.Equal(t, 10.0, f.env.Now())
	assert.Equal(t, "P1", a.CurrentPoint())
	assert.Equal(t, layout.Point{X: 20, Y: 0}, a.Position())
	assert.Empty(t, a.TargetPoint())
	assert.False(t, a.Busy())
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, 47.5, a.BatteryLevel())
	assert.Equal(t, 20.0, a.Stats().TotalDistance)
	assert.Equal(t, 1, a.Stats().TasksCompleted)

	assert.Len(t, f.kpi.find("task_complete"), 1)
	assert.Equal(t, []kpiCall{{name: "transport_time", id: "agv1", seconds: 10}}, f.kpi.find("transport_time"))
	assert.Equal(t, []kpiCall{{name: "energy", id: "AGV_agv1", seconds: 10}}, f.kpi.find("energy"))
	assert.Equal(t, []Status{StatusIdle, StatusMoving, StatusIdle}, f.pub.statuses())
}

func TestMoveToRejections(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	f.drive(t, func(p *sim.Proc) {
		res := a.MoveTo(p, "P42")
		assert.Equal(t, ReasonUnknownTarget, res.Reason)

		a.oracle = layout.NewPathTable(false)
		res = a.MoveTo(p, "P1")
		assert.Equal(t, ReasonUnreachable, res.Reason)
	})
	assert.Equal(t, "P0", a.CurrentPoint())
	assert.Equal(t, 0.0, f.env.Now())
}

func TestMoveToChargerWithCriticalBattery(t *testing.T) {
	f := newFixture(t, "P1", func(c *Config) { c.BatteryLevel = 3 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P10") })

	// 13s * 2 m/s * 0.1 + 1 = 3.6
	assert.Equal(t, ReasonBatteryCritical, res.Reason)
	assert.Equal(t, 0, a.Stats().ForcedChargeCount, "no redirect when the charger is out of reach")
	assert.Equal(t, "P1", a.CurrentPoint())
	assert.Equal(t, 3.0, a.BatteryLevel())
}

func TestMoveToInfeasibleRedirectsToEmergencyCharge(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.BatteryLevel = 9 })
	a := f.agv
	require.NoError(t, f.table.Set("P1", "P10", 20))

	f.at(6, func() {
		assert.Equal(t, StatusCharging, a.Status(), "emergency charge must be running")
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P1") })

	assert.False(t, res.OK)
	assert.Equal(t, ReasonBatteryInsufficient, res.Reason)
	assert.Contains(t, res.Message, "emergency charged")
	assert.NotContains(t, res.Message, "failed")

	stats := a.Stats()
	assert.Equal(t, 1, stats.TasksInterrupted)
	assert.Equal(t, 1, stats.ForcedChargeCount)
	assert.Equal(t, 1, stats.LowBatteryInterruptions)
	assert.Equal(t, 0, stats.VoluntaryChargeCount)

	assert.Equal(t, "P10", a.CurrentPoint())
	assert.Equal(t, EmergencyChargeLevel, a.BatteryLevel())
	assert.InDelta(t, 5+42.5/3.33, f.env.Now(), 1e-9)
	assert.Equal(t, StatusIdle, a.Status())

	charges := f.kpi.find("charge")
	require.Len(t, charges, 1)
	assert.False(t, charges[0].active)
}

func TestMoveToInfeasibleReportsFailedRedirect(t *testing.T) {
	f := newFixture(t, "P1", func(c *Config) { c.BatteryLevel = 3 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P0") })

	assert.False(t, res.OK)
	assert.Equal(t, ReasonBatteryInsufficient, res.Reason)
	assert.Contains(t, res.Message, "emergency charge failed (battery_critical)")
	assert.Equal(t, "P1", a.CurrentPoint())
	assert.Equal(t, 3.0, a.BatteryLevel())
	assert.Empty(t, f.kpi.find("charge"))
}

func TestVoluntaryChargeCapsLevelAt100(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) { c.BatteryLevel = 40 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.VoluntaryCharge(p, 150) })

	require.True(t, res.OK, res.Message)
	assert.Equal(t, 100.0, a.BatteryLevel())
	assert.InDelta(t, 60/3.33, f.env.Now(), 1e-9)
	assert.Equal(t, StatusIdle, a.Status())
}

func TestChargeBatteryTakesExactTime(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) { c.BatteryLevel = 40 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.ChargeBattery(p, 100) })

	require.True(t, res.OK, res.String())
	assert.Equal(t, 60/3.33, f.env.Now())
	assert.Equal(t, 100.0, a.BatteryLevel())
	assert.Equal(t, 60/3.33, a.Stats().TotalChargeTime)
	assert.Equal(t, StatusIdle, a.Status())
	assert.Nil(t, a.chargeStart)

	assert.Equal(t, []kpiCall{{name: "charge", id: "agv1", seconds: 60 / 3.33}}, f.kpi.find("charge"))
	assert.Equal(t, []kpiCall{{name: "energy", id: "AGV_agv1_charging", seconds: 60 / 3.33}}, f.kpi.find("energy"))
}

func TestChargeIsNoopWhenAlreadyAboveTarget(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.BatteryLevel = 90 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.VoluntaryCharge(p, 0) })

	require.True(t, res.OK)
	assert.Contains(t, res.Message, "enough")
	assert.Equal(t, 0.0, f.env.Now())
	assert.Equal(t, "P0", a.CurrentPoint())
	assert.Empty(t, f.kpi.find("charge"))
}

func TestVoluntaryChargeDrivesToCharger(t *testing.T) {
	f := newFixture(t, "P0", func(c *Config) { c.BatteryLevel = 30 })
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.VoluntaryCharge(p, 0) })

	require.True(t, res.OK, res.String())
	assert.Equal(t, "P10", a.CurrentPoint())
	assert.Equal(t, DefaultVoluntaryChargeLevel, a.BatteryLevel())
	assert.Equal(t, 1, a.Stats().VoluntaryChargeCount)
	assert.Equal(t, 1, a.Stats().TasksCompleted)

	wantTime := 5 + (80-28.5)/3.33
	assert.InDelta(t, wantTime, f.env.Now(), 1e-9)
	charges := f.kpi.find("charge")
	require.Len(t, charges, 1)
	assert.True(t, charges[0].active)
	assert.InDelta(t, wantTime, charges[0].seconds, 1e-9, "charge duration includes the drive to the charger")

	assert.Equal(t, []Status{StatusIdle, StatusMoving, StatusIdle, StatusCharging, StatusIdle}, f.pub.statuses())
}

func TestInterruptMovementKeepsPosition(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	f.at(4, func() {
		assert.True(t, a.Interrupt("path blocked"))
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P1") })

	assert.False(t, res.OK)
	assert.Equal(t, ReasonInterrupted, res.Reason)
	assert.Contains(t, res.Message, "path blocked")
	assert.Equal(t, 4.0, f.env.Now())
	assert.Equal(t, "P0", a.CurrentPoint())
	assert.Equal(t, layout.Point{X: 0, Y: 0}, a.Position())
	assert.Empty(t, a.TargetPoint())
	assert.Equal(t, 50.0, a.BatteryLevel())
	assert.Equal(t, StatusIdle, a.Status())
	assert.False(t, a.Busy())
	assert.False(t, a.Interrupt("nothing running"))
	assert.Equal(t, 0, a.Stats().TasksCompleted)
}

func TestInterruptCharging(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) { c.BatteryLevel = 20 })
	a := f.agv

	f.at(3, func() {
		assert.True(t, a.Interrupt("shift change"))
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.VoluntaryCharge(p, 90) })

	assert.Equal(t, ReasonInterrupted, res.Reason)
	assert.Contains(t, res.Message, "shift change")
	assert.Equal(t, 20.0, a.BatteryLevel())
	assert.Equal(t, StatusIdle, a.Status())
	assert.Equal(t, 0.0, a.Stats().TotalChargeTime)
	assert.Empty(t, f.kpi.find("charge"))
}

func TestCommandsRejectedWhileBusy(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	f.at(1, func() {
		f.env.Process("second", func(p *sim.Proc) error {
			res := a.MoveTo(p, "P10")
			assert.Equal(t, ReasonUnavailable, res.Reason)
			return nil
		})
	})

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.MoveTo(p, "P1") })
	assert.True(t, res.OK)
	assert.Equal(t, "P1", a.CurrentPoint())
}

func TestPendingFaultFiresAfterNextMove(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv
	f.faults.pending["agv1"] = "agv_battery_fault"

	f.at(5, func() {
		assert.Empty(t, f.faults.injected, "fault must wait for the task to finish")
		assert.Equal(t, StatusMoving, a.Status())
	})

	var first, second Result
	f.drive(t, func(p *sim.Proc) {
		first = a.MoveTo(p, "P1")
		second = a.MoveTo(p, "P0")
		if err := p.Wait(3); err != nil {
			return
		}
		assert.True(t, a.Recover("repaired"))
	})

	require.True(t, first.OK)
	assert.Contains(t, first.Message, "triggered fault")
	assert.Equal(t, []string{"agv1:agv_battery_fault"}, f.faults.injected)
	assert.Empty(t, f.faults.pending)

	assert.Equal(t, ReasonUnavailable, second.Reason)
	assert.Equal(t, StatusIdle, a.Status())
	assert.False(t, a.Recover("again"))
	assert.Equal(t, []kpiCall{{name: "fault_time", id: "agv1", seconds: 3}}, f.kpi.find("fault_time"))
}

func TestPendingFaultFiresAfterCharge(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) { c.BatteryLevel = 40 })
	a := f.agv
	f.faults.pending["agv1"] = "agv_collision"

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.ChargeBattery(p, 50) })

	require.True(t, res.OK)
	assert.Equal(t, 50.0, a.BatteryLevel())
	assert.Equal(t, StatusFault, a.Status())
	assert.Len(t, f.faults.injected, 1)
}

func TestWatchdogStartsEmergencyCharge(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) {
		c.BatteryLevel = 9
		c.WatchdogInterval = 5
	})
	a := f.agv

	f.env.RunUntil(4.9)
	assert.Equal(t, StatusIdle, a.Status())

	f.env.RunUntil(6)
	assert.Equal(t, StatusCharging, a.Status())

	f.env.RunUntil(5 + 41/3.33 + 0.1)
	assert.Equal(t, EmergencyChargeLevel, a.BatteryLevel())
	assert.Equal(t, 1, a.Stats().ForcedChargeCount)
	assert.Equal(t, StatusIdle, a.Status())

	f.env.RunUntil(60)
	assert.Equal(t, 1, a.Stats().ForcedChargeCount, "no charge once the battery is fine")
}

func TestWatchdogLeavesBusyVehicleAlone(t *testing.T) {
	f := newFixture(t, "P10", func(c *Config) {
		c.BatteryLevel = 9
		c.WatchdogInterval = 1
	})
	a := f.agv

	var res Result
	f.drive(t, func(p *sim.Proc) { res = a.VoluntaryCharge(p, 30) })
	require.True(t, res.OK)
	assert.InDelta(t, 21/3.33, f.env.Now(), 1e-6)

	f.env.RunUntil(20)
	assert.Equal(t, 30.0, a.BatteryLevel())
	assert.Equal(t, 1, a.Stats().VoluntaryChargeCount)
	assert.Equal(t, 0, a.Stats().ForcedChargeCount)
	assert.Equal(t, StatusIdle, a.Status())
}

func TestStatusChangesPublishOnce(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	a.setStatus(StatusIdle, "noop")
	assert.Len(t, f.pub.reports, 1)

	a.setStatus(StatusInteracting, "working")
	a.setStatus(StatusInteracting, "still working")
	assert.Len(t, f.pub.reports, 2)
	assert.Equal(t, "working", *f.pub.reports[1].Message)
}

func TestChargingStatsEfficiency(t *testing.T) {
	f := newFixture(t, "P0", nil)
	a := f.agv

	assert.Equal(t, 0.0, a.ChargingStats().ChargeEfficiency)

	a.stats.VoluntaryChargeCount = 3
	a.stats.ForcedChargeCount = 1
	assert.Equal(t, 75.0, a.ChargingStats().ChargeEfficiency)

	bs := a.BatteryStatus()
	assert.Equal(t, 50.0, bs.Level)
	assert.False(t, bs.IsLow)
	assert.True(t, bs.CanOperate)
	assert.Equal(t, "P10", bs.ChargingPoint)
	assert.Equal(t, 3, bs.Stats.VoluntaryChargeCount)
}
