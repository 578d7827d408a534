package agv

import (
	"fmt"

	"k8s.io/utils/ptr"

	"github.com/autopeer-io/agvsim/internal/sim"
)

const (
	// EmergencyChargeLevel is the level a forced charge stops at.
	EmergencyChargeLevel = 50.0
	// DefaultVoluntaryChargeLevel is used when no level is given.
	DefaultVoluntaryChargeLevel = 80.0
)

// VoluntaryCharge drives to the charger and charges to level percent,
// capped at 100. A level of zero or less selects DefaultVoluntaryChargeLevel.
func (a *AGV) VoluntaryCharge(p *sim.Proc, level float64) Result {
	if level <= 0 {
		level = DefaultVoluntaryChargeLevel
	}
	level = min(level, 100)
	return a.startCharge(p, "voluntary-charge", func(t *sim.Proc) Result {
		return a.voluntaryCharge(t, level)
	})
}

// ChargeBattery charges to level percent without counting it as a
// voluntary or forced charge.
func (a *AGV) ChargeBattery(p *sim.Proc, level float64) Result {
	return a.startCharge(p, "charge", func(t *sim.Proc) Result {
		return a.chargeTo(t, level, "", false)
	})
}

// EmergencyCharge forces a charge to EmergencyChargeLevel.
func (a *AGV) EmergencyCharge(p *sim.Proc) Result {
	return a.startCharge(p, "emergency-charge", a.emergencyCharge)
}

func (a *AGV) startCharge(p *sim.Proc, name string, body func(t *sim.Proc) Result) Result {
	if a.Status() == StatusCharging {
		return succeed("already charging")
	}
	if !a.canOperate() {
		return a.unavailable(name)
	}
	return a.runTask(p, name, body)
}

func (a *AGV) voluntaryCharge(t *sim.Proc, level float64) Result {
	a.stats.VoluntaryChargeCount++
	a.logger.Info("Voluntary charging", "target", level)
	return a.chargeTo(t, level, fmt.Sprintf("voluntary charging to %.1f%%", level), true)
}

func (a *AGV) emergencyCharge(t *sim.Proc) Result {
	a.stats.ForcedChargeCount++
	a.stats.LowBatteryInterruptions++
	a.logger.Warn("Emergency charging", "level", a.battery)
	return a.chargeTo(t, EmergencyChargeLevel, fmt.Sprintf("emergency charging to %.0f%%", EmergencyChargeLevel), false)
}

// chargeTo drives to the charger if needed and charges to level, capped
// at 100.
func (a *AGV) chargeTo(t *sim.Proc, level float64, message string, active bool) Result {
	level = min(level, 100)
	if a.Status() == StatusCharging {
		return succeed("already charging")
	}
	if a.battery >= level {
		return succeed("battery level is enough (%.1f%%)", a.battery)
	}

	a.chargeStart = ptr.To(t.Now())
	a.activeCharge = active
	defer func() {
		a.chargeStart = nil
		a.activeCharge = false
	}()

	if a.currentPoint != a.cfg.ChargingPoint {
		if res := a.move(t, a.cfg.ChargingPoint); !res.OK {
			return res
		}
		if a.Status() == StatusFault {
			return fail(ReasonUnavailable, "fault on the way to the charging point")
		}
	}

	a.setStatus(StatusCharging, message)
	chargeTime := (level - a.battery) / a.cfg.ChargingSpeed
	a.logger.Info("Charging", "from", a.battery, "to", level, "eta", chargeTime)

	if err := t.Wait(chargeTime); err != nil {
		if a.Status() == StatusCharging {
			a.setStatus(StatusIdle, "charging interrupted")
		}
		return a.interrupted(err, "charging")
	}

	a.battery = level
	a.stats.TotalChargeTime += chargeTime
	a.kpi.RegisterCharge(a.cfg.ID, a.cfg.LineID, a.activeCharge, t.Now()-*a.chargeStart)
	a.kpi.AddEnergyCost(ChargeSource(a.cfg.ID), a.cfg.LineID, chargeTime, false)
	a.logger.Info("Charging complete", "level", a.battery)

	if a.triggerPendingFault() {
		return succeed("charged to %.1f%%, but triggered fault", level)
	}
	a.setStatus(StatusIdle, fmt.Sprintf("charged to %.1f%%", level))
	return succeed("charging complete, battery: %.1f%%", a.battery)
}

// watch starts an emergency charge when the battery is low and the vehicle
// is idle with no task in flight. A low battery during a move, transfer or
// charge is left to that task; the next tick after it ends picks it up.
// It runs until the environment stops.
func (a *AGV) watch(p *sim.Proc, interval float64) error {
	for {
		if err := p.Wait(interval); err != nil {
			return err
		}
		if !a.IsBatteryLow() || !a.canOperate() {
			continue
		}
		a.logger.Info("Battery low while idle, charging", "level", a.battery)
		if res := a.runTask(p, "emergency-charge", a.emergencyCharge); !res.OK {
			a.logger.Warn("Watchdog charge failed", "reason", res.Reason, "message", res.Message)
		}
	}
}
