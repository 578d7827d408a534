package agv

import (
	"fmt"

	"github.com/autopeer-io/agvsim/internal/sim"
)

// MoveTo drives the vehicle to target and returns once it has arrived or
// the move failed. If the battery would not cover the trip and the way back
// to the charger, the move fails and an emergency charge runs instead.
func (a *AGV) MoveTo(p *sim.Proc, target string) Result {
	if !a.canOperate() {
		return a.unavailable("move")
	}
	if _, ok := a.cfg.Points[target]; !ok {
		return fail(ReasonUnknownTarget, "unknown path point %s", target)
	}
	return a.runTask(p, "move", func(t *sim.Proc) Result {
		return a.move(t, target)
	})
}

// move is the body of a movement task. It is also driven inline by charging
// tasks heading for the charger.
func (a *AGV) move(t *sim.Proc, target string) Result {
	if a.Status() == StatusFault {
		return a.unavailable("move")
	}
	if _, ok := a.cfg.Points[target]; !ok {
		return fail(ReasonUnknownTarget, "unknown path point %s", target)
	}
	travel := a.oracle.TravelTime(a.currentPoint, target)
	if travel < 0 {
		return fail(ReasonUnreachable, "no path from %s to %s", a.currentPoint, target)
	}

	if target == a.cfg.ChargingPoint {
		if a.battery < a.drain(travel)+chargerMargin {
			a.logger.Warn("Cannot reach charging point", "level", a.battery)
			return fail(ReasonBatteryCritical, "battery critically low (%.1f%%), cannot even reach charging point", a.battery)
		}
	} else if !a.CanComplete(travel, 1, target) {
		a.logger.Warn("Battery too low for move, charging first", "target", target, "level", a.battery)
		a.stats.TasksInterrupted++
		res := a.emergencyCharge(t)
		if res.Reason == ReasonInterrupted {
			return res
		}
		if !res.OK {
			return fail(ReasonBatteryInsufficient, "battery level too low to move to %s, emergency charge failed (%s): %s", target, res.Reason, res.Message)
		}
		return fail(ReasonBatteryInsufficient, "battery level too low to move to %s, emergency charged: %s", target, res.Message)
	}

	from := a.currentPoint
	a.targetPoint = target
	a.arriveAt = t.Now() + travel
	a.setStatus(StatusMoving, fmt.Sprintf("moving to %s from %s, estimated time: %.1fs", target, from, travel))
	a.logger.Info("Moving", "from", from, "to", target, "eta", travel)

	if err := t.Wait(travel); err != nil {
		a.targetPoint = ""
		a.arriveAt = 0
		if a.Status() == StatusMoving {
			a.setStatus(StatusIdle, fmt.Sprintf("movement to %s interrupted", target))
		}
		return a.interrupted(err, "movement to "+target)
	}

	a.position = a.cfg.Points[target]
	a.currentPoint = target
	a.targetPoint = ""
	a.arriveAt = 0

	distance := travel * a.cfg.Speed
	a.consume(distance*a.cfg.ConsumptionPerMeter, "move to "+target)
	a.consume(a.cfg.ConsumptionPerAction, "path point operation")
	a.stats.TotalDistance += distance
	a.stats.TasksCompleted++

	a.kpi.RegisterTaskComplete(a.cfg.ID, a.cfg.LineID)
	a.kpi.UpdateTransportTime(a.cfg.ID, a.cfg.LineID, travel)
	a.kpi.AddEnergyCost(DriveSource(a.cfg.ID), a.cfg.LineID, travel, false)

	a.logger.Info("Arrived", "point", target, "level", a.battery)

	if a.triggerPendingFault() {
		return succeed("arrived at %s, but triggered fault", target)
	}
	a.setStatus(StatusIdle, "arrived at "+target)
	return succeed("arrived at path point %s, remaining battery: %.1f%%", target, a.battery)
}

func (a *AGV) unavailable(what string) Result {
	a.logger.Warn("Vehicle not available", "command", what, "status", a.Status(), "busy", a.Busy())
	return fail(ReasonUnavailable, "cannot %s: agv %s is not available (%s)", what, a.cfg.ID, a.Status())
}
