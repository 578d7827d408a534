package agv

import "fmt"

const (
	// chargerMargin is kept in reserve when driving to the charging point.
	chargerMargin = 1.0
	// returnMargin is kept in reserve on top of the trip back to the charger.
	returnMargin = 3.0
)

// BatteryLevel returns the charge in percent.
func (a *AGV) BatteryLevel() float64 { return a.battery }

// IsBatteryLow reports whether the charge is at or below the low threshold.
func (a *AGV) IsBatteryLow() bool {
	return a.battery <= a.cfg.LowBatteryThreshold
}

// consume drains amount percent. Crossing the low threshold downwards is
// announced once; staying below it is not.
func (a *AGV) consume(amount float64, reason string) {
	if amount <= 0 {
		return
	}
	old := a.battery
	a.battery = min(100, max(0, a.battery-amount))

	if old > a.cfg.LowBatteryThreshold && a.battery <= a.cfg.LowBatteryThreshold {
		msg := fmt.Sprintf("battery low: %.1f%% (%s)", a.battery, reason)
		a.logger.Warn("Battery low", "level", a.battery, "reason", reason)
		a.publish(msg)
	}
}

// drain returns the battery needed to drive for seconds.
func (a *AGV) drain(seconds float64) float64 {
	return seconds * a.cfg.Speed * a.cfg.ConsumptionPerMeter
}

// CanComplete estimates whether the battery covers a task of travelTime
// seconds and actions operations ending at target, while still leaving
// enough to reach the charging point afterwards. An empty target means the
// task ends where the vehicle is now.
func (a *AGV) CanComplete(travelTime float64, actions int, target string) bool {
	needed := a.drain(travelTime) + float64(actions)*a.cfg.ConsumptionPerAction
	if target == a.cfg.ChargingPoint {
		return a.battery >= needed+chargerMargin
	}
	return a.battery >= needed+a.returnReserve(target)+returnMargin
}

// returnReserve is the battery needed to get from point (or the current
// point) back to the charger.
func (a *AGV) returnReserve(point string) float64 {
	if point == "" {
		point = a.currentPoint
	}
	if t := a.oracle.TravelTime(point, a.cfg.ChargingPoint); t >= 0 {
		return a.drain(t)
	}
	from, ok := a.cfg.Points[point]
	if !ok {
		from = a.position
	}
	return from.Dist(a.cfg.Points[a.cfg.ChargingPoint]) * a.cfg.ConsumptionPerMeter
}
