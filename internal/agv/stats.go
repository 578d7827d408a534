package agv

// Stats are the monotonic counters of one vehicle.
type Stats struct {
	TotalDistance           float64 `json:"total_distance" yaml:"total_distance"`
	TotalChargeTime         float64 `json:"total_charge_time" yaml:"total_charge_time"`
	ForcedChargeCount       int     `json:"forced_charge_count" yaml:"forced_charge_count"`
	VoluntaryChargeCount    int     `json:"voluntary_charge_count" yaml:"voluntary_charge_count"`
	LowBatteryInterruptions int     `json:"low_battery_interruptions" yaml:"low_battery_interruptions"`
	TasksCompleted          int     `json:"tasks_completed" yaml:"tasks_completed"`
	TasksInterrupted        int     `json:"tasks_interrupted" yaml:"tasks_interrupted"`
}

// BatteryStatus is a snapshot of the battery state.
type BatteryStatus struct {
	Level         float64 `json:"battery_level" yaml:"battery_level"`
	IsCharging    bool    `json:"is_charging" yaml:"is_charging"`
	IsLow         bool    `json:"is_low_battery" yaml:"is_low_battery"`
	ChargingPoint string  `json:"charging_point" yaml:"charging_point"`
	CanOperate    bool    `json:"can_operate" yaml:"can_operate"`
	Stats         Stats   `json:"stats" yaml:"stats"`
}

// ChargingStats summarises charging behaviour for KPI reporting.
type ChargingStats struct {
	TotalChargeTime         float64 `json:"total_charge_time" yaml:"total_charge_time"`
	ForcedChargeCount       int     `json:"forced_charge_count" yaml:"forced_charge_count"`
	VoluntaryChargeCount    int     `json:"voluntary_charge_count" yaml:"voluntary_charge_count"`
	LowBatteryInterruptions int     `json:"low_battery_interruptions" yaml:"low_battery_interruptions"`
	TasksCompleted          int     `json:"tasks_completed" yaml:"tasks_completed"`
	TasksInterrupted        int     `json:"tasks_interrupted" yaml:"tasks_interrupted"`
	// ChargeEfficiency is the share of voluntary charges, in percent.
	ChargeEfficiency float64 `json:"charge_efficiency" yaml:"charge_efficiency"`
}

// BatteryStatus returns a snapshot of the battery state.
func (a *AGV) BatteryStatus() BatteryStatus {
	return BatteryStatus{
		Level:         a.battery,
		IsCharging:    a.Status() == StatusCharging,
		IsLow:         a.IsBatteryLow(),
		ChargingPoint: a.cfg.ChargingPoint,
		CanOperate:    !a.IsBatteryLow(),
		Stats:         a.stats,
	}
}

// ChargingStats returns the charging counters.
func (a *AGV) ChargingStats() ChargingStats {
	s := a.stats
	return ChargingStats{
		TotalChargeTime:         s.TotalChargeTime,
		ForcedChargeCount:       s.ForcedChargeCount,
		VoluntaryChargeCount:    s.VoluntaryChargeCount,
		LowBatteryInterruptions: s.LowBatteryInterruptions,
		TasksCompleted:          s.TasksCompleted,
		TasksInterrupted:        s.TasksInterrupted,
		ChargeEfficiency:        float64(s.VoluntaryChargeCount) / float64(max(1, s.ForcedChargeCount+s.VoluntaryChargeCount)) * 100,
	}
}

// Stats returns a copy of the counters.
func (a *AGV) Stats() Stats { return a.stats }
