package agv

import (
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/agvsim/internal/layout"
)

// DefaultWatchdogInterval is how often the battery watchdog polls, in
// simulated seconds.
const DefaultWatchdogInterval = 5.0

// Config is the fixed configuration of one vehicle.
type Config struct {
	ID     string
	LineID string

	// Position must be one of the coordinates in Points.
	Position layout.Point
	Points   layout.Points

	Speed           float64 // m/s
	PayloadCapacity int
	OperationTime   float64 // seconds per load/unload

	BatteryLevel         float64 // percent
	LowBatteryThreshold  float64 // percent
	ChargingPoint        string
	ChargingSpeed        float64 // percent per second
	ConsumptionPerMeter  float64 // percent
	ConsumptionPerAction float64 // percent

	// WatchdogInterval is the polling period of the background charger.
	// Zero selects DefaultWatchdogInterval, a negative value disables it.
	WatchdogInterval float64
}

// DefaultConfig returns the configuration of a standard vehicle. Position
// and Points still have to be filled in.
func DefaultConfig(id string) Config {
	return Config{
		ID:                   id,
		Speed:                2.0,
		PayloadCapacity:      1,
		OperationTime:        1.0,
		BatteryLevel:         50.0,
		LowBatteryThreshold:  10.0,
		ChargingPoint:        "P10",
		ChargingSpeed:        3.33,
		ConsumptionPerMeter:  0.1,
		ConsumptionPerAction: 0.5,
	}
}

// Validate checks the construction contract.
func (c *Config) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if _, ok := c.Points.NameOf(c.Position); !ok {
		errs = append(errs, fmt.Errorf("position %v is not a path point", c.Position))
	}
	if _, ok := c.Points[c.ChargingPoint]; !ok {
		errs = append(errs, fmt.Errorf("charging point %q is not a path point", c.ChargingPoint))
	}
	if c.Speed <= 0 {
		errs = append(errs, fmt.Errorf("speed must be positive, got %v", c.Speed))
	}
	if c.ChargingSpeed <= 0 {
		errs = append(errs, fmt.Errorf("charging speed must be positive, got %v", c.ChargingSpeed))
	}
	if c.PayloadCapacity < 1 {
		errs = append(errs, fmt.Errorf("payload capacity must be at least 1, got %d", c.PayloadCapacity))
	}
	if c.BatteryLevel < 0 || c.BatteryLevel > 100 {
		errs = append(errs, fmt.Errorf("battery level must be within [0, 100], got %v", c.BatteryLevel))
	}
	if c.OperationTime < 0 || c.ConsumptionPerMeter < 0 || c.ConsumptionPerAction < 0 {
		errs = append(errs, errors.New("operation time and consumption rates must not be negative"))
	}
	return utilerrors.NewAggregate(errs)
}
