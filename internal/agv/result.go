package agv

import (
	"fmt"

	"github.com/autopeer-io/agvsim/internal/product"
)

// Reason classifies why a command failed.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonUnavailable         Reason = "unavailable"
	ReasonUnknownTarget       Reason = "unknown_target"
	ReasonUnreachable         Reason = "unreachable"
	ReasonCapacity            Reason = "capacity"
	ReasonBatteryLow          Reason = "battery_low"
	ReasonBatteryInsufficient Reason = "battery_insufficient"
	ReasonBatteryCritical     Reason = "battery_critical"
	ReasonNotAllowed          Reason = "not_allowed"
	ReasonDeviceLocked        Reason = "device_locked"
	ReasonRoutingViolation    Reason = "routing_violation"
	ReasonInterrupted         Reason = "interrupted"
	ReasonInternal            Reason = "internal"
)

// Result is the outcome of an AGV command. Domain failures are reported
// here and never as Go errors.
type Result struct {
	OK      bool
	Reason  Reason
	Message string
	// Product is the product that was transferred, or the one that failed
	// to transfer.
	Product *product.Product
}

func succeed(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func fail(reason Reason, format string, args ...any) Result {
	return Result{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (r Result) String() string {
	if r.OK {
		return "ok: " + r.Message
	}
	return fmt.Sprintf("failed (%s): %s", r.Reason, r.Message)
}
