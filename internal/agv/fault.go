package agv

import "fmt"

// triggerPendingFault is consulted right before a task declares the vehicle
// idle. A pending fault is consumed and injected, and the vehicle ends up in
// fault instead of idle.
func (a *AGV) triggerPendingFault() bool {
	kind, ok := a.faults.TakePendingFault(a.cfg.ID)
	if !ok {
		return false
	}
	a.logger.Warn("Triggering pending fault", "fault", kind)
	a.setStatus(StatusFault, fmt.Sprintf("fault: %s", kind))
	a.faults.InjectNow(a.cfg.ID, kind)
	return true
}

// Recover brings a faulted vehicle back to idle. It returns false if the
// vehicle was not in fault.
func (a *AGV) Recover(message string) bool {
	if a.Status() != StatusFault {
		return false
	}
	if message == "" {
		message = "recovered"
	}
	a.logger.Info("Recovered from fault")
	a.setStatus(StatusIdle, message)
	return true
}
