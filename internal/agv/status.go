package agv

import (
	"context"

	"github.com/looplab/fsm"
	"k8s.io/utils/ptr"

	fsmutil "github.com/autopeer-io/agvsim/internal/pkg/util/fsm"
)

// Status is the operating state of a vehicle.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusMoving      Status = "moving"
	StatusInteracting Status = "interacting"
	StatusCharging    Status = "charging"
	StatusFault       Status = "fault"
)

var statuses = []Status{StatusIdle, StatusMoving, StatusInteracting, StatusCharging, StatusFault}

func newStatusMachine(a *AGV) *fsm.FSM {
	return fsm.NewFSM(string(StatusIdle), fsmutil.Complete(statuses...), fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(a.onEnterStatus),
	})
}

// Status returns the current operating state.
func (a *AGV) Status() Status {
	return Status(a.fsm.Current())
}

// setStatus moves to s. Setting the current status again is a no-op and
// publishes nothing.
func (a *AGV) setStatus(s Status, message string) {
	if a.Status() == s {
		return
	}
	if err := a.fsm.Event(context.Background(), fsmutil.EventTo(s), message); err != nil {
		a.logger.Warn("Status side effect failed", "status", s, "error", err)
	}
}

// onEnterStatus tracks fault duration and publishes the new status.
func (a *AGV) onEnterStatus(_ context.Context, e *fsm.Event) error {
	now := a.env.Now()
	if Status(e.Dst) == StatusFault {
		a.faultStart = ptr.To(now)
	}
	if Status(e.Src) == StatusFault && a.faultStart != nil {
		a.kpi.UpdateFaultTime(a.cfg.ID, a.cfg.LineID, now-*a.faultStart)
		a.faultStart = nil
	}

	message := fsmutil.StringArg(e, 0)
	a.logger.Debug("Status changed", "from", e.Src, "to", e.Dst)
	return a.publisher.PublishStatus(a.Report(message))
}
