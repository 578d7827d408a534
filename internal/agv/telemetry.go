package agv

import (
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/agvsim/internal/layout"
)

// StatusReport is the telemetry payload published on every status change.
type StatusReport struct {
	Timestamp              float64      `json:"timestamp"`
	SourceID               string       `json:"source_id"`
	LineID                 string       `json:"-"`
	Status                 Status       `json:"status"`
	Speed                  float64      `json:"speed"`
	CurrentPoint           string       `json:"current_point"`
	TargetPoint            *string      `json:"target_point"`
	EstimatedTimeRemaining float64      `json:"estimated_time_remaining"`
	Position               layout.Point `json:"position"`
	Payload                []string     `json:"payload"`
	BatteryLevel           float64      `json:"battery_level"`
	Message                *string      `json:"message"`
}

// Report builds a status report of the vehicle as it is now.
func (a *AGV) Report(message string) StatusReport {
	items := a.payload.Items()
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}

	r := StatusReport{
		Timestamp:              a.env.Now(),
		SourceID:               a.cfg.ID,
		LineID:                 a.cfg.LineID,
		Status:                 a.Status(),
		Speed:                  a.cfg.Speed,
		CurrentPoint:           a.currentPoint,
		EstimatedTimeRemaining: a.EstimatedTimeRemaining(),
		Position:               a.position,
		Payload:                ids,
		BatteryLevel:           a.battery,
	}
	if a.targetPoint != "" {
		r.TargetPoint = ptr.To(a.targetPoint)
	}
	if message != "" {
		r.Message = ptr.To(message)
	}
	return r
}

// publish sends the current status outside of a status change.
func (a *AGV) publish(message string) {
	if err := a.publisher.PublishStatus(a.Report(message)); err != nil {
		a.logger.Warn("Failed to publish status", "error", err)
	}
}
