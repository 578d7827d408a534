// Package telemetry ships vehicle status reports to their consumers.
package telemetry

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/pkg/log"
)

// Fanout publishes every report to all of its publishers.
type Fanout []agv.StatusPublisher

var _ agv.StatusPublisher = Fanout(nil)

func (f Fanout) PublishStatus(r agv.StatusReport) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishStatus(r); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// LogPublisher writes every report to a logger at debug level.
type LogPublisher struct {
	logger log.Logger
}

// NewLogPublisher returns a publisher logging to l, or to the global
// logger if l is nil.
func NewLogPublisher(l log.Logger) *LogPublisher {
	if l == nil {
		l = log.Std()
	}
	return &LogPublisher{logger: l.WithName("telemetry")}
}

func (p *LogPublisher) PublishStatus(r agv.StatusReport) error {
	kv := []any{
		"agv", r.SourceID,
		"status", r.Status,
		"point", r.CurrentPoint,
		"battery", r.BatteryLevel,
		"payload", len(r.Payload),
		"t", r.Timestamp,
	}
	if r.Message != nil {
		kv = append(kv, "message", *r.Message)
	}
	p.logger.Debug("AGV status", kv...)
	return nil
}
