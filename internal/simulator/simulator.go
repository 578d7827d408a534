// Package simulator runs a scenario together with its MQTT and HTTP
// surfaces.
package simulator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/agvsim/internal/pkg/metrics"
	"github.com/autopeer-io/agvsim/internal/scenario"
	"github.com/autopeer-io/agvsim/internal/server"
	"github.com/autopeer-io/agvsim/internal/telemetry"
	"github.com/autopeer-io/agvsim/pkg/log"
	"github.com/autopeer-io/agvsim/pkg/mqtt"
	"github.com/autopeer-io/agvsim/pkg/mqtt/topic"
)

const (
	stateOnline  = "online"
	stateOffline = "offline"

	disconnectTimeout = 5 * time.Second
)

type Simulator struct {
	runner *scenario.Runner
	latest *telemetry.Latest

	client    mqtt.Client
	topics    *topic.TopicBuilder
	publisher *telemetry.MQTTPublisher

	http   *server.Server
	linger time.Duration

	started atomic.Bool
	report  atomic.Pointer[scenario.Report]
}

// Report returns the final report once the run is over.
func (s *Simulator) Report() (*scenario.Report, bool) {
	rep := s.report.Load()
	return rep, rep != nil
}

// Latest returns the latest status of every vehicle.
func (s *Simulator) Latest() *telemetry.Latest { return s.latest }

// Run plays the scenario and keeps the MQTT publisher and the HTTP server
// running alongside it. It returns the final report, which is partial when
// ctx is cancelled before the scenario finishes.
func (s *Simulator) Run(ctx context.Context) (*scenario.Report, error) {
	g, ctx := errgroup.WithContext(ctx)
	svcCtx, stopServices := context.WithCancel(ctx)
	defer stopServices()

	if s.publisher != nil {
		g.Go(func() error { return s.runPublisher(svcCtx) })
	}
	if s.http != nil {
		g.Go(func() error { return s.http.Start(svcCtx) })
	}

	g.Go(func() error {
		defer stopServices()
		s.started.Store(true)
		rep, err := s.runner.Run(ctx)
		s.report.Store(rep)
		if err != nil {
			return err
		}
		if s.http != nil && s.linger > 0 {
			log.Info("Simulation finished, serving results", "linger", s.linger)
			select {
			case <-time.After(s.linger):
			case <-ctx.Done():
			}
		}
		return nil
	})

	err := g.Wait()
	rep, _ := s.Report()
	return rep, err
}

// runPublisher connects to the broker, announces the simulator and sends
// status reports until ctx is done.
func (s *Simulator) runPublisher(ctx context.Context) error {
	// the connection has to outlive ctx to flush queued reports
	if err := s.client.Start(context.Background()); err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		s.publishState(dctx, stateOffline)
		s.client.Disconnect(dctx)
		metrics.BrokerConnectivityStatus.Set(0)
	}()

	actx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	if err := s.client.AwaitConnection(actx); err != nil {
		log.Warn("MQTT broker not reachable yet, status reports may be dropped", "error", err)
	} else {
		metrics.BrokerConnectivityStatus.Set(1)
		s.publishState(actx, stateOnline)
	}
	cancel()

	return s.publisher.Run(ctx)
}

func (s *Simulator) publishState(ctx context.Context, state string) {
	if err := s.client.Publish(ctx, s.topics.SimulatorState(), 1, true, []byte(state)); err != nil {
		log.Warn("Failed to publish simulator state", "state", state, "error", err)
	}
}
