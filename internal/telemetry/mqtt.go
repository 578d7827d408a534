package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/pkg/metrics"
	"github.com/autopeer-io/agvsim/pkg/log"
	pkgmqtt "github.com/autopeer-io/agvsim/pkg/mqtt"
	"github.com/autopeer-io/agvsim/pkg/mqtt/topic"
)

// ErrQueueFull is returned when reports are produced faster than the broker
// takes them.
var ErrQueueFull = errors.New("telemetry queue is full")

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 5 * time.Second
)

// MQTTConfig configures an MQTTPublisher.
type MQTTConfig struct {
	QoS            int
	Retain         bool
	QueueSize      int
	PublishTimeout time.Duration
}

type message struct {
	topic   string
	payload []byte
}

// MQTTPublisher encodes reports as JSON and publishes them to
// {root}/{line}/agv/{id}/status. Publishing only queues the message; Run
// sends queued messages to the broker, so a slow broker never stalls the
// simulated clock.
type MQTTPublisher struct {
	client pkgmqtt.Client
	topics *topic.TopicBuilder
	cfg    MQTTConfig
	queue  chan message
	logger log.Logger
}

func NewMQTTPublisher(client pkgmqtt.Client, topics *topic.TopicBuilder, cfg MQTTConfig) *MQTTPublisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &MQTTPublisher{
		client: client,
		topics: topics,
		cfg:    cfg,
		queue:  make(chan message, cfg.QueueSize),
		logger: log.WithName("mqtt-publisher"),
	}
}

func (p *MQTTPublisher) PublishStatus(r agv.StatusReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	select {
	case p.queue <- message{topic: p.topics.AGVStatus(r.LineID, r.SourceID), payload: payload}:
		metrics.StatusQueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		metrics.StatusPublishedTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return ErrQueueFull
	}
}

// Run publishes queued reports until ctx is done, then flushes what is left
// within one publish timeout.
func (p *MQTTPublisher) Run(ctx context.Context) error {
	for {
		select {
		case m := <-p.queue:
			p.send(ctx, m)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *MQTTPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()
	for {
		select {
		case m := <-p.queue:
			p.send(ctx, m)
		default:
			return
		}
	}
}

func (p *MQTTPublisher) send(ctx context.Context, m message) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	defer metrics.StatusQueueDepth.Set(float64(len(p.queue)))

	start := time.Now()
	if err := p.client.Publish(ctx, m.topic, p.cfg.QoS, p.cfg.Retain, m.payload); err != nil {
		metrics.StatusPublishedTotal.WithLabelValues(metrics.ResultFailed).Inc()
		p.logger.Error(err, "Failed to publish status", "topic", m.topic)
		return
	}
	metrics.StatusPublishLatency.Observe(time.Since(start).Seconds())
	metrics.StatusPublishedTotal.WithLabelValues(metrics.ResultSuccess).Inc()
}

// Pending returns the number of queued reports.
func (p *MQTTPublisher) Pending() int { return len(p.queue) }
