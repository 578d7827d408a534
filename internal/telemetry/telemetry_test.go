package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/internal/pkg/metrics"
	"github.com/autopeer-io/agvsim/pkg/log"
	"github.com/autopeer-io/agvsim/pkg/mqtt/topic"
)

type published struct {
	topic   string
	qos     int
	payload []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeClient) Start(context.Context) error           { return nil }
func (c *fakeClient) Disconnect(context.Context)            {}
func (c *fakeClient) AwaitConnection(context.Context) error { return nil }
func (c *fakeClient) IsConnected() bool                     { return true }

func (c *fakeClient) Publish(_ context.Context, topic string, qos int, _ bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, payload: payload})
	return c.err
}

func report(id, line string, status agv.Status) agv.StatusReport {
	return agv.StatusReport{
		Timestamp:    12.5,
		SourceID:     id,
		LineID:       line,
		Status:       status,
		Speed:        2,
		CurrentPoint: "P1",
		Payload:      []string{"prod_1"},
		BatteryLevel: 87.5,
		Message:      ptr.To("arrived at P1"),
	}
}

func TestMQTTPublisherQueuesAndSends(t *testing.T) {
	client := &fakeClient{}
	pub := NewMQTTPublisher(client, topic.NewTopicBuilder("agvsim"), MQTTConfig{QoS: 1})

	require.NoError(t, pub.PublishStatus(report("AGV_1", "line1", agv.StatusIdle)))
	require.NoError(t, pub.PublishStatus(report("AGV_2", "", agv.StatusMoving)))
	assert.Equal(t, 2, pub.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pub.Run(ctx))

	require.Len(t, client.msgs, 2)
	assert.Equal(t, "agvsim/line1/agv/AGV_1/status", client.msgs[0].topic)
	assert.Equal(t, "agvsim/agv/AGV_2/status", client.msgs[1].topic)
	assert.Equal(t, 1, client.msgs[0].qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.msgs[0].payload, &got))
	assert.Equal(t, "AGV_1", got["source_id"])
	assert.Equal(t, "idle", got["status"])
	assert.Equal(t, "arrived at P1", got["message"])
	assert.Nil(t, got["target_point"])
	assert.NotContains(t, got, "LineID")
}

func TestMQTTPublisherQueueFull(t *testing.T) {
	dropped := metrics.StatusPublishedTotal.WithLabelValues(metrics.ResultDropped)
	before := testutil.ToFloat64(dropped)

	pub := NewMQTTPublisher(&fakeClient{}, topic.NewTopicBuilder("agvsim"), MQTTConfig{QueueSize: 1})
	require.NoError(t, pub.PublishStatus(report("AGV_1", "", agv.StatusIdle)))
	assert.ErrorIs(t, pub.PublishStatus(report("AGV_1", "", agv.StatusIdle)), ErrQueueFull)
	assert.Equal(t, before+1, testutil.ToFloat64(dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StatusQueueDepth))
}

type failing struct{ err error }

func (f failing) PublishStatus(agv.StatusReport) error { return f.err }

func TestFanoutAggregatesErrors(t *testing.T) {
	latest := NewLatest()
	boom := errors.New("boom")
	f := Fanout{latest, failing{boom}, failing{nil}}

	err := f.PublishStatus(report("AGV_1", "", agv.StatusCharging))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	r, ok := latest.Get("AGV_1")
	require.True(t, ok, "publishers after a failing one still receive the report")
	assert.Equal(t, agv.StatusCharging, r.Status)

	assert.NoError(t, Fanout{latest}.PublishStatus(report("AGV_1", "", agv.StatusIdle)))
}

func TestLatestKeepsMostRecentReport(t *testing.T) {
	l := NewLatest()
	require.NoError(t, l.PublishStatus(report("AGV_2", "", agv.StatusIdle)))
	require.NoError(t, l.PublishStatus(report("AGV_1", "", agv.StatusMoving)))
	require.NoError(t, l.PublishStatus(report("AGV_1", "", agv.StatusIdle)))

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "AGV_1", list[0].SourceID)
	assert.Equal(t, agv.StatusIdle, list[0].Status)
	assert.Equal(t, 2, l.Count("AGV_1"))
	assert.Equal(t, 1, l.Count("AGV_2"))

	_, ok := l.Get("AGV_3")
	assert.False(t, ok)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewLogPublisher(log.FromZap(zap.New(core)))

	require.NoError(t, p.PublishStatus(report("AGV_1", "", agv.StatusIdle)))
	entries := logs.FilterMessage("AGV status").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "telemetry", entries[0].LoggerName)
	assert.Equal(t, "AGV_1", entries[0].ContextMap()["agv"])
	assert.Equal(t, "arrived at P1", entries[0].ContextMap()["message"])
}
