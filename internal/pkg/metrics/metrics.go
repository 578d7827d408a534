package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Publish results.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

var (
	// BrokerConnectivityStatus is 1 while the simulator is connected to the
	// MQTT broker.
	BrokerConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agvsim_mqtt_broker_connectivity_status",
			Help: "The connectivity status to the MQTT broker (1=Connected, 0=Disconnected).",
		},
	)

	StatusPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agvsim_mqtt_status_published_total",
			Help: "Total number of AGV status reports handed to the MQTT publisher.",
		},
		[]string{"result"}, // success, failed or dropped
	)

	StatusPublishLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agvsim_mqtt_publish_latency_seconds",
			Help:    "Wall clock latency of publishing one status report.",
			Buckets: prometheus.DefBuckets,
		},
	)

	StatusQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agvsim_mqtt_status_queue_depth",
			Help: "Number of status reports waiting to be published.",
		},
	)
)

// Register adds the publisher metrics to reg. Registering them again on the
// same registry is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		BrokerConnectivityStatus,
		StatusPublishedTotal,
		StatusPublishLatency,
		StatusQueueDepth,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
