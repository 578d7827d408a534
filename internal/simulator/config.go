package simulator

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/autopeer-io/agvsim/internal/pkg/metrics"
	"github.com/autopeer-io/agvsim/internal/scenario"
	"github.com/autopeer-io/agvsim/internal/server"
	"github.com/autopeer-io/agvsim/internal/telemetry"
	"github.com/autopeer-io/agvsim/pkg/log"
	"github.com/autopeer-io/agvsim/pkg/mqtt"
	"github.com/autopeer-io/agvsim/pkg/mqtt/topic"
	"github.com/autopeer-io/agvsim/pkg/options"
)

type Config struct {
	SimOptions  *options.SimOptions
	MqttOptions *options.MqttOptions
	HttpOptions *options.HttpOptions
}

// NewSimulator loads the scenario and wires the optional MQTT and HTTP
// surfaces around it.
func (cfg *Config) NewSimulator() (*Simulator, error) {
	spec, err := scenario.Load(cfg.SimOptions.Scenario)
	if err != nil {
		return nil, err
	}
	if cfg.SimOptions.Horizon > 0 {
		spec.Horizon = cfg.SimOptions.Horizon
	}

	s := &Simulator{
		latest: telemetry.NewLatest(),
		linger: cfg.HttpOptions.Linger,
	}
	publishers := telemetry.Fanout{s.latest, telemetry.NewLogPublisher(log.Std())}

	if cfg.MqttOptions.Enabled {
		client, topics, err := cfg.initMqttClientAndTopicBuilder()
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		s.client, s.topics = client, topics
		s.publisher = telemetry.NewMQTTPublisher(client, topics, telemetry.MQTTConfig{
			QoS:            cfg.MqttOptions.QoS,
			Retain:         cfg.MqttOptions.Retain,
			QueueSize:      cfg.MqttOptions.QueueSize,
			PublishTimeout: cfg.MqttOptions.PublishTimeout,
		})
		publishers = append(publishers, s.publisher)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if s.publisher != nil {
		if err := metrics.Register(reg); err != nil {
			return nil, err
		}
	}

	s.runner, err = scenario.NewRunner(spec,
		scenario.WithPublisher(publishers),
		scenario.WithRegisterer(reg),
		scenario.WithLogger(log.Std()),
	)
	if err != nil {
		return nil, err
	}

	if cfg.HttpOptions.Serve {
		s.http = server.NewServer(cfg.HttpOptions, server.Sources{
			Status:   s.latest,
			KPI:      s.runner.Plant().KPI,
			Gatherer: reg,
			Report:   s.Report,
			Ready:    s.started.Load,
		})
	}
	return s, nil
}

func (cfg *Config) initMqttClientAndTopicBuilder() (mqtt.Client, *topic.TopicBuilder, error) {
	topics := topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	mqttConfig.WillTopic = topics.SimulatorState()
	mqttConfig.WillPayload = []byte(stateOffline)
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	client, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}
	return client, topics, nil
}
