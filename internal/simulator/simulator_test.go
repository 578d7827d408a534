package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/agvsim/internal/agv"
	"github.com/autopeer-io/agvsim/pkg/options"
)

func newConfig() *Config {
	sim := options.NewSimOptions()
	sim.Scenario = "../scenario/testdata/line.yaml"
	return &Config{
		SimOptions:  sim,
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
	}
}

func TestRunScenario(t *testing.T) {
	s, err := newConfig().NewSimulator()
	require.NoError(t, err)

	_, ok := s.Report()
	assert.False(t, ok)

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "completed", rep.Outcome)

	got, ok := s.Report()
	require.True(t, ok)
	assert.Same(t, rep, got)

	last, ok := s.Latest().Get("AGV_1")
	require.True(t, ok)
	assert.Equal(t, agv.StatusIdle, last.Status)
}

func TestHorizonOverride(t *testing.T) {
	cfg := newConfig()
	cfg.SimOptions.Horizon = 4
	s, err := cfg.NewSimulator()
	require.NoError(t, err)

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "horizon", rep.Outcome)
	assert.Equal(t, 4.0, rep.EndTime)
}

func TestRunWithHTTPServer(t *testing.T) {
	cfg := newConfig()
	cfg.HttpOptions.Serve = true
	cfg.HttpOptions.Addr = "127.0.0.1:0"
	s, err := cfg.NewSimulator()
	require.NoError(t, err)

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "completed", rep.Outcome)
}

func TestMissingScenario(t *testing.T) {
	cfg := newConfig()
	cfg.SimOptions.Scenario = "does-not-exist.yaml"
	_, err := cfg.NewSimulator()
	assert.ErrorContains(t, err, "read scenario")
}
