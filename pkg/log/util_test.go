package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		keys  []string
	}{
		{"empty input", []any{}, nil},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, []string{"a", "b", "c"}},
		{"time type", []any{"t", now}, []string{"t"}},
		{"float type", []any{"pi", 3.14}, []string{"pi"}},
		{"bytes", []any{"data", []byte("xyz")}, []string{"data"}},
		{"error only", []any{err}, []string{"error"}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, []string{"msg", "x", "num"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}, []string{"a", "b"}},
		{"map value", []any{"a", map[string]string{"xyz": "123"}}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				require.NotEmpty(t, f.Key)
				keys = append(keys, f.Key)
			}
			if tt.keys == nil {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.keys, keys)
		})
	}
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).WithName("agv").WithValues("agv", "AGV_1")

	l.Warn("Battery low", "level", 9.5)
	l.Error(errors.New("stuck"), "Task failed", "task", "move")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "agv", entries[0].LoggerName)
	assert.Equal(t, map[string]any{"agv": "AGV_1", "level": 9.5}, entries[0].ContextMap())

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "stuck", entries[1].ContextMap()["error"])
}

func TestWithClockStampsSimulatedTime(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	now := 12.5
	l := FromZap(zap.New(core)).WithClock(func() float64 { return now }).WithName("fault")

	l.Info("Fault injected", "target", "AGV_1")
	now = 42
	l.WithValues("kind", "agv_collision").Info("Fault repaired")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, 12.5, entries[0].ContextMap()[DefaultSimTimeKey])
	assert.Equal(t, "AGV_1", entries[0].ContextMap()["target"])
	assert.Equal(t, 42.0, entries[1].ContextMap()[DefaultSimTimeKey])
	assert.Equal(t, "agv_collision", entries[1].ContextMap()["kind"])
}

func TestOptionsValidate(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())

	o := NewOptions()
	o.Level = "loud"
	o.Format = "xml"
	o.SimTimeKey = ""
	assert.Len(t, o.Validate(), 3)
}
