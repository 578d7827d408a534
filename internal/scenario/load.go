package scenario

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables overriding top level scenario
// settings, e.g. AGVSIM_HORIZON or AGVSIM_REPAIR_TIME.
const EnvPrefix = "AGVSIM"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"name", "horizon", "repair_time", "stop_on_failure"} {
		// keys missing from the file are only seen by Unmarshal when bound
		_ = v.BindEnv(key)
	}
	v.SetDefault("paths.symmetric", true)
	return v
}

// Load reads and validates a scenario file.
func Load(path string) (*Spec, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return decode(v)
}

// Parse reads and validates a YAML scenario from r.
func Parse(r io.Reader) (*Spec, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Spec, error) {
	var s Spec
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	return &s, nil
}
