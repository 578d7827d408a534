package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/agvsim/internal/simulator"
	"github.com/autopeer-io/agvsim/pkg/log"
	"github.com/autopeer-io/agvsim/pkg/options"
)

type SimulatorOptions struct {
	SimOptions  *options.SimOptions  `json:"sim" mapstructure:"sim"`
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions *options.HttpOptions `json:"http" mapstructure:"http"`
	LogOptions  *log.Options         `json:"log" mapstructure:"log"`
}

func NewSimulatorOptions() *SimulatorOptions {
	return &SimulatorOptions{
		SimOptions:  options.NewSimOptions(),
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
		LogOptions:  log.NewOptions(),
	}
}

func (o *SimulatorOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.SimOptions.AddFlags(fss.FlagSet("sim"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete fills in values derived from other options.
func (o *SimulatorOptions) Complete(args []string) error {
	if o.SimOptions.Scenario == "" && len(args) > 0 {
		o.SimOptions.Scenario = args[0]
	}
	return nil
}

func (o *SimulatorOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.SimOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *SimulatorOptions) Config() (*simulator.Config, error) {
	return &simulator.Config{
		SimOptions:  o.SimOptions,
		MqttOptions: o.MqttOptions,
		HttpOptions: o.HttpOptions,
	}, nil
}
