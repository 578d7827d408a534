package options

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SimOptions)(nil)

// Output formats of the run report.
const (
	OutputTable = "table"
	OutputYAML  = "yaml"
	OutputJSON  = "json"
)

// SimOptions selects the scenario to run and how to report it.
type SimOptions struct {
	// Scenario is the path of the scenario file.
	Scenario string `json:"scenario" mapstructure:"scenario"`

	// Horizon overrides the horizon of the scenario, in simulated seconds.
	Horizon float64 `json:"horizon" mapstructure:"horizon"`

	// Output is one of table, yaml or json.
	Output string `json:"output" mapstructure:"output"`
}

func NewSimOptions() *SimOptions {
	return &SimOptions{
		Output: OutputTable,
	}
}

func (o *SimOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Scenario == "" {
		errors = append(errors, fmt.Errorf("--sim.scenario is required"))
	}
	if o.Horizon < 0 {
		errors = append(errors, fmt.Errorf("--sim.horizon must not be negative"))
	}
	if !slices.Contains([]string{OutputTable, OutputYAML, OutputJSON}, o.Output) {
		errors = append(errors, fmt.Errorf("--sim.output must be one of table, yaml, json; got %q", o.Output))
	}

	return errors
}

func (o *SimOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Scenario, "sim.scenario", o.Scenario, "Path of the scenario file to run.")
	fs.Float64Var(&o.Horizon, "sim.horizon", o.Horizon, "Stop the run at this simulated time in seconds (overrides the scenario).")
	fs.StringVar(&o.Output, "sim.output", o.Output, "Report format: table, yaml or json.")
}
