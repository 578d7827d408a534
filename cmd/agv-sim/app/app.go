package app

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/component-base/cli/globalflag"

	"github.com/autopeer-io/agvsim/cmd/agv-sim/app/options"
	"github.com/autopeer-io/agvsim/pkg/log"
)

const (
	commandName = "agv-sim"
	commandDesc = `agv-sim runs a factory scenario in simulated time: AGVs move products
between stations, conveyors, quality checkers and warehouses, charge their
batteries and recover from injected faults. The final state is printed when
the scenario is done; status reports can be published to MQTT and metrics
served over HTTP while it runs.`
)

func NewSimCommand(ctx context.Context) *cobra.Command {
	opts := options.NewSimulatorOptions()
	cmd := &cobra.Command{
		Use:          commandName + " [scenario.yaml]",
		Short:        "Run an AGV factory simulation",
		Long:         commandDesc,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Complete(args); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			log.Init(opts.LogOptions)
			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				log.Debug(fmt.Sprintf(format, args...))
			})); err != nil {
				log.Warn("Failed to set GOMAXPROCS", "error", err)
			}

			return run(ctx, cmd, opts)
		},
	}

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	fs := cmd.Flags()
	namedfs := opts.Flags()
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options.SimulatorOptions) error {
	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sim, err := cfg.NewSimulator()
	if err != nil {
		log.Error(err, "Failed to create simulator")
		return err
	}

	rep, err := sim.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err, "Simulation failed")
		return err
	}
	if rep == nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), rep, opts.SimOptions.Output)
}
