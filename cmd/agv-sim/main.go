package main

import (
	"os"

	"k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/agvsim/cmd/agv-sim/app"
)

func main() {
	ctx := server.SetupSignalContext()
	if err := app.NewSimCommand(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}
