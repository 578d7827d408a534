package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/agvsim/internal/scenario"
	"github.com/autopeer-io/agvsim/pkg/options"
)

func printReport(w io.Writer, rep *scenario.Report, format string) error {
	switch format {
	case options.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case options.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		_, err := fmt.Fprint(w, renderTables(rep))
		return err
	}
}

// renderTables formats the report as plain text tables.
func renderTables(rep *scenario.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario %q %s at t=%.1fs\n\n", rep.Name, rep.Outcome, rep.EndTime)

	agvs := uitable.New()
	agvs.MaxColWidth = 40
	agvs.AddRow("AGV", "STATUS", "POINT", "BATTERY", "PAYLOAD", "TASKS", "DISTANCE", "CHARGES", "FAULT TIME")
	for _, a := range rep.AGVs {
		agvs.AddRow(
			a.ID,
			a.Status,
			a.Point,
			fmt.Sprintf("%.1f%%", a.Battery),
			strings.Join(a.Payload, ","),
			a.Stats.TasksCompleted,
			fmt.Sprintf("%.1fm", a.Stats.TotalDistance),
			fmt.Sprintf("%d/%d", a.Stats.VoluntaryChargeCount, a.Stats.ForcedChargeCount),
			fmt.Sprintf("%.1fs", a.KPI.FaultTime),
		)
	}
	b.WriteString(agvs.String())
	b.WriteString("\n\n")

	devices := uitable.New()
	devices.MaxColWidth = 60
	devices.AddRow("DEVICE", "KIND", "CONTENTS")
	for _, d := range rep.Devices {
		devices.AddRow(d.ID, d.Kind, deviceContents(d))
	}
	b.WriteString(devices.String())
	b.WriteString("\n")

	if failed := rep.Failed(); len(failed) > 0 {
		b.WriteString("\n")
		cmds := uitable.New()
		cmds.MaxColWidth = 80
		cmds.Wrap = true
		cmds.AddRow("FAILED", "STEP", "ACTION", "AT", "REASON", "MESSAGE")
		for _, c := range failed {
			cmds.AddRow(c.AGV, c.Step, c.Action, fmt.Sprintf("%.1f", c.Start), c.Reason, c.Message)
		}
		b.WriteString(cmds.String())
		b.WriteString("\n")
	}
	return b.String()
}

func deviceContents(d scenario.DeviceReport) string {
	var parts []string
	for _, name := range sortedKeys(d.Buffers) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(d.Buffers[name])))
	}
	for _, typ := range sortedKeys(d.Received) {
		parts = append(parts, fmt.Sprintf("received %s=%d", typ, d.Received[typ]))
	}
	if d.Created > 0 {
		parts = append(parts, fmt.Sprintf("created=%d", d.Created))
	}
	return strings.Join(parts, " ")
}
