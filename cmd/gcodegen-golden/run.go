package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"gcodegen/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Print the G-code a scenario generates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := selectScenarios(cmd, args)
		if err != nil {
			return err
		}
		s := scenarios[0]

		reg := prometheus.NewRegistry()
		opts := emitterOptions()
		opts.Metrics = metrics.NewEmitterMetrics(reg)

		res, err := s.Run(opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		io.WriteString(out, res.Output)

		if show, _ := cmd.Flags().GetBool("metrics"); show {
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "; --- metrics ---")
			writeMetrics(out, families)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("metrics", false, "Append the emitter metrics as G-code comments")
	rootCmd.AddCommand(runCmd)
}

// writeMetrics prints counters and gauges one sample per line. Histograms
// are reduced to their sample count and sum.
func writeMetrics(w io.Writer, families []*dto.MetricFamily) {
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + labelString(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				fmt.Fprintf(w, "; %s %g\n", name, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				fmt.Fprintf(w, "; %s %g\n", name, m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				fmt.Fprintf(w, "; %s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}
