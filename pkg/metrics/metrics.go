// Prometheus instrumentation for G-code emission
//
// EmitterMetrics counts what an emitter session writes: lines by command
// word, retractions by kind, lifts, layer changes and tool changes, plus
// gauges for filament consumed and estimated print time. All methods are
// safe on a nil receiver so that callers can leave metrics unconfigured.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewEmitterMetrics(reg)
//	em := gcode.NewEmitter(cfg, layers, gcode.Options{Metrics: m})
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gcodegen"

// Retraction kinds
const (
	RetractPlain    = "plain"
	RetractFirmware = "firmware"
	RetractWipe     = "wipe"
)

// EmitterMetrics holds the collectors of one emitter
type EmitterMetrics struct {
	Lines         *prometheus.CounterVec
	Retractions   *prometheus.CounterVec
	RetractLength prometheus.Histogram
	Lifts         prometheus.Counter
	Layers        prometheus.Counter
	ToolChanges   prometheus.Counter
	FilamentUsed  *prometheus.GaugeVec
	ElapsedTime   prometheus.Gauge
}

// NewEmitterMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewEmitterMetrics(reg prometheus.Registerer) *EmitterMetrics {
	m := &EmitterMetrics{
		Lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "G-code lines emitted by command word",
		}, []string{"command"}),
		Retractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retractions_total",
			Help:      "Retractions performed by kind",
		}, []string{"kind", "toolchange"}),
		RetractLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retract_length_mm",
			Help:      "Effective filament length of each retraction",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		Lifts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifts_total",
			Help:      "Z lifts applied during retraction",
		}),
		Layers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layers_total",
			Help:      "Layer changes processed",
		}),
		ToolChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_changes_total",
			Help:      "Active extruder switches",
		}),
		FilamentUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filament_used_mm",
			Help:      "Absolute filament position per extruder",
		}, []string{"extruder"}),
		ElapsedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_time_seconds",
			Help:      "Estimated print time of the moves emitted so far",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *EmitterMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Lines, m.Retractions, m.RetractLength, m.Lifts,
		m.Layers, m.ToolChanges, m.FilamentUsed, m.ElapsedTime,
	}
}

// ObserveOutput counts each line of text by its command word
func (m *EmitterMetrics) ObserveOutput(text string) {
	if m == nil || text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if cmd := CommandWord(line); cmd != "" {
			m.Lines.WithLabelValues(cmd).Inc()
		}
	}
}

// ObserveRetract records one retraction of the given effective length
func (m *EmitterMetrics) ObserveRetract(kind string, toolchange bool, length float64) {
	if m == nil {
		return
	}
	m.Retractions.WithLabelValues(kind, strconv.FormatBool(toolchange)).Inc()
	m.RetractLength.Observe(length)
}

// ObserveLift records a Z lift
func (m *EmitterMetrics) ObserveLift() {
	if m == nil {
		return
	}
	m.Lifts.Inc()
}

// ObserveLayer records a layer change
func (m *EmitterMetrics) ObserveLayer() {
	if m == nil {
		return
	}
	m.Layers.Inc()
}

// ObserveToolChange records an extruder switch
func (m *EmitterMetrics) ObserveToolChange() {
	if m == nil {
		return
	}
	m.ToolChanges.Inc()
}

// SetFilamentUsed publishes the absolute E position of an extruder
func (m *EmitterMetrics) SetFilamentUsed(extruder int, mm float64) {
	if m == nil {
		return
	}
	m.FilamentUsed.WithLabelValues(strconv.Itoa(extruder)).Set(mm)
}

// SetElapsedTime publishes the running print time estimate
func (m *EmitterMetrics) SetElapsedTime(seconds float64) {
	if m == nil {
		return
	}
	m.ElapsedTime.Set(seconds)
}

// CommandWord returns the leading command of a G-code line ("G1", "M73"),
// or "" for blank and comment-only lines. Tool selects count as "T".
func CommandWord(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return ""
	}
	word, _, _ := strings.Cut(line, " ")
	if word[0] == 'T' {
		return "T"
	}
	return word
}
