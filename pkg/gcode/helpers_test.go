package gcode

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"gcodegen/pkg/config"
	"gcodegen/pkg/errors"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/log"
)

func quietLogger() *log.Logger {
	l := log.New("gcode")
	l.SetWriter(io.Discard)
	return l
}

// testConfig is the default configuration with comments on and without
// retraction on layer change, so tests see only the lines they provoke.
func testConfig() *config.PrintConfig {
	cfg := config.DefaultPrintConfig()
	cfg.GCodeComments = true
	cfg.RetractLayerChange = []bool{false}
	return cfg
}

func newTestEmitter(t *testing.T, cfg *config.PrintConfig, layerCount int, ids ...int) *Emitter {
	t.Helper()
	em, err := NewEmitter(cfg, layerCount, Options{Logger: quietLogger()})
	require.NoError(t, err)
	if len(ids) == 0 {
		ids = []int{0}
	}
	require.NoError(t, em.SetExtruders(ids))
	return em
}

func requirePanicCode(t *testing.T, code errors.ErrorCode, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, code), "got %v", err)
	}()
	fn()
}

func mm(x, y float64) geom.Point { return geom.NewPointMM(x, y) }

// recordingPlanner routes through a fixed waypoint and remembers its calls.
type recordingPlanner struct {
	via      *geom.Point
	from, to []geom.Point
}

func (p *recordingPlanner) ShortestPath(from, to geom.Point) geom.Polyline {
	p.from = append(p.from, from)
	p.to = append(p.to, to)
	if p.via == nil {
		return geom.NewPolyline(from, to)
	}
	return geom.NewPolyline(from, *p.via, to)
}

type emptyPlanner struct{}

func (emptyPlanner) ShortestPath(geom.Point, geom.Point) geom.Polyline { return geom.Polyline{} }

func bufferLogger(level log.LogLevel) (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := log.New("gcode")
	l.SetWriter(&buf)
	l.SetColorize(false)
	l.SetLevel(level)
	return l, &buf
}
