package gcode

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcodegen/pkg/config"
	"gcodegen/pkg/errors"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/log"
	"gcodegen/pkg/metrics"
)

func TestNewEmitterValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ExtrusionAxis = ""
	_, err := NewEmitter(cfg, 1, Options{Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExtrusionAxis))

	em, err := NewEmitter(testConfig(), 1, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, em.JobID)
	assert.True(t, em.StraightOnce)
	assert.Equal(t, -1, em.LayerIndex())
	_, ok := em.ActiveExtruder()
	assert.False(t, ok)
}

func TestSetExtruders(t *testing.T) {
	cfg := testConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4, 0.4}
	cfg.Wipe = []bool{false, false, true}
	em := newTestEmitter(t, cfg, 1, 2, 0, 2)

	active, ok := em.ActiveExtruder()
	require.True(t, ok)
	assert.Equal(t, 0, active.ID)
	assert.True(t, em.MultipleExtruders)
	assert.True(t, em.EnableWipe)

	em.ExtrudeTo(mm(1, 0), 3, 600, "")
	ext, _ := em.Extruder(0)
	assert.Equal(t, 3.0, ext.AbsoluteE)

	// Re-declaring starts from fresh counters.
	require.NoError(t, em.SetExtruders([]int{0}))
	ext, _ = em.Extruder(0)
	assert.Zero(t, ext.AbsoluteE)
	assert.False(t, em.MultipleExtruders)
	assert.False(t, em.EnableWipe)
	_, ok = em.Extruder(2)
	assert.False(t, ok)
}

func TestSetExtrudersErrors(t *testing.T) {
	em, err := NewEmitter(testConfig(), 1, Options{Logger: quietLogger()})
	require.NoError(t, err)

	err = em.SetExtruders([]int{0, 3})
	assert.True(t, errors.Is(err, errors.ErrExtruderUnknown), "got %v", err)

	err = em.SetExtruders(nil)
	assert.True(t, errors.Is(err, errors.ErrEmitterState), "got %v", err)

	cfg := testConfig()
	cfg.RetractLength = []float64{-1}
	em, err = NewEmitter(cfg, 1, Options{Logger: quietLogger()})
	require.NoError(t, err)
	err = em.SetExtruders([]int{0})
	assert.True(t, errors.Is(err, errors.ErrConfigValidation), "got %v", err)
}

func TestRetractScenario(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLength = []float64{2}
	cfg.RetractSpeed = []int{40}
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t,
		"G1 F2400.000 E-2.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.Retract(0, false))

	ext, _ := em.ActiveExtruder()
	assert.Equal(t, 2.0, ext.Retracted)
	assert.Zero(t, ext.E)
}

func TestRetractIsIdempotent(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	require.NotEmpty(t, em.Retract(0, false))
	assert.Empty(t, em.Retract(0, false))
	assert.Empty(t, em.Retract(0, false))

	ext, _ := em.ActiveExtruder()
	assert.Equal(t, 1.0, ext.Retracted)
}

func TestRetractAccumulatesPartialLength(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	em.Retract(0, false)
	// Tool change length is 10mm, 1mm of it is already retracted.
	assert.Equal(t,
		"G1 F1800.000 E-9.000 ; retract for tool change\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.Retract(0, true))

	ext, _ := em.ActiveExtruder()
	assert.Equal(t, 10.0, ext.Retracted)
}

func TestRetractRelativeE(t *testing.T) {
	cfg := testConfig()
	cfg.UseRelativeEDistances = true
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t, "G1 F1800.000 E-1.000 ; retract\n", em.Retract(0, false))
}

func TestRetractFirmware(t *testing.T) {
	cfg := testConfig()
	cfg.UseFirmwareRetraction = true
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t, "G10 ; retract\nG92 E0 ; reset extrusion distance\n", em.Retract(0, false))
	assert.Equal(t, "G11 ; unretract\n", em.Unretract())
}

func TestRetractMakerWareTurnsExtruderOff(t *testing.T) {
	cfg := testConfig()
	cfg.GCodeFlavor = config.FlavorMakerWare
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t, "G1 F1800.000 E-1.000 ; retract\nM103 ; extruder off\n", em.Retract(0, false))
}

func TestRetractZeroLengthIsSilent(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLength = []float64{0}
	cfg.RetractLift = []float64{1}
	em := newTestEmitter(t, cfg, 1)

	assert.Empty(t, em.Retract(0, false))
	assert.Zero(t, em.Lifted())
}

func TestRetractWipe(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLength = []float64{2}
	cfg.RetractSpeed = []int{40}
	cfg.TravelSpeed = 100
	cfg.Wipe = []bool{true}
	em := newTestEmitter(t, cfg, 1)

	// Wipe distance is 2/40*100*0.8 = 4mm; the first point is replaced by
	// the current position.
	em.SetWipePath(geom.NewPolyline(mm(5, 5), mm(10, 0)))

	assert.Equal(t,
		"G1 X4.000 Y0.000 F4800.000 E-1.900 ; retract;_WIPE\n"+
			"G1 F2400.000 E-2.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.Retract(0, false))
	assert.Equal(t, mm(4, 0), em.LastPos())

	ext, _ := em.ActiveExtruder()
	assert.Equal(t, 2.0, ext.Retracted)
	// The stored path is not consumed.
	assert.Equal(t, mm(5, 5), em.WipePath().FirstPoint())
}

func TestRetractWipeSeveralSegments(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLength = []float64{2}
	cfg.RetractSpeed = []int{40}
	cfg.TravelSpeed = 100
	cfg.Wipe = []bool{true}
	cfg.UseRelativeEDistances = true
	em := newTestEmitter(t, cfg, 1)

	em.SetWipePath(geom.NewPolyline(mm(0, 0), mm(1, 0), mm(1, 10)))
	out := em.Retract(0, false)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "G1 X1.000 Y0.000 F4800.000 E-0.475 ; retract;_WIPE", lines[0])
	assert.Equal(t, "G1 X1.000 Y3.000 F4800.000 E-1.425 ; retract;_WIPE", lines[1])
	assert.Equal(t, "G1 F2400.000 E-0.100 ; retract", lines[2])
}

func TestRetractWithoutUsableWipePath(t *testing.T) {
	cfg := testConfig()
	cfg.Wipe = []bool{true}
	em := newTestEmitter(t, cfg, 1)

	em.SetWipePath(geom.NewPolyline(mm(3, 3)))
	assert.Equal(t, "G1 F1800.000 E-1.000 ; retract\nG92 E0 ; reset extrusion distance\n", em.Retract(0, false))
}

func TestRetractLiftDuringTravel(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 1)

	require.Equal(t, "G1 Z0.300 F7800.000 ; move to next layer\n", em.MoveZ(0.3, ""))
	assert.Equal(t,
		"G1 F1800.000 E-1.000 ; retract\n"+
			"G1 Z0.800 F7800.000 ; lift plate during travel\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.Retract(0, false))
	assert.Equal(t, 0.5, em.Lifted())

	assert.Equal(t,
		"G1 Z0.300 F7800.000 ; restore layer Z\n"+
			"G1 F1800.000 E1.000 ; compensate retraction\n",
		em.Unretract())
	assert.Zero(t, em.Lifted())
	ext, _ := em.ActiveExtruder()
	assert.Zero(t, ext.Retracted)
	assert.Empty(t, em.Unretract())
}

func TestRetractNotLiftedTwice(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 1)
	em.MoveZ(0.3, "")

	em.Retract(0, false)
	out := em.Retract(0, true)
	assert.NotContains(t, out, "Z")
	assert.Equal(t, 0.5, em.Lifted())
}

func TestUnretractRestartExtra(t *testing.T) {
	cfg := testConfig()
	cfg.RetractRestartExtra = []float64{0.25}
	cfg.UseRelativeEDistances = true
	em := newTestEmitter(t, cfg, 1)

	em.Retract(0, false)
	assert.Equal(t, "G1 F1800.000 E1.250 ; compensate retraction\n", em.Unretract())
	ext, _ := em.ActiveExtruder()
	assert.Zero(t, ext.RestartExtra)
}

func TestChangeLayerCombinedLift(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLayerChange = []bool{true}
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 2)
	layers := StackLayers(0.3, 0.6)

	assert.Equal(t,
		"G1 F1800.000 E-1.000 ; retract\n"+
			"G1 Z0.800 F7800.000 ; move to next layer (0) and lift\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.ChangeLayer(layers[0]))
	assert.Equal(t, 0.5, em.Lifted())

	// Next layer is below the lifted head: the lift shrinks, nothing moves.
	assert.Empty(t, em.ChangeLayer(layers[1]))
	assert.InDelta(t, 0.2, em.Lifted(), 1e-9)
	z, _ := em.Z()
	assert.InDelta(t, 0.8, z, 1e-9)
}

func TestLayerChangeLiftToZeroTarget(t *testing.T) {
	cfg := testConfig()
	cfg.ZOffset = -0.2
	cfg.RetractLayerChange = []bool{true}
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t,
		"G1 F1800.000 E-1.000 ; retract\n"+
			"G1 Z1.300 F7800.000 ; move to next layer and lift\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.MoveZ(1.0, ""))
	assert.Equal(t,
		"G1 Z0.800 F7800.000 ; restore layer Z\n"+
			"G1 F1800.000 E1.000 ; compensate retraction\n",
		em.Unretract())

	// 0.2 + z_offset lands exactly on the bed; the lift is relative to it.
	assert.Equal(t,
		"G1 F1800.000 E0.000 ; retract\n"+
			"G1 Z0.500 F7800.000 ; move to next layer and lift\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.MoveZ(0.2, ""))
	z, _ := em.Z()
	assert.InDelta(t, 0.5, z, 1e-9)
	assert.Equal(t, 0.5, em.Lifted())

	assert.True(t, strings.HasPrefix(em.Unretract(), "G1 Z0.000 F7800.000 ; restore layer Z\n"))
	z, _ = em.Z()
	assert.InDelta(t, 0, z, 1e-9)
	assert.Zero(t, em.Lifted())
}

func TestLayerChangeLiftAlreadyAtTarget(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLayerChange = []bool{true}
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 1)

	em.MoveZ(1.0, "")
	em.Unretract()

	// The head already sits at 0.5 + lift, so only the retraction is emitted.
	assert.Equal(t,
		"G1 F1800.000 E0.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.MoveZ(0.5, ""))
	assert.Equal(t, 0.5, em.Lifted())
	assert.Equal(t, "G1 Z0.500 F7800.000 ; restore layer Z\n"+
		"G1 F1800.000 E1.000 ; compensate retraction\n", em.Unretract())
}

func TestMoveZUndefinedAlwaysMoves(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)
	assert.Equal(t, "G1 Z10.000 F7800.000 ; move to next layer (0)\n",
		em.ChangeLayer(&StaticLayer{Index: 0, Z: 10}))

	cfg := testConfig()
	cfg.G0 = true
	em = newTestEmitter(t, cfg, 1)
	em.ChangeLayer(&StaticLayer{Index: 0, Z: 10})
	z, defined := em.Z()
	assert.True(t, defined)
	assert.Equal(t, 10.0, z)

	em = newTestEmitter(t, cfg, 1)
	assert.Equal(t, "G0 Z10.000 F7800.000 ; custom\n", em.MoveZ(10, "custom"))
}

func TestMoveZWithinEpsilon(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	require.NotEmpty(t, em.MoveZ(1, ""))
	assert.Empty(t, em.MoveZ(1.00005, ""))
	assert.Empty(t, em.MoveZ(1, ""))
	assert.NotEmpty(t, em.MoveZ(1.001, ""))
}

func TestMoveZOffset(t *testing.T) {
	cfg := testConfig()
	cfg.ZOffset = 0.1
	em := newTestEmitter(t, cfg, 1)

	assert.Equal(t, "G1 Z0.300 F7800.000 ; move to next layer\n", em.MoveZ(0.2, ""))
}

func TestMoveZBelowNominalDropsLift(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLift = []float64{0.5}
	em := newTestEmitter(t, cfg, 1)

	em.MoveZ(2, "")
	em.Retract(0, false)
	require.Equal(t, 0.5, em.Lifted())

	assert.Equal(t, "G1 Z1.000 F7800.000 ; move to next layer\n", em.MoveZ(1, ""))
	assert.Zero(t, em.Lifted())
}

func TestChangeLayerProgress(t *testing.T) {
	cfg := testConfig()
	cfg.GCodeFlavor = config.FlavorSailfish
	em := newTestEmitter(t, cfg, 10)
	layers := StackLayers(0.2, 0.4, 0.6, 0.8, 1.0, 1.2)

	for i, layer := range layers {
		out := em.ChangeLayer(layer)
		want := "M73 P" + strconv.Itoa(int(math.Floor(99*float64(i)/9))) + " ; update progress\n"
		assert.True(t, strings.HasPrefix(out, want), "layer %d: %q", i, out)
		assert.Equal(t, i, em.LayerIndex())
	}
	// Index 5 of 10 layers.
	assert.Equal(t, 55, em.progress())
}

func TestChangeLayerSingleLayerProgress(t *testing.T) {
	cfg := testConfig()
	cfg.GCodeFlavor = config.FlavorMakerWare
	em := newTestEmitter(t, cfg, 1)

	out := em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})
	assert.True(t, strings.HasPrefix(out, "M73 P0 ; update progress\n"), out)
}

func TestChangeLayerAcceleration(t *testing.T) {
	cfg := testConfig()
	cfg.FirstLayerAcceleration = 800
	cfg.DefaultAcceleration = 1500
	em := newTestEmitter(t, cfg, 3)
	layers := StackLayers(0.2, 0.4, 0.6)

	assert.Equal(t,
		"M204 S800 ; adjust acceleration\n"+
			"G1 Z0.200 F7800.000 ; move to next layer (0)\n",
		em.ChangeLayer(layers[0]))
	assert.Equal(t,
		"M204 S1500 ; adjust acceleration\n"+
			"G1 Z0.400 F7800.000 ; move to next layer (1)\n",
		em.ChangeLayer(layers[1]))
	assert.Equal(t, "G1 Z0.600 F7800.000 ; move to next layer (2)\n", em.ChangeLayer(layers[2]))
}

func TestChangeLayerIslandsAndPlanner(t *testing.T) {
	cfg := testConfig()
	cfg.AvoidCrossingPerimeters = true

	island := geom.ExPolygon{Contour: geom.Polygon{Points: []geom.Point{mm(0, 0), mm(10, 0), mm(10, 10)}}}
	var seen [][]geom.ExPolygon
	factory := func(islands []geom.ExPolygon) MotionPlanner {
		seen = append(seen, islands)
		return DirectPlanner{}
	}

	em, err := NewEmitter(cfg, 2, Options{Planner: factory, Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))

	layers := StackLayers(0.2, 0.4)
	layers[1].Slices = []geom.ExPolygon{island}

	em.ChangeLayer(layers[0])
	assert.Empty(t, em.LayerIslands())
	assert.Equal(t, []geom.ExPolygon{island}, em.UpperLayerIslands())

	em.ChangeLayer(layers[1])
	assert.Equal(t, []geom.ExPolygon{island}, em.LayerIslands())
	assert.Nil(t, em.UpperLayerIslands())
	require.Len(t, seen, 2)
	assert.Equal(t, []geom.ExPolygon{island}, seen[1])
}

func TestResetE(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)
	em.ExtrudeTo(mm(1, 0), 2, 600, "")
	assert.Equal(t, "G92 E0 ; reset extrusion distance\n", em.ResetE())
	ext, _ := em.ActiveExtruder()
	assert.Zero(t, ext.E)
	assert.Equal(t, 2.0, ext.AbsoluteE)

	cfg := testConfig()
	cfg.UseRelativeEDistances = true
	assert.Empty(t, newTestEmitter(t, cfg, 1).ResetE())

	cfg = testConfig()
	cfg.GCodeFlavor = config.FlavorNoExtrusion
	cfg.ExtrusionAxis = ""
	assert.Empty(t, newTestEmitter(t, cfg, 1).ResetE())
}

func TestResetEManagedFlavors(t *testing.T) {
	for _, flavor := range []config.Flavor{config.FlavorMach3, config.FlavorMakerWare, config.FlavorSailfish} {
		for _, relative := range []bool{false, true} {
			cfg := testConfig()
			cfg.GCodeFlavor = flavor
			cfg.ExtrusionAxis = flavor.Traits().ExtrusionAxis
			cfg.UseRelativeEDistances = relative
			em := newTestEmitter(t, cfg, 1)
			em.ExtrudeTo(mm(1, 0), 2, 600, "")

			assert.Empty(t, em.ResetE(), flavor.String())
			ext, _ := em.ActiveExtruder()
			assert.Equal(t, 2.0, ext.E, flavor.String())
		}
	}
}

func TestSetAcceleration(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)
	assert.Empty(t, em.SetAcceleration(0))
	assert.Equal(t, "M204 S3000 ; adjust acceleration\n", em.SetAcceleration(3000))
}

func TestSetExtruderToolChange(t *testing.T) {
	cfg := testConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	em := newTestEmitter(t, cfg, 1, 0, 1)

	assert.Empty(t, em.SetExtruder(0))
	assert.Equal(t,
		"G1 F1800.000 E-10.000 ; retract for tool change\n"+
			"G92 E0 ; reset extrusion distance\n"+
			"T1 ; change extruder\n"+
			"G92 E0 ; reset extrusion distance\n",
		em.SetExtruder(1))

	active, _ := em.ActiveExtruder()
	assert.Equal(t, 1, active.ID)
	old, _ := em.Extruder(0)
	assert.Equal(t, 10.0, old.Retracted)

	requirePanicCode(t, errors.ErrEmitterState, func() { em.SetExtruder(7) })
}

func TestSetExtruderFlavorToolSelect(t *testing.T) {
	tests := []struct {
		flavor config.Flavor
		want   string
	}{
		{config.FlavorMakerWare, "M135 T1 ; change extruder\n"},
		{config.FlavorSailfish, "M108 T1 ; change extruder\n"},
		{config.FlavorTeacup, "T1 ; change extruder\n"},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.GCodeFlavor = tt.flavor
		cfg.NozzleDiameter = []float64{0.4, 0.4}
		em := newTestEmitter(t, cfg, 1, 0, 1)
		assert.Contains(t, em.SetExtruder(1), tt.want, tt.flavor.String())
	}
}

func TestSetExtruderSingleIsSilent(t *testing.T) {
	cfg := testConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	em := newTestEmitter(t, cfg, 1, 1)

	active, _ := em.ActiveExtruder()
	assert.Equal(t, 1, active.ID)
	assert.Empty(t, em.SetExtruder(1))
}

func TestTravelShortSkipsRetract(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	assert.Equal(t, "G1 X1.000 Y0.000 F7800.000\n", em.TravelTo(mm(1, 0), ""))
	assert.False(t, em.StraightOnce)
	ext, _ := em.ActiveExtruder()
	assert.Zero(t, ext.Retracted)
}

func TestTravelLongRetracts(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	assert.Equal(t,
		"G1 F1800.000 E-1.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n"+
			"G1 X10.000 Y0.000 F7800.000 ; travel\n",
		em.TravelTo(mm(10, 0), "travel"))
}

func TestNewObjectClearedWithoutExternalPlanner(t *testing.T) {
	cfg := testConfig()
	cfg.AvoidCrossingPerimeters = true
	planner := &recordingPlanner{}

	em, err := NewEmitter(cfg, 1, Options{
		Planner: func([]geom.ExPolygon) MotionPlanner { return planner },
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))
	em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})
	em.StraightOnce = false

	em.SetNewObject()
	assert.Contains(t, em.TravelTo(mm(10, 0), ""), "G1 X10.000 Y0.000 F7800.000\n")
	assert.False(t, em.NewObject)
	assert.Empty(t, planner.from)

	em.Unretract()
	em.TravelTo(mm(0, 0), "")
	assert.Equal(t, []geom.Point{mm(10, 0)}, planner.from)
}

func TestTravelUsesLayerPlanner(t *testing.T) {
	cfg := testConfig()
	cfg.G0 = true
	cfg.AvoidCrossingPerimeters = true
	via := mm(5, 5)
	planner := &recordingPlanner{via: &via}

	em, err := NewEmitter(cfg, 1, Options{
		Planner: func([]geom.ExPolygon) MotionPlanner { return planner },
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))
	em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})

	// The first travel of the job goes straight.
	out := em.TravelTo(mm(10, 0), "")
	assert.Contains(t, out, "G0 X10.000 Y0.000 F7800.000\n")
	assert.Empty(t, planner.from)

	em.Unretract()
	assert.Equal(t,
		"G1 F1800.000 E0.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n"+
			"G1 X5.000 Y5.000 F7800.000\n"+
			"G1 X0.000 Y0.000 F7800.000\n",
		em.TravelTo(mm(0, 0), ""))
	assert.Equal(t, []geom.Point{mm(10, 0)}, planner.from)
	assert.Equal(t, mm(0, 0), em.LastPos())
}

func TestTravelPlannerWithoutRoute(t *testing.T) {
	cfg := testConfig()
	cfg.AvoidCrossingPerimeters = true
	em, err := NewEmitter(cfg, 1, Options{
		Planner: func([]geom.ExPolygon) MotionPlanner { return emptyPlanner{} },
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))
	em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})
	em.StraightOnce = false

	assert.True(t, strings.HasSuffix(em.TravelTo(mm(10, 0), ""), "G1 X10.000 Y0.000 F7800.000\n"))
}

func TestTravelWithoutPlannerGoesStraight(t *testing.T) {
	cfg := testConfig()
	cfg.AvoidCrossingPerimeters = true
	em := newTestEmitter(t, cfg, 1)
	em.StraightOnce = false

	assert.True(t, strings.HasSuffix(em.TravelTo(mm(10, 0), ""), "G1 X10.000 Y0.000 F7800.000\n"))
}

func TestTravelNewObjectUsesExternalPlanner(t *testing.T) {
	cfg := testConfig()
	cfg.AvoidCrossingPerimeters = true
	via := mm(15, 5)
	external := &recordingPlanner{via: &via}
	layer := &recordingPlanner{}

	em, err := NewEmitter(cfg, 1, Options{
		Planner:         func([]geom.ExPolygon) MotionPlanner { return layer },
		ExternalPlanner: external,
		Logger:          quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))
	em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})
	em.StraightOnce = false

	em.SetShift(10, 0)
	em.SetNewObject()
	out := em.TravelTo(mm(20, 0), "")

	assert.Equal(t,
		"G1 F1800.000 E-1.000 ; retract\n"+
			"G92 E0 ; reset extrusion distance\n"+
			"G1 X15.000 Y5.000 F7800.000\n"+
			"G1 X30.000 Y0.000 F7800.000\n",
		out)
	// The external planner works in bed coordinates.
	assert.Equal(t, []geom.Point{mm(0, 0)}, external.from)
	assert.Equal(t, []geom.Point{mm(30, 0)}, external.to)
	assert.Empty(t, layer.from)

	assert.False(t, em.NewObject)
	assert.Equal(t, mm(20, 0), em.LastPos())
	x, y := em.Shift()
	assert.Equal(t, 10.0, x)
	assert.Zero(t, y)
}

func TestSetShiftKeepsPhysicalPosition(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)
	em.ExtrudeTo(mm(5, 5), 1, 600, "")
	em.SetWipePath(geom.NewPolyline(mm(5, 5), mm(0, 5)))

	em.SetShift(2, -1)
	assert.Equal(t, mm(3, 6), em.LastPos())
	assert.Equal(t, []geom.Point{mm(3, 6), mm(-2, 6)}, em.WipePath().Points)
}

func TestSetFan(t *testing.T) {
	em := newTestEmitter(t, testConfig(), 1)

	assert.Empty(t, em.SetFan(0))
	assert.Equal(t, "M106 S255 ; enable fan\n", em.SetFan(100))
	assert.Empty(t, em.SetFan(100))
	assert.Equal(t, "M106 S127 ; enable fan\n", em.SetFan(50))
	assert.Equal(t, "M107 ; disable fan\n", em.SetFan(0))
}

func TestSetFanFlavors(t *testing.T) {
	tests := []struct {
		flavor  config.Flavor
		on, off string
	}{
		{config.FlavorTeacup, "M106 S255 ; enable fan\n", "M106 S0 ; disable fan\n"},
		{config.FlavorMach3, "M106 P255 ; enable fan\n", "M107 ; disable fan\n"},
		{config.FlavorMakerWare, "M126 ; enable fan\n", "M127 ; disable fan\n"},
		{config.FlavorSailfish, "M126 ; enable fan\n", "M127 ; disable fan\n"},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.GCodeFlavor = tt.flavor
		cfg.ExtrusionAxis = tt.flavor.Traits().ExtrusionAxis
		em := newTestEmitter(t, cfg, 1)
		assert.Equal(t, tt.on, em.SetFan(100), tt.flavor.String())
		assert.Equal(t, tt.off, em.SetFan(0), tt.flavor.String())
	}
}

func TestEmitterMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.RetractLift = []float64{0.5}
	m := metrics.NewEmitterMetrics(prometheus.NewRegistry())
	em, err := NewEmitter(cfg, 2, Options{Metrics: m, Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))

	em.ChangeLayer(&StaticLayer{Index: 0, Z: 0.2})
	em.ExtrudeTo(mm(10, 0), 1.5, 600, "")
	em.Retract(0, false)
	em.Retract(0, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Layers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lifts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retractions.WithLabelValues(metrics.RetractPlain, "false")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Lines.WithLabelValues("G1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lines.WithLabelValues("G92")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.FilamentUsed.WithLabelValues("0")))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ElapsedTime), 1e-9)
}

func TestLogFieldsCarryJob(t *testing.T) {
	logger, buf := bufferLogger(log.DEBUG)
	em, err := NewEmitter(testConfig(), 1, Options{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, em.SetExtruders([]int{0}))

	em.Retract(0, false)
	em.Retract(0, false)

	out := buf.String()
	assert.Contains(t, out, "extruders declared")
	assert.Contains(t, out, "job="+em.JobID.String())
	assert.Contains(t, out, "already retracted")
}
