// Package gcode turns per-layer decisions of a slicer into G-code text: layer
// changes, travel and extrusion moves, and the retraction, lift and wipe
// sequences around them.
//
// An Emitter is one print job. It is not safe for concurrent use; every
// operation returns the lines it produced, in call order.
package gcode

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gcodegen/pkg/config"
	"gcodegen/pkg/errors"
	"gcodegen/pkg/extruder"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/log"
	"gcodegen/pkg/metrics"
)

// zEpsilon is the tolerance below which a layer Z move is skipped.
const zEpsilon = 1e-4

// Options carries the optional collaborators of an Emitter.
type Options struct {
	// Planner builds the per-layer motion planner when
	// avoid_crossing_perimeters is set.
	Planner PlannerFactory
	// ExternalPlanner routes the first travel into a new object.
	ExternalPlanner MotionPlanner
	Metrics         *metrics.EmitterMetrics
	Logger          *log.Logger
}

// Emitter holds the machine state of one print job.
type Emitter struct {
	// JobID tags every log line of this job.
	JobID uuid.UUID

	// EnableWipe is set when any declared extruder wipes.
	EnableWipe        bool
	MultipleExtruders bool
	// NewObject routes the next planned travel through the external planner.
	NewObject bool
	// StraightOnce skips the planner for the next travel.
	StraightOnce bool

	config *config.PrintConfig
	traits config.FlavorTraits

	layerCount        int
	layerIndex        int
	layer             Layer
	layerIslands      []geom.ExPolygon
	upperLayerIslands []geom.ExPolygon

	shiftX, shiftY float64
	z              float64
	zDefined       bool
	lifted         float64
	lastPos        geom.Point
	elapsedTime    float64
	lastFanSpeed   int
	wipePath       geom.Polyline

	// extruders is sorted by id; active indexes into it.
	extruders []extruder.Extruder
	active    int

	plannerFactory PlannerFactory
	layerMP        MotionPlanner
	externalMP     MotionPlanner

	metrics *metrics.EmitterMetrics
	log     *log.Logger
}

// NewEmitter starts a job of layerCount layers. The configuration is
// validated here so that emission itself never fails.
func NewEmitter(cfg *config.PrintConfig, layerCount int, opts Options) (*Emitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger("gcode")
	}
	return &Emitter{
		JobID:          uuid.New(),
		StraightOnce:   true,
		config:         cfg,
		traits:         cfg.GCodeFlavor.Traits(),
		layerCount:     layerCount,
		layerIndex:     -1,
		active:         -1,
		plannerFactory: opts.Planner,
		externalMP:     opts.ExternalPlanner,
		metrics:        opts.Metrics,
		log:            logger,
	}, nil
}

func (e *Emitter) entry() *log.Entry {
	return e.log.WithFields(log.Fields{"job": e.JobID.String(), "layer": e.layerIndex})
}

func (e *Emitter) debug(format string, args ...interface{}) {
	if e.log.Enabled(log.DEBUG) {
		e.entry().Debugf(format, args...)
	}
}

// SetExtruders declares the extruders used by the job. Previous extruder
// state is discarded and the lowest id becomes active.
func (e *Emitter) SetExtruders(ids []int) error {
	if len(ids) == 0 {
		return errors.EmitterStateError("at least one extruder must be declared")
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		if err := e.config.ValidateExtruder(id); err != nil {
			return err
		}
	}

	e.extruders = make([]extruder.Extruder, 0, len(ids))
	e.EnableWipe = false
	for _, id := range ids {
		ext := extruder.New(id, e.config)
		e.EnableWipe = e.EnableWipe || ext.Wipe()
		e.extruders = append(e.extruders, ext)
	}
	e.active = 0
	e.MultipleExtruders = len(ids) > 1

	e.entry().WithFields(log.Fields{"extruders": ids, "wipe": e.EnableWipe}).Info("extruders declared")
	return nil
}

func (e *Emitter) indexOf(id int) int {
	for i := range e.extruders {
		if e.extruders[i].ID == id {
			return i
		}
	}
	return -1
}

// SetExtruder makes id the active extruder. With several extruders this
// retracts the current one and emits the tool change.
func (e *Emitter) SetExtruder(id int) string {
	idx := e.indexOf(id)
	if idx < 0 {
		panic(errors.EmitterStateError(fmt.Sprintf("extruder %d was not declared", id)))
	}
	if idx == e.active {
		return ""
	}
	if !e.MultipleExtruders || e.active < 0 {
		e.active = idx
		return ""
	}

	var out strings.Builder
	out.WriteString(e.Retract(0, true))
	from := e.extruders[e.active].ID
	e.active = idx
	out.WriteString(e.command(e.traits.ToolSelect+strconv.Itoa(id), "change extruder"))
	out.WriteString(e.ResetE())

	e.metrics.ObserveToolChange()
	e.entry().WithFields(log.Fields{"from": from, "to": id}).Debug("tool change")
	return out.String()
}

// ChangeLayer advances to layer and moves to its print height.
func (e *Emitter) ChangeLayer(layer Layer) string {
	e.layer = layer
	e.layerIndex++
	e.layerIslands = layer.Islands()
	e.upperLayerIslands = nil
	if upper := layer.UpperLayer(); upper != nil {
		e.upperLayerIslands = upper.Islands()
	}
	if e.config.AvoidCrossingPerimeters && e.plannerFactory != nil {
		e.layerMP = e.plannerFactory(e.layerIslands)
	}

	var out strings.Builder
	if e.traits.Progress {
		out.WriteString(e.command("M73 P"+strconv.Itoa(e.progress()), "update progress"))
	}
	if e.config.FirstLayerAcceleration != 0 {
		switch layer.ID() {
		case 0:
			out.WriteString(e.SetAcceleration(e.config.FirstLayerAcceleration))
		case 1:
			out.WriteString(e.SetAcceleration(e.config.DefaultAcceleration))
		}
	}
	out.WriteString(e.MoveZ(layer.PrintZ(), ""))

	e.metrics.ObserveLayer()
	e.debug("layer %d at z=%.3f", layer.ID(), layer.PrintZ())
	return out.String()
}

func (e *Emitter) progress() int {
	if e.layerCount <= 1 {
		return 0
	}
	return int(math.Floor(99 * float64(e.layerIndex) / float64(e.layerCount-1)))
}

func (e *Emitter) layerComment(text string) string {
	if e.layer == nil {
		return text
	}
	return fmt.Sprintf("%s (%d)", text, e.layer.ID())
}

// MoveZ moves to the print height toZ (before z_offset). Moving down
// within the current lift only lowers the lift, without a move.
func (e *Emitter) MoveZ(toZ float64, comment string) string {
	toZ += e.config.ZOffset
	nominalZ := e.z - e.lifted

	var out strings.Builder
	switch {
	case !e.zDefined || toZ > e.z || toZ < nominalZ:
		e.lifted = 0
		if e.activeExtruder().RetractLayerChange() {
			out.WriteString(e.retract(toZ, true, false))
		}
		nominalZ = e.z - e.lifted
		if !e.zDefined || math.Abs(toZ-nominalZ) > zEpsilon {
			if comment == "" {
				comment = e.layerComment("move to next layer")
			}
			out.WriteString(e.G0G1Z(true, toZ, 0, e.config.TravelSpeed*60, comment))
		} else {
			e.debug("z %.4f already current", toZ)
		}
	case toZ < e.z:
		e.lifted = e.z - toZ
		e.debug("staying lifted by %.3f", e.lifted)
	}
	return out.String()
}

// Retract pulls back filament on the active extruder and lifts the nozzle
// when configured. moveZ, when non-zero, is the next layer height; the
// lift then goes straight to moveZ plus the lift amount. Retracting an
// already retracted extruder emits nothing.
func (e *Emitter) Retract(moveZ float64, toolchange bool) string {
	return e.retract(moveZ, moveZ != 0, toolchange)
}

// retract is Retract with an explicit layer target flag, so a layer at
// Z=0 still lifts relative to its own height.
func (e *Emitter) retract(moveZ float64, hasMoveZ, toolchange bool) string {
	ext := e.activeExtruder()
	length, restartExtra, comment := ext.RetractLength(), ext.RetractRestartExtra(), "retract"
	if toolchange {
		length = ext.RetractLengthToolchange()
		restartExtra = ext.RetractRestartExtraToolchange()
		comment = "retract for tool change"
	}

	length -= ext.Retracted
	if length <= 0 {
		e.debug("extruder %d already retracted by %.3f", ext.ID, ext.Retracted)
		return ""
	}

	var out strings.Builder
	kind := metrics.RetractPlain
	switch {
	case ext.Wipe() && len(e.wipePath.Points) > 1:
		kind = metrics.RetractWipe
		out.WriteString(e.wipe(ext, length, comment))
	case e.config.UseFirmwareRetraction:
		kind = metrics.RetractFirmware
		out.WriteString(e.command("G10", comment))
	default:
		out.WriteString(e.G0G1Move(false, -length, ext.RetractSpeedMMMin(), comment))
	}

	if lift := ext.RetractLift(); lift > 0 && e.lifted == 0 {
		travelFeed := e.config.TravelSpeed * 60
		switch {
		case !hasMoveZ:
			out.WriteString(e.G0G1Z(false, e.z+lift, 0, travelFeed, "lift plate during travel"))
		case !e.zDefined || math.Abs(moveZ+lift-e.z) > zEpsilon:
			out.WriteString(e.G0G1Z(true, moveZ+lift, 0, travelFeed, e.layerComment("move to next layer")+" and lift"))
		default:
			e.debug("already at lifted z %.3f", e.z)
		}
		e.lifted = lift
		e.metrics.ObserveLift()
	}

	ext.Retract(length, restartExtra)
	e.metrics.ObserveRetract(kind, toolchange, length)

	out.WriteString(e.ResetE())
	if e.traits.ExtruderOffAfterRetract {
		out.WriteString(e.command("M103", "extruder off"))
	}
	return out.String()
}

// wipe retracts length while travelling back along the wipe path. Each
// segment takes its share of the wipe distance, derated so the effective
// retraction speed stays under the configured one, and any remainder is
// retracted in place.
func (e *Emitter) wipe(ext *extruder.Extruder, length float64, comment string) string {
	wipeDist := ext.ScaledWipeDistance(e.config.TravelSpeed)
	path := e.wipePath.Clone()
	path.Points[0] = e.lastPos
	path.ClipEnd(path.Length() - wipeDist)

	var out strings.Builder
	retracted := 0.0
	feed := e.config.TravelSpeed * 60 * 0.8
	for _, line := range path.Lines() {
		de := -length * (line.Length() / wipeDist) * 0.95
		retracted += de
		out.WriteString(e.G0G1Point(false, line.B, de, feed, comment+";_WIPE"))
	}
	if retracted > -length {
		out.WriteString(e.G0G1Move(false, -length-retracted, ext.RetractSpeedMMMin(), comment))
	}
	return out.String()
}

// Unretract restores the layer height after a lift and primes the filament
// pulled back by earlier retractions, plus any restart extra.
func (e *Emitter) Unretract() string {
	ext := e.activeExtruder()

	var out strings.Builder
	if e.lifted > 0 {
		out.WriteString(e.G0G1Z(true, e.z-e.lifted, 0, e.config.TravelSpeed*60, "restore layer Z"))
		e.lifted = 0
	}

	if amount := ext.Retracted + ext.RestartExtra; amount != 0 {
		switch {
		case e.config.UseFirmwareRetraction:
			out.WriteString(e.command("G11", "unretract"))
		case e.config.ExtrusionAxis != "":
			out.WriteString(e.G0G1Move(false, amount, ext.RetractSpeedMMMin(), "compensate retraction"))
		}
		ext.Unretract()
	}
	return out.String()
}

// ResetE zeroes the extrusion distance so firmware keeps full precision.
// Flavors that track extrusion themselves get nothing.
func (e *Emitter) ResetE() string {
	if e.traits.ManagesExtrusionDistance {
		return ""
	}
	e.activeExtruder().E = 0
	if e.config.ExtrusionAxis == "" || e.config.UseRelativeEDistances {
		return ""
	}
	return e.command("G92 "+e.config.ExtrusionAxis+"0", "reset extrusion distance")
}

// SetAcceleration emits M204. Zero means acceleration control is off.
func (e *Emitter) SetAcceleration(accel float64) string {
	if accel == 0 {
		return ""
	}
	return e.command("M204 S"+formatNumber(accel), "adjust acceleration")
}

// TravelTo moves to point without extruding. Travels shorter than
// retract_before_travel skip the retraction; with avoid_crossing_perimeters
// the route comes from the motion planner.
func (e *Emitter) TravelTo(point geom.Point, comment string) string {
	ext := e.activeExtruder()
	feed := e.config.TravelSpeed * 60

	if e.lastPos.DistanceTo(point) < geom.Scale(ext.RetractBeforeTravel()) {
		e.StraightOnce = false
		return e.G0G1Point(true, point, 0, feed, comment)
	}

	mp := e.layerMP
	if e.NewObject {
		mp = e.externalMP
	}
	if !e.config.AvoidCrossingPerimeters || e.StraightOnce || mp == nil {
		e.StraightOnce = false
		e.NewObject = false
		return e.Retract(0, false) + e.G0G1Point(true, point, 0, feed, comment)
	}

	if !e.NewObject {
		return e.plan(mp, point, comment)
	}

	// The external planner works in print bed coordinates.
	e.NewObject = false
	shiftX, shiftY := e.shiftX, e.shiftY
	target := point.Translate(scaledShift(shiftX), scaledShift(shiftY))
	e.SetShift(0, 0)
	out := e.plan(mp, target, comment)
	e.SetShift(shiftX, shiftY)
	return out
}

func (e *Emitter) plan(mp MotionPlanner, to geom.Point, comment string) string {
	var out strings.Builder
	out.WriteString(e.Retract(0, false))

	feed := e.config.TravelSpeed * 60
	route := mp.ShortestPath(e.lastPos, to)
	lines := route.Lines()
	if len(lines) == 0 {
		e.debug("planner returned no route, travelling straight")
		lines = []geom.Line{{A: e.lastPos, B: to}}
	}
	// G1 keeps firmware from rounding the corners of the route.
	for _, line := range lines {
		out.WriteString(e.G0G1Point(false, line.B, 0, feed, comment))
	}
	return out.String()
}

// ExtrudeTo prints a straight line to point extruding de millimetres of
// filament at feed mm/min.
func (e *Emitter) ExtrudeTo(point geom.Point, de, feed float64, comment string) string {
	return e.G0G1Point(false, point, de, feed, comment)
}

// SetFan sets the part cooling fan to speed percent. Repeating the last
// speed emits nothing.
func (e *Emitter) SetFan(speed int) string {
	if speed == e.lastFanSpeed {
		return ""
	}
	e.lastFanSpeed = speed
	if speed == 0 {
		return e.command(e.traits.FanOff, "disable fan")
	}
	if e.traits.FanOn != "" {
		return e.command(e.traits.FanOn, "enable fan")
	}
	return e.command(fmt.Sprintf("M106 %s%d", e.traits.FanPWMWord, 255*speed/100), "enable fan")
}

// SetShift sets the object offset in millimetres. The last position and
// wipe path are kept at the same physical place.
func (e *Emitter) SetShift(x, y float64) {
	dx, dy := scaledShift(e.shiftX-x), scaledShift(e.shiftY-y)
	e.lastPos = e.lastPos.Translate(dx, dy)
	e.wipePath.Translate(dx, dy)
	e.shiftX, e.shiftY = x, y
}

func scaledShift(mm float64) int64 {
	return int64(math.Round(geom.Scale(mm)))
}

// SetWipePath sets the path retraction wipes along. Fewer than two points
// disables wiping.
func (e *Emitter) SetWipePath(path geom.Polyline) {
	e.wipePath = path.Clone()
}

// SetNewObject marks the next planned travel as entering a new object.
func (e *Emitter) SetNewObject() {
	e.NewObject = true
}

// Z returns the current Z and whether it was ever set.
func (e *Emitter) Z() (float64, bool) { return e.z, e.zDefined }

func (e *Emitter) Lifted() float64           { return e.lifted }
func (e *Emitter) LastPos() geom.Point       { return e.lastPos }
func (e *Emitter) LayerIndex() int           { return e.layerIndex }
func (e *Emitter) ElapsedTime() float64      { return e.elapsedTime }
func (e *Emitter) Shift() (float64, float64) { return e.shiftX, e.shiftY }
func (e *Emitter) WipePath() geom.Polyline   { return e.wipePath.Clone() }

func (e *Emitter) LayerIslands() []geom.ExPolygon      { return e.layerIslands }
func (e *Emitter) UpperLayerIslands() []geom.ExPolygon { return e.upperLayerIslands }

// ActiveExtruder returns a copy of the active extruder state.
func (e *Emitter) ActiveExtruder() (extruder.Extruder, bool) {
	if e.active < 0 {
		return extruder.Extruder{}, false
	}
	return e.extruders[e.active], true
}

// Extruder returns a copy of the state of extruder id.
func (e *Emitter) Extruder(id int) (extruder.Extruder, bool) {
	idx := e.indexOf(id)
	if idx < 0 {
		return extruder.Extruder{}, false
	}
	return e.extruders[idx], true
}
