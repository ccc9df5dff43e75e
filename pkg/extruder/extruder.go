// Package extruder tracks the physical state of one extruder across a print
// job: commanded E position, filament consumed and pending retraction.
package extruder

import (
	"gcodegen/pkg/config"
	"gcodegen/pkg/geom"
)

// Extruder holds the counters of one physical extruder. Parameters are read
// through to the PrintConfig on every call.
type Extruder struct {
	ID int

	// E is the position printed on the extrusion axis. It restarts from zero
	// on every Extrude call when relative E distances are configured.
	E float64
	// AbsoluteE accumulates all extrusion and is never reset by G92.
	AbsoluteE float64
	// Retracted is the filament length pulled back and not yet restored.
	Retracted float64
	// RestartExtra is primed in addition to Retracted on the next unretract.
	RestartExtra float64

	config *config.PrintConfig
}

// New builds an extruder with zeroed counters.
func New(id int, cfg *config.PrintConfig) Extruder {
	e := Extruder{ID: id, config: cfg}
	e.Reset()
	return e
}

// Reset zeroes every counter.
func (e *Extruder) Reset() {
	e.E = 0
	e.AbsoluteE = 0
	e.Retracted = 0
	e.RestartExtra = 0
}

// Extrude advances by dE and returns the value to print on the E axis.
func (e *Extruder) Extrude(dE float64) float64 {
	if e.config.UseRelativeEDistances {
		e.E = 0
	}
	e.E += dE
	e.AbsoluteE += dE
	return e.E
}

// Retract records an additional retraction of length and the extra amount
// to prime on restart.
func (e *Extruder) Retract(length, restartExtra float64) {
	e.Retracted += length
	e.RestartExtra = restartExtra
}

// Unretract returns the length to prime and clears the pending retraction.
func (e *Extruder) Unretract() float64 {
	amount := e.Retracted + e.RestartExtra
	e.Retracted = 0
	e.RestartExtra = 0
	return amount
}

func (e *Extruder) ExtruderOffset() geom.Pointf  { return e.config.ExtruderOffsetAt(e.ID) }
func (e *Extruder) NozzleDiameter() float64      { return e.config.NozzleDiameterAt(e.ID) }
func (e *Extruder) FilamentDiameter() float64    { return e.config.FilamentDiameterAt(e.ID) }
func (e *Extruder) ExtrusionMultiplier() float64 { return e.config.ExtrusionMultiplierAt(e.ID) }
func (e *Extruder) Temperature() int             { return e.config.TemperatureAt(e.ID) }
func (e *Extruder) FirstLayerTemperature() int   { return e.config.FirstLayerTemperatureAt(e.ID) }
func (e *Extruder) RetractLength() float64       { return e.config.RetractLengthAt(e.ID) }
func (e *Extruder) RetractLift() float64         { return e.config.RetractLiftAt(e.ID) }
func (e *Extruder) RetractSpeed() int            { return e.config.RetractSpeedAt(e.ID) }
func (e *Extruder) RetractRestartExtra() float64 { return e.config.RetractRestartExtraAt(e.ID) }
func (e *Extruder) RetractBeforeTravel() float64 { return e.config.RetractBeforeTravelAt(e.ID) }
func (e *Extruder) RetractLayerChange() bool     { return e.config.RetractLayerChangeAt(e.ID) }
func (e *Extruder) RetractLengthToolchange() float64 {
	return e.config.RetractLengthToolchangeAt(e.ID)
}
func (e *Extruder) RetractRestartExtraToolchange() float64 {
	return e.config.RetractRestartExtraToolchangeAt(e.ID)
}
func (e *Extruder) Wipe() bool { return e.config.WipeAt(e.ID) }

// RetractSpeedMMMin converts the retract speed to a feed rate in mm/min.
func (e *Extruder) RetractSpeedMMMin() float64 {
	return float64(e.RetractSpeed()) * 60
}

// ScaledWipeDistance is how far the nozzle travels, in scaled units, during
// the time needed to retract RetractLength at RetractSpeed. Wiping runs at
// 80% of travelSpeed so the distance is derated by the same factor.
func (e *Extruder) ScaledWipeDistance(travelSpeed float64) float64 {
	return geom.Scale(e.RetractLength() / float64(e.RetractSpeed()) * travelSpeed * 0.8)
}
