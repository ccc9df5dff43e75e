package gcode

import (
	"strconv"

	"gcodegen/pkg/errors"
	"gcodegen/pkg/extruder"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/pool"
)

// moveWords is one fully resolved G0/G1 line. Rendering it has no side
// effects.
type moveWords struct {
	g0      bool
	hasXY   bool
	x, y    float64
	hasZ    bool
	z       float64
	feed    float64
	axis    string
	hasE    bool
	e       float64
	comment string
}

func (w moveWords) appendTo(b *pool.ByteBuffer) {
	if w.g0 {
		b.WriteString("G0")
	} else {
		b.WriteString("G1")
	}
	if w.hasXY {
		b.AppendWord('X', w.x)
		b.AppendWord('Y', w.y)
	}
	if w.hasZ {
		b.AppendWord('Z', w.z)
	}
	b.AppendWord('F', w.feed)
	if w.hasE {
		b.AppendAxisWord(w.axis, w.e)
	}
	appendComment(b, w.comment)
	b.WriteByte('\n')
}

func appendComment(b *pool.ByteBuffer, comment string) {
	if comment == "" {
		return
	}
	b.WriteString(" ; ")
	b.WriteString(comment)
}

// activeExtruder resolves the active index on every use. Emitting without
// one is a caller bug.
func (e *Emitter) activeExtruder() *extruder.Extruder {
	if e.active < 0 || e.active >= len(e.extruders) {
		panic(errors.EmitterStateError("no active extruder; call SetExtruders first"))
	}
	return &e.extruders[e.active]
}

func (e *Emitter) g0Allowed() bool {
	return e.config.G0 || e.traits.G0Allowed
}

func (e *Emitter) commentText(comment string) string {
	if !e.config.GCodeComments {
		return ""
	}
	return comment
}

// G0G1 emits one motion line. point and z are optional; de is the
// extrusion delta in millimetres of filament and feed is in mm/min.
func (e *Emitter) G0G1(isG0 bool, point *geom.Point, z *float64, de, feed float64, comment string) string {
	ext := e.activeExtruder()
	w := moveWords{
		g0:      isG0 && e.g0Allowed(),
		feed:    feed,
		comment: e.commentText(comment),
	}

	if point != nil {
		offset := ext.ExtruderOffset()
		w.hasXY = true
		w.x = geom.Unscale(float64(point.X)) + e.shiftX - offset.X
		w.y = geom.Unscale(float64(point.Y)) + e.shiftY - offset.Y
		if feed > 0 {
			e.elapsedTime += geom.Unscale(e.lastPos.DistanceTo(*point)) / (feed / 60)
			e.metrics.SetElapsedTime(e.elapsedTime)
		}
		e.lastPos = *point
	}

	if z != nil && (!e.zDefined || *z != e.z) {
		w.hasZ = true
		w.z = *z
		e.z = *z
		e.zDefined = true
	}

	if de != 0 && e.config.ExtrusionAxis != "" {
		w.hasE = true
		w.axis = e.config.ExtrusionAxis
		w.e = ext.Extrude(de)
		e.metrics.SetFilamentUsed(ext.ID, ext.AbsoluteE)
	}

	b := pool.GetByteBuffer()
	defer pool.PutByteBuffer(b)
	w.appendTo(b)
	return e.finish(b)
}

// G0G1Move emits a line with neither point nor Z, typically a pure E move.
func (e *Emitter) G0G1Move(isG0 bool, de, feed float64, comment string) string {
	return e.G0G1(isG0, nil, nil, de, feed, comment)
}

// G0G1Point emits an XY move.
func (e *Emitter) G0G1Point(isG0 bool, point geom.Point, de, feed float64, comment string) string {
	return e.G0G1(isG0, &point, nil, de, feed, comment)
}

// G0G1Z emits a Z move. The Z word is dropped when z is already current.
func (e *Emitter) G0G1Z(isG0 bool, z, de, feed float64, comment string) string {
	return e.G0G1(isG0, nil, &z, de, feed, comment)
}

// G0G1PointZ emits an XYZ move.
func (e *Emitter) G0G1PointZ(isG0 bool, point geom.Point, z, de, feed float64, comment string) string {
	return e.G0G1(isG0, &point, &z, de, feed, comment)
}

// command emits a non-motion line such as "G92 E0" or "M204 S1500".
func (e *Emitter) command(text, comment string) string {
	b := pool.GetByteBuffer()
	defer pool.PutByteBuffer(b)
	b.WriteString(text)
	appendComment(b, e.commentText(comment))
	b.WriteByte('\n')
	return e.finish(b)
}

func (e *Emitter) finish(b *pool.ByteBuffer) string {
	line := b.String()
	e.metrics.ObserveOutput(line)
	return line
}

// formatNumber prints integral values without decimals, others in full.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
