// Package geom holds the planar primitives the emitter consumes: scaled
// integer points, polylines and island outlines.
//
// Coordinates are stored scaled by 1/ScalingFactor so that path geometry can
// use exact integer arithmetic; G-code output converts back with Unscale.
package geom

import "math"

// ScalingFactor converts internal integer units to millimetres.
const ScalingFactor = 0.000001

// Scale converts millimetres to internal units.
func Scale(mm float64) float64 { return mm / ScalingFactor }

// Unscale converts internal units to millimetres.
func Unscale(v float64) float64 { return v * ScalingFactor }

// Point is a position in scaled integer coordinates.
type Point struct {
	X int64
	Y int64
}

// NewPointMM builds a scaled point from millimetre coordinates.
func NewPointMM(x, y float64) Point {
	return Point{X: int64(math.Round(Scale(x))), Y: int64(math.Round(Scale(y)))}
}

// DistanceTo returns the euclidean distance in scaled units.
func (p Point) DistanceTo(o Point) float64 {
	dx := float64(o.X - p.X)
	dy := float64(o.Y - p.Y)
	return math.Hypot(dx, dy)
}

// Translate returns p moved by (dx, dy) scaled units.
func (p Point) Translate(dx, dy int64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Pointf is an unscaled point in millimetres (extruder offsets).
type Pointf struct {
	X float64
	Y float64
}

// Line is a directed segment.
type Line struct {
	A Point
	B Point
}

// Length in scaled units.
func (l Line) Length() float64 { return l.A.DistanceTo(l.B) }

// PointAt returns the point at the given distance from A towards B.
func (l Line) PointAt(distance float64) Point {
	length := l.Length()
	if length == 0 {
		return l.A
	}
	t := distance / length
	return Point{
		X: l.A.X + int64(math.Round(float64(l.B.X-l.A.X)*t)),
		Y: l.A.Y + int64(math.Round(float64(l.B.Y-l.A.Y)*t)),
	}
}

// Polygon is a closed ring of points; the closing edge is implicit.
type Polygon struct {
	Points []Point
}

// ExPolygon is an outer contour with optional holes, i.e. one island.
type ExPolygon struct {
	Contour Polygon
	Holes   []Polygon
}
