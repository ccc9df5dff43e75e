package gcode

import "gcodegen/pkg/geom"

// Layer is the view of a sliced layer the emitter needs.
type Layer interface {
	ID() int
	// PrintZ is the nominal print height in millimetres.
	PrintZ() float64
	Islands() []geom.ExPolygon
	// UpperLayer returns nil on the topmost layer.
	UpperLayer() Layer
}

// MotionPlanner routes travel moves around obstacles.
type MotionPlanner interface {
	// ShortestPath returns a route starting at from and ending at to.
	ShortestPath(from, to geom.Point) geom.Polyline
}

// PlannerFactory builds a planner for the islands of one layer.
type PlannerFactory func(islands []geom.ExPolygon) MotionPlanner

// DirectPlanner routes every travel as one straight segment.
type DirectPlanner struct{}

func (DirectPlanner) ShortestPath(from, to geom.Point) geom.Polyline {
	return geom.NewPolyline(from, to)
}

// DirectPlannerFactory ignores the islands and returns a DirectPlanner.
func DirectPlannerFactory([]geom.ExPolygon) MotionPlanner { return DirectPlanner{} }

// StaticLayer is a fixed Layer value for drivers that already know every
// layer up front.
type StaticLayer struct {
	Index  int
	Z      float64
	Slices []geom.ExPolygon
	Upper  *StaticLayer
}

func (l *StaticLayer) ID() int                   { return l.Index }
func (l *StaticLayer) PrintZ() float64           { return l.Z }
func (l *StaticLayer) Islands() []geom.ExPolygon { return l.Slices }

func (l *StaticLayer) UpperLayer() Layer {
	if l.Upper == nil {
		return nil
	}
	return l.Upper
}

// StackLayers links consecutive layers at the given heights, ids from 0.
func StackLayers(heights ...float64) []*StaticLayer {
	layers := make([]*StaticLayer, len(heights))
	for i, z := range heights {
		layers[i] = &StaticLayer{Index: i, Z: z}
	}
	for i := 0; i+1 < len(layers); i++ {
		layers[i].Upper = layers[i+1]
	}
	return layers
}
