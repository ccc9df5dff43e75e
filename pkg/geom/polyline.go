package geom

// Polyline is an open chain of points.
type Polyline struct {
	Points []Point
}

// NewPolyline copies pts into a new polyline.
func NewPolyline(pts ...Point) Polyline {
	return Polyline{Points: append([]Point(nil), pts...)}
}

// Clone returns a deep copy.
func (pl Polyline) Clone() Polyline {
	return NewPolyline(pl.Points...)
}

// FirstPoint panics on an empty polyline like slice indexing does.
func (pl Polyline) FirstPoint() Point { return pl.Points[0] }

// LastPoint panics on an empty polyline like slice indexing does.
func (pl Polyline) LastPoint() Point { return pl.Points[len(pl.Points)-1] }

// Length is the sum of segment lengths in scaled units.
func (pl Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(pl.Points); i++ {
		total += pl.Points[i-1].DistanceTo(pl.Points[i])
	}
	return total
}

// Lines splits the polyline into consecutive segments.
func (pl Polyline) Lines() []Line {
	if len(pl.Points) < 2 {
		return nil
	}
	lines := make([]Line, 0, len(pl.Points)-1)
	for i := 1; i < len(pl.Points); i++ {
		lines = append(lines, Line{A: pl.Points[i-1], B: pl.Points[i]})
	}
	return lines
}

// ClipEnd removes distance (scaled units) from the tail. A non-positive
// distance leaves the polyline untouched; clipping the whole length empties it.
func (pl *Polyline) ClipEnd(distance float64) {
	for distance > 0 && len(pl.Points) > 0 {
		last := pl.LastPoint()
		pl.Points = pl.Points[:len(pl.Points)-1]
		if len(pl.Points) == 0 {
			return
		}
		segment := last.DistanceTo(pl.LastPoint())
		if segment <= distance {
			distance -= segment
			continue
		}
		pl.Points = append(pl.Points, Line{A: last, B: pl.LastPoint()}.PointAt(distance))
		return
	}
}

// Translate moves every point by (dx, dy) scaled units in place.
func (pl *Polyline) Translate(dx, dy int64) {
	for i := range pl.Points {
		pl.Points[i] = pl.Points[i].Translate(dx, dy)
	}
}
