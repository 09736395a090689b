// Package geo holds the bounding-box geometry used to sweep an area.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Rectangle is an axis-aligned box in standard GIS order:
// X is longitude, Y is latitude.
type Rectangle struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// NewRectangle builds a Rectangle from its corners.
func NewRectangle(minX, minY, maxX, maxY float64) Rectangle {
	return Rectangle{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) Rectangle {
	return Rectangle{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
}

// Bound converts to an orb.Bound.
func (r Rectangle) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.MinX, r.MinY}, Max: orb.Point{r.MaxX, r.MaxY}}
}

// Tuple returns the corners as (minX, minY, maxX, maxY).
func (r Rectangle) Tuple() (float64, float64, float64, float64) {
	return r.MinX, r.MinY, r.MaxX, r.MaxY
}

// Width is the longitude span.
func (r Rectangle) Width() float64 { return r.MaxX - r.MinX }

// Height is the latitude span.
func (r Rectangle) Height() float64 { return r.MaxY - r.MinY }

// Contains reports whether the point lies inside or on the edge.
func (r Rectangle) Contains(lon, lat float64) bool {
	return r.Bound().Contains(orb.Point{lon, lat})
}

// String formats the rectangle as "minx,miny,maxx,maxy", the form the
// places API takes for its in= parameter.
func (r Rectangle) String() string {
	parts := []string{
		strconv.FormatFloat(r.MinX, 'f', -1, 64),
		strconv.FormatFloat(r.MinY, 'f', -1, 64),
		strconv.FormatFloat(r.MaxX, 'f', -1, 64),
		strconv.FormatFloat(r.MaxY, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}

// Subdivide splits the rectangle into rows*columns equal cells, row-major
// starting at the min corner. columns <= 0 means a square grid.
func (r Rectangle) Subdivide(rows, columns int) []Rectangle {
	if columns <= 0 {
		columns = rows
	}
	if rows <= 0 {
		return nil
	}

	cellW := r.Width() / float64(columns)
	cellH := r.Height() / float64(rows)

	cells := make([]Rectangle, 0, rows*columns)
	for n := 0; n < rows*columns; n++ {
		row := n / columns
		col := n % columns
		cells = append(cells, Rectangle{
			MinX: r.MinX + cellW*float64(col),
			MinY: r.MinY + cellH*float64(row),
			MaxX: r.MinX + cellW*float64(col+1),
			MaxY: r.MinY + cellH*float64(row+1),
		})
	}
	return cells
}

// ParseRectangle parses "minx,miny,maxx,maxy".
func ParseRectangle(s string) (Rectangle, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return Rectangle{}, fmt.Errorf("bounding box needs 4 comma-separated values, got %d", len(fields))
	}

	var v [4]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Rectangle{}, fmt.Errorf("bounding box value %d: %w", i+1, err)
		}
		v[i] = x
	}

	r := NewRectangle(v[0], v[1], v[2], v[3])
	if err := r.Validate(); err != nil {
		return Rectangle{}, err
	}
	return r, nil
}

// Validate checks the corners are ordered and within WGS84 range.
func (r Rectangle) Validate() error {
	for _, v := range []float64{r.MinX, r.MinY, r.MaxX, r.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounding box %s: coordinates must be finite", r)
		}
	}
	if r.MinX >= r.MaxX || r.MinY >= r.MaxY {
		return fmt.Errorf("bounding box %s: min must be less than max", r)
	}
	if r.MinX < -180 || r.MaxX > 180 || r.MinY < -90 || r.MaxY > 90 {
		return fmt.Errorf("bounding box %s: outside WGS84 range", r)
	}
	return nil
}
