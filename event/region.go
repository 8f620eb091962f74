package event

import (
	"fmt"
	clipper "github.com/ctessum/go.clipper"
	"math"
)

// regionScale converts pixel coordinates to clipper integer space keeping
// sub pixel precision
const regionScale = 1000

// Vertex is a polygon corner in pixels
type Vertex struct {
	X, Y float64
}

// Region is a closed polygon on the pitch such as a goal mouth or goal area
type Region struct {
	Name     string
	Vertices []Vertex
	path     clipper.Path
}

// NewRegion returns a polygon region, vertices must describe a polygon with
// a non zero area
func NewRegion(name string, vertices []Vertex) (Region, error) {

	if len(vertices) < 3 {
		return Region{}, fmt.Errorf("region %q needs at least 3 vertices, got %d", name, len(vertices))
	}

	for _, v := range vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return Region{}, fmt.Errorf("region %q has a non finite vertex", name)
		}
	}

	if polygonArea(vertices) == 0 {
		return Region{}, fmt.Errorf("region %q has zero area", name)
	}

	r := Region{
		Name:     name,
		Vertices: append([]Vertex(nil), vertices...),
	}
	r.path = toPath(r.Vertices)

	return r, nil
}

// RectRegion returns an axis aligned rectangular region
func RectRegion(name string, x0, y0, x1, y1 float64) Region {
	r, _ := NewRegion(name, []Vertex{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}})
	return r
}

func toPath(vertices []Vertex) clipper.Path {
	var path clipper.Path

	for _, v := range vertices {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(v.X * regionScale)),
			Y: clipper.CInt(math.Round(v.Y * regionScale)),
		})
	}

	return path
}

// Contains returns true if the point lies inside or on the edge of the
// region
func (r Region) Contains(x, y float64) bool {

	path := r.path
	if path == nil {
		path = toPath(r.Vertices)
	}

	if len(path) < 3 {
		return false
	}

	pt := &clipper.IntPoint{
		X: clipper.CInt(math.Round(x * regionScale)),
		Y: clipper.CInt(math.Round(y * regionScale)),
	}

	// 0 outside, 1 inside, -1 on the boundary
	return clipper.PointInPolygon(pt, path) != 0
}

// Distance returns the distance in pixels from the point to the region, zero
// if the point is inside
func (r Region) Distance(x, y float64) float64 {

	if r.Contains(x, y) {
		return 0
	}

	best := math.Inf(1)
	n := len(r.Vertices)

	for i := 0; i < n; i++ {
		a := r.Vertices[i]
		b := r.Vertices[(i+1)%n]
		best = math.Min(best, segmentDistance(x, y, a, b))
	}

	return best
}

// Bounds returns the bounding box of the region
func (r Region) Bounds() Bounds {

	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}

	for _, v := range r.Vertices {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}

	return b
}

// segmentDistance is the distance from point p to the segment a-b
func segmentDistance(px, py float64, a, b Vertex) float64 {

	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy

	if lenSq == 0 {
		return math.Hypot(px-a.X, py-a.Y)
	}

	t := ((px-a.X)*dx + (py-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(px-(a.X+t*dx), py-(a.Y+t*dy))
}

// polygonArea returns the absolute shoelace area of the polygon
func polygonArea(vertices []Vertex) float64 {
	sum := 0.0
	n := len(vertices)

	for i := 0; i < n; i++ {
		a := vertices[i]
		b := vertices[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}

	return math.Abs(sum) / 2
}

// regionAt returns the index of the first region containing the point, -1
// if none does
func regionAt(regions []Region, x, y float64) int {
	for i, r := range regions {
		if r.Contains(x, y) {
			return i
		}
	}
	return -1
}

// DefaultGoalRegions returns goal mouth regions at the left and right edges
// of a side on camera view of the given frame size
func DefaultGoalRegions(width, height int) []Region {
	w := float64(width)
	h := float64(height)

	return []Region{
		RectRegion("left-goal", 0, h*200/480, w*100/640, h*400/480),
		RectRegion("right-goal", w*540/640, h*200/480, w, h*400/480),
	}
}

// DefaultGoalAreaRegions returns the goal areas in front of the default goal
// regions
func DefaultGoalAreaRegions(width, height int) []Region {
	w := float64(width)
	h := float64(height)

	return []Region{
		RectRegion("left-goal-area", 0, h*140/480, w*160/640, h*460/480),
		RectRegion("right-goal-area", w*480/640, h*140/480, w, h*460/480),
	}
}
