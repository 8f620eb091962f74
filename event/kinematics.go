package event

import (
	"github.com/swdee/go-highlight/tracker"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"math"
	"sort"
	"time"
)

// motion holds a centroid path as float64 series for kinematic analysis
type motion struct {
	ts []float64 // seconds
	x  []float64
	y  []float64
}

func newMotion(points []tracker.Point) motion {
	m := motion{
		ts: make([]float64, len(points)),
		x:  make([]float64, len(points)),
		y:  make([]float64, len(points)),
	}

	for i, p := range points {
		m.ts[i] = p.TS.Seconds()
		m.x[i] = float64(p.X)
		m.y[i] = float64(p.Y)
	}

	return m
}

func (m motion) len() int {
	return len(m.ts)
}

// speeds returns the speed in pixels per second between consecutive samples
func (m motion) speeds() []float64 {
	var out []float64

	for i := 1; i < m.len(); i++ {
		dt := m.ts[i] - m.ts[i-1]
		if dt <= 0 {
			continue
		}
		out = append(out, math.Hypot(m.x[i]-m.x[i-1], m.y[i]-m.y[i-1])/dt)
	}

	return out
}

// meanSpeed returns the average speed over the path, zero for fewer than
// two samples
func (m motion) meanSpeed() float64 {
	s := m.speeds()
	if len(s) == 0 {
		return 0
	}
	return stat.Mean(s, nil)
}

// maxTurn returns the largest heading change in radians between
// consecutive steps of at least minStep pixels and the index of the sample
// the turn happens at.  Returns -1 if there are too few steps
func (m motion) maxTurn(minStep float64) (float64, int) {

	var headings []float64
	var at []int

	for i := 1; i < m.len(); i++ {
		dx := m.x[i] - m.x[i-1]
		dy := m.y[i] - m.y[i-1]

		if math.Hypot(dx, dy) < minStep {
			continue
		}

		headings = append(headings, math.Atan2(dy, dx))
		at = append(at, i-1)
	}

	if len(headings) < 2 {
		return 0, -1
	}

	turns := make([]float64, len(headings)-1)

	for i := 1; i < len(headings); i++ {
		turns[i-1] = turnAngle(headings[i-1], headings[i])
	}

	idx := floats.MaxIdx(turns)

	// the turn happens at the sample shared by the two steps
	return turns[idx], at[idx+1]
}

// turnAngle returns the absolute difference of two headings in [0,pi]
func turnAngle(a, b float64) float64 {
	d := math.Mod(math.Abs(b-a), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// decelRatio compares the mean speed of the second half of the path against
// the first half.  A value of 1 means the object came to a stop
func (m motion) decelRatio() float64 {

	s := m.speeds()

	if len(s) < 2 {
		return 0
	}

	half := len(s) / 2
	before := stat.Mean(s[:half], nil)
	after := stat.Mean(s[half:], nil)

	if before <= 0 {
		return 0
	}

	return math.Max(0, 1-after/before)
}

// reversals counts the changes of horizontal direction ignoring steps
// smaller than minStep pixels
func (m motion) reversals(minStep float64) int {

	count := 0
	last := 0.0

	for i := 1; i < m.len(); i++ {
		dx := m.x[i] - m.x[i-1]

		if math.Abs(dx) < minStep {
			continue
		}

		if last != 0 && math.Signbit(dx) != math.Signbit(last) {
			count++
		}

		last = dx
	}

	return count
}

// maxDisplacement returns the largest distance between a sample i accepted
// by from and a later sample j no more than window seconds after it
func (m motion) maxDisplacement(window float64, from func(i int) bool) (float64, int, int) {

	best, bi, bj := 0.0, -1, -1

	for i := 0; i < m.len(); i++ {

		if !from(i) {
			continue
		}

		for j := i + 1; j < m.len() && m.ts[j]-m.ts[i] <= window; j++ {
			d := math.Hypot(m.x[j]-m.x[i], m.y[j]-m.y[i])
			if d > best {
				best, bi, bj = d, i, j
			}
		}
	}

	return best, bi, bj
}

// nearestAt returns the point of a history closest in time to ts, false if
// none is within tolerance
func nearestAt(history []tracker.Point, ts, tolerance time.Duration) (tracker.Point, bool) {

	i := sort.Search(len(history), func(i int) bool {
		return history[i].TS >= ts
	})

	best := -1
	var bestDiff time.Duration

	for _, c := range []int{i - 1, i} {
		if c < 0 || c >= len(history) {
			continue
		}

		diff := absDuration(history[c].TS - ts)

		if best < 0 || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}

	if best < 0 || bestDiff > tolerance {
		return tracker.Point{}, false
	}

	return history[best], true
}

// excess returns how far v exceeds min as a fraction of the range up to
// full, clamped to [0,1]
func excess(v, min, full float64) float64 {
	if full <= min {
		if v >= min {
			return 1
		}
		return 0
	}
	return clamp01((v - min) / (full - min))
}

// score turns threshold excess values into a confidence.  Meeting every
// threshold exactly gives 0.5, saturating every one gives 1
func score(excesses ...float64) float64 {
	return clamp01(0.5 + 0.5*stat.Mean(excesses, nil))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
