package detect

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when normalizer settings are out of range
var ErrInvalidConfig = errors.New("invalid detection config")

// Config defines the detection normalizer settings
type Config struct {
	// ConfidenceFloor drops detections with a confidence below this value
	ConfidenceFloor float32
	// FrameWidth and FrameHeight are used to clamp boxes when a frame does
	// not carry its own size
	FrameWidth  int
	FrameHeight int
	// Allowed limits output to the listed categories, empty allows all
	Allowed []Category
}

// DefaultConfig returns the default normalizer settings
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: 0.4,
		FrameWidth:      640,
		FrameHeight:     480,
	}
}

// Validate checks the settings are usable
func (c Config) Validate() error {
	if math.IsNaN(float64(c.ConfidenceFloor)) || c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("%w: confidence floor %v not in [0,1]", ErrInvalidConfig, c.ConfidenceFloor)
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("%w: frame size %dx%d must be positive", ErrInvalidConfig,
			c.FrameWidth, c.FrameHeight)
	}

	return nil
}

// Normalizer converts raw detector output into canonical Detections
type Normalizer struct {
	cfg     Config
	table   *CategoryTable
	allowed map[Category]bool
	ids     *IDGenerator
}

// NewNormalizer returns a normalizer using the given category table.  If
// table is nil the COCO table is used
func NewNormalizer(cfg Config, table *CategoryTable) (*Normalizer, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if table == nil {
		table = DefaultCategoryTable()
	}

	n := &Normalizer{
		cfg:   cfg,
		table: table,
		ids:   NewIDGenerator(),
	}

	if len(cfg.Allowed) > 0 {
		n.allowed = make(map[Category]bool, len(cfg.Allowed))
		for _, cat := range cfg.Allowed {
			n.allowed[cat] = true
		}
	}

	return n, nil
}

// Normalize filters and clamps the detections of a frame.  Malformed entries
// are dropped and never returned
func (n *Normalizer) Normalize(frame Frame) []Detection {

	width := float32(frame.Width)
	height := float32(frame.Height)

	if frame.Width <= 0 || frame.Height <= 0 {
		width = float32(n.cfg.FrameWidth)
		height = float32(n.cfg.FrameHeight)
	}

	out := make([]Detection, 0, len(frame.Detections))

	for _, raw := range frame.Detections {

		if !finite(raw.Confidence) || raw.Confidence < n.cfg.ConfidenceFloor ||
			raw.Confidence > 1 {
			continue
		}

		if !n.table.Valid(raw.ClassID) {
			continue
		}

		cat := n.table.Lookup(raw.ClassID)

		if n.allowed != nil && !n.allowed[cat] {
			continue
		}

		box, ok := clampBox(raw.Box, width, height)

		if !ok {
			continue
		}

		out = append(out, Detection{
			ID:         n.ids.GetNext(),
			ClassID:    raw.ClassID,
			Category:   cat,
			Confidence: raw.Confidence,
			Box:        box,
			Timestamp:  frame.Timestamp,
		})
	}

	return out
}

// clampBox clips the box edges to the frame bounds and converts to x,y,w,h.
// Returns false if the box is malformed or has no area inside the frame
func clampBox(b BoxRect, width, height float32) (BBox, bool) {

	if !finite(b.Left) || !finite(b.Top) || !finite(b.Right) || !finite(b.Bottom) {
		return BBox{}, false
	}

	if b.Right <= b.Left || b.Bottom <= b.Top {
		return BBox{}, false
	}

	left := clamp(b.Left, 0, width)
	right := clamp(b.Right, 0, width)
	top := clamp(b.Top, 0, height)
	bottom := clamp(b.Bottom, 0, height)

	if right <= left || bottom <= top {
		return BBox{}, false
	}

	return BBox{X: left, Y: top, W: right - left, H: bottom - top}, true
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
