package detect

import (
	"fmt"
	"strings"
	"time"
)

// Category is a coarse object class used to select per-class tracking
// parameters
type Category int

const (
	// Other is any class not covered by a more specific category
	Other Category = iota
	// Person is a human, eg: player, goalkeeper, referee
	Person
	// Vehicle covers bicycles, cars, buses etc
	Vehicle
	// Animal covers birds, dogs, horses etc
	Animal
	// SportsItem covers balls, rackets, frisbees etc
	SportsItem
	// Electronics covers phones, laptops, tv's etc
	Electronics
	// Furniture covers chairs, benches, tables etc
	Furniture
	// Food covers fruit, cakes etc
	Food
)

var categoryNames = map[Category]string{
	Other:       "other",
	Person:      "person",
	Vehicle:     "vehicle",
	Animal:      "animal",
	SportsItem:  "sports-item",
	Electronics: "electronics",
	Furniture:   "furniture",
	Food:        "food",
}

// Categories returns all categories in declaration order
func Categories() []Category {
	return []Category{Other, Person, Vehicle, Animal, SportsItem,
		Electronics, Furniture, Food}
}

// String returns the taxonomy name of the category
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory converts a taxonomy name such as "sports-item" into its
// Category
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for cat, n := range categoryNames {
		if n == name {
			return cat, nil
		}
	}

	return Other, fmt.Errorf("unknown category %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	cat, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// BoxRect is the raw bounding box edges in pixels as emitted by a detector
type BoxRect struct {
	Left   float32
	Top    float32
	Right  float32
	Bottom float32
}

// Raw is a single detector output entry for a frame before normalization
type Raw struct {
	ClassID    int
	Confidence float32
	Box        BoxRect
}

// Frame is the detector output for a single video frame
type Frame struct {
	// Index is the frame number within the session, starting at 0
	Index int
	// Timestamp is the offset of the frame from the session start
	Timestamp time.Duration
	// Width and Height of the frame in pixels, zero means use the configured
	// default frame size
	Width  int
	Height int
	// Detections returned by the detector for this frame
	Detections []Raw
}

// BBox is a bounding box in pixel space given by its top left corner and
// size
type BBox struct {
	X, Y, W, H float32
}

// Centroid returns the center point of the box
func (b BBox) Centroid() (float32, float32) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area of the box
func (b BBox) Area() float32 {
	return b.W * b.H
}

// Detection is the canonical detection record consumed by the tracker
type Detection struct {
	// ID is a unique detection number within the session
	ID         int64
	ClassID    int
	Category   Category
	Confidence float32
	Box        BBox
	Timestamp  time.Duration
}
