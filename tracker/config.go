package tracker

import (
	"errors"
	"fmt"
	"github.com/swdee/go-highlight/detect"
	"math"
	"time"
)

// ErrInvalidConfig is returned when tracker settings are out of range
var ErrInvalidConfig = errors.New("invalid tracker config")

// MotionModel selects how a track's centroid is predicted before matching
type MotionModel int

const (
	// ConstantPosition predicts the last known centroid
	ConstantPosition MotionModel = 0
	// ConstantVelocity predicts with a Kalman filter on centroid position
	// and velocity
	ConstantVelocity MotionModel = 1
)

// CategoryParams are the per category matching and retirement thresholds
type CategoryParams struct {
	// MaxDistance is the largest centroid distance in pixels accepted when
	// matching a detection to a track
	MaxDistance float32
	// MaxMisses is the number of consecutive missed frames tolerated, a
	// track is deleted on the next miss
	MaxMisses int
}

// Config defines the tracker settings
type Config struct {
	// Default parameters for categories not listed in Categories
	Default CategoryParams
	// Categories overrides the default parameters per category
	Categories map[detect.Category]CategoryParams
	// HitsToConfirm is the number of consecutive matches needed to move a
	// track from Tentative to Confirmed, the spawning detection counts as
	// the first
	HitsToConfirm int
	// EMAAlpha is the smoothing weight given to a new detection confidence
	EMAAlpha float32
	// MaxTracks caps the number of active tracks
	MaxTracks int
	// Retention is how far back in time centroid history is kept
	Retention time.Duration
	// MaxHistory is a hard cap on the number of points kept per track
	MaxHistory int
	// Motion is the centroid prediction model
	Motion MotionModel
}

// DefaultConfig returns the default tracker settings
func DefaultConfig() Config {
	return Config{
		Default: CategoryParams{MaxDistance: 80, MaxMisses: 30},
		Categories: map[detect.Category]CategoryParams{
			detect.Vehicle:    {MaxDistance: 120, MaxMisses: 30},
			detect.Animal:     {MaxDistance: 80, MaxMisses: 15},
			detect.SportsItem: {MaxDistance: 60, MaxMisses: 30},
		},
		HitsToConfirm: 3,
		EMAAlpha:      0.3,
		MaxTracks:     128,
		Retention:     20 * time.Second,
		MaxHistory:    1200,
		Motion:        ConstantPosition,
	}
}

// Validate checks the settings are usable
func (c Config) Validate() error {

	if err := c.Default.validate("default"); err != nil {
		return err
	}

	for cat, p := range c.Categories {
		if err := p.validate(cat.String()); err != nil {
			return err
		}
	}

	if c.HitsToConfirm < 1 {
		return fmt.Errorf("%w: hits to confirm must be at least 1, got %d",
			ErrInvalidConfig, c.HitsToConfirm)
	}

	if math.IsNaN(float64(c.EMAAlpha)) || c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return fmt.Errorf("%w: ema alpha %v not in (0,1]", ErrInvalidConfig, c.EMAAlpha)
	}

	if c.MaxTracks < 1 {
		return fmt.Errorf("%w: max tracks must be positive, got %d", ErrInvalidConfig, c.MaxTracks)
	}

	if c.Retention <= 0 {
		return fmt.Errorf("%w: retention must be positive, got %v", ErrInvalidConfig, c.Retention)
	}

	if c.MaxHistory < 2 {
		return fmt.Errorf("%w: max history must be at least 2, got %d", ErrInvalidConfig, c.MaxHistory)
	}

	if c.Motion != ConstantPosition && c.Motion != ConstantVelocity {
		return fmt.Errorf("%w: unknown motion model %d", ErrInvalidConfig, c.Motion)
	}

	return nil
}

func (p CategoryParams) validate(name string) error {
	if math.IsNaN(float64(p.MaxDistance)) || p.MaxDistance <= 0 {
		return fmt.Errorf("%w: %s max distance must be positive, got %v",
			ErrInvalidConfig, name, p.MaxDistance)
	}

	if p.MaxMisses < 0 {
		return fmt.Errorf("%w: %s max misses must not be negative, got %d",
			ErrInvalidConfig, name, p.MaxMisses)
	}

	return nil
}

// resolve builds the full category to parameter lookup so matching never
// falls through to defaults at runtime
func (c Config) resolve() map[detect.Category]CategoryParams {

	params := make(map[detect.Category]CategoryParams, len(detect.Categories()))

	for _, cat := range detect.Categories() {
		params[cat] = c.Default
	}

	for cat, p := range c.Categories {
		params[cat] = p
	}

	return params
}
