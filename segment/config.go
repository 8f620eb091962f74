package segment

import (
	"errors"
	"fmt"
	"github.com/swdee/go-highlight/event"
	"time"
)

// ErrInvalidConfig is returned when selector settings are out of range
var ErrInvalidConfig = errors.New("invalid segment config")

// Padding is the time taken before and after an event timestamp to form
// its raw window
type Padding struct {
	Pre  time.Duration
	Post time.Duration
}

// Config are the settings for turning events into highlight segments
type Config struct {
	// Padding per event category, categories without an entry use the
	// padding of event.Other
	Padding map[event.Category]Padding
	// MinDuration and MaxDuration bound the length of every highlight
	MinDuration time.Duration
	MaxDuration time.Duration
	// MaxHighlights is the most segments returned per session
	MaxHighlights int
}

// DefaultConfig returns the default segment settings
func DefaultConfig() Config {
	return Config{
		Padding: map[event.Category]Padding{
			event.Goal:      {Pre: 8 * time.Second, Post: 6 * time.Second},
			event.Save:      {Pre: 10 * time.Second, Post: 4 * time.Second},
			event.SkillMove: {Pre: 5 * time.Second, Post: 5 * time.Second},
			event.Other:     {Pre: 4 * time.Second, Post: 4 * time.Second},
		},
		MinDuration:   10 * time.Second,
		MaxDuration:   30 * time.Second,
		MaxHighlights: 10,
	}
}

// Validate checks the settings
func (c Config) Validate() error {

	if _, ok := c.Padding[event.Other]; !ok {
		return fmt.Errorf("%w: padding for %q is required", ErrInvalidConfig, event.Other)
	}

	for cat, p := range c.Padding {
		if p.Pre < 0 || p.Post < 0 {
			return fmt.Errorf("%w: padding for %q must not be negative", ErrInvalidConfig, cat)
		}
	}

	if c.MinDuration < minSpan {
		return fmt.Errorf("%w: min duration must be at least %v, got %v", ErrInvalidConfig, minSpan, c.MinDuration)
	}

	if c.MaxDuration < c.MinDuration {
		return fmt.Errorf("%w: max duration %v is less than min duration %v",
			ErrInvalidConfig, c.MaxDuration, c.MinDuration)
	}

	if c.MaxHighlights <= 0 {
		return fmt.Errorf("%w: max highlights must be positive, got %d", ErrInvalidConfig, c.MaxHighlights)
	}

	return nil
}

// padding returns the padding for a category
func (c Config) padding(cat event.Category) Padding {
	if p, ok := c.Padding[cat]; ok {
		return p
	}
	return c.Padding[event.Other]
}
