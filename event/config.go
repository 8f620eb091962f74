package event

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is returned when event detector settings are out of range
var ErrInvalidConfig = errors.New("invalid event config")

// GoalConfig tunes the goal predicate
type GoalConfig struct {
	// MinBallSpeed in pixels per second when entering the goal
	MinBallSpeed float64
	// CorrelationWindow is the time either side of the ball entering the
	// goal in which a player reaction is searched for
	CorrelationWindow time.Duration
	// MinTurnAngle in radians counted as a sharp direction change
	MinTurnAngle float64
	// MinDecelRatio is the speed drop counted as a rapid deceleration
	MinDecelRatio float64
	// Cooldown suppresses repeat goals supported by the same tracks
	Cooldown time.Duration
}

// SaveConfig tunes the save predicate
type SaveConfig struct {
	// MinDiveDistance in pixels a player must move within DiveWindow
	MinDiveDistance float64
	DiveWindow      time.Duration
	// Proximity in pixels of the ball to the goal area
	Proximity float64
	// MinTurnAngle in radians of the ball direction change
	MinTurnAngle float64
	// CorrelationWindow is the time either side of the dive the ball turn
	// must fall in
	CorrelationWindow time.Duration
	Cooldown          time.Duration
}

// SkillConfig tunes the skill move predicate
type SkillConfig struct {
	// Window is the span the direction reversals must happen within
	Window time.Duration
	// MinReversals of horizontal direction
	MinReversals int
	// MinStep ignores jitter smaller than this many pixels per frame
	MinStep float64
	// ControlRadius in pixels the ball must stay within
	ControlRadius float64
	// MinControlRatio is the fraction of samples the ball is within radius
	MinControlRatio float64
	Cooldown        time.Duration
}

// Config defines the event detector settings
type Config struct {
	// Window is the length of trajectory evaluated each time
	Window time.Duration
	// FrameWidth and FrameHeight bound pose queries
	FrameWidth  int
	FrameHeight int
	// GoalRegions are the goal mouths a ball enters
	GoalRegions []Region
	// GoalAreaRegions are the areas a goalkeeper dives in
	GoalAreaRegions []Region
	Goal            GoalConfig
	Save            SaveConfig
	Skill           SkillConfig
	Pose            PoseConfig
}

// DefaultConfig returns the default detector settings for a frame size
func DefaultConfig(width, height int) Config {
	return Config{
		Window:          4 * time.Second,
		FrameWidth:      width,
		FrameHeight:     height,
		GoalRegions:     DefaultGoalRegions(width, height),
		GoalAreaRegions: DefaultGoalAreaRegions(width, height),
		Goal: GoalConfig{
			MinBallSpeed:      150,
			CorrelationWindow: 2 * time.Second,
			MinTurnAngle:      math.Pi / 3,
			MinDecelRatio:     0.5,
			Cooldown:          5 * time.Second,
		},
		Save: SaveConfig{
			MinDiveDistance:   40,
			DiveWindow:        time.Second,
			Proximity:         100,
			MinTurnAngle:      math.Pi / 3,
			CorrelationWindow: 1500 * time.Millisecond,
			Cooldown:          5 * time.Second,
		},
		Skill: SkillConfig{
			Window:          3 * time.Second,
			MinReversals:    3,
			MinStep:         2,
			ControlRadius:   60,
			MinControlRatio: 0.7,
			Cooldown:        3 * time.Second,
		},
		Pose: PoseConfig{
			NoPosePenalty: 0.85,
			Boost:         0.15,
			Radius:        80,
			TimeTolerance: time.Second,
		},
	}
}

// Validate checks the settings are usable
func (c Config) Validate() error {

	if c.Window <= 0 {
		return invalid("window must be positive, got %v", c.Window)
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return invalid("frame size %dx%d must be positive", c.FrameWidth, c.FrameHeight)
	}

	if len(c.GoalRegions) == 0 {
		return invalid("at least one goal region is required")
	}

	if len(c.GoalAreaRegions) == 0 {
		return invalid("at least one goal area region is required")
	}

	for _, r := range append(append([]Region(nil), c.GoalRegions...), c.GoalAreaRegions...) {
		if _, err := NewRegion(r.Name, r.Vertices); err != nil {
			return invalid("%v", err)
		}
	}

	g := c.Goal
	if g.MinBallSpeed <= 0 || g.CorrelationWindow <= 0 || g.Cooldown < 0 {
		return invalid("goal speed and correlation window must be positive")
	}
	if !angle(g.MinTurnAngle) || !ratio(g.MinDecelRatio) {
		return invalid("goal turn angle must be in (0,pi] and decel ratio in (0,1)")
	}

	s := c.Save
	if s.MinDiveDistance <= 0 || s.DiveWindow <= 0 || s.Proximity < 0 ||
		s.CorrelationWindow <= 0 || s.Cooldown < 0 {
		return invalid("save distances and windows must be positive")
	}
	if !angle(s.MinTurnAngle) {
		return invalid("save turn angle must be in (0,pi]")
	}

	k := c.Skill
	if k.Window <= 0 || k.MinReversals < 1 || k.MinStep < 0 || k.ControlRadius <= 0 || k.Cooldown < 0 {
		return invalid("skill window, reversals and radius must be positive")
	}
	if k.MinControlRatio <= 0 || k.MinControlRatio > 1 {
		return invalid("skill control ratio must be in (0,1]")
	}

	p := c.Pose
	if p.NoPosePenalty < 0 || p.NoPosePenalty > 1 || p.Boost < 0 || p.Boost > 1 ||
		p.Radius <= 0 || p.TimeTolerance < 0 {
		return invalid("pose penalty and boost must be in [0,1] and radius positive")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func angle(v float64) bool {
	return v > 0 && v <= math.Pi
}

func ratio(v float64) bool {
	return v > 0 && v < 1
}
