package highlight

import (
	"errors"
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/swdee/go-highlight/detect"
	"github.com/swdee/go-highlight/event"
	"github.com/swdee/go-highlight/segment"
	"github.com/swdee/go-highlight/tracker"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by NewSession and LoadConfig when any part of
// the configuration is unusable.  The error also matches the sentinel of the
// package that rejected it
var ErrInvalidConfig = errors.New("invalid highlight config")

// EnvRuntime names the environment variable selecting the override file
// loaded after the base config, eg: HIGHLIGHT_ENV=test loads
// highlight.test.toml after highlight.toml
const EnvRuntime = "HIGHLIGHT_ENV"

// Config is the complete configuration of a highlight session
type Config struct {
	Detect  detect.Config
	Tracker tracker.Config
	Event   event.Config
	Segment segment.Config
	// EvalEvery runs event detection every n frames, 1 evaluates each frame
	EvalEvery int
}

// DefaultConfig returns the default configuration for a frame size
func DefaultConfig(width, height int) Config {

	d := detect.DefaultConfig()
	d.FrameWidth = width
	d.FrameHeight = height

	return Config{
		Detect:    d,
		Tracker:   tracker.DefaultConfig(),
		Event:     event.DefaultConfig(width, height),
		Segment:   segment.DefaultConfig(),
		EvalEvery: 5,
	}
}

// Validate checks every section of the configuration
func (c Config) Validate() error {

	var errs []error

	errs = append(errs,
		c.Detect.Validate(),
		c.Tracker.Validate(),
		c.Event.Validate(),
		c.Segment.Validate(),
	)

	if c.EvalEvery < 1 {
		errs = append(errs, fmt.Errorf("eval every must be at least 1, got %d", c.EvalEvery))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// duration decodes TOML strings such as "8s" or "1m30s"
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// set copies the value to dst if it was given
func (d *duration) set(dst *time.Duration) {
	if d != nil {
		*dst = d.Duration
	}
}

// fileConfig mirrors Config in the TOML file.  Every field is optional and
// only given values override the defaults
type fileConfig struct {
	Frame struct {
		Width  int `toml:"width"`
		Height int `toml:"height"`
	} `toml:"frame"`

	Session struct {
		EvalEvery *int `toml:"eval_every"`
	} `toml:"session"`

	Detect struct {
		ConfidenceFloor *float32 `toml:"confidence_floor"`
		Allowed         []string `toml:"allowed"`
	} `toml:"detect"`

	Tracker struct {
		MaxDistance   *float32                    `toml:"max_distance"`
		MaxMisses     *int                        `toml:"max_misses"`
		HitsToConfirm *int                        `toml:"hits_to_confirm"`
		EMAAlpha      *float32                    `toml:"ema_alpha"`
		MaxTracks     *int                        `toml:"max_tracks"`
		MaxHistory    *int                        `toml:"max_history"`
		Retention     *duration                   `toml:"retention"`
		Motion        *string                     `toml:"motion"`
		Categories    map[string]fileCategoryParams `toml:"categories"`
	} `toml:"tracker"`

	Event struct {
		Window          *duration    `toml:"window"`
		GoalRegions     []fileRegion `toml:"goal_regions"`
		GoalAreaRegions []fileRegion `toml:"goal_area_regions"`
		Goal            struct {
			MinBallSpeed      *float64  `toml:"min_ball_speed"`
			CorrelationWindow *duration `toml:"correlation_window"`
			Cooldown          *duration `toml:"cooldown"`
		} `toml:"goal"`
		Save struct {
			MinDiveDistance *float64  `toml:"min_dive_distance"`
			DiveWindow      *duration `toml:"dive_window"`
			Proximity       *float64  `toml:"proximity"`
			Cooldown        *duration `toml:"cooldown"`
		} `toml:"save"`
		Skill struct {
			Window          *duration `toml:"window"`
			MinReversals    *int      `toml:"min_reversals"`
			ControlRadius   *float64  `toml:"control_radius"`
			MinControlRatio *float64  `toml:"min_control_ratio"`
			Cooldown        *duration `toml:"cooldown"`
		} `toml:"skill"`
		Pose struct {
			NoPosePenalty *float64  `toml:"no_pose_penalty"`
			Boost         *float64  `toml:"boost"`
			Radius        *float64  `toml:"radius"`
			TimeTolerance *duration `toml:"time_tolerance"`
		} `toml:"pose"`
	} `toml:"event"`

	Segment struct {
		MinDuration   *duration              `toml:"min_duration"`
		MaxDuration   *duration              `toml:"max_duration"`
		MaxHighlights *int                   `toml:"max_highlights"`
		Padding       map[string]filePadding `toml:"padding"`
	} `toml:"segment"`
}

type fileCategoryParams struct {
	MaxDistance float32 `toml:"max_distance"`
	MaxMisses   int     `toml:"max_misses"`
}

// fileRegion is a polygon given as [x, y] pixel pairs
type fileRegion struct {
	Name     string      `toml:"name"`
	Vertices [][]float64 `toml:"vertices"`
}

// regions converts file polygons to event regions
func regions(list []fileRegion) ([]event.Region, error) {

	out := make([]event.Region, 0, len(list))

	for i, fr := range list {

		name := fr.Name
		if name == "" {
			name = fmt.Sprintf("region-%d", i+1)
		}

		vertices := make([]event.Vertex, 0, len(fr.Vertices))

		for _, v := range fr.Vertices {
			if len(v) != 2 {
				return nil, fmt.Errorf("region %q vertex must be an [x, y] pair, got %v", name, v)
			}
			vertices = append(vertices, event.Vertex{X: v[0], Y: v[1]})
		}

		r, err := event.NewRegion(name, vertices)

		if err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, nil
}

type filePadding struct {
	Pre  duration `toml:"pre"`
	Post duration `toml:"post"`
}

// LoadConfig reads the TOML file at path over the defaults.  If the
// environment variable EnvRuntime is set, a sibling file named
// <name>.<env>.toml is read afterwards and overrides values of the first.
// The result is validated
func LoadConfig(path string) (Config, error) {

	var fc fileConfig

	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, fmt.Errorf("error decoding config %s: %w", path, err)
	}

	if env := os.Getenv(EnvRuntime); env != "" {

		ext := filepath.Ext(path)
		override := strings.TrimSuffix(path, ext) + "." + env + ext

		if _, err := os.Stat(override); err == nil {
			if _, err := toml.DecodeFile(override, &fc); err != nil {
				return Config{}, fmt.Errorf("error decoding config %s: %w", override, err)
			}
		}
	}

	cfg, err := fc.apply()

	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// apply lays the file values over the defaults for the file frame size
func (fc *fileConfig) apply() (Config, error) {

	width, height := fc.Frame.Width, fc.Frame.Height

	if width == 0 && height == 0 {
		width, height = 640, 480
	}

	cfg := DefaultConfig(width, height)

	if fc.Session.EvalEvery != nil {
		cfg.EvalEvery = *fc.Session.EvalEvery
	}

	// detect
	d := fc.Detect
	if d.ConfidenceFloor != nil {
		cfg.Detect.ConfidenceFloor = *d.ConfidenceFloor
	}
	for _, name := range d.Allowed {
		cat, err := detect.ParseCategory(name)
		if err != nil {
			return Config{}, err
		}
		cfg.Detect.Allowed = append(cfg.Detect.Allowed, cat)
	}

	// tracker
	t := fc.Tracker
	if t.MaxDistance != nil {
		cfg.Tracker.Default.MaxDistance = *t.MaxDistance
	}
	if t.MaxMisses != nil {
		cfg.Tracker.Default.MaxMisses = *t.MaxMisses
	}
	if t.HitsToConfirm != nil {
		cfg.Tracker.HitsToConfirm = *t.HitsToConfirm
	}
	if t.EMAAlpha != nil {
		cfg.Tracker.EMAAlpha = *t.EMAAlpha
	}
	if t.MaxTracks != nil {
		cfg.Tracker.MaxTracks = *t.MaxTracks
	}
	if t.MaxHistory != nil {
		cfg.Tracker.MaxHistory = *t.MaxHistory
	}
	t.Retention.set(&cfg.Tracker.Retention)

	if t.Motion != nil {
		switch *t.Motion {
		case "constant_position":
			cfg.Tracker.Motion = tracker.ConstantPosition
		case "constant_velocity":
			cfg.Tracker.Motion = tracker.ConstantVelocity
		default:
			return Config{}, fmt.Errorf("unknown motion model %q", *t.Motion)
		}
	}

	for name, p := range t.Categories {
		cat, err := detect.ParseCategory(name)
		if err != nil {
			return Config{}, err
		}
		cfg.Tracker.Categories[cat] = tracker.CategoryParams{MaxDistance: p.MaxDistance, MaxMisses: p.MaxMisses}
	}

	// event
	e := fc.Event
	e.Window.set(&cfg.Event.Window)

	if len(e.GoalRegions) > 0 {
		list, err := regions(e.GoalRegions)
		if err != nil {
			return Config{}, err
		}
		cfg.Event.GoalRegions = list
	}

	if len(e.GoalAreaRegions) > 0 {
		list, err := regions(e.GoalAreaRegions)
		if err != nil {
			return Config{}, err
		}
		cfg.Event.GoalAreaRegions = list
	}

	if e.Goal.MinBallSpeed != nil {
		cfg.Event.Goal.MinBallSpeed = *e.Goal.MinBallSpeed
	}
	e.Goal.CorrelationWindow.set(&cfg.Event.Goal.CorrelationWindow)
	e.Goal.Cooldown.set(&cfg.Event.Goal.Cooldown)

	if e.Save.MinDiveDistance != nil {
		cfg.Event.Save.MinDiveDistance = *e.Save.MinDiveDistance
	}
	if e.Save.Proximity != nil {
		cfg.Event.Save.Proximity = *e.Save.Proximity
	}
	e.Save.DiveWindow.set(&cfg.Event.Save.DiveWindow)
	e.Save.Cooldown.set(&cfg.Event.Save.Cooldown)

	if e.Skill.MinReversals != nil {
		cfg.Event.Skill.MinReversals = *e.Skill.MinReversals
	}
	if e.Skill.ControlRadius != nil {
		cfg.Event.Skill.ControlRadius = *e.Skill.ControlRadius
	}
	if e.Skill.MinControlRatio != nil {
		cfg.Event.Skill.MinControlRatio = *e.Skill.MinControlRatio
	}
	e.Skill.Window.set(&cfg.Event.Skill.Window)
	e.Skill.Cooldown.set(&cfg.Event.Skill.Cooldown)

	if e.Pose.NoPosePenalty != nil {
		cfg.Event.Pose.NoPosePenalty = *e.Pose.NoPosePenalty
	}
	if e.Pose.Boost != nil {
		cfg.Event.Pose.Boost = *e.Pose.Boost
	}
	if e.Pose.Radius != nil {
		cfg.Event.Pose.Radius = *e.Pose.Radius
	}
	e.Pose.TimeTolerance.set(&cfg.Event.Pose.TimeTolerance)

	// segment
	s := fc.Segment
	s.MinDuration.set(&cfg.Segment.MinDuration)
	s.MaxDuration.set(&cfg.Segment.MaxDuration)

	if s.MaxHighlights != nil {
		cfg.Segment.MaxHighlights = *s.MaxHighlights
	}

	for name, p := range s.Padding {
		cat, err := event.ParseCategory(name)
		if err != nil {
			return Config{}, err
		}
		cfg.Segment.Padding[cat] = segment.Padding{Pre: p.Pre.Duration, Post: p.Post.Duration}
	}

	return cfg, nil
}
