package event

import (
	"context"
	"math"
	"time"
)

// Action is a coarse pose classification of a person
type Action string

const (
	Running  Action = "running"
	Walking  Action = "walking"
	Standing Action = "standing"
	Jumping  Action = "jumping"
	Diving   Action = "diving"
	Turning  Action = "turning"
	Unknown  Action = "unknown"
)

// Bounds is an axis aligned area of the frame in pixels
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// PoseSummary is a summary of the keypoints of one person at a moment
type PoseSummary struct {
	// X and Y is the pose center in pixels
	X, Y      float64
	Timestamp time.Duration
	Action    Action
	// Confidence of the action classification in [0,1]
	Confidence float64
}

// PoseSource supplies pose summaries for an area of the frame around a
// timestamp
type PoseSource interface {
	Poses(ctx context.Context, ts time.Duration, region Bounds) ([]PoseSummary, error)
}

// PoseHints are the pose summaries available to a predicate.  When
// Available is false the predicates run on trajectory data alone
type PoseHints struct {
	Available bool
	Summaries []PoseSummary
}

// PoseConfig controls how pose evidence adjusts event confidence
type PoseConfig struct {
	// NoPosePenalty multiplies confidence when no pose signal is available
	NoPosePenalty float64
	// Boost is added, scaled by the pose confidence, when a supporting
	// action is found near the track
	Boost float64
	// Radius in pixels a pose must be within to relate to a track
	Radius float64
	// TimeTolerance a pose timestamp may differ from the event
	TimeTolerance time.Duration
}

// adjust applies pose evidence near x,y at ts to a trajectory confidence
func (pc PoseConfig) adjust(conf float64, hints PoseHints, ts time.Duration,
	x, y float64, actions ...Action) float64 {

	if !hints.Available {
		return clamp01(conf * pc.NoPosePenalty)
	}

	best := 0.0

	for _, s := range hints.Summaries {

		if absDuration(s.Timestamp-ts) > pc.TimeTolerance {
			continue
		}

		if math.Hypot(s.X-x, s.Y-y) > pc.Radius {
			continue
		}

		for _, a := range actions {
			if s.Action == a {
				best = math.Max(best, clamp01(s.Confidence))
			}
		}
	}

	return clamp01(conf + pc.Boost*best)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
