package event

import (
	"context"
	"github.com/swdee/go-highlight/tracker"
	"log/slog"
	"time"
)

// rule binds a predicate to the cooldown of its category
type rule struct {
	category  Category
	predicate Predicate
	cooldown  time.Duration
}

// Detector evaluates trajectory windows against the event predicates and
// records new events on its Timeline
type Detector struct {
	cfg      Config
	pose     PoseSource
	rules    []rule
	timeline *Timeline
	log      *slog.Logger
}

// NewDetector returns a detector for the given settings.  pose may be nil in
// which case events are found from trajectories alone
func NewDetector(cfg Config, pose PoseSource, logger *slog.Logger) (*Detector, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	goal := GoalParams{GoalConfig: cfg.Goal, Regions: cfg.GoalRegions, Pose: cfg.Pose}
	save := SaveParams{SaveConfig: cfg.Save, Regions: cfg.GoalAreaRegions, Pose: cfg.Pose}
	skill := SkillParams{SkillConfig: cfg.Skill, Pose: cfg.Pose}

	return &Detector{
		cfg:  cfg,
		pose: pose,
		rules: []rule{
			{
				category: Goal,
				cooldown: cfg.Goal.Cooldown,
				predicate: func(w Window, hints PoseHints) (Event, bool) {
					return DetectGoal(w, hints, goal)
				},
			},
			{
				category: Save,
				cooldown: cfg.Save.Cooldown,
				predicate: func(w Window, hints PoseHints) (Event, bool) {
					return DetectSave(w, hints, save)
				},
			},
			{
				category: SkillMove,
				cooldown: cfg.Skill.Cooldown,
				predicate: func(w Window, hints PoseHints) (Event, bool) {
					return DetectSkillMove(w, hints, skill)
				},
			},
		},
		timeline: NewTimeline(),
		log:      logger,
	}, nil
}

// Timeline returns the event timeline owned by the detector
func (d *Detector) Timeline() *Timeline {
	return d.timeline
}

// Evaluate runs every predicate over the window ending at the snapshot and
// returns the events that were not already on the timeline
func (d *Detector) Evaluate(ctx context.Context, snap *tracker.Snapshot) []Event {

	if snap == nil || snap.Frame < 0 {
		return nil
	}

	w := NewWindow(snap, d.cfg.Window)

	if len(w.Tracks) == 0 {
		return nil
	}

	hints := d.poseHints(ctx, snap.Timestamp)

	var added []Event

	for _, r := range d.rules {

		e, ok := r.predicate(w, hints)

		if !ok {
			continue
		}

		e.Key = eventKey(e)

		stored, ok := d.timeline.add(e, r.cooldown)

		if !ok {
			continue
		}

		d.log.Debug("event detected",
			"event_id", stored.ID,
			"category", stored.Category.String(),
			"ts", stored.Timestamp,
			"confidence", stored.Confidence,
			"track_ids", stored.TrackIDs,
		)

		added = append(added, stored)
	}

	return added
}

// poseHints queries the pose source for the frame, failures only mean the
// predicates run without pose evidence
func (d *Detector) poseHints(ctx context.Context, ts time.Duration) PoseHints {

	if d.pose == nil {
		return PoseHints{}
	}

	region := Bounds{MaxX: float64(d.cfg.FrameWidth), MaxY: float64(d.cfg.FrameHeight)}

	poses, err := d.pose.Poses(ctx, ts, region)

	if err != nil {
		d.log.Warn("pose source unavailable", "ts", ts, "error", err)
		return PoseHints{}
	}

	return PoseHints{Available: true, Summaries: poses}
}
