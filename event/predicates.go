package event

import (
	"github.com/swdee/go-highlight/detect"
	"github.com/swdee/go-highlight/tracker"
	"math"
	"time"
)

// controlTolerance is how far apart in time ball and player samples may be
// when checking ball control
const controlTolerance = 100 * time.Millisecond

// minTurnStep ignores centroid jitter when measuring direction changes
const minTurnStep = 1.0

// Window is the slice of Confirmed track history a predicate evaluates
type Window struct {
	Start time.Duration
	End   time.Duration
	// Tracks with history limited to [Start,End], ordered by id
	Tracks []tracker.TrackView
}

// NewWindow takes the Confirmed tracks of a snapshot limited to the length
// of time before the snapshot timestamp
func NewWindow(snap *tracker.Snapshot, length time.Duration) Window {

	w := Window{End: snap.Timestamp, Start: snap.Timestamp - length}

	if w.Start < 0 {
		w.Start = 0
	}

	for _, v := range snap.Confirmed() {
		v.History = v.Between(w.Start, w.End)
		if len(v.History) > 0 {
			w.Tracks = append(w.Tracks, v)
		}
	}

	return w
}

// ByCategory returns the window tracks of a category
func (w Window) ByCategory(cat detect.Category) []tracker.TrackView {
	var out []tracker.TrackView
	for _, v := range w.Tracks {
		if v.Category == cat {
			out = append(out, v)
		}
	}
	return out
}

// Predicate evaluates a window and returns at most one event
type Predicate func(w Window, pose PoseHints) (Event, bool)

// GoalParams are the inputs of the goal predicate
type GoalParams struct {
	GoalConfig
	Regions []Region
	Pose    PoseConfig
}

// DetectGoal finds a ball entering a goal region fast enough while a player
// reacts with a sharp turn or deceleration close in time
func DetectGoal(w Window, pose PoseHints, p GoalParams) (Event, bool) {

	var best Event
	found := false

	for _, ball := range w.ByCategory(detect.SportsItem) {

		pts := ball.History

		for i := 1; i < len(pts); i++ {

			if regionAt(p.Regions, float64(pts[i-1].X), float64(pts[i-1].Y)) >= 0 ||
				regionAt(p.Regions, float64(pts[i].X), float64(pts[i].Y)) < 0 {
				continue
			}

			// ball speed over the last steps into the goal
			from := i - 3
			if from < 0 {
				from = 0
			}

			speed := newMotion(pts[from : i+1]).meanSpeed()

			if speed < p.MinBallSpeed {
				continue
			}

			crossing := pts[i]

			for _, player := range w.ByCategory(detect.Person) {

				seg := player.Between(crossing.TS-p.CorrelationWindow, crossing.TS+p.CorrelationWindow)
				m := newMotion(seg)

				if m.len() < 3 {
					continue
				}

				turn, _ := m.maxTurn(minTurnStep)
				decel := m.decelRatio()

				if turn < p.MinTurnAngle && decel < p.MinDecelRatio {
					continue
				}

				reaction := math.Max(
					excess(turn, p.MinTurnAngle, math.Pi),
					excess(decel, p.MinDecelRatio, 1),
				)

				conf := score(excess(speed, p.MinBallSpeed, 3*p.MinBallSpeed), reaction)

				last := seg[len(seg)-1]
				conf = p.Pose.adjust(conf, pose, crossing.TS, float64(last.X), float64(last.Y),
					Running, Jumping)

				e := Event{
					Category:   Goal,
					Timestamp:  crossing.TS,
					Confidence: conf,
					TrackIDs:   sortedIDs(ball.ID, player.ID),
					Start:      w.Start,
					End:        w.End,
				}

				if !found || better(e, best) {
					best, found = e, true
				}
			}
		}
	}

	return best, found
}

// SaveParams are the inputs of the save predicate
type SaveParams struct {
	SaveConfig
	Regions []Region
	Pose    PoseConfig
}

// DetectSave finds a player in a goal area moving a large distance in a short
// time while the ball changes direction near that area
func DetectSave(w Window, pose PoseHints, p SaveParams) (Event, bool) {

	var best Event
	found := false

	for _, keeper := range w.ByCategory(detect.Person) {

		pts := keeper.History
		m := newMotion(pts)

		for _, region := range p.Regions {

			dist, i, j := m.maxDisplacement(p.DiveWindow.Seconds(), func(k int) bool {
				return region.Contains(m.x[k], m.y[k])
			})

			if i < 0 || dist < p.MinDiveDistance {
				continue
			}

			for _, ball := range w.ByCategory(detect.SportsItem) {

				seg := ball.Between(pts[i].TS-p.CorrelationWindow, pts[j].TS+p.CorrelationWindow)
				turn, k := newMotion(seg).maxTurn(minTurnStep)

				if k < 0 || turn < p.MinTurnAngle {
					continue
				}

				at := seg[k]

				if region.Distance(float64(at.X), float64(at.Y)) > p.Proximity {
					continue
				}

				conf := score(
					excess(dist, p.MinDiveDistance, 3*p.MinDiveDistance),
					excess(turn, p.MinTurnAngle, math.Pi),
				)

				conf = p.Pose.adjust(conf, pose, pts[i].TS, m.x[i], m.y[i], Diving, Jumping)

				e := Event{
					Category:   Save,
					Timestamp:  at.TS,
					Confidence: conf,
					TrackIDs:   sortedIDs(keeper.ID, ball.ID),
					Start:      w.Start,
					End:        w.End,
				}

				if !found || better(e, best) {
					best, found = e, true
				}
			}
		}
	}

	return best, found
}

// SkillParams are the inputs of the skill move predicate
type SkillParams struct {
	SkillConfig
	Pose PoseConfig
}

// DetectSkillMove finds a player reversing direction several times in a
// short span while the ball stays close to them
func DetectSkillMove(w Window, pose PoseHints, p SkillParams) (Event, bool) {

	var best Event
	found := false

	balls := w.ByCategory(detect.SportsItem)

	for _, player := range w.ByCategory(detect.Person) {

		pts := player.History

		for s := 0; s < len(pts); s++ {

			span := player.Between(pts[s].TS, pts[s].TS+p.Window)
			rev := newMotion(span).reversals(p.MinStep)

			if rev < p.MinReversals {
				continue
			}

			matched := false

			for _, ball := range balls {

				ctrl := controlRatio(span, ball.History, p.ControlRadius)

				if ctrl < p.MinControlRatio {
					continue
				}

				conf := score(
					excess(float64(rev), float64(p.MinReversals), float64(2*p.MinReversals)),
					excess(ctrl, p.MinControlRatio, 1),
				)

				mid := span[len(span)/2]
				conf = p.Pose.adjust(conf, pose, mid.TS, float64(mid.X), float64(mid.Y),
					Running, Turning)

				e := Event{
					Category:   SkillMove,
					Timestamp:  mid.TS,
					Confidence: conf,
					TrackIDs:   sortedIDs(player.ID, ball.ID),
					Start:      w.Start,
					End:        w.End,
				}

				if !found || better(e, best) {
					best, found = e, true
				}
				matched = true
			}

			// the earliest qualifying span of a player is reported
			if matched {
				break
			}
		}
	}

	return best, found
}

// controlRatio is the fraction of player samples with the ball within
// radius at the same moment
func controlRatio(player, ball []tracker.Point, radius float64) float64 {

	if len(player) == 0 {
		return 0
	}

	near := 0

	for _, p := range player {
		b, ok := nearestAt(ball, p.TS, controlTolerance)
		if !ok {
			continue
		}
		if math.Hypot(float64(b.X-p.X), float64(b.Y-p.Y)) <= radius {
			near++
		}
	}

	return float64(near) / float64(len(player))
}

// better orders candidate events by confidence, then earlier timestamp, then
// lower track ids so predicates are deterministic
func better(a, b Event) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	for i := 0; i < len(a.TrackIDs) && i < len(b.TrackIDs); i++ {
		if a.TrackIDs[i] != b.TrackIDs[i] {
			return a.TrackIDs[i] < b.TrackIDs[i]
		}
	}
	return len(a.TrackIDs) < len(b.TrackIDs)
}
