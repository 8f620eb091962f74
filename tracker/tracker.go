package tracker

import (
	"errors"
	"fmt"
	"github.com/swdee/go-highlight/detect"
	"math"
	"sort"
	"time"
)

// ErrFrameOrder is returned when a frame arrives out of order
var ErrFrameOrder = errors.New("frame out of order")

// Kalman noise used by the constant velocity motion model, in pixels
const (
	kalmanStdPosition = 4.0
	kalmanStdVelocity = 1.0
)

// FrameResult is the outcome of processing a single frame
type FrameResult struct {
	// Frame index processed
	Frame int
	// Snapshot of all active tracks after the frame
	Snapshot *Snapshot
	// Created is the ids of tracks spawned this frame
	Created []int
	// Confirmed is the ids of tracks promoted to Confirmed this frame
	Confirmed []int
	// Deleted holds the final state of tracks deleted this frame
	Deleted []TrackView
}

// Tracker assigns per frame detections to tracks using greedy nearest
// centroid matching
type Tracker struct {
	cfg    Config
	params map[detect.Category]CategoryParams
	kf     *KalmanFilter
	// Last processed frame index
	frameID int
	// Counter for assigning unique track IDs
	trackIDCount int
	// active tracks in creation order
	tracks []*Track
	// trajectory store written by the tracker
	trail *Trail
}

// New returns a tracker for the given settings
func New(cfg Config) (*Tracker, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		cfg:     cfg,
		params:  cfg.resolve(),
		frameID: -1,
		trail:   NewTrail(cfg.MaxHistory, cfg.Retention),
	}

	if cfg.Motion == ConstantVelocity {
		t.kf = NewKalmanFilter(kalmanStdPosition, kalmanStdVelocity)
	}

	return t, nil
}

// Trail returns the trajectory store the tracker writes to
func (bt *Tracker) Trail() *Trail {
	return bt.trail
}

// Params returns the resolved parameters for a category
func (bt *Tracker) Params(cat detect.Category) CategoryParams {
	return bt.params[cat]
}

// Active returns the number of active tracks
func (bt *Tracker) Active() int {
	return len(bt.tracks)
}

// Reset clears all tracks.  Track ids continue from the last issued id so
// they are never reused
func (bt *Tracker) Reset() {
	bt.frameID = -1
	bt.tracks = nil
	bt.trail.Reset()
}

// candidate is a possible track to detection assignment
type candidate struct {
	track    int
	det      int
	distance float32
}

// Update processes the detections of a single frame.  Frames must be given
// in strictly increasing index order
func (bt *Tracker) Update(frame int, ts time.Duration, dets []detect.Detection) (*FrameResult, error) {

	// Step 1: Check frame order
	if frame <= bt.frameID {
		return nil, fmt.Errorf("%w: frame %d after frame %d", ErrFrameOrder, frame, bt.frameID)
	}

	bt.frameID = frame
	res := &FrameResult{Frame: frame}

	// Step 2: Build candidate pairs within the category distance threshold
	var pairs []candidate

	for ti, trk := range bt.tracks {

		px, py := trk.predict()
		maxDist := bt.params[trk.category].MaxDistance

		for di, det := range dets {

			if det.Category != trk.category {
				continue
			}

			dx, dy := det.Box.Centroid()
			dist := float32(math.Hypot(float64(dx-px), float64(dy-py)))

			if dist <= maxDist {
				pairs = append(pairs, candidate{track: ti, det: di, distance: dist})
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]

		if a.distance != b.distance {
			return a.distance < b.distance
		}

		if dets[a.det].Confidence != dets[b.det].Confidence {
			return dets[a.det].Confidence > dets[b.det].Confidence
		}

		if a.det != b.det {
			return a.det < b.det
		}

		return bt.tracks[a.track].trackID < bt.tracks[b.track].trackID
	})

	// Step 3: Greedy assignment, each track and detection claimed once
	trackClaimed := make([]bool, len(bt.tracks))
	detClaimed := make([]bool, len(dets))

	for _, p := range pairs {

		if trackClaimed[p.track] || detClaimed[p.det] {
			continue
		}

		trackClaimed[p.track] = true
		detClaimed[p.det] = true

		trk := bt.tracks[p.track]
		wasTentative := trk.state == Tentative

		if err := trk.update(dets[p.det], frame, bt.cfg.EMAAlpha, bt.cfg.HitsToConfirm); err != nil {
			return nil, fmt.Errorf("error updating track, step 3: %w", err)
		}

		bt.trail.Add(trk.trackID, trk.centroid)

		if wasTentative && trk.state == Confirmed {
			res.Confirmed = append(res.Confirmed, trk.trackID)
		}
	}

	// Step 4: Unmatched tracks accrue a miss and are retired past threshold
	kept := bt.tracks[:0]

	for ti, trk := range bt.tracks {

		if !trackClaimed[ti] && trk.miss(bt.params[trk.category].MaxMisses) {
			res.Deleted = append(res.Deleted, bt.retire(trk))
			continue
		}

		kept = append(kept, trk)
	}

	// clear tail so retired tracks can be collected
	for i := len(kept); i < len(bt.tracks); i++ {
		bt.tracks[i] = nil
	}

	bt.tracks = kept

	// Step 5: Unmatched detections spawn Tentative tracks within the cap
	for di, det := range dets {

		if detClaimed[di] {
			continue
		}

		if len(bt.tracks) >= bt.cfg.MaxTracks {

			victim := bt.weakestTentative()

			if victim < 0 || bt.tracks[victim].confidenceEMA >= det.Confidence {
				// the new detection would be the weakest tentative track
				continue
			}

			res.Deleted = append(res.Deleted, bt.retire(bt.tracks[victim]))
			bt.tracks = append(bt.tracks[:victim], bt.tracks[victim+1:]...)
		}

		bt.trackIDCount++

		trk := newTrack(bt.trackIDCount, det, frame, bt.kf)

		if trk.hits >= bt.cfg.HitsToConfirm {
			trk.state = Confirmed
			res.Confirmed = append(res.Confirmed, trk.trackID)
		}

		bt.tracks = append(bt.tracks, trk)
		bt.trail.Add(trk.trackID, trk.centroid)
		res.Created = append(res.Created, trk.trackID)
	}

	// Step 6: Publish the frame snapshot
	res.Snapshot = bt.trail.Publish(frame, ts, bt.tracks)

	return res, nil
}

// retire moves a track through Lost to Deleted and drops its history,
// returning its final state
func (bt *Tracker) retire(trk *Track) TrackView {

	trk.state = Lost
	final := trk.view(bt.trail.GetPoints(trk.trackID))

	trk.markDeleted()
	final.State = Deleted

	bt.trail.Remove(trk.trackID)

	return final
}

// weakestTentative returns the index of the Tentative track with the lowest
// confidence, the newest track wins ties.  Returns -1 if there is none
func (bt *Tracker) weakestTentative() int {

	victim := -1

	for i, trk := range bt.tracks {

		if trk.state != Tentative {
			continue
		}

		if victim < 0 || trk.confidenceEMA < bt.tracks[victim].confidenceEMA ||
			(trk.confidenceEMA == bt.tracks[victim].confidenceEMA &&
				trk.trackID > bt.tracks[victim].trackID) {
			victim = i
		}
	}

	return victim
}
