package tracker

import (
	"fmt"
	"github.com/swdee/go-highlight/detect"
	"time"
)

// TrackState represents the lifecycle state of a tracked object
type TrackState int

const (
	// Tentative is a newly spawned track not yet matched enough times
	Tentative TrackState = 0
	// Confirmed is a track matched for the required consecutive frames
	Confirmed TrackState = 1
	// Lost is a track that exceeded its miss threshold, it is deleted
	// within the same frame
	Lost TrackState = 2
	// Deleted is terminal, the track id is never reused
	Deleted TrackState = 3
)

// String returns the state name
func (s TrackState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Lost:
		return "lost"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Point is a track centroid observed at a point in time
type Point struct {
	X, Y float32
	TS   time.Duration
}

// Track represents a single tracked object
type Track struct {
	// Unique ID for the track
	trackID int
	// category of the object, tracks only match detections of the same
	// category
	category detect.Category
	// Current state of the track
	state TrackState
	// centroid of the last matched detection
	centroid Point
	// box of the last matched detection
	box detect.BBox
	// Frame index when the track started
	startFrame int
	// Frame index the track was last matched
	lastSeenFrame int
	// consecutive frames without a match
	misses int
	// consecutive frames with a match
	hits int
	// exponential moving average of matched detection confidence
	confidenceEMA float32
	// ID of the last matched detection
	detectionID int64
	// Kalman state when the constant velocity model is used
	kalmanFilter *KalmanFilter
	mean         StateMean
	covariance   StateCov
}

// newTrack creates a Tentative track from an unmatched detection
func newTrack(trackID int, det detect.Detection, frame int, kf *KalmanFilter) *Track {

	x, y := det.Box.Centroid()

	t := &Track{
		trackID:       trackID,
		category:      det.Category,
		state:         Tentative,
		centroid:      Point{X: x, Y: y, TS: det.Timestamp},
		box:           det.Box,
		startFrame:    frame,
		lastSeenFrame: frame,
		hits:          1,
		confidenceEMA: det.Confidence,
		detectionID:   det.ID,
	}

	if kf != nil {
		t.kalmanFilter = kf
		t.mean, t.covariance = kf.Initiate(float64(x), float64(y))
	}

	return t
}

// GetTrackID returns the unique ID for the track
func (t *Track) GetTrackID() int {
	return t.trackID
}

// GetCategory returns the object category
func (t *Track) GetCategory() detect.Category {
	return t.category
}

// GetState returns the current state of the track
func (t *Track) GetState() TrackState {
	return t.state
}

// GetCentroid returns the last matched centroid
func (t *Track) GetCentroid() Point {
	return t.centroid
}

// GetBox returns the bounding box of the last matched detection
func (t *Track) GetBox() detect.BBox {
	return t.box
}

// GetStartFrame returns the frame index when the track started
func (t *Track) GetStartFrame() int {
	return t.startFrame
}

// GetLastSeenFrame returns the frame index of the last match
func (t *Track) GetLastSeenFrame() int {
	return t.lastSeenFrame
}

// GetMisses returns the number of consecutive missed frames
func (t *Track) GetMisses() int {
	return t.misses
}

// GetHits returns the number of consecutive matched frames
func (t *Track) GetHits() int {
	return t.hits
}

// GetConfidence returns the smoothed detection confidence
func (t *Track) GetConfidence() float32 {
	return t.confidenceEMA
}

// GetDetectionID returns the ID of the last matched detection
func (t *Track) GetDetectionID() int64 {
	return t.detectionID
}

// IsActive returns true if the track can still be matched
func (t *Track) IsActive() bool {
	return t.state == Tentative || t.state == Confirmed
}

// predict advances the motion model one frame and returns the centroid
// used for matching
func (t *Track) predict() (float32, float32) {
	if t.kalmanFilter == nil {
		return t.centroid.X, t.centroid.Y
	}

	t.kalmanFilter.Predict(t.mean, &t.covariance)
	return float32(t.mean[0]), float32(t.mean[1])
}

// update applies a matched detection to the track
func (t *Track) update(det detect.Detection, frame int, alpha float32, hitsToConfirm int) error {

	x, y := det.Box.Centroid()

	if t.kalmanFilter != nil {
		if err := t.kalmanFilter.Update(t.mean, &t.covariance, float64(x), float64(y)); err != nil {
			return fmt.Errorf("error updating track %d: %w", t.trackID, err)
		}
	}

	t.centroid = Point{X: x, Y: y, TS: det.Timestamp}
	t.box = det.Box
	t.lastSeenFrame = frame
	t.misses = 0
	t.hits++
	t.confidenceEMA = alpha*det.Confidence + (1-alpha)*t.confidenceEMA
	t.detectionID = det.ID

	if t.state == Tentative && t.hits >= hitsToConfirm {
		t.state = Confirmed
	}

	return nil
}

// miss records a frame without a match.  It returns true if the track has
// exceeded maxMisses and is now Lost
func (t *Track) miss(maxMisses int) bool {
	t.misses++
	t.hits = 0

	if t.misses > maxMisses {
		t.state = Lost
		return true
	}

	return false
}

// markDeleted moves the track to its terminal state
func (t *Track) markDeleted() {
	t.state = Deleted
}

// view returns an immutable copy of the track state
func (t *Track) view(history []Point) TrackView {
	return TrackView{
		ID:            t.trackID,
		Category:      t.category,
		State:         t.state,
		Box:           t.box,
		Confidence:    t.confidenceEMA,
		StartFrame:    t.startFrame,
		LastSeenFrame: t.lastSeenFrame,
		Misses:        t.misses,
		History:       history,
	}
}
