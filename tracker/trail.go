package tracker

import (
	"github.com/swdee/go-highlight/detect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TrackView is a read only copy of a track's state and centroid history
// taken at a frame boundary
type TrackView struct {
	ID            int
	Category      detect.Category
	State         TrackState
	Box           detect.BBox
	Confidence    float32
	StartFrame    int
	LastSeenFrame int
	Misses        int
	// History of centroids oldest first
	History []Point
}

// Last returns the most recent centroid, false if there is no history
func (v TrackView) Last() (Point, bool) {
	if len(v.History) == 0 {
		return Point{}, false
	}
	return v.History[len(v.History)-1], true
}

// Between returns the history points with a timestamp in [start,end]
func (v TrackView) Between(start, end time.Duration) []Point {
	lo := sort.Search(len(v.History), func(i int) bool {
		return v.History[i].TS >= start
	})
	hi := sort.Search(len(v.History), func(i int) bool {
		return v.History[i].TS > end
	})

	if lo >= hi {
		return nil
	}

	return v.History[lo:hi:hi]
}

// Snapshot is the consistent state of all active tracks at the end of a
// frame.  Snapshots are immutable and safe to share between goroutines
type Snapshot struct {
	// Frame index the snapshot was taken at, -1 before the first frame
	Frame int
	// Timestamp of the frame
	Timestamp time.Duration
	tracks    []TrackView
	index     map[int]int
}

// Tracks returns all active tracks ordered by track id
func (s *Snapshot) Tracks() []TrackView {
	return s.tracks
}

// Track returns the track with the given id
func (s *Snapshot) Track(id int) (TrackView, bool) {
	i, ok := s.index[id]
	if !ok {
		return TrackView{}, false
	}
	return s.tracks[i], true
}

// Confirmed returns the Confirmed tracks ordered by track id
func (s *Snapshot) Confirmed() []TrackView {
	var out []TrackView
	for _, v := range s.tracks {
		if v.State == Confirmed {
			out = append(out, v)
		}
	}
	return out
}

// ByCategory returns the Confirmed tracks of a category
func (s *Snapshot) ByCategory(cat detect.Category) []TrackView {
	var out []TrackView
	for _, v := range s.tracks {
		if v.State == Confirmed && v.Category == cat {
			out = append(out, v)
		}
	}
	return out
}

// history is the writer side point buffer of a track
type history struct {
	points []Point
}

// Trail is the trajectory store keeping a bounded centroid history per
// track.  The tracker is the single writer; readers take the latest
// Snapshot which never changes once published
type Trail struct {
	// retention is how far back in time points are kept
	retention time.Duration
	// size is the maximum number of most recent points to keep per track
	size int
	// history of tracked points by track id
	history map[int]*history
	// current published snapshot
	current atomic.Pointer[Snapshot]
	sync.Mutex
}

// NewTrail returns a new trajectory store keeping at most size points per
// track no older than retention
func NewTrail(size int, retention time.Duration) *Trail {
	t := &Trail{
		size:      size,
		retention: retention,
		history:   make(map[int]*history),
	}
	t.current.Store(emptySnapshot())
	return t
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Frame: -1, index: map[int]int{}}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*history)
	t.current.Store(emptySnapshot())
}

// Add appends a centroid to a track's history and drops points outside the
// retention window
func (t *Trail) Add(id int, p Point) {
	t.Lock()
	defer t.Unlock()

	h, exists := t.history[id]

	if !exists {
		h = &history{}
		t.history[id] = h
	}

	h.points = append(h.points, p)

	// drop points older than the retention window
	cutoff := p.TS - t.retention
	drop := 0

	for drop < len(h.points)-1 && h.points[drop].TS < cutoff {
		drop++
	}

	// check if history is exceeded and drop oldest points
	if over := len(h.points) - drop - t.size; over > 0 {
		drop += over
	}

	if drop > 0 {
		// points already handed out in snapshots are never modified, only
		// the window over them moves
		h.points = h.points[drop:]
	}
}

// Remove drops the history of a deleted track
func (t *Trail) Remove(id int) {
	t.Lock()
	defer t.Unlock()

	delete(t.history, id)
}

// GetPoints gets the point history for a specific track id
func (t *Trail) GetPoints(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if h, exists := t.history[id]; exists {
		n := len(h.points)
		return h.points[:n:n]
	}

	// no history yet
	return nil
}

// Publish builds and stores the snapshot for a completed frame
func (t *Trail) Publish(frame int, ts time.Duration, tracks []*Track) *Snapshot {
	t.Lock()
	defer t.Unlock()

	snap := &Snapshot{
		Frame:     frame,
		Timestamp: ts,
		tracks:    make([]TrackView, 0, len(tracks)),
		index:     make(map[int]int, len(tracks)),
	}

	for _, trk := range tracks {
		var points []Point

		if h, exists := t.history[trk.GetTrackID()]; exists {
			n := len(h.points)
			// cap the slice so appends by a reader never touch the writer's
			// backing array
			points = h.points[:n:n]
		}

		snap.tracks = append(snap.tracks, trk.view(points))
	}

	sort.Slice(snap.tracks, func(i, j int) bool {
		return snap.tracks[i].ID < snap.tracks[j].ID
	})

	for i, v := range snap.tracks {
		snap.index[v.ID] = i
	}

	t.current.Store(snap)

	return snap
}

// Snapshot returns the most recently published snapshot
func (t *Trail) Snapshot() *Snapshot {
	return t.current.Load()
}
