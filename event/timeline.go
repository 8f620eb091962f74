package event

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Timeline is the append only list of events of a session.  The detector
// is the only writer, readers get copies
type Timeline struct {
	events []Event
	keys   map[string]struct{}
	sync.RWMutex
}

// NewTimeline returns an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{keys: make(map[string]struct{})}
}

// add appends the event unless an event with the same key exists or an
// event of the same category sharing a track falls within cooldown.  The
// stored event is returned with its ID set
func (tl *Timeline) add(e Event, cooldown time.Duration) (Event, bool) {
	tl.Lock()
	defer tl.Unlock()

	if e.Key == "" {
		e.Key = eventKey(e)
	}

	if _, exists := tl.keys[e.Key]; exists {
		return Event{}, false
	}

	if cooldown > 0 {
		for _, prev := range tl.events {
			if prev.Category == e.Category && absDuration(prev.Timestamp-e.Timestamp) < cooldown &&
				sharesTrack(prev, e) {
				return Event{}, false
			}
		}
	}

	e.ID = int64(len(tl.events) + 1)
	e.TrackIDs = append([]int(nil), e.TrackIDs...)

	tl.events = append(tl.events, e)
	tl.keys[e.Key] = struct{}{}

	e.TrackIDs = slices.Clone(e.TrackIDs)

	return e, true
}

// Append adds an event from an external source such as a manual marker.
// It returns false if the event repeats one already on the timeline
func (tl *Timeline) Append(e Event) (Event, bool) {
	e.TrackIDs = sortedIDs(e.TrackIDs...)
	e.Confidence = clamp01(e.Confidence)
	e.Key = ""
	return tl.add(e, 0)
}

// Events returns a copy of all events ordered by timestamp then id
func (tl *Timeline) Events() []Event {
	tl.RLock()
	defer tl.RUnlock()

	out := make([]Event, len(tl.events))

	for i, e := range tl.events {
		e.TrackIDs = slices.Clone(e.TrackIDs)
		out[i] = e
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Len returns the number of events
func (tl *Timeline) Len() int {
	tl.RLock()
	defer tl.RUnlock()
	return len(tl.events)
}
