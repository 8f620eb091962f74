package segment

import (
	"github.com/swdee/go-highlight/event"
	"sort"
	"time"
)

// minSpan is the least time a segment extends past its last event so the
// event lies inside the half open interval [Start,End)
const minSpan = time.Millisecond

// Candidate is a scored time segment built from one or more events
type Candidate struct {
	Start time.Duration
	End   time.Duration
	Score float64
	// Categories of the contributing events, sorted
	Categories []event.Category
	// Events that triggered the segment ordered by timestamp
	Events []event.Event
	// Peak is the timestamp of the most confident event
	Peak time.Duration
}

// Duration returns the length of the segment
func (c Candidate) Duration() time.Duration {
	return c.End - c.Start
}

// Overlaps returns true if the half open intervals [Start,End) intersect
func (c Candidate) Overlaps(o Candidate) bool {
	return c.Start < o.End && o.Start < c.End
}

// category is the primary category used for ordering
func (c Candidate) category() event.Category {
	if len(c.Categories) == 0 {
		return event.Other
	}
	return c.Categories[0]
}

// Selector turns session events into non overlapping highlight segments
type Selector struct {
	cfg Config
}

// NewSelector returns a selector for the given settings
func NewSelector(cfg Config) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Selector{cfg: cfg}, nil
}

// Select builds padded windows around the events, merges overlapping windows
// of the same category, clamps them to the duration bounds and greedily
// keeps the highest scoring segments that do not overlap.  sessionEnd bounds
// the segments when greater than zero.  The result is sorted by start time
func (s *Selector) Select(events []event.Event, sessionEnd time.Duration) []Candidate {

	if len(events) == 0 {
		return nil
	}

	// an event at or after the reported session end extends the session
	if sessionEnd > 0 {
		for _, e := range events {
			if e.Timestamp+minSpan > sessionEnd {
				sessionEnd = e.Timestamp + minSpan
			}
		}
	}

	// Step 1: merge events into per category candidates
	var cands []Candidate

	for _, group := range s.byCategory(events) {
		cands = append(cands, s.merge(group, sessionEnd)...)
	}

	// Step 2: clamp each candidate before testing overlap
	for i := range cands {
		cands[i] = s.clamp(cands[i], sessionEnd)
	}

	// Step 3: greedy selection by score
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.category() < b.category()
	})

	var accepted []Candidate

	for _, c := range cands {

		if len(accepted) >= s.cfg.MaxHighlights {
			break
		}

		clash := false
		for _, a := range accepted {
			if c.Overlaps(a) {
				clash = true
				break
			}
		}

		if !clash {
			accepted = append(accepted, c)
		}
	}

	// Step 4: chronological output
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})

	return accepted
}

// byCategory groups events by category with each group sorted by timestamp
func (s *Selector) byCategory(events []event.Event) [][]event.Event {

	groups := make(map[event.Category][]event.Event)

	for _, e := range events {
		groups[e.Category] = append(groups[e.Category], e)
	}

	var out [][]event.Event

	for _, cat := range event.Categories() {
		g := groups[cat]
		if len(g) == 0 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Timestamp != g[j].Timestamp {
				return g[i].Timestamp < g[j].Timestamp
			}
			return g[i].ID < g[j].ID
		})
		out = append(out, g)
	}

	return out
}

// merge joins overlapping raw windows of one category.  A window is only
// joined while the events it holds still fit within MaxDuration so that
// clamping never has to drop an event
func (s *Selector) merge(group []event.Event, sessionEnd time.Duration) []Candidate {

	var out []Candidate
	var cur *Candidate

	flush := func() {
		if cur != nil {
			cur.Score = combine(cur.Events)
			cur.Peak = peak(cur.Events)
			out = append(out, *cur)
		}
	}

	for _, e := range group {

		start, end := s.window(e, sessionEnd)

		if cur != nil && start < cur.End &&
			e.Timestamp+minSpan-cur.Events[0].Timestamp <= s.cfg.MaxDuration {

			cur.Events = append(cur.Events, e)
			if end > cur.End {
				cur.End = end
			}
			continue
		}

		flush()

		cur = &Candidate{
			Start:      start,
			End:        end,
			Categories: []event.Category{e.Category},
			Events:     []event.Event{e},
		}
	}

	flush()

	return out
}

// window returns the padded raw window of an event limited to the session
func (s *Selector) window(e event.Event, sessionEnd time.Duration) (time.Duration, time.Duration) {

	pad := s.cfg.padding(e.Category)

	start := e.Timestamp - pad.Pre
	end := e.Timestamp + max(pad.Post, minSpan)

	if start < 0 {
		start = 0
	}

	if sessionEnd > 0 && end > sessionEnd {
		end = sessionEnd
	}

	return start, end
}

// clamp grows or shrinks a candidate to lie within the duration bounds
// while keeping every contributing event inside
func (s *Selector) clamp(c Candidate, sessionEnd time.Duration) Candidate {

	d := c.Duration()

	switch {
	case d < s.cfg.MinDuration:
		need := s.cfg.MinDuration - d
		c.Start -= need / 2
		c.End += need - need/2

		if c.Start < 0 {
			c.End -= c.Start
			c.Start = 0
		}

		if sessionEnd > 0 && c.End > sessionEnd {
			shift := c.End - sessionEnd
			c.Start -= shift
			c.End = sessionEnd

			// session shorter than the minimum, keep the minimum length
			if c.Start < 0 {
				c.Start = 0
				c.End = s.cfg.MinDuration
			}
		}

	case d > s.cfg.MaxDuration:
		first := c.Events[0].Timestamp
		last := c.Events[len(c.Events)-1].Timestamp

		// start in (last-MaxDuration, first] keeps every event in [Start,End)
		lo := maxDuration(c.Start, last+minSpan-s.cfg.MaxDuration)
		hi := minDuration(c.End-s.cfg.MaxDuration, first)

		start := c.Peak - s.cfg.padding(c.category()).Pre

		if start < lo {
			start = lo
		}
		if start > hi {
			start = hi
		}

		c.Start = start
		c.End = start + s.cfg.MaxDuration
	}

	return c
}

// combine scores a set of events as the probability at least one of them is
// real, 1 - prod(1 - confidence)
func combine(events []event.Event) float64 {
	miss := 1.0
	for _, e := range events {
		miss *= 1 - e.Confidence
	}
	return 1 - miss
}

// peak returns the timestamp of the most confident event, the earliest on
// ties
func peak(events []event.Event) time.Duration {
	best := 0
	for i, e := range events {
		if e.Confidence > events[best].Confidence {
			best = i
		}
	}
	return events[best].Timestamp
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
