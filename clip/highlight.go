package clip

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/swdee/go-highlight/event"
	"time"
)

// TagExciting is added to highlights scoring above ExcitingScore
const (
	TagExciting   = "exciting"
	ExcitingScore = 0.8
)

// Highlight is a finished, immutable highlight of a session
type Highlight struct {
	ID        uuid.UUID
	SessionID string
	Start     time.Duration
	End       time.Duration
	Duration  time.Duration
	// Tags is the sorted set of event categories plus descriptive tags
	Tags  []string
	Score float64
	// PeakTS is the timestamp of the most confident event
	PeakTS      time.Duration
	Title       string
	Description string
	// EventIDs of the events the highlight was built from
	EventIDs  []int64
	Clip      ClipRef
	Thumbnail ThumbnailRef
}

// HasTag returns true if the highlight carries the tag
func (h Highlight) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ClipRequest asks the media layer to cut a clip and thumbnail for a
// highlight
type ClipRequest struct {
	HighlightID uuid.UUID
	SessionID   string
	Start       time.Duration
	End         time.Duration
	// Peak is where the thumbnail should be taken
	Peak  time.Duration
	Title string
}

// ClipRef locates an extracted clip
type ClipRef struct {
	URI      string
	Duration time.Duration
}

// ThumbnailRef locates an extracted thumbnail image
type ThumbnailRef struct {
	URI string
	At  time.Duration
}

// MediaExtractor cuts clips and thumbnails out of the session video
type MediaExtractor interface {
	Extract(ctx context.Context, req ClipRequest) (ClipRef, ThumbnailRef, error)
}

// Record is what gets persisted for each highlight
type Record struct {
	Highlight Highlight
	Events    []event.Event
	CreatedAt time.Time
}

// Writer persists highlight records
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// HighlightError is the failure of a downstream operation for one highlight.
// The highlight is intact so the caller may retry it
type HighlightError struct {
	Highlight Highlight
	// Op is the failed operation, "extract" or "write"
	Op  string
	Err error
}

// Error implements the error interface
func (e *HighlightError) Error() string {
	return fmt.Sprintf("highlight %s %s: %v", e.Highlight.ID, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *HighlightError) Unwrap() error {
	return e.Err
}

var titles = map[event.Category]string{
	event.Goal:      "Goal!",
	event.Save:      "Great Save",
	event.SkillMove: "Skill Move",
	event.Other:     "Game Highlight",
}

var descriptions = map[event.Category]string{
	event.Goal:      "The ball crosses into the goal with players reacting around it.",
	event.Save:      "The keeper dives across the goal area and turns the ball away.",
	event.SkillMove: "A player beats the defence with quick changes of direction on the ball.",
	event.Other:     "A notable moment from the match.",
}

// Title returns the display title of a highlight of the category peaking at
// ts, such as "Goal! - 12m"
func Title(cat event.Category, ts time.Duration) string {
	base, ok := titles[cat]
	if !ok {
		base = "Highlight"
	}
	return fmt.Sprintf("%s - %dm", base, int(ts/time.Minute))
}

// Description returns the display description of a highlight category
func Description(cat event.Category) string {
	if d, ok := descriptions[cat]; ok {
		return d
	}
	return descriptions[event.Other]
}
