package event

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Category is the kind of match event detected
type Category int

const (
	// Goal is a ball entering the goal with a player reacting nearby
	Goal Category = 0
	// Save is a goalkeeper dive correlated with the ball changing direction
	Save Category = 1
	// SkillMove is a player changing direction repeatedly with the ball
	// under close control
	SkillMove Category = 2
	// Other covers events from external sources
	Other Category = 3
)

var categoryNames = []string{"goal", "save", "skill_move", "other"}

// Categories returns all event categories
func Categories() []Category {
	return []Category{Goal, Save, SkillMove, Other}
}

// String returns the category name
func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("event(%d)", int(c))
}

// ParseCategory converts a category name into its Category
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}

	return Other, fmt.Errorf("unknown event category %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	cat, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// Event is a discrete timestamped occurrence inferred from track behaviour.
// Events are immutable once added to a Timeline
type Event struct {
	// ID is assigned by the Timeline in order of arrival
	ID       int64
	Category Category
	// Timestamp of the moment the event happened
	Timestamp time.Duration
	// Confidence in [0,1]
	Confidence float64
	// TrackIDs of the tracks supporting the event, ascending
	TrackIDs []int
	// Start and End of the evaluation window the event was found in
	Start time.Duration
	End   time.Duration
	// Key identifies the event independently of the window it was found
	// in, used to drop repeats
	Key string
}

// eventKey builds the identity key of an event
func eventKey(e Event) string {
	var b strings.Builder

	b.WriteString(e.Category.String())
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(e.Timestamp.Milliseconds(), 10))

	for _, id := range e.TrackIDs {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(id))
	}

	return b.String()
}

// sortedIDs returns the track ids in ascending order without duplicates
func sortedIDs(ids ...int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)

	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}

	return out[:n]
}

// sharesTrack returns true if both events are supported by a common track
func sharesTrack(a, b Event) bool {
	for _, x := range a.TrackIDs {
		for _, y := range b.TrackIDs {
			if x == y {
				return true
			}
		}
	}
	return false
}
