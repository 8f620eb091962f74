package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-highlight/detect"
)

func TestTrailRetentionWindow(t *testing.T) {
	t.Parallel()

	trail := NewTrail(100, 2*time.Second)

	for i := 0; i < 10; i++ {
		trail.Add(1, Point{X: float32(i), TS: time.Duration(i) * 500 * time.Millisecond})
	}

	points := trail.GetPoints(1)
	require.NotEmpty(t, points)

	// last point is at 4.5s so only points at or after 2.5s remain
	assert.Equal(t, 2500*time.Millisecond, points[0].TS)
	assert.Equal(t, 4500*time.Millisecond, points[len(points)-1].TS)
	assert.Len(t, points, 5)
}

func TestTrailSizeCap(t *testing.T) {
	t.Parallel()

	trail := NewTrail(3, time.Hour)

	for i := 0; i < 10; i++ {
		trail.Add(7, Point{X: float32(i), TS: time.Duration(i)})
	}

	points := trail.GetPoints(7)
	require.Len(t, points, 3)
	assert.Equal(t, float32(7), points[0].X)

	trail.Remove(7)
	assert.Nil(t, trail.GetPoints(7))
}

func TestSnapshotIsStableAfterLaterFrames(t *testing.T) {
	t.Parallel()

	tr, err := New(uniformConfig(80, 30))
	require.NoError(t, err)

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	id := res.Created[0]

	update(t, tr, 1, makeDet(detect.Person, 105, 100, 0.9))
	snap := tr.Trail().Snapshot()

	v, ok := snap.Track(id)
	require.True(t, ok)
	require.Len(t, v.History, 2)

	for f := 2; f < 20; f++ {
		update(t, tr, f, makeDet(detect.Person, 100+float32(f)*5, 100, 0.9))
	}

	// the earlier snapshot still describes frame 1
	v, _ = snap.Track(id)
	assert.Equal(t, 1, snap.Frame)
	assert.Len(t, v.History, 2)
	assert.Equal(t, float32(105), v.History[1].X)

	latest := tr.Trail().Snapshot()
	assert.Equal(t, 19, latest.Frame)
	lv, _ := latest.Track(id)
	assert.Len(t, lv.History, 20)
}

func TestSnapshotBetween(t *testing.T) {
	t.Parallel()

	v := TrackView{History: []Point{
		{X: 1, TS: 1 * time.Second},
		{X: 2, TS: 2 * time.Second},
		{X: 3, TS: 3 * time.Second},
		{X: 4, TS: 4 * time.Second},
	}}

	got := v.Between(2*time.Second, 3*time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, float32(2), got[0].X)
	assert.Equal(t, float32(3), got[1].X)

	assert.Empty(t, v.Between(5*time.Second, 6*time.Second))

	last, ok := v.Last()
	assert.True(t, ok)
	assert.Equal(t, float32(4), last.X)

	_, ok = TrackView{}.Last()
	assert.False(t, ok)
}

func TestEmptySnapshot(t *testing.T) {
	t.Parallel()

	trail := NewTrail(10, time.Second)
	snap := trail.Snapshot()

	require.NotNil(t, snap)
	assert.Equal(t, -1, snap.Frame)
	assert.Empty(t, snap.Tracks())
	assert.Empty(t, snap.Confirmed())
}

// TestConcurrentReaders checks readers see whole frames while the tracker
// keeps writing, run with -race
func TestConcurrentReaders(t *testing.T) {
	t.Parallel()

	tr, err := New(uniformConfig(80, 30))
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap := tr.Trail().Snapshot()
				for _, v := range snap.Tracks() {
					// every active track was updated in the snapshot frame
					if last, ok := v.Last(); ok && snap.Frame >= 0 {
						if last.TS != snap.Timestamp {
							t.Errorf("track %d last point %v in frame at %v", v.ID, last.TS, snap.Timestamp)
							return
						}
					}
				}
			}
		}()
	}

	for f := 0; f < 300; f++ {
		ts := time.Duration(f) * frameInterval
		dets := []detect.Detection{
			{Category: detect.Person, Confidence: 0.9, Timestamp: ts,
				Box: detect.BBox{X: float32(f), Y: 10, W: 20, H: 20}},
			{Category: detect.SportsItem, Confidence: 0.9, Timestamp: ts,
				Box: detect.BBox{X: float32(f), Y: 300, W: 10, H: 10}},
		}
		_, err := tr.Update(f, ts, dets)
		require.NoError(t, err)
	}

	close(done)
	wg.Wait()
}
