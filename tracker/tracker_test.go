package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-highlight/detect"
)

// frameInterval is the time between frames used in tests, 25fps
const frameInterval = 40 * time.Millisecond

// makeDet returns a detection with a 20x20 box centered on x,y
func makeDet(cat detect.Category, x, y, conf float32) detect.Detection {
	return detect.Detection{
		Category:   cat,
		Confidence: conf,
		Box:        detect.BBox{X: x - 10, Y: y - 10, W: 20, H: 20},
	}
}

// uniformConfig uses the same thresholds for every category
func uniformConfig(maxDist float32, maxMisses int) Config {
	cfg := DefaultConfig()
	cfg.Default = CategoryParams{MaxDistance: maxDist, MaxMisses: maxMisses}
	cfg.Categories = nil
	return cfg
}

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr, err := New(cfg)
	require.NoError(t, err)
	return tr
}

// update runs a frame and stamps detections with the frame timestamp
func update(t *testing.T, tr *Tracker, frame int, dets ...detect.Detection) *FrameResult {
	t.Helper()

	ts := time.Duration(frame) * frameInterval

	for i := range dets {
		dets[i].Timestamp = ts
		dets[i].ID = int64(frame*100 + i + 1)
	}

	res, err := tr.Update(frame, ts, dets)
	require.NoError(t, err)
	return res
}

func TestTwoObjectsMovingTogether(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	deleted := 0
	var last *FrameResult

	for f := 0; f < 40; f++ {
		step := float32(5 * f)
		last = update(t, tr, f,
			makeDet(detect.SportsItem, 100+step, 100+step, 0.9),
			makeDet(detect.Person, 140+step, 140+step, 0.9),
		)
		deleted += len(last.Deleted)
	}

	assert.Equal(t, 0, deleted)

	confirmed := last.Snapshot.Confirmed()
	require.Len(t, confirmed, 2)

	for _, v := range confirmed {
		assert.Len(t, v.History, 40, "track %d", v.ID)
		assert.Equal(t, 0, v.Misses)
	}

	ball := last.Snapshot.ByCategory(detect.SportsItem)
	require.Len(t, ball, 1)

	first := ball[0].History[0]
	end := ball[0].History[39]
	assert.Equal(t, Point{X: 100, Y: 100, TS: 0}, first)
	assert.Equal(t, float32(295), end.X)
	assert.Equal(t, 39*frameInterval, end.TS)
}

func TestMissThresholdBoundary(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.Person, 200, 200, 0.9))
	require.Len(t, res.Created, 1)
	id := res.Created[0]

	// 30 empty frames keeps the track alive
	for f := 1; f <= 30; f++ {
		res = update(t, tr, f)
		require.Empty(t, res.Deleted, "frame %d", f)
	}

	v, ok := res.Snapshot.Track(id)
	require.True(t, ok)
	assert.Equal(t, 30, v.Misses)

	// the 31st empty frame deletes it
	res = update(t, tr, 31)
	require.Len(t, res.Deleted, 1)
	assert.Equal(t, id, res.Deleted[0].ID)
	assert.Equal(t, Deleted, res.Deleted[0].State)

	_, ok = res.Snapshot.Track(id)
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Active())
	assert.Nil(t, tr.Trail().GetPoints(id))
}

func TestAnimalMissThreshold(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultConfig())

	update(t, tr, 0, makeDet(detect.Animal, 50, 50, 0.9))

	for f := 1; f <= 15; f++ {
		res := update(t, tr, f)
		require.Empty(t, res.Deleted)
	}

	res := update(t, tr, 16)
	assert.Len(t, res.Deleted, 1)
}

func TestTrackIDsNeverReused(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 2))

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	firstID := res.Created[0]

	frame := 1
	for ; frame <= 3; frame++ {
		res = update(t, tr, frame)
	}
	require.Len(t, res.Deleted, 1)

	res = update(t, tr, frame, makeDet(detect.Person, 100, 100, 0.9))
	require.Len(t, res.Created, 1)
	assert.Greater(t, res.Created[0], firstID)

	// reset keeps counting from the last issued id
	tr.Reset()
	res = update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	assert.Greater(t, res.Created[0], firstID+1)
}

func TestSmoothMoverKeepsOneID(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))
	seen := map[int]bool{}

	for f := 0; f < 100; f++ {
		res := update(t, tr, f, makeDet(detect.Person, 10+float32(f)*6, 300, 0.8))
		for _, v := range res.Snapshot.Tracks() {
			seen[v.ID] = true
		}
	}

	assert.Len(t, seen, 1)
}

func TestConfirmAfterConsecutiveHits(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	id := res.Created[0]

	v, _ := res.Snapshot.Track(id)
	assert.Equal(t, Tentative, v.State)

	res = update(t, tr, 1, makeDet(detect.Person, 102, 100, 0.9))
	v, _ = res.Snapshot.Track(id)
	assert.Equal(t, Tentative, v.State)

	// a miss resets the consecutive hit count
	update(t, tr, 2)
	update(t, tr, 3, makeDet(detect.Person, 104, 100, 0.9))
	res = update(t, tr, 4, makeDet(detect.Person, 106, 100, 0.9))
	v, _ = res.Snapshot.Track(id)
	assert.Equal(t, Tentative, v.State)

	res = update(t, tr, 5, makeDet(detect.Person, 108, 100, 0.9))
	v, _ = res.Snapshot.Track(id)
	assert.Equal(t, Confirmed, v.State)
	assert.Equal(t, []int{id}, res.Confirmed)
}

func TestHigherConfidenceWinsTie(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	id := res.Created[0]

	// both detections 10px away, the second is more confident
	res = update(t, tr, 1,
		makeDet(detect.Person, 90, 100, 0.5),
		makeDet(detect.Person, 110, 100, 0.8),
	)

	v, _ := res.Snapshot.Track(id)
	last, _ := v.Last()
	assert.Equal(t, float32(110), last.X)
	assert.Len(t, res.Created, 1)
}

func TestLowerIndexWinsExactTie(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	id := res.Created[0]

	res = update(t, tr, 1,
		makeDet(detect.Person, 100, 110, 0.7),
		makeDet(detect.Person, 100, 90, 0.7),
	)

	v, _ := res.Snapshot.Track(id)
	last, _ := v.Last()
	assert.Equal(t, float32(110), last.Y)
}

func TestDuplicateDetectionSpawnsSeparateTrack(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.9))
	id := res.Created[0]

	res = update(t, tr, 1,
		makeDet(detect.Person, 101, 100, 0.9),
		makeDet(detect.Person, 103, 100, 0.6),
	)

	v, _ := res.Snapshot.Track(id)
	last, _ := v.Last()
	assert.Equal(t, float32(101), last.X)
	require.Len(t, res.Created, 1)
	assert.NotEqual(t, id, res.Created[0])
}

func TestCategoriesDoNotCrossMatch(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, uniformConfig(80, 30))

	res := update(t, tr, 0, makeDet(detect.SportsItem, 100, 100, 0.9))
	ballID := res.Created[0]

	res = update(t, tr, 1, makeDet(detect.Person, 102, 100, 0.9))
	require.Len(t, res.Created, 1)
	assert.NotEqual(t, ballID, res.Created[0])

	v, _ := res.Snapshot.Track(ballID)
	assert.Equal(t, 1, v.Misses)
}

func TestDistanceThreshold(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultConfig())

	// vehicles accept a 100px jump, people do not
	res := update(t, tr, 0,
		makeDet(detect.Vehicle, 100, 100, 0.9),
		makeDet(detect.Person, 100, 400, 0.9),
	)
	require.Len(t, res.Created, 2)

	res = update(t, tr, 1,
		makeDet(detect.Vehicle, 200, 100, 0.9),
		makeDet(detect.Person, 200, 400, 0.9),
	)

	require.Len(t, res.Created, 1)
	assert.Equal(t, float32(120), tr.Params(detect.Vehicle).MaxDistance)

	v, ok := res.Snapshot.Track(res.Created[0])
	require.True(t, ok)
	assert.Equal(t, detect.Person, v.Category)
}

func TestMaxTracksEvictsWeakestTentative(t *testing.T) {
	t.Parallel()

	cfg := uniformConfig(20, 30)
	cfg.MaxTracks = 3
	cfg.HitsToConfirm = 2
	tr := newTestTracker(t, cfg)

	// one confirmed track
	update(t, tr, 0, makeDet(detect.Person, 10, 10, 0.9))
	res := update(t, tr, 1,
		makeDet(detect.Person, 10, 10, 0.9),
		makeDet(detect.Person, 200, 10, 0.5),
		makeDet(detect.Person, 300, 10, 0.6),
	)
	require.Len(t, res.Created, 2)
	weak := res.Created[0]

	// a stronger new detection evicts the weakest tentative track, the
	// existing tracks are matched again first
	res = update(t, tr, 2,
		makeDet(detect.Person, 10, 10, 0.9),
		makeDet(detect.Person, 500, 10, 0.8),
	)

	require.Len(t, res.Created, 1)
	require.Len(t, res.Deleted, 1)
	assert.Equal(t, weak, res.Deleted[0].ID)
	assert.Equal(t, 3, tr.Active())

	// a detection weaker than every tentative track is not spawned
	res = update(t, tr, 3,
		makeDet(detect.Person, 10, 10, 0.9),
		makeDet(detect.Person, 700, 10, 0.1),
	)
	assert.Empty(t, res.Created)
	assert.Equal(t, 3, tr.Active())
}

func TestFrameOrder(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultConfig())
	update(t, tr, 5)

	_, err := tr.Update(5, 0, nil)
	assert.ErrorIs(t, err, ErrFrameOrder)

	_, err = tr.Update(4, 0, nil)
	assert.ErrorIs(t, err, ErrFrameOrder)

	_, err = tr.Update(6, 0, nil)
	assert.NoError(t, err)
}

func TestConstantVelocityBridgesGap(t *testing.T) {
	t.Parallel()

	run := func(motion MotionModel) map[int]bool {
		cfg := uniformConfig(30, 30)
		cfg.Motion = motion
		tr := newTestTracker(t, cfg)
		ids := map[int]bool{}

		for f := 0; f <= 15; f++ {
			var dets []detect.Detection
			if f != 10 {
				dets = append(dets, makeDet(detect.Person, 20+float32(f)*20, 200, 0.9))
			}
			res := update(t, tr, f, dets...)
			for _, id := range res.Created {
				ids[id] = true
			}
		}
		return ids
	}

	assert.Len(t, run(ConstantVelocity), 1)
	assert.Len(t, run(ConstantPosition), 2)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative distance", func(c *Config) { c.Default.MaxDistance = -1 }},
		{"zero category distance", func(c *Config) {
			c.Categories[detect.Person] = CategoryParams{MaxDistance: 0, MaxMisses: 3}
		}},
		{"negative misses", func(c *Config) { c.Default.MaxMisses = -1 }},
		{"zero hits", func(c *Config) { c.HitsToConfirm = 0 }},
		{"alpha zero", func(c *Config) { c.EMAAlpha = 0 }},
		{"alpha above one", func(c *Config) { c.EMAAlpha = 1.1 }},
		{"no tracks", func(c *Config) { c.MaxTracks = 0 }},
		{"no retention", func(c *Config) { c.Retention = 0 }},
		{"short history", func(c *Config) { c.MaxHistory = 1 }},
		{"unknown motion", func(c *Config) { c.Motion = 7 }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfidenceEMA(t *testing.T) {
	t.Parallel()

	cfg := uniformConfig(80, 30)
	cfg.EMAAlpha = 0.5
	tr := newTestTracker(t, cfg)

	res := update(t, tr, 0, makeDet(detect.Person, 100, 100, 0.8))
	id := res.Created[0]

	res = update(t, tr, 1, makeDet(detect.Person, 100, 100, 0.4))
	v, _ := res.Snapshot.Track(id)
	assert.InDelta(t, 0.6, v.Confidence, 1e-6)
}
