package highlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-highlight/detect"
)

var errBrokenStream = errors.New("broken stream")

// sliceSource replays frames from memory and records how many sources are
// being read at once
type sliceSource struct {
	frames  []detect.Frame
	pos     int
	failAt  int
	started bool
	gauge   *concurrency
}

func (s *sliceSource) Next() (detect.Frame, error) {

	if !s.started {
		s.started = true
		s.gauge.enter()
	}

	if s.failAt > 0 && s.pos == s.failAt {
		s.gauge.leave()
		return detect.Frame{}, errBrokenStream
	}

	if s.pos >= len(s.frames) {
		s.gauge.leave()
		return detect.Frame{}, io.EOF
	}

	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

type concurrency struct {
	mu     sync.Mutex
	active int
	max    int
}

func (c *concurrency) enter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active++
	c.max = max(c.max, c.active)
}

func (c *concurrency) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active--
}

func newTestRunner(t *testing.T, size int) *Runner {
	t.Helper()
	r, err := NewRunner(size, testConfig(), Options{})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRunnerRunAll(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, 2)
	gauge := &concurrency{}

	var jobs []Job

	for i := 0; i < 6; i++ {
		frames := goalFrames(31)
		if i%2 == 1 {
			frames = nil
		}
		jobs = append(jobs, Job{
			SessionID: fmt.Sprintf("match-%d", i),
			Frames:    &sliceSource{frames: frames, gauge: gauge},
		})
	}

	outcomes := r.RunAll(context.Background(), jobs)
	require.Len(t, outcomes, len(jobs))

	for i, out := range outcomes {
		assert.Equal(t, jobs[i].SessionID, out.SessionID)
		require.NoError(t, out.Err)

		if i%2 == 1 {
			assert.Empty(t, out.Highlights)
			continue
		}

		require.Len(t, out.Highlights, 1)
		assert.Equal(t, jobs[i].SessionID, out.Highlights[0].SessionID)
	}

	assert.LessOrEqual(t, gauge.max, r.Size())
	assert.Zero(t, gauge.active)
}

func TestRunnerReadError(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, 1)

	out := r.Run(context.Background(), Job{
		SessionID: "broken",
		Frames:    &sliceSource{frames: goalFrames(10), failAt: 3, gauge: &concurrency{}},
	})

	assert.ErrorIs(t, out.Err, errBrokenStream)
	assert.Contains(t, out.Err.Error(), "session broken")
	assert.Empty(t, out.Highlights)

	// a corrupt trailing record keeps the highlights already found
	writer := &memWriter{}
	out = r.Run(context.Background(), Job{
		SessionID: "truncated",
		Frames:    &sliceSource{frames: goalFrames(31), failAt: 31, gauge: &concurrency{}},
		Options:   &Options{Writer: writer},
	})

	assert.ErrorIs(t, out.Err, errBrokenStream)
	require.Len(t, out.Highlights, 1)
	assert.True(t, out.Highlights[0].HasTag("goal"))
	assert.Equal(t, 1, writer.len())

	// the slot was returned
	out = r.Run(context.Background(), Job{
		SessionID: "next",
		Frames:    &sliceSource{gauge: &concurrency{}},
	})
	assert.NoError(t, out.Err)
}

func TestRunnerFrameOrderError(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, 1)
	frames := goalFrames(4)
	frames[3].Index = 1

	out := r.Run(context.Background(), Job{
		SessionID: "unordered",
		Frames:    &sliceSource{frames: frames, gauge: &concurrency{}},
	})

	assert.ErrorIs(t, out.Err, ErrFrameOrder)
}

func TestRunnerCancelled(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.Run(ctx, Job{
		SessionID: "cancelled",
		Frames:    &sliceSource{frames: goalFrames(31), gauge: &concurrency{}},
	})

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Empty(t, out.Highlights)
}

func TestRunnerClosed(t *testing.T) {
	t.Parallel()

	r, err := NewRunner(1, testConfig(), Options{})
	require.NoError(t, err)

	r.Close()
	// closing twice is safe
	r.Close()

	out := r.Run(context.Background(), Job{SessionID: "late", Frames: &sliceSource{gauge: &concurrency{}}})
	assert.ErrorIs(t, out.Err, ErrRunnerClosed)
}

func TestNewRunnerInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(0, testConfig(), Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig()
	cfg.EvalEvery = 0

	_, err = NewRunner(2, cfg, Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunnerJobOptions(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, 1)
	writer := &memWriter{}

	out := r.Run(context.Background(), Job{
		SessionID: "with-writer",
		Frames:    &sliceSource{frames: goalFrames(31), gauge: &concurrency{}},
		Options:   &Options{Writer: writer},
	})

	require.NoError(t, out.Err)
	require.Len(t, out.Highlights, 1)
	assert.Equal(t, 1, writer.len())
}

var _ FrameSource = (*detect.Reader)(nil)
