package highlight

import (
	"context"
	"errors"
	"fmt"
	"github.com/swdee/go-highlight/clip"
	"github.com/swdee/go-highlight/detect"
	"io"
	"sync"
	"sync/atomic"
)

// ErrRunnerClosed is returned by Run once the runner has been closed
var ErrRunnerClosed = errors.New("runner closed")

// FrameSource supplies the frames of a session in order, returning io.EOF
// after the last frame.  detect.Reader is a FrameSource
type FrameSource interface {
	Next() (detect.Frame, error)
}

// Job is a session to be run by a Runner
type Job struct {
	SessionID string
	Frames    FrameSource
	// Options override the runner options for this session when set
	Options *Options
}

// Outcome is the result of a Job
type Outcome struct {
	SessionID  string
	Highlights []clip.Highlight
	Err        error
}

// Runner is a pool of session slots so independent sessions run in parallel
// while the frames within each session stay sequential
type Runner struct {
	cfg  Config
	opts Options
	// pool of free slots
	slots chan struct{}
	// size of pool
	size   int
	closed atomic.Bool
	close  sync.Once
}

// NewRunner creates a runner allowing size sessions at once
func NewRunner(size int, cfg Config, opts Options) (*Runner, error) {

	if size < 1 {
		return nil, fmt.Errorf("%w: runner size must be at least 1, got %d", ErrInvalidConfig, size)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:   cfg,
		opts:  opts,
		slots: make(chan struct{}, size),
		size:  size,
	}

	for i := 0; i < size; i++ {
		r.slots <- struct{}{}
	}

	return r, nil
}

// Size returns the number of sessions that may run at once
func (r *Runner) Size() int {
	return r.size
}

// get waits for a free slot
func (r *Runner) get(ctx context.Context) error {

	if r.closed.Load() {
		return ErrRunnerClosed
	}

	select {
	case _, ok := <-r.slots:
		if !ok || r.closed.Load() {
			return ErrRunnerClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// put returns a slot to the pool
func (r *Runner) put() {
	defer func() {
		// pool closed while the session ran
		_ = recover()
	}()

	select {
	case r.slots <- struct{}{}:
	default:
	}
}

// Close stops the runner from starting new sessions
func (r *Runner) Close() {
	r.close.Do(func() {
		r.closed.Store(true)
		close(r.slots)
	})
}

// Run waits for a free slot then runs the job to completion.  When ctx is
// cancelled the session is cancelled at the next frame boundary
func (r *Runner) Run(ctx context.Context, job Job) Outcome {

	out := Outcome{SessionID: job.SessionID}

	if err := r.get(ctx); err != nil {
		out.Err = err
		return out
	}

	defer r.put()

	opts := r.opts
	if job.Options != nil {
		opts = *job.Options
	}

	sess, err := NewSession(job.SessionID, r.cfg, opts)

	if err != nil {
		out.Err = err
		return out
	}

	for {

		if ctx.Err() != nil {
			sess.Cancel()
			break
		}

		frame, err := job.Frames.Next()

		if errors.Is(err, io.EOF) {
			break
		}

		// the frames read so far still yield their highlights
		if err != nil {
			var finishErr error
			out.Highlights, finishErr = sess.Finish(ctx)
			out.Err = errors.Join(
				fmt.Errorf("session %s: error reading frame: %w", job.SessionID, err),
				finishErr,
			)
			return out
		}

		if _, err := sess.ProcessFrame(ctx, frame); err != nil {
			sess.Cancel()
			out.Highlights, _ = sess.Finish(context.Background())
			out.Err = fmt.Errorf("session %s: %w", job.SessionID, err)
			return out
		}
	}

	out.Highlights, out.Err = sess.Finish(ctx)

	if out.Err == nil && ctx.Err() != nil {
		out.Err = ctx.Err()
	}

	return out
}

// RunAll runs the jobs concurrently, at most Size at a time, and returns
// their outcomes in job order
func (r *Runner) RunAll(ctx context.Context, jobs []Job) []Outcome {

	outcomes := make([]Outcome, len(jobs))

	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)

		go func(i int, job Job) {
			defer wg.Done()
			outcomes[i] = r.Run(ctx, job)
		}(i, job)
	}

	wg.Wait()

	return outcomes
}
