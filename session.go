package highlight

import (
	"context"
	"errors"
	"fmt"
	"github.com/swdee/go-highlight/clip"
	"github.com/swdee/go-highlight/detect"
	"github.com/swdee/go-highlight/event"
	"github.com/swdee/go-highlight/segment"
	"github.com/swdee/go-highlight/tracker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrFrameOrder is returned when a frame index does not increase
	ErrFrameOrder = tracker.ErrFrameOrder
	// ErrSessionClosed is returned once a session has been finished or
	// cancelled
	ErrSessionClosed = errors.New("session closed")
)

// Options are the optional collaborators of a session
type Options struct {
	// Pose supplies pose summaries to raise event confidence, nil runs on
	// trajectories alone
	Pose event.PoseSource
	// Media cuts clips and thumbnails, nil skips extraction
	Media clip.MediaExtractor
	// Writer persists highlights, nil skips persistence
	Writer clip.Writer
	// Logger defaults to slog.Default()
	Logger *slog.Logger
	// Meter defaults to the global OpenTelemetry meter provider
	Meter metric.Meter
	// Categories maps detector class ids, nil uses the COCO table
	Categories *detect.CategoryTable
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	Frame     int
	Timestamp time.Duration
	// Detections kept after normalization
	Detections int
	Snapshot   *tracker.Snapshot
	Created    []int
	Confirmed  []int
	Deleted    []tracker.TrackView
	// Events first detected on this frame
	Events []event.Event
}

// Session runs the highlight pipeline over the frames of one match.  Frames
// must be passed in order from a single goroutine, Cancel may be called
// from any goroutine
type Session struct {
	id         string
	cfg        Config
	normalizer *detect.Normalizer
	tracker    *tracker.Tracker
	detector   *event.Detector
	selector   *segment.Selector
	assembler  *clip.Assembler
	log        *slog.Logger
	metrics    *metrics

	lastFrame     int
	lastTS        time.Duration
	frames        int
	lastEvaluated int
	closed        bool
	highlights    []clip.Highlight
	sync.Mutex

	cancelled atomic.Bool
	// stop cancels a running Finish
	stop   context.CancelFunc
	stopMu sync.Mutex
}

// NewSession validates the configuration and returns a session ready for
// its first frame
func NewSession(sessionID string, cfg Config, opts Options) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID)

	norm, err := detect.NewNormalizer(cfg.Detect, opts.Categories)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	trk, err := tracker.New(cfg.Tracker)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	det, err := event.NewDetector(cfg.Event, opts.Pose, logger)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	sel, err := segment.NewSelector(cfg.Segment)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Session{
		id:            sessionID,
		cfg:           cfg,
		normalizer:    norm,
		tracker:       trk,
		detector:      det,
		selector:      sel,
		assembler:     clip.NewAssembler(opts.Media, opts.Writer, logger),
		log:           logger,
		metrics:       newMetrics(opts.Meter, logger),
		lastFrame:     -1,
		lastEvaluated: -1,
	}, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// ProcessFrame normalizes the frame detections, updates the tracker and
// every EvalEvery frames evaluates the trajectory window for events
func (s *Session) ProcessFrame(ctx context.Context, frame detect.Frame) (*FrameResult, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed || s.cancelled.Load() {
		return nil, ErrSessionClosed
	}

	if frame.Index <= s.lastFrame {
		return nil, fmt.Errorf("%w: frame %d after %d", ErrFrameOrder, frame.Index, s.lastFrame)
	}

	// Step 1: normalize
	dets := s.normalizer.Normalize(frame)

	// Step 2: track and publish the snapshot
	tr, err := s.tracker.Update(frame.Index, frame.Timestamp, dets)

	if err != nil {
		return nil, err
	}

	s.lastFrame = frame.Index
	s.lastTS = frame.Timestamp
	s.frames++

	res := &FrameResult{
		Frame:      frame.Index,
		Timestamp:  frame.Timestamp,
		Detections: len(dets),
		Snapshot:   tr.Snapshot,
		Created:    tr.Created,
		Confirmed:  tr.Confirmed,
		Deleted:    tr.Deleted,
	}

	for _, id := range tr.Created {
		s.log.Debug("track created", "frame", frame.Index, "track_id", id)
	}

	for _, v := range tr.Deleted {
		s.log.Debug("track deleted", "frame", frame.Index, "track_id", v.ID,
			"category", v.Category.String(), "last_seen_frame", v.LastSeenFrame)
	}

	// Step 3: evaluate events
	if s.frames%s.cfg.EvalEvery == 0 {
		res.Events = s.detector.Evaluate(ctx, tr.Snapshot)
		s.lastEvaluated = frame.Index
	}

	add(ctx, s.metrics.frames, 1, s.id)
	add(ctx, s.metrics.tracksCreated, len(tr.Created), s.id)
	add(ctx, s.metrics.tracksDeleted, len(tr.Deleted), s.id)
	add(ctx, s.metrics.events, len(res.Events), s.id)

	return res, nil
}

// Events returns the events detected so far
func (s *Session) Events() []event.Event {
	return s.detector.Timeline().Events()
}

// Snapshot returns the latest trajectory snapshot
func (s *Session) Snapshot() *tracker.Snapshot {
	return s.tracker.Trail().Snapshot()
}

// Cancel stops the session at the next frame boundary.  Frames passed
// afterwards are rejected and a following Finish assembles nothing new
func (s *Session) Cancel() {
	s.cancelled.Store(true)

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stop != nil {
		s.stop()
	}
}

// Finish runs a final event evaluation, selects the highlight segments and
// assembles them.  Highlights that failed downstream are reported in the
// returned error as *clip.HighlightError while the others are returned
func (s *Session) Finish(ctx context.Context) ([]clip.Highlight, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	s.closed = true

	ctx, span := s.metrics.tracer.Start(ctx, "highlight.finish",
		trace.WithAttributes(attribute.String("session_id", s.id)))
	defer span.End()

	if s.cancelled.Load() {
		s.log.Info("session cancelled", "frames", s.frames)
		return s.highlights, nil
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	s.stopMu.Lock()
	s.stop = stop
	s.stopMu.Unlock()

	// Step 1: final evaluation of the frames since the last one
	if s.lastFrame >= 0 && s.lastEvaluated != s.lastFrame {
		evs := s.detector.Evaluate(ctx, s.tracker.Trail().Snapshot())
		add(ctx, s.metrics.events, len(evs), s.id)
	}

	// Step 2: select segments
	events := s.detector.Timeline().Events()
	cands := s.selector.Select(events, s.lastTS)

	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("candidates", len(cands)),
	)

	// Step 3: assemble
	res, err := s.assembler.Assemble(ctx, s.id, cands)

	s.highlights = append(s.highlights, res.Highlights...)

	add(ctx, s.metrics.highlights, len(res.Highlights), s.id)
	add(ctx, s.metrics.errors, len(res.Failed), s.id)

	s.log.Info("session finished",
		"frames", s.frames,
		"events", len(events),
		"highlights", len(res.Highlights),
		"failed", len(res.Failed),
		"discarded", res.Discarded,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "highlight assembly failed")
		return s.highlights, err
	}

	return s.highlights, nil
}
