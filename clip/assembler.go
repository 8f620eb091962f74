package clip

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/swdee/go-highlight/event"
	"github.com/swdee/go-highlight/segment"
	"log/slog"
	"sort"
	"time"
)

// Result is the outcome of assembling a set of candidates
type Result struct {
	// Highlights that were extracted and written
	Highlights []Highlight
	// Failed highlights with the operation that failed
	Failed []*HighlightError
	// Discarded is the number of candidates not started due to cancellation
	Discarded int
}

// Assembler turns selected segments into highlights, has the media layer
// cut them and persists the result
type Assembler struct {
	media  MediaExtractor
	writer Writer
	log    *slog.Logger
	// now is replaced in tests
	now func() time.Time
}

// NewAssembler returns an assembler.  media and writer may be nil in which
// case that step is skipped
func NewAssembler(media MediaExtractor, writer Writer, logger *slog.Logger) *Assembler {

	if logger == nil {
		logger = slog.Default()
	}

	return &Assembler{
		media:  media,
		writer: writer,
		log:    logger,
		now:    time.Now,
	}
}

// Build creates the highlight for a candidate without any media
func Build(sessionID string, c segment.Candidate) Highlight {

	peakCat := event.Other
	best := -1.0
	ids := make([]int64, 0, len(c.Events))

	for _, e := range c.Events {
		ids = append(ids, e.ID)
		if e.Timestamp == c.Peak && e.Confidence > best {
			best = e.Confidence
			peakCat = e.Category
		}
	}

	seen := make(map[string]struct{})
	var tags []string

	for _, cat := range c.Categories {
		seen[cat.String()] = struct{}{}
	}
	for _, e := range c.Events {
		seen[e.Category.String()] = struct{}{}
	}
	if c.Score > ExcitingScore {
		seen[TagExciting] = struct{}{}
	}

	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return Highlight{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Start:       c.Start,
		End:         c.End,
		Duration:    c.Duration(),
		Tags:        tags,
		Score:       c.Score,
		PeakTS:      c.Peak,
		Title:       Title(peakCat, c.Peak),
		Description: Description(peakCat),
		EventIDs:    ids,
	}
}

// Assemble builds, extracts and writes a highlight for every candidate in
// order.  A failure of one highlight does not stop the others, all failures
// are returned joined.  When ctx is cancelled the candidates not yet started
// are discarded and the completed highlights are returned
func (a *Assembler) Assemble(ctx context.Context, sessionID string,
	cands []segment.Candidate) (Result, error) {

	var res Result
	var errs []error

	for i, c := range cands {

		if err := ctx.Err(); err != nil {
			res.Discarded = len(cands) - i
			a.log.Info("highlight assembly cancelled",
				"session_id", sessionID,
				"discarded", res.Discarded,
			)
			errs = append(errs, err)
			break
		}

		h := Build(sessionID, c)

		if err := a.assemble(ctx, &h, c.Events); err != nil {
			a.log.Error("highlight failed",
				"session_id", sessionID,
				"highlight_id", h.ID.String(),
				"op", err.Op,
				"error", err.Err,
			)
			res.Failed = append(res.Failed, err)
			errs = append(errs, err)
			continue
		}

		a.log.Info("highlight created",
			"session_id", sessionID,
			"highlight_id", h.ID.String(),
			"title", h.Title,
			"start", h.Start,
			"end", h.End,
			"score", h.Score,
		)

		res.Highlights = append(res.Highlights, h)
	}

	return res, errors.Join(errs...)
}

// assemble runs the media and persistence steps for one highlight
func (a *Assembler) assemble(ctx context.Context, h *Highlight, events []event.Event) *HighlightError {

	if a.media != nil {

		clipRef, thumb, err := a.media.Extract(ctx, ClipRequest{
			HighlightID: h.ID,
			SessionID:   h.SessionID,
			Start:       h.Start,
			End:         h.End,
			Peak:        h.PeakTS,
			Title:       h.Title,
		})

		if err != nil {
			return &HighlightError{Highlight: *h, Op: "extract", Err: err}
		}

		h.Clip = clipRef
		h.Thumbnail = thumb
	}

	if a.writer != nil {

		rec := Record{
			Highlight: *h,
			Events:    append([]event.Event(nil), events...),
			CreatedAt: a.now(),
		}

		if err := a.writer.Write(ctx, rec); err != nil {
			return &HighlightError{Highlight: *h, Op: "write", Err: err}
		}
	}

	return nil
}
