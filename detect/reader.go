package detect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"github.com/vmihailenco/msgpack/v5"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format is the encoding of a recorded detection stream
type Format int

const (
	// JSONLines is one JSON object per frame separated by newlines
	JSONLines Format = 1
	// Msgpack is a stream of concatenated msgpack encoded frames
	Msgpack Format = 2
)

// FormatFromPath determines the stream format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return JSONLines, nil
	case ".msgpack", ".mp", ".mpk":
		return Msgpack, nil
	}
	return 0, fmt.Errorf("unknown detection stream format for %q", path)
}

// frameRecord is the on disk layout of a Frame
type frameRecord struct {
	Index int `json:"frame" msgpack:"frame"`
	// Timestamp in seconds from session start
	Timestamp  float64     `json:"ts" msgpack:"ts"`
	Width      int         `json:"width,omitempty" msgpack:"width,omitempty"`
	Height     int         `json:"height,omitempty" msgpack:"height,omitempty"`
	Detections []rawRecord `json:"detections" msgpack:"detections"`
}

// rawRecord is the on disk layout of a Raw detection, Box holds the
// left, top, right and bottom edges
type rawRecord struct {
	ClassID    int        `json:"class_id" msgpack:"class_id"`
	Confidence float32    `json:"confidence" msgpack:"confidence"`
	Box        [4]float32 `json:"box" msgpack:"box"`
}

// toFrame converts the record to a Frame
func (r frameRecord) toFrame() (Frame, error) {

	if r.Index < 0 {
		return Frame{}, fmt.Errorf("frame %d: negative frame index", r.Index)
	}

	if math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0) || r.Timestamp < 0 {
		return Frame{}, fmt.Errorf("frame %d: invalid timestamp %v", r.Index, r.Timestamp)
	}

	f := Frame{
		Index:      r.Index,
		Timestamp:  time.Duration(r.Timestamp * float64(time.Second)),
		Width:      r.Width,
		Height:     r.Height,
		Detections: make([]Raw, 0, len(r.Detections)),
	}

	for _, d := range r.Detections {
		f.Detections = append(f.Detections, Raw{
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			Box: BoxRect{
				Left:   d.Box[0],
				Top:    d.Box[1],
				Right:  d.Box[2],
				Bottom: d.Box[3],
			},
		})
	}

	return f, nil
}

// Reader reads recorded frames of detections so a session can be replayed
// offline
type Reader struct {
	decode func(*frameRecord) error
	closer io.Closer
}

// NewReader returns a Reader decoding frames from r
func NewReader(r io.Reader, format Format) (*Reader, error) {

	switch format {
	case JSONLines:
		dec := json.NewDecoder(bufio.NewReader(r))
		return &Reader{decode: func(rec *frameRecord) error { return dec.Decode(rec) }}, nil

	case Msgpack:
		dec := msgpack.NewDecoder(bufio.NewReader(r))
		return &Reader{decode: func(rec *frameRecord) error { return dec.Decode(rec) }}, nil
	}

	return nil, fmt.Errorf("unsupported detection stream format %d", format)
}

// OpenFile opens a recorded detection stream, the format is taken from the
// file extension
func OpenFile(path string) (*Reader, error) {

	format, err := FormatFromPath(path)

	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening detection stream: %w", err)
	}

	r, err := NewReader(f, format)

	if err != nil {
		f.Close()
		return nil, err
	}

	r.closer = f
	return r, nil
}

// Next returns the next frame in the stream.  It returns io.EOF when the
// stream is exhausted
func (r *Reader) Next() (Frame, error) {

	var rec frameRecord

	if err := r.decode(&rec); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("error decoding frame: %w", err)
	}

	return rec.toFrame()
}

// Close releases the underlying file if the Reader was opened with OpenFile
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
