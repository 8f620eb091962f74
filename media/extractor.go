// Package media cuts highlight clips and thumbnails out of a session video
// with GoCV
package media

import (
	"context"
	"errors"
	"fmt"
	"github.com/h2non/filetype"
	"github.com/swdee/go-highlight/clip"
	"github.com/swdee/go-highlight/render"
	"gocv.io/x/gocv"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrNotVideo is returned when the source file is not a recognised video
// container
var ErrNotVideo = errors.New("source is not a video file")

// headerSize is the number of bytes filetype needs to identify a container
const headerSize = 262

// Extractor implements clip.MediaExtractor over a video file
type Extractor struct {
	source string
	outDir string
	// Codec is the fourcc of written clips
	Codec string
	// Caption style of the title stamped on thumbnails
	Caption render.CaptionStyle
}

// NewExtractor returns an extractor cutting clips from the video at source
// into outDir
func NewExtractor(source, outDir string) (*Extractor, error) {

	if err := CheckVideo(source); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	return &Extractor{
		source:  source,
		outDir:  outDir,
		Codec:   "mp4v",
		Caption: render.DefaultCaptionStyle(),
	}, nil
}

// CheckVideo returns ErrNotVideo unless the file header matches a video
// container
func CheckVideo(path string) error {

	f, err := os.Open(path)

	if err != nil {
		return fmt.Errorf("error opening video: %w", err)
	}

	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)

	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("error reading video header: %w", err)
	}

	if !filetype.IsVideo(head[:n]) {
		return fmt.Errorf("%w: %s", ErrNotVideo, path)
	}

	return nil
}

// Extract writes the frames between the request start and end to a clip
// file and the frame at the peak, captioned with the title, to a jpeg
func (e *Extractor) Extract(ctx context.Context, req clip.ClipRequest) (clip.ClipRef, clip.ThumbnailRef, error) {

	// a capture per call so extractions may run concurrently
	video, err := gocv.VideoCaptureFile(e.source)

	if err != nil {
		return clip.ClipRef{}, clip.ThumbnailRef{}, fmt.Errorf("error opening video: %w", err)
	}

	defer video.Close()

	fps := video.Get(gocv.VideoCaptureFPS)
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))

	if fps <= 0 {
		fps = 30
	}

	video.Set(gocv.VideoCapturePosMsec, float64(req.Start.Milliseconds()))

	name := fmt.Sprintf("%s-%s", req.SessionID, req.HighlightID)
	clipPath := filepath.Join(e.outDir, name+".mp4")
	thumbPath := filepath.Join(e.outDir, name+".jpg")

	writer, err := gocv.VideoWriterFile(clipPath, e.Codec, fps, width, height, true)

	if err != nil {
		return clip.ClipRef{}, clip.ThumbnailRef{}, fmt.Errorf("error creating clip writer: %w", err)
	}

	defer writer.Close()

	img := gocv.NewMat()
	defer img.Close()

	thumb := gocv.NewMat()
	defer thumb.Close()

	frames := 0
	thumbAt := time.Duration(-1)

	for {

		if frames%30 == 0 {
			if err := ctx.Err(); err != nil {
				return clip.ClipRef{}, clip.ThumbnailRef{}, err
			}
		}

		pos := time.Duration(video.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))

		if pos >= req.End {
			break
		}

		if ok := video.Read(&img); !ok {
			// reached last video frame
			break
		}

		if img.Empty() {
			continue
		}

		if err := writer.Write(img); err != nil {
			return clip.ClipRef{}, clip.ThumbnailRef{}, fmt.Errorf("error writing clip frame: %w", err)
		}

		frames++

		if thumbAt < 0 && pos >= req.Peak {
			img.CopyTo(&thumb)
			thumbAt = pos
		}
	}

	if frames == 0 {
		return clip.ClipRef{}, clip.ThumbnailRef{}, fmt.Errorf("no frames between %v and %v", req.Start, req.End)
	}

	ref := clip.ClipRef{
		URI:      clipPath,
		Duration: time.Duration(float64(frames) / fps * float64(time.Second)),
	}

	// peak after the last readable frame, use the last frame
	if thumbAt < 0 {
		img.CopyTo(&thumb)
		thumbAt = req.End
	}

	if thumb.Empty() {
		return ref, clip.ThumbnailRef{}, nil
	}

	if err := render.CaptionMat(&thumb, req.Title, e.Caption); err != nil {
		return ref, clip.ThumbnailRef{}, err
	}

	if ok := gocv.IMWrite(thumbPath, thumb); !ok {
		return ref, clip.ThumbnailRef{}, fmt.Errorf("error writing thumbnail %s", thumbPath)
	}

	return ref, clip.ThumbnailRef{URI: thumbPath, At: thumbAt}, nil
}
