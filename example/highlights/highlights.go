package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/swdee/go-highlight"
	"github.com/swdee/go-highlight/clip"
	"github.com/swdee/go-highlight/detect"
	"github.com/swdee/go-highlight/media"
	"github.com/swdee/go-highlight/render"
	"github.com/swdee/go-highlight/store"
	"gocv.io/x/gocv"
	"golang.org/x/time/rate"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	detFiles := flag.String("d", "../data/match.jsonl", "Comma separated detection stream files (.jsonl or .msgpack), one per match")
	configFile := flag.String("c", "", "TOML config file, defaults are used when empty")
	videoFile := flag.String("v", "", "Match video to cut highlight clips from, only used with a single detection file")
	outDir := flag.String("o", "../data/highlights", "Output directory for clips and thumbnails")
	dbFile := flag.String("db", "", "SQLite database file to persist highlights in")
	annotate := flag.String("a", "", "Write an annotated copy of the match video with tracks to this file")
	poolSize := flag.Int("s", 2, "Number of matches to process at once")
	extractRate := flag.Float64("r", 2, "Maximum clip extractions per second, 0 for unlimited")
	verbose := flag.Bool("verbose", false, "Log track and event debug output")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := highlight.DefaultConfig(640, 480)

	if *configFile != "" {
		var err error
		cfg, err = highlight.LoadConfig(*configFile)

		if err != nil {
			log.Fatal("Error loading config: ", err)
		}
	}

	opts := highlight.Options{Logger: logger}

	if *dbFile != "" {
		db, err := store.Open(*dbFile)

		if err != nil {
			log.Fatal("Error opening database: ", err)
		}

		defer db.Close()
		opts.Writer = db
	}

	files := strings.Split(*detFiles, ",")

	if *videoFile != "" {
		if len(files) > 1 {
			log.Fatal("A video can only be given with a single detection file")
		}

		ext, err := media.NewExtractor(*videoFile, *outDir)

		if err != nil {
			log.Fatal("Error opening video: ", err)
		}

		var limiter *rate.Limiter
		if *extractRate > 0 {
			limiter = rate.NewLimiter(rate.Limit(*extractRate), 1)
		}

		opts.Media = clip.RateLimit(ext, limiter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()

	if *annotate != "" {
		if *videoFile == "" {
			log.Fatal("Annotating requires a video file")
		}

		highlights, err := annotateMatch(ctx, files[0], *videoFile, *annotate, cfg, opts)

		if err != nil {
			log.Printf("Error processing match: %v", err)
		}

		printHighlights(matchID(files[0]), highlights)
		log.Printf("Processed in %s", time.Since(start))
		return
	}

	runner, err := highlight.NewRunner(*poolSize, cfg, opts)

	if err != nil {
		log.Fatal("Error creating runner: ", err)
	}

	defer runner.Close()

	jobs := make([]highlight.Job, 0, len(files))

	for _, file := range files {
		rd, err := detect.OpenFile(file)

		if err != nil {
			log.Fatal("Error opening detections: ", err)
		}

		defer rd.Close()

		jobs = append(jobs, highlight.Job{
			SessionID: matchID(file),
			Frames:    rd,
		})
	}

	for _, out := range runner.RunAll(ctx, jobs) {
		if out.Err != nil {
			log.Printf("Match %s had errors: %v", out.SessionID, out.Err)
		}

		printHighlights(out.SessionID, out.Highlights)
	}

	log.Printf("Processed %d matches in %s", len(jobs), time.Since(start))
}

// annotateMatch runs a single match while drawing the tracks of each frame
// onto the matching video frame
func annotateMatch(ctx context.Context, detFile, videoFile, outFile string,
	cfg highlight.Config, opts highlight.Options) ([]clip.Highlight, error) {

	rd, err := detect.OpenFile(detFile)

	if err != nil {
		return nil, err
	}

	defer rd.Close()

	video, err := gocv.VideoCaptureFile(videoFile)

	if err != nil {
		return nil, fmt.Errorf("error opening video: %w", err)
	}

	defer video.Close()

	fps := video.Get(gocv.VideoCaptureFPS)
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))

	writer, err := gocv.VideoWriterFile(outFile, "mp4v", fps, width, height, true)

	if err != nil {
		return nil, fmt.Errorf("error creating annotated video: %w", err)
	}

	defer writer.Close()

	sess, err := highlight.NewSession(matchID(detFile), cfg, opts)

	if err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()

	labels := render.DefaultLabelStyle()
	trail := render.DefaultTrailStyle()

	for {
		if ctx.Err() != nil {
			sess.Cancel()
			break
		}

		frame, err := rd.Next()

		if errors.Is(err, io.EOF) {
			break
		}

		// keep the highlights of the frames read before a corrupt record
		if err != nil {
			highlights, finishErr := sess.Finish(ctx)
			return highlights, errors.Join(err, finishErr)
		}

		res, err := sess.ProcessFrame(ctx, frame)

		if err != nil {
			sess.Cancel()
			return nil, err
		}

		for _, ev := range res.Events {
			log.Printf("Frame %d: %s at %s, confidence %.2f", frame.Index,
				ev.Category, ev.Timestamp, ev.Confidence)
		}

		// detection streams are recorded one entry per video frame
		if ok := video.Read(&img); !ok || img.Empty() {
			continue
		}

		render.Trail(&img, res.Snapshot, trail)
		render.TrackBoxes(&img, res.Snapshot, labels, 2)

		if err := writer.Write(img); err != nil {
			return nil, fmt.Errorf("error writing annotated frame: %w", err)
		}
	}

	return sess.Finish(ctx)
}

// matchID names a session after its detection file
func matchID(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printHighlights(sessionID string, highlights []clip.Highlight) {

	log.Printf("Match %s: %d highlights", sessionID, len(highlights))

	for _, h := range highlights {
		log.Printf("  %s [%s - %s] score %.2f tags %s",
			h.Title, h.Start, h.End, h.Score, strings.Join(h.Tags, ","))

		if h.Clip.URI != "" {
			log.Printf("    clip %s thumbnail %s", h.Clip.URI, h.Thumbnail.URI)
		}
	}
}
