package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/swdee/go-highlight/clip"
	"github.com/swdee/go-highlight/event"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite persists highlight records in a sqlite database.  It implements
// clip.Writer
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings its schema up to
// date
func Open(path string) (*SQLite, error) {

	// pragmas in the dsn apply to every pooled connection
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)

	if err != nil {
		return nil, fmt.Errorf("error opening highlight database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening highlight database: %w", err)
	}

	s := &SQLite{db: db}

	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// MigrateUp runs all pending migrations
func (s *SQLite) MigrateUp() error {

	m, err := s.newMigrate()

	if err != nil {
		return err
	}

	// m is not closed as that would close the shared connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// MigrateVersion returns the current schema version and dirty state
func (s *SQLite) MigrateVersion() (uint, bool, error) {

	m, err := s.newMigrate()

	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()

	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

// newMigrate creates a migrate instance reading the embedded migrations
func (s *SQLite) newMigrate() (*migrate.Migrate, error) {

	src, err := iofs.New(migrations, "migrations")

	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})

	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)

	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{}

	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Write inserts the record or replaces the stored copy of the same
// highlight, so writing a record twice is harmless
func (s *SQLite) Write(ctx context.Context, rec clip.Record) error {

	h := rec.Highlight

	tx, err := s.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO highlights (
			highlight_id, session_id, start_ms, end_ms, duration_ms, score,
			peak_ms, title, description, tags, clip_uri, clip_duration_ms,
			thumbnail_uri, thumbnail_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (highlight_id) DO UPDATE SET
			session_id = excluded.session_id,
			start_ms = excluded.start_ms,
			end_ms = excluded.end_ms,
			duration_ms = excluded.duration_ms,
			score = excluded.score,
			peak_ms = excluded.peak_ms,
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			clip_uri = excluded.clip_uri,
			clip_duration_ms = excluded.clip_duration_ms,
			thumbnail_uri = excluded.thumbnail_uri,
			thumbnail_ms = excluded.thumbnail_ms,
			created_at = excluded.created_at`,
		h.ID.String(), h.SessionID,
		h.Start.Milliseconds(), h.End.Milliseconds(), h.Duration.Milliseconds(),
		h.Score, h.PeakTS.Milliseconds(), h.Title, h.Description,
		strings.Join(h.Tags, ","),
		h.Clip.URI, h.Clip.Duration.Milliseconds(),
		h.Thumbnail.URI, h.Thumbnail.At.Milliseconds(),
		rec.CreatedAt.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("error writing highlight %s: %w", h.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM highlight_events WHERE highlight_id = ?`,
		h.ID.String()); err != nil {
		return fmt.Errorf("error clearing events of highlight %s: %w", h.ID, err)
	}

	for _, e := range rec.Events {

		_, err := tx.ExecContext(ctx, `
			INSERT INTO highlight_events (
				highlight_id, event_id, category, ts_ms, confidence, track_ids
			) VALUES (?, ?, ?, ?, ?, ?)`,
			h.ID.String(), e.ID, e.Category.String(), e.Timestamp.Milliseconds(),
			e.Confidence, joinInts(e.TrackIDs),
		)

		if err != nil {
			return fmt.Errorf("error writing event %d of highlight %s: %w", e.ID, h.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing highlight %s: %w", h.ID, err)
	}

	return nil
}

// ListBySession returns the records of a session ordered by start time
func (s *SQLite) ListBySession(ctx context.Context, sessionID string) ([]clip.Record, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT highlight_id, session_id, start_ms, end_ms, duration_ms, score,
			peak_ms, title, description, tags, clip_uri, clip_duration_ms,
			thumbnail_uri, thumbnail_ms, created_at
		FROM highlights
		WHERE session_id = ?
		ORDER BY start_ms, highlight_id`, sessionID)

	if err != nil {
		return nil, fmt.Errorf("error listing highlights: %w", err)
	}

	defer rows.Close()

	var recs []clip.Record

	for rows.Next() {

		var (
			id, tags                                   string
			startMs, endMs, durMs, peakMs, clipMs, thMs int64
			createdMs                                  int64
			rec                                        clip.Record
		)

		h := &rec.Highlight

		err := rows.Scan(&id, &h.SessionID, &startMs, &endMs, &durMs, &h.Score,
			&peakMs, &h.Title, &h.Description, &tags, &h.Clip.URI, &clipMs,
			&h.Thumbnail.URI, &thMs, &createdMs)

		if err != nil {
			return nil, fmt.Errorf("error scanning highlight: %w", err)
		}

		if h.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid highlight id %q: %w", id, err)
		}

		h.Start = time.Duration(startMs) * time.Millisecond
		h.End = time.Duration(endMs) * time.Millisecond
		h.Duration = time.Duration(durMs) * time.Millisecond
		h.PeakTS = time.Duration(peakMs) * time.Millisecond
		h.Clip.Duration = time.Duration(clipMs) * time.Millisecond
		h.Thumbnail.At = time.Duration(thMs) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdMs)

		if tags != "" {
			h.Tags = strings.Split(tags, ",")
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing highlights: %w", err)
	}

	for i := range recs {
		if err := s.loadEvents(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}

	return recs, nil
}

// loadEvents fills in the events and event ids of a record
func (s *SQLite) loadEvents(ctx context.Context, rec *clip.Record) error {

	h := &rec.Highlight

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, category, ts_ms, confidence, track_ids
		FROM highlight_events
		WHERE highlight_id = ?
		ORDER BY ts_ms, event_id`, h.ID.String())

	if err != nil {
		return fmt.Errorf("error listing events of highlight %s: %w", h.ID, err)
	}

	defer rows.Close()

	for rows.Next() {

		var (
			e           event.Event
			cat, tracks string
			tsMs        int64
		)

		if err := rows.Scan(&e.ID, &cat, &tsMs, &e.Confidence, &tracks); err != nil {
			return fmt.Errorf("error scanning event: %w", err)
		}

		if e.Category, err = event.ParseCategory(cat); err != nil {
			return err
		}

		if e.TrackIDs, err = splitInts(tracks); err != nil {
			return fmt.Errorf("invalid track ids of event %d: %w", e.ID, err)
		}

		e.Timestamp = time.Duration(tsMs) * time.Millisecond

		rec.Events = append(rec.Events, e)
		h.EventIDs = append(h.EventIDs, e.ID)
	}

	return rows.Err()
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {

	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int, len(parts))

	for i, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	return ids, nil
}
