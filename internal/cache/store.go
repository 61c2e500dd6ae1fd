// Package cache persists per-frame identification results so repeated runs
// skip descriptor extraction and matching.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/database"
)

// Entry is the persisted record for one (video name, frame index) pair.
// A record's FramePath must exist on disk; a record whose frame image is
// missing is cache corruption and is treated as a miss.
type Entry struct {
	VideoName       string    `json:"video_name"`
	FrameIndex      int       `json:"frame_index"`
	SourceName      string    `json:"source_name"`
	TargetName      string    `json:"target_name"`
	Confidence      float64   `json:"confidence_score"`
	GoodMatches     int       `json:"good_matches_count"`
	TargetImagePath string    `json:"target_image_path"`
	FramePath       string    `json:"frame_path"`
	OverlayPath     string    `json:"overlay_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store keeps metadata rows in sqlite and frame/overlay images as files
// under its directory.
type Store struct {
	db  *database.DB
	dir string
	log *logrus.Logger
}

func NewStore(db *database.DB, dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{db: db, dir: dir, log: log}, nil
}

func (s *Store) framePath(video string, idx int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_frame_%06d.jpg", video, idx))
}

func (s *Store) overlayPath(video string, idx int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_frame_%06d_overlay.jpg", video, idx))
}

// Get looks up the entry for (video, idx). ok is false on a miss, which
// includes corrupt entries whose frame image no longer exists.
func (s *Store) Get(ctx context.Context, video string, idx int) (*Entry, bool, error) {
	query := `
		SELECT video_name, frame_index, source_name, target_name, confidence,
		       good_matches, target_image_path, frame_path, overlay_path, created_at
		FROM frame_results
		WHERE video_name = ? AND frame_index = ?`

	e := &Entry{}
	err := s.db.Conn().QueryRowContext(ctx, query, video, idx).Scan(
		&e.VideoName, &e.FrameIndex, &e.SourceName, &e.TargetName, &e.Confidence,
		&e.GoodMatches, &e.TargetImagePath, &e.FramePath, &e.OverlayPath, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query frame result: %w", err)
	}

	if _, err := os.Stat(e.FramePath); err != nil {
		s.log.WithFields(logrus.Fields{
			"video": video,
			"frame": idx,
		}).Debug("cache entry missing frame image, treating as miss")
		return nil, false, nil
	}
	return e, true, nil
}

// Put persists frame (and overlay, when non-empty) as images, then writes
// the metadata row. The image files land first so a present row always
// references an existing frame image. The entry's path fields and
// CreatedAt are filled in.
func (s *Store) Put(ctx context.Context, e *Entry, frame, overlay gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("cache put %s/%d: empty frame", e.VideoName, e.FrameIndex)
	}

	e.FramePath = s.framePath(e.VideoName, e.FrameIndex)
	if ok := gocv.IMWrite(e.FramePath, frame); !ok {
		return fmt.Errorf("cache put %s/%d: write frame image", e.VideoName, e.FrameIndex)
	}

	e.OverlayPath = ""
	if !overlay.Empty() {
		e.OverlayPath = s.overlayPath(e.VideoName, e.FrameIndex)
		if ok := gocv.IMWrite(e.OverlayPath, overlay); !ok {
			// The overlay is an optional artifact; keep the entry usable.
			s.log.WithFields(logrus.Fields{
				"video": e.VideoName,
				"frame": e.FrameIndex,
			}).Warn("failed to write overlay image")
			e.OverlayPath = ""
		}
	}

	e.CreatedAt = time.Now()

	query := `
		INSERT OR REPLACE INTO frame_results (
			video_name, frame_index, source_name, target_name, confidence,
			good_matches, target_image_path, frame_path, overlay_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Conn().ExecContext(ctx, query,
		e.VideoName, e.FrameIndex, e.SourceName, e.TargetName, e.Confidence,
		e.GoodMatches, e.TargetImagePath, e.FramePath, e.OverlayPath, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("cache put %s/%d: %w", e.VideoName, e.FrameIndex, err)
	}
	return nil
}

// ListByVideo returns all cached entries for a video in frame order.
func (s *Store) ListByVideo(ctx context.Context, video string) ([]Entry, error) {
	query := `
		SELECT video_name, frame_index, source_name, target_name, confidence,
		       good_matches, target_image_path, frame_path, overlay_path, created_at
		FROM frame_results
		WHERE video_name = ?
		ORDER BY frame_index`

	rows, err := s.db.Conn().QueryContext(ctx, query, video)
	if err != nil {
		return nil, fmt.Errorf("list frame results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.VideoName, &e.FrameIndex, &e.SourceName, &e.TargetName,
			&e.Confidence, &e.GoodMatches, &e.TargetImagePath, &e.FramePath,
			&e.OverlayPath, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan frame result: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes a video's metadata rows and cached image files.
func (s *Store) Clear(ctx context.Context, video string) error {
	entries, err := s.ListByVideo(ctx, video)
	if err != nil {
		return err
	}
	for _, e := range entries {
		os.Remove(e.FramePath)
		if e.OverlayPath != "" {
			os.Remove(e.OverlayPath)
		}
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`DELETE FROM frame_results WHERE video_name = ?`, video)
	if err != nil {
		return fmt.Errorf("clear cache for %s: %w", video, err)
	}
	return nil
}
