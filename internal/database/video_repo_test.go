package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bookreel/bookreel/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVideoRepositoryRoundTrip(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))

	video := models.NewVideo("Dune", "abc.mp4", "video/mp4", 1024)
	if err := repo.InsertVideo(video); err != nil {
		t.Fatalf("InsertVideo: %v", err)
	}

	got, err := repo.GetVideoByID(video.ID)
	if err != nil {
		t.Fatalf("GetVideoByID: %v", err)
	}
	if got.Title != "Dune" || got.Filename != "abc.mp4" || got.Size != 1024 {
		t.Errorf("GetVideoByID returned %+v", got)
	}
}

func TestVideoRepositoryGetMissing(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))

	if _, err := repo.GetVideoByID("no-such-id"); err == nil {
		t.Fatal("GetVideoByID succeeded for a missing id")
	}
}

func TestVideoRepositoryListNewestFirst(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))

	older := models.NewVideo("Older", "a.mp4", "video/mp4", 1)
	older.UploadTime = time.Now().Add(-time.Hour)
	newer := models.NewVideo("Newer", "b.mp4", "video/mp4", 2)

	for _, v := range []*models.Video{older, newer} {
		if err := repo.InsertVideo(v); err != nil {
			t.Fatalf("InsertVideo: %v", err)
		}
	}

	videos, err := repo.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("listed %d videos, want 2", len(videos))
	}
	if videos[0].Title != "Newer" {
		t.Errorf("first listed video is %q, want the newest", videos[0].Title)
	}
}

func TestVideoRepositoryDelete(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))

	video := models.NewVideo("Dune", "abc.mp4", "video/mp4", 1024)
	if err := repo.InsertVideo(video); err != nil {
		t.Fatalf("InsertVideo: %v", err)
	}
	if err := repo.DeleteVideo(video.ID); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if _, err := repo.GetVideoByID(video.ID); err == nil {
		t.Fatal("deleted video still retrievable")
	}
}
