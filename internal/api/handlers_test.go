package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookreel/bookreel/internal/cache"
	"github.com/bookreel/bookreel/internal/database"
	"github.com/bookreel/bookreel/internal/identify"
	"github.com/bookreel/bookreel/internal/models"
	"github.com/bookreel/bookreel/internal/replace"
	"github.com/bookreel/bookreel/internal/storage"
)

func newTestApp(t *testing.T) (*App, http.Handler) {
	t.Helper()
	dir := t.TempDir()

	log := logrus.New()
	log.SetOutput(io.Discard)

	ls, err := storage.NewLocalStorage(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	db, err := database.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := cache.NewStore(db, filepath.Join(dir, "frames"), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	app := &App{
		Log:           log,
		Storage:       ls,
		VideoRepo:     database.NewVideoRepository(db),
		Cache:         store,
		OutputDir:     filepath.Join(dir, "output"),
		MaxUploadSize: 10 << 20,
		ReplaceFn: func(videoPath, outputPath string) *replace.Result {
			return &replace.Result{Success: true, TargetBook: "dune", ReplacedFrames: 79, TotalFrames: 100}
		},
		ScanFn: func(ctx context.Context, videoPath string) ([]identify.MatchResult, error) {
			return []identify.MatchResult{{SourceName: "frame_0", TargetName: "dune"}}, nil
		},
	}
	return app, NewRouter(app)
}

func uploadVideo(t *testing.T, router http.Handler, title string) models.Video {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if title != "" {
		mw.WriteField("title", title)
	}
	fw, err := mw.CreateFormFile("video", "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("fake video bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var video models.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &video); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return video
}

func waitForRun(t *testing.T, router http.Handler, runID string) Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("run status = %d", rec.Code)
		}

		var run Run
		if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.Status != RunRunning {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatal("run did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPing(t *testing.T) {
	_, router := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Errorf("ping returned %d %q", rec.Code, rec.Body.String())
	}
}

func TestUploadAndList(t *testing.T) {
	app, router := newTestApp(t)

	video := uploadVideo(t, router, "My Clip")
	if video.ID == "" {
		t.Fatal("uploaded video has no id")
	}
	if video.Title != "My Clip" {
		t.Errorf("title = %q, want %q", video.Title, "My Clip")
	}

	stored, err := app.VideoRepo.GetVideoByID(video.ID)
	if err != nil {
		t.Fatalf("uploaded video not in repository: %v", err)
	}
	if _, err := app.Storage.OpenFile(stored.Filename); err != nil {
		t.Fatalf("uploaded file not in storage: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var videos []models.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != video.ID {
		t.Errorf("listed %d videos", len(videos))
	}
}

func TestUploadTitleDefaultsToFilename(t *testing.T) {
	_, router := newTestApp(t)

	video := uploadVideo(t, router, "")
	if video.Title != "clip" {
		t.Errorf("title = %q, want the filename stem %q", video.Title, "clip")
	}
}

func TestUploadRejectsNonVideo(t *testing.T) {
	_, router := newTestApp(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("video", "document.pdf")
	fw.Write([]byte("%PDF"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("upload of a PDF returned %d, want 400", rec.Code)
	}
}

func TestStartReplaceUnknownVideo(t *testing.T) {
	_, router := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/videos/no-such-id/replace", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("replace of unknown video returned %d, want 404", rec.Code)
	}
}

func TestReplaceRunLifecycle(t *testing.T) {
	_, router := newTestApp(t)
	video := uploadVideo(t, router, "")

	req := httptest.NewRequest(http.MethodPost, "/videos/"+video.ID+"/replace", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start replace status = %d", rec.Code)
	}

	var started map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	run := waitForRun(t, router, started["run_id"])
	if run.Status != RunComplete {
		t.Fatalf("run status = %q, error %q", run.Status, run.Error)
	}
	if run.Result == nil || run.Result.ReplacedFrames != 79 {
		t.Errorf("run result = %+v", run.Result)
	}
}

func TestReplaceRunFailureSurfaces(t *testing.T) {
	app, router := newTestApp(t)
	app.ReplaceFn = func(videoPath, outputPath string) *replace.Result {
		return &replace.Result{Success: false, TargetBook: "error", ErrorMessage: "no book detected above confidence threshold"}
	}
	video := uploadVideo(t, router, "")

	req := httptest.NewRequest(http.MethodPost, "/videos/"+video.ID+"/replace", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start replace status = %d", rec.Code)
	}

	var started map[string]string
	json.Unmarshal(rec.Body.Bytes(), &started)

	run := waitForRun(t, router, started["run_id"])
	if run.Status != RunFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
	if run.Error == "" {
		t.Error("failed run carries no error message")
	}
}

func TestScanRunLifecycle(t *testing.T) {
	_, router := newTestApp(t)
	video := uploadVideo(t, router, "")

	req := httptest.NewRequest(http.MethodPost, "/videos/"+video.ID+"/scan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start scan status = %d", rec.Code)
	}

	var started map[string]string
	json.Unmarshal(rec.Body.Bytes(), &started)

	run := waitForRun(t, router, started["run_id"])
	if run.Status != RunComplete {
		t.Fatalf("run status = %q, error %q", run.Status, run.Error)
	}
	if len(run.Frames) != 1 || run.Frames[0].TargetName != "dune" {
		t.Errorf("run frames = %+v", run.Frames)
	}
}

func TestRunStatusUnknownRun(t *testing.T) {
	_, router := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown run returned %d, want 404", rec.Code)
	}
}

func TestFrameResultsEmpty(t *testing.T) {
	_, router := newTestApp(t)
	video := uploadVideo(t, router, "")

	req := httptest.NewRequest(http.MethodGet, "/videos/"+video.ID+"/frames", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("frame results returned %d, want 200", rec.Code)
	}
}
