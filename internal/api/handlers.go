package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/bookreel/bookreel/internal/cache"
	"github.com/bookreel/bookreel/internal/database"
	"github.com/bookreel/bookreel/internal/identify"
	"github.com/bookreel/bookreel/internal/models"
	"github.com/bookreel/bookreel/internal/replace"
	"github.com/bookreel/bookreel/internal/storage"
)

// App wires the HTTP surface to the pipeline. ReplaceFn and ScanFn run the
// actual work so handlers stay testable without OpenCV.
type App struct {
	Log           *logrus.Logger
	Storage       storage.Storage
	VideoRepo     *database.VideoRepository
	Cache         *cache.Store
	OutputDir     string
	MaxUploadSize int64

	ReplaceFn func(videoPath, outputPath string) *replace.Result
	ScanFn    func(ctx context.Context, videoPath string) ([]identify.MatchResult, error)

	runs *runRegistry
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Log.WithError(err).Error("encode response")
	}
}

func (app *App) writeError(w http.ResponseWriter, status int, msg string) {
	app.writeJSON(w, status, map[string]string{"error": msg})
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	// Multipart parts usually arrive as application/octet-stream, so the
	// extension is the real gate for anything not declared as video.
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		if strings.ToLower(filepath.Ext(header.Filename)) != ".mp4" {
			app.writeError(w, http.StatusBadRequest, "only MP4 video files are allowed")
			return
		}
		contentType = "video/mp4"
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	video := models.NewVideo(title, filename, contentType, header.Size)
	if err := app.VideoRepo.InsertVideo(video); err != nil {
		app.Storage.DeleteFile(filename)
		app.writeError(w, http.StatusInternalServerError, "failed to save video information")
		return
	}

	app.writeJSON(w, http.StatusCreated, video)
}

func (app *App) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := app.VideoRepo.ListVideos()
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	app.writeJSON(w, http.StatusOK, videos)
}

// StartReplaceHandler kicks off a replacement run for an uploaded video
// and returns the run id immediately.
func (app *App) StartReplaceHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	video, err := app.VideoRepo.GetVideoByID(videoID)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	run := app.runs.start(videoID, "replace")

	videoPath := app.Storage.FilePath(video.Filename)
	outputPath := filepath.Join(app.OutputDir,
		strings.TrimSuffix(video.Filename, filepath.Ext(video.Filename))+"_replaced.mp4")

	go func() {
		app.Log.WithFields(logrus.Fields{"run": run.ID, "video": videoID}).Info("replacement run started")
		result := app.ReplaceFn(videoPath, outputPath)
		app.runs.complete(run.ID, result, nil)
	}()

	app.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID})
}

// StartScanHandler kicks off a keyframe scan run for an uploaded video.
func (app *App) StartScanHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	video, err := app.VideoRepo.GetVideoByID(videoID)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	run := app.runs.start(videoID, "scan")
	videoPath := app.Storage.FilePath(video.Filename)

	go func() {
		app.Log.WithFields(logrus.Fields{"run": run.ID, "video": videoID}).Info("scan run started")
		frames, err := app.ScanFn(context.Background(), videoPath)
		if err != nil {
			app.runs.fail(run.ID, err)
			return
		}
		app.runs.complete(run.ID, nil, frames)
	}()

	app.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID})
}

func (app *App) RunStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, ok := app.runs.get(runID)
	if !ok {
		app.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	app.writeJSON(w, http.StatusOK, run)
}

// FrameResultsHandler lists a video's cached per-frame results.
func (app *App) FrameResultsHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	video, err := app.VideoRepo.GetVideoByID(videoID)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	videoName := strings.TrimSuffix(video.Filename, filepath.Ext(video.Filename))
	entries, err := app.Cache.ListByVideo(r.Context(), videoName)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to list frame results")
		return
	}
	app.writeJSON(w, http.StatusOK, entries)
}
