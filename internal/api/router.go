package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	app.runs = newRunRegistry()

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/videos", func(r chi.Router) {
		r.Post("/", app.UploadHandler)
		r.Get("/", app.ListVideosHandler)
		r.Post("/{id}/replace", app.StartReplaceHandler)
		r.Post("/{id}/scan", app.StartScanHandler)
		r.Get("/{id}/frames", app.FrameResultsHandler)
	})

	r.Get("/runs/{runID}", app.RunStatusHandler)

	return r
}
