package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/docmine-api/internal/api"
	apiMiddleware "github.com/phrazzld/docmine-api/internal/api/middleware"
)

const bytesPerMB = 1 << 20

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)

	docs := api.NewDocumentHandler(app.documents, int64(app.config.Server.MaxUploadMB)*bytesPerMB, app.logger)
	health := api.NewHealthHandler(app.registry, app.runner)

	r.Route("/upload", func(r chi.Router) {
		r.Post("/sync", docs.UploadSync)
		r.Post("/async", docs.UploadAsync)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", docs.ListTasks)
		r.Get("/{id}", docs.GetTask)
		r.Delete("/{id}", docs.DeleteTask)
	})

	r.Route("/download/{id}", func(r chi.Router) {
		r.Get("/", docs.DownloadResult)
		r.Get("/zip", docs.DownloadArchive)
	})

	r.Get("/health", health.Health)

	return r
}
