package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/guojun21/banana-slides/internal/api/middleware"
)

// RouterConfig carries the dependencies the router mounts.
type RouterConfig struct {
	TaskHandler *TaskHandler

	// FilesDir is the data root served read-only under /files/.
	FilesDir string
}

// NewRouter builds the HTTP router: the task polling endpoint plus the
// static file tree for generated artifacts.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks/{id}", cfg.TaskHandler.GetTask)
	})

	if cfg.FilesDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	return r
}
