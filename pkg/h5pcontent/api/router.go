package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// NewRouter mounts every handler of the service on one router.
func NewRouter(service h5pcontent.Service, logger *slog.Logger) chi.Router {
	contents := NewContentHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/libraries", NewLibraryHandler(service, logger).Routes())
	r.Mount("/contents", contents.Routes())
	r.Mount("/editor", contents.EditorRoutes())
	r.Mount("/temp-files", NewFilesHandler(service, logger).Routes())
	return r
}
