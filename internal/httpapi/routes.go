package httpapi

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

//go:embed static
var staticFiles embed.FS

// Router returns the handler for every collaborator path.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", h.Health)
	r.Post("/login", h.Login)

	static, _ := fs.Sub(staticFiles, "static")
	r.Get("/admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently).ServeHTTP)
	r.Handle("/admin/*", http.StripPrefix("/admin/", http.FileServerFS(static)))

	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Post("/teller/uploadCallImage", h.UploadCallImage)
		r.Get("/*", h.DownloadResource)
	})

	return r
}
