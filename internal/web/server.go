// Package web serves the study UI: home, setup, review and stats panels.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dkempf/kartei/internal/domain"
	"github.com/dkempf/kartei/internal/queue"
	"github.com/dkempf/kartei/internal/session"
	"github.com/dkempf/kartei/internal/srs"
	"github.com/dkempf/kartei/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server. One server drives at
// most one active study session; a mutex serializes the handlers because the
// application model is a single user acting one step at a time.
type Server struct {
	db        *storage.DB
	router    *http.ServeMux
	builder   *queue.Builder
	scheduler *srs.Scheduler
	templates *template.Template
	reposDir  string

	mu      sync.Mutex
	session *session.Session
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, reposDir string) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:        db,
		router:    http.NewServeMux(),
		builder:   queue.New(),
		scheduler: srs.New(),
		templates: tpl,
		reposDir:  reposDir,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		slog.Error("failed to create sub-filesystem for static assets", "error", err)
	} else {
		s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	s.router.HandleFunc("GET /{$}", s.handleHome)
	s.router.HandleFunc("GET /setup", s.handleSetup)
	s.router.HandleFunc("GET /stats", s.handleStats)

	s.router.HandleFunc("POST /settings", s.handleSaveSettings)
	s.router.HandleFunc("POST /subjects/toggle", s.handleToggleSubject)
	s.router.HandleFunc("POST /import", s.handleImport)
	s.router.HandleFunc("POST /sample", s.handleSample)
	s.router.HandleFunc("POST /reset", s.handleReset)
	s.router.HandleFunc("POST /sync", s.handleSync)

	s.router.HandleFunc("GET /review", s.handleReview)
	s.router.HandleFunc("POST /session/start", s.handleStartSession)
	s.router.HandleFunc("POST /session/answer", s.handleAnswer)
	s.router.HandleFunc("POST /session/reveal", s.handleReveal)
	s.router.HandleFunc("POST /session/rate", s.handleRate)
}

// render executes a page template, logging instead of failing the response on
// template errors.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
	}
}

// loadSettings returns the persisted settings reconciled against the current
// card pool, falling back to defaults when never saved.
func (s *Server) loadSettings(r *http.Request, cards []domain.Card) (domain.Settings, error) {
	saved, err := s.db.GetSettings(r.Context())
	if err != nil {
		return domain.Settings{}, err
	}
	settings := domain.DefaultSettings()
	if saved != nil {
		settings = *saved
	}
	settings.Clamp()
	settings.ReconcileSubjects(domain.Subjects(cards))
	return settings, nil
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	slog.Error("store operation failed", "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
