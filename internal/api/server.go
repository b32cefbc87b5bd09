package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"themesync/internal/config"
	"themesync/internal/model"
	"themesync/internal/themesync"
)

// ActorHeader carries the authenticated identity for mutating requests.
const ActorHeader = "X-Actor"

// OperationLog records mutating requests. themesync.Store satisfies it.
type OperationLog interface {
	CreateOperation(ctx context.Context, operation, parameters, actor string) (*model.Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]*model.Operation, error)
}

// Server exposes the sync triggers and the read path over HTTP.
type Server struct {
	*http.Server
	router chi.Router
	svc    *themesync.Service
	ops    OperationLog
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg config.ServerConfig, svc *themesync.Service, ops OperationLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", ActorHeader},
		MaxAge:         300,
	}))

	s := &Server{
		Server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router: r,
		svc:    svc,
		ops:    ops,
		logger: logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/health", s.handleHealth)
		r.Get("/operations", s.handleListOperations)

		r.Get("/active", s.handleActiveTheme)
		r.Get("/active/files/*", s.handleReadActive)

		r.Post("/sync", s.handleSyncAll)
		r.Get("/themes", s.handleListThemes)

		r.Route("/themes/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetTheme)
			r.Post("/sync", s.handleSync)
			r.Get("/check", s.handleCheck)
			r.Get("/drift", s.handleDrift)
			r.Post("/activate", s.handleActivate)
			r.Get("/tree", s.handleTree)
			r.Get("/files/*", s.handleReadFile)
			r.Get("/history/*", s.handleFileHistory)

			r.Get("/versions", s.handleListVersions)
			r.Get("/versions/{versionID}/files", s.handleBatchFiles)
			r.Post("/versions/{versionID}/publish", s.handlePublish)
			r.Post("/versions/{versionID}/preview", s.handlePreview)
		})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
