// Package worker provides the HTTP service of devdeck.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/devdeck/internal/assistant"
	"github.com/thebtf/devdeck/internal/config"
	"github.com/thebtf/devdeck/internal/db/gorm"
	"github.com/thebtf/devdeck/internal/metrics"
	"github.com/thebtf/devdeck/internal/terminal"
	"github.com/thebtf/devdeck/internal/worker/realtime"
)

// Service is the devdeck HTTP worker.
type Service struct {
	startTime     time.Time
	config        *config.Config
	store         *gorm.Store
	projectStore  *gorm.ProjectStore
	terminalStore *gorm.TerminalStore
	logStore      *gorm.LogStore
	terminals     *terminal.Service
	assistant     *assistant.Assistant
	broadcaster   *realtime.Broadcaster
	router        chi.Router
	server        *http.Server
	version       string
	ready         atomic.Bool
}

// NewService opens the database and wires all components.
func NewService(version string, cfg *config.Config) (*Service, error) {
	gormLevel := logger.Silent
	if strings.EqualFold(cfg.LogLevel, "debug") {
		gormLevel = logger.Info
	}

	store, err := gorm.NewStore(gorm.Config{
		Path:        cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.MaxConns,
		LogLevel:    gormLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	inst, err := metrics.Default()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	runner := terminal.NewRunner(terminal.RunnerConfig{
		WorkDir:        cfg.TerminalWorkdir,
		Timeout:        cfg.TerminalTimeout(),
		MaxOutputBytes: cfg.MaxOutputBytes,
		MaxConcurrent:  cfg.MaxConcurrentCommands,
		StripANSI:      cfg.StripANSI,
	}, inst)

	return newService(version, cfg, store, runner, gen, inst), nil
}

// newGenerator returns the model client, or nil when no API key is set.
func newGenerator(cfg *config.Config) (assistant.Generator, error) {
	if cfg.GenaiAPIKey == "" {
		log.Info().Msg("No GenAI API key configured, AI endpoints are disabled")
		return nil, nil
	}
	gen, err := assistant.NewGenAIGenerator(context.Background(), cfg.GenaiAPIKey, cfg.GenaiModel)
	if err != nil {
		return nil, err
	}
	return assistant.NewBreakerGenerator(gen, assistant.BreakerConfig{}), nil
}

func newService(version string, cfg *config.Config, store *gorm.Store, runner terminal.CommandRunner, gen assistant.Generator, inst *metrics.Instruments) *Service {
	broadcaster := realtime.NewBroadcaster(realtime.Config{FramesPerSecond: cfg.WSFramesPerSecond}, inst)
	projectStore := gorm.NewProjectStore(store)
	terminalStore := gorm.NewTerminalStore(store)
	logStore := gorm.NewLogStore(store)

	svc := &Service{
		startTime:     time.Now(),
		version:       version,
		config:        cfg,
		store:         store,
		projectStore:  projectStore,
		terminalStore: terminalStore,
		logStore:      logStore,
		terminals:     terminal.NewService(terminalStore, projectStore, logStore, runner, broadcaster),
		assistant:     assistant.New(gen),
		broadcaster:   broadcaster,
		router:        chi.NewRouter(),
	}
	svc.setupRoutes()

	svc.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", serveIndex)
	r.Get("/assets/*", serveAssets)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/version", s.handleVersion)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Get("/ws", s.broadcaster.HandleWebSocket)
		r.Get("/api/events", s.broadcaster.HandleSSE)

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Get("/current", s.handleCurrentProject)
			r.Get("/{id}", s.handleGetProject)
			r.Delete("/{id}", s.handleDeleteProject)
		})

		r.Route("/api/terminals", func(r chi.Router) {
			r.Get("/", s.handleListTerminals)
			r.Post("/", s.handleCreateTerminal)
			r.Get("/{id}", s.handleGetTerminal)
			r.Patch("/{id}", s.handleRenameTerminal)
			r.Delete("/{id}", s.handleDeleteTerminal)
			r.Post("/{id}/execute", s.handleExecute)
			r.Post("/{id}/clear", s.handleClearTerminal)
			r.Post("/{id}/explain", s.handleExplain)
		})

		r.Route("/api/logs", func(r chi.Router) {
			r.Get("/", s.handleListLogs)
			r.Post("/", s.handleCreateLog)
			r.Delete("/", s.handleClearLogs)
		})

		r.Post("/api/ai/generate", s.handleGenerate)
	})
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start marks the service ready and serves HTTP until Shutdown.
func (s *Service) Start() error {
	s.ready.Store(true)
	log.Info().
		Str("addr", s.server.Addr).
		Str("version", s.version).
		Msg("Worker listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown disconnects real-time clients, drains HTTP requests and closes
// the database.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.broadcaster.Close()

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	log.Info().Msg("Worker stopped")
	return errors.Join(errs...)
}
