package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/api/handlers"
	"github.com/mlefebvre/suggestarr/internal/api/middleware"
	"github.com/mlefebvre/suggestarr/internal/config"
	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/providers"
	"github.com/mlefebvre/suggestarr/internal/scheduler"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// Server represents the HTTP server
type Server struct {
	server         *http.Server
	requestHandler *handlers.RequestHandler
	logger         *logrus.Logger
}

// Deps bundles everything the API surfaces
type Deps struct {
	DB            *models.Database
	Settings      *settings.Service
	SyncCtrl      *controllers.SyncController
	RecommendCtrl *controllers.RecommendController
	Scheduler     *scheduler.Scheduler
	Providers     []providers.RequestProvider
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, deps)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, deps Deps) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("GET /health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(deps.DB, s.logger)
	mux.HandleFunc("GET /api/status", statusHandler.ServeHTTP)

	historyHandler := handlers.NewHistoryHandler(deps.DB, deps.SyncCtrl, deps.Settings, s.logger)
	mux.HandleFunc("GET /api/history", historyHandler.List)
	mux.HandleFunc("DELETE /api/history", historyHandler.DeleteAll)
	mux.HandleFunc("DELETE /api/history/{id}", historyHandler.DeleteOne)
	mux.HandleFunc("GET /api/users", historyHandler.Users)
	mux.HandleFunc("POST /api/sync", historyHandler.Sync)

	suggestionsHandler := handlers.NewSuggestionsHandler(deps.DB, deps.RecommendCtrl, s.logger)
	mux.HandleFunc("GET /api/suggestions", suggestionsHandler.List)
	mux.HandleFunc("GET /api/suggestions/values", suggestionsHandler.Values)
	mux.HandleFunc("POST /api/suggestions/{id}/ignore", suggestionsHandler.ToggleIgnore)
	mux.HandleFunc("POST /api/suggestions/{id}/request", suggestionsHandler.Request)
	mux.HandleFunc("DELETE /api/suggestions/{id}", suggestionsHandler.Delete)

	searchHandler := handlers.NewSearchHandler(deps.DB, deps.RecommendCtrl, s.logger)
	mux.HandleFunc("GET /api/searches", searchHandler.List)
	mux.HandleFunc("POST /api/searches", searchHandler.Create)
	mux.HandleFunc("PUT /api/searches/{id}", searchHandler.Update)
	mux.HandleFunc("DELETE /api/searches/{id}", searchHandler.Delete)
	mux.HandleFunc("POST /api/searches/{id}/run", searchHandler.Run)
	mux.HandleFunc("GET /api/searches/{id}/stats", searchHandler.Stats)
	mux.HandleFunc("GET /api/stats/summary", searchHandler.Summary)
	mux.HandleFunc("GET /api/prompt/preview", searchHandler.Preview)

	scheduleHandler := handlers.NewScheduleHandler(deps.DB, deps.Scheduler, s.logger)
	mux.HandleFunc("GET /api/schedules", scheduleHandler.List)
	mux.HandleFunc("POST /api/schedules", scheduleHandler.Create)
	mux.HandleFunc("PUT /api/schedules/{id}", scheduleHandler.Update)
	mux.HandleFunc("DELETE /api/schedules/{id}", scheduleHandler.Delete)
	mux.HandleFunc("POST /api/schedules/{job_id}/trigger", scheduleHandler.Trigger)

	requestHandler := handlers.NewRequestHandler(deps.Providers, s.logger)
	s.requestHandler = requestHandler
	mux.HandleFunc("POST /api/request", requestHandler.Request)
	mux.HandleFunc("GET /api/providers/{provider}/lookup", requestHandler.Lookup)
	mux.HandleFunc("GET /api/providers/{provider}/profiles", requestHandler.QualityProfiles)
	mux.HandleFunc("GET /api/providers/{provider}/users", requestHandler.Users)

	settingsHandler := handlers.NewSettingsHandler(deps.Settings, s.logger)
	mux.HandleFunc("GET /api/settings", settingsHandler.List)
	mux.HandleFunc("PUT /api/settings/{group}/{name}", settingsHandler.Update)

	mux.Handle("GET /metrics", promhttp.Handler())
}

// UpdateProviders swaps the request providers the API exposes, used
// when settings change
func (s *Server) UpdateProviders(requestProviders []providers.RequestProvider) {
	s.requestHandler.SetProviders(requestProviders)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
