package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"

	"github.com/mlefebvre/suggestarr/internal/api"
	"github.com/mlefebvre/suggestarr/internal/config"
	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/providers"
	"github.com/mlefebvre/suggestarr/internal/recommend"
	"github.com/mlefebvre/suggestarr/internal/recommend/gemini"
	"github.com/mlefebvre/suggestarr/internal/recommend/ollama"
	"github.com/mlefebvre/suggestarr/internal/scheduler"
	"github.com/mlefebvre/suggestarr/internal/services/jellyfin"
	"github.com/mlefebvre/suggestarr/internal/services/plex"
	"github.com/mlefebvre/suggestarr/internal/settings"
	"github.com/mlefebvre/suggestarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Suggestarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize the settings registry
	settingsSvc := settings.NewService(db)
	if err := registerSettings(settingsSvc); err != nil {
		return fmt.Errorf("failed to register settings: %w", err)
	}
	logger.Info("Settings registered")

	// 5. Build sources, recommenders and providers from settings
	sources := buildSources(settingsSvc, logger)
	recommenders := buildRecommenders(settingsSvc, logger)
	requestProviders := buildProviders(settingsSvc, logger)

	// 6. Initialize controllers
	syncCtrl := controllers.NewSyncController(db, sources, logger)
	recommendCtrl := controllers.NewRecommendController(db, settingsSvc, recommenders, requestProviders, logger)
	logger.Info("Controllers initialized")

	// 7. Initialize scheduler
	sched := scheduler.NewScheduler(db, logger)
	sched.RegisterFunc("sync_watch_history", func(ctx context.Context, schedule *models.Schedule) error {
		_, err := syncCtrl.SyncWatchHistory(ctx, settingsSvc.GetInt("app", "sync_limit"))
		return err
	})
	sched.RegisterFunc("run_recommendation_cycle", func(ctx context.Context, schedule *models.Schedule) error {
		search, err := resolveSearch(db, schedule)
		if err != nil {
			return err
		}
		return recommendCtrl.RunCycle(ctx, search)
	})

	if err := seedDefaultSchedules(db, logger); err != nil {
		return fmt.Errorf("failed to seed schedules: %w", err)
	}
	if err := sched.LoadSchedules(); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 8. Initialize HTTP server
	server := api.NewServer(cfg, api.Deps{
		DB:            db,
		Settings:      settingsSvc,
		SyncCtrl:      syncCtrl,
		RecommendCtrl: recommendCtrl,
		Scheduler:     sched,
		Providers:     requestProviders,
	}, logger)

	// 9. Rebuild the moving parts when settings change
	settingsSvc.OnChange(func(group, name string) {
		syncCtrl.SetSources(buildSources(settingsSvc, logger))
		rebuilt := buildProviders(settingsSvc, logger)
		recommendCtrl.SetBackends(buildRecommenders(settingsSvc, logger), rebuilt)
		server.UpdateProviders(rebuilt)
	})

	// Start server in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Suggestarr is running")

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-serverErrChan:
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func registerSettings(svc *settings.Service) error {
	specs := controllers.DefaultSettings()
	specs = append(specs, jellyfin.DefaultSettings()...)
	specs = append(specs, plex.DefaultSettings()...)
	specs = append(specs, (&providers.Jellyseerr{}).DefaultSettings()...)
	specs = append(specs, (&providers.Radarr{}).DefaultSettings()...)
	specs = append(specs, (&providers.Sonarr{}).DefaultSettings()...)
	specs = append(specs, (&ollama.Client{}).DefaultSettings()...)
	specs = append(specs, (&gemini.Client{}).DefaultSettings()...)
	return svc.Register(specs)
}

func buildSources(svc *settings.Service, logger *logrus.Logger) []controllers.WatchSource {
	var sources []controllers.WatchSource
	if svc.GetBool("jellyfin", "enabled") {
		client := jellyfin.NewClient(svc.Get("jellyfin", "base_url"), svc.Get("jellyfin", "api_key"), logger)
		sources = append(sources, controllers.NewJellyfinSource(client, svc.Get("jellyfin", "users"), logger))
	}
	if svc.GetBool("plex", "enabled") {
		client := plex.NewClient(svc.Get("plex", "base_url"), svc.Get("plex", "token"), logger)
		sources = append(sources, controllers.NewPlexSource(client, svc.Get("plex", "users"), logger))
	}
	if len(sources) == 0 {
		logger.Warn("No watch history source enabled")
	}
	return sources
}

func buildRecommenders(svc *settings.Service, logger *logrus.Logger) []recommend.Recommender {
	var recommenders []recommend.Recommender
	if svc.GetBool("gemini", "enabled") {
		recommenders = append(recommenders,
			gemini.NewClient("", svc.Get("gemini", "api_key"), svc.Get("gemini", "model"),
				svc.GetFloat("gemini", "temperature"), svc.GetInt("gemini", "thinking_budget"), logger))
	}
	if svc.GetBool("ollama", "enabled") {
		recommenders = append(recommenders,
			ollama.NewClient(svc.Get("ollama", "base_url"), svc.Get("ollama", "model"),
				svc.GetFloat("ollama", "temperature"), logger))
	}
	if len(recommenders) == 0 {
		logger.Warn("No recommendation backend enabled")
	}
	return recommenders
}

// buildProviders orders type-specific providers before the catch-all so
// movies land in Radarr and series in Sonarr when both are enabled
func buildProviders(svc *settings.Service, logger *logrus.Logger) []providers.RequestProvider {
	var out []providers.RequestProvider
	if svc.GetBool("radarr", "enabled") {
		out = append(out, providers.NewRadarr(
			svc.Get("radarr", "base_url"), svc.Get("radarr", "api_key"),
			svc.Get("radarr", "root_folder"), int64(svc.GetInt("radarr", "quality_profile_id")), logger))
	}
	if svc.GetBool("sonarr", "enabled") {
		out = append(out, providers.NewSonarr(
			svc.Get("sonarr", "base_url"), svc.Get("sonarr", "api_key"),
			svc.Get("sonarr", "root_folder"), int64(svc.GetInt("sonarr", "quality_profile_id")), logger))
	}
	if svc.GetBool("jellyseerr", "enabled") {
		out = append(out, providers.NewJellyseerr(
			svc.Get("jellyseerr", "base_url"), svc.Get("jellyseerr", "api_key"),
			int64(svc.GetInt("jellyseerr", "user_id")), logger))
	}
	return out
}

// resolveSearch picks the saved search a scheduled cycle should run
// with. The search_id column wins; kwargs may name a search_id or carry
// a custom_prompt, which becomes a transient, unsaved search.
func resolveSearch(db *models.Database, schedule *models.Schedule) (*models.Search, error) {
	if schedule.SearchID != nil {
		found, err := db.GetSearchByID(*schedule.SearchID)
		if err != nil {
			return nil, fmt.Errorf("schedule points at missing search %d: %w", *schedule.SearchID, err)
		}
		return found, nil
	}
	if schedule.Kwargs == "" {
		return nil, nil
	}

	var kw struct {
		SearchID     uint64 `json:"search_id"`
		CustomPrompt string `json:"custom_prompt"`
	}
	if err := json.Unmarshal([]byte(schedule.Kwargs), &kw); err != nil {
		return nil, fmt.Errorf("schedule %q has malformed kwargs: %w", schedule.JobID, err)
	}
	if kw.SearchID != 0 {
		found, err := db.GetSearchByID(kw.SearchID)
		if err != nil {
			return nil, fmt.Errorf("schedule kwargs point at missing search %d: %w", kw.SearchID, err)
		}
		return found, nil
	}
	if kw.CustomPrompt != "" {
		return &models.Search{Prompt: kw.CustomPrompt}, nil
	}
	return nil, nil
}

// seedDefaultSchedules creates the out-of-the-box jobs on first run
func seedDefaultSchedules(db *models.Database, logger *logrus.Logger) error {
	defaults := []*models.Schedule{
		{
			JobID: "default-sync", FuncName: "sync_watch_history",
			Year: "*", Month: "*", Day: "*", Hour: "*", Minute: "0", DayOfWeek: "*",
			Enabled: true,
		},
		{
			JobID: "default-cycle", FuncName: "run_recommendation_cycle",
			Year: "*", Month: "*", Day: "*", Hour: "2", Minute: "30", DayOfWeek: "*",
			Enabled: true,
		},
	}

	for _, schedule := range defaults {
		_, err := db.GetScheduleByJobID(schedule.JobID)
		if err == nil {
			continue
		}
		if err != bolthold.ErrNotFound {
			return err
		}
		if err := db.CreateSchedule(schedule); err != nil {
			return err
		}
		logger.WithField("job_id", schedule.JobID).Info("Seeded default schedule")
	}
	return nil
}
