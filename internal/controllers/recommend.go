package controllers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/metrics"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/providers"
	"github.com/mlefebvre/suggestarr/internal/recommend"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// RecommendController runs the recommendation cycle: history in,
// suggestions out, requests filed
type RecommendController struct {
	db       *models.Database
	settings *settings.Service
	logger   *logrus.Logger

	mu           sync.RWMutex
	recommenders []recommend.Recommender
	providers    []providers.RequestProvider
}

// NewRecommendController creates a new recommendation controller.
// Recommenders are tried in order; the first one that answers wins.
func NewRecommendController(
	db *models.Database,
	settingsSvc *settings.Service,
	recommenders []recommend.Recommender,
	requestProviders []providers.RequestProvider,
	logger *logrus.Logger,
) *RecommendController {
	return &RecommendController{
		db:           db,
		settings:     settingsSvc,
		recommenders: recommenders,
		providers:    requestProviders,
		logger:       logger,
	}
}

// SetBackends replaces the active recommenders and providers, used when
// settings change. Safe to call while a cycle is running.
func (c *RecommendController) SetBackends(recommenders []recommend.Recommender, requestProviders []providers.RequestProvider) {
	c.mu.Lock()
	c.recommenders = recommenders
	c.providers = requestProviders
	c.mu.Unlock()
}

func (c *RecommendController) activeBackends() ([]recommend.Recommender, []providers.RequestProvider) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recommenders, c.providers
}

// RunCycle executes one recommendation cycle. A nil search runs the
// default cycle; a saved search contributes its prompt template and
// collects token statistics.
func (c *RecommendController) RunCycle(ctx context.Context, search *models.Search) error {
	c.logger.Info("Starting recommendation cycle")

	prompt, history, err := c.buildPrompt(search)
	if err != nil {
		metrics.Cycles.WithLabelValues("failed").Inc()
		return err
	}
	if len(history) == 0 {
		c.logger.Info("No watch history to recommend from, skipping cycle")
		metrics.Cycles.WithLabelValues("empty").Inc()
		return nil
	}

	result, backend, err := c.runRecommenders(ctx, prompt)
	if err != nil {
		metrics.Cycles.WithLabelValues("failed").Inc()
		return err
	}

	// A transient search (one built from schedule kwargs, never saved)
	// has no row to bind statistics to
	if search != nil && search.ID != 0 {
		c.recordStats(search, result.Usage, backend)
	}

	stored := c.storeSuggestions(ctx, result.Candidates, history, backend, search)
	c.markProcessed(history)

	metrics.Cycles.WithLabelValues("success").Inc()
	c.logger.WithFields(logrus.Fields{
		"backend":     backend,
		"suggestions": stored,
	}).Info("Recommendation cycle completed")
	return nil
}

// BuildPromptPreview renders the prompt a cycle would use right now,
// without calling any model
func (c *RecommendController) BuildPromptPreview(search *models.Search) (string, error) {
	prompt, _, err := c.buildPrompt(search)
	return prompt, err
}

func (c *RecommendController) buildPrompt(search *models.Search) (string, []*models.WatchHistory, error) {
	limit := c.settings.GetInt("app", "recent_limit")
	history, err := c.db.GetWatchHistory(limit, false)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load watch history: %w", err)
	}

	var media, favorites []string
	for _, row := range history {
		media = append(media, row.Title)
		if row.IsFavorite != nil && *row.IsFavorite {
			favorites = append(favorites, row.Title)
		}
	}

	// Never re-suggest what was watched, already suggested, or ignored
	exclusions := append([]string{}, media...)
	if active, err := c.db.GetActiveSuggestions(); err == nil {
		for _, s := range active {
			exclusions = append(exclusions, s.Title)
		}
	}
	if ignored, err := c.db.IgnoredSuggestionTitles(); err == nil {
		exclusions = append(exclusions, ignored...)
	}

	tmpl := c.settings.Get("app", "prompt_template")
	if search != nil && search.Prompt != "" {
		tmpl = search.Prompt
	}

	prompt, err := recommend.BuildPrompt(tmpl, recommend.PromptData{
		Media:      media,
		Favorites:  favorites,
		Exclusions: exclusions,
		Limit:      c.settings.GetInt("app", "suggestion_limit"),
		MediaType:  c.settings.Get("app", "media_type"),
	})
	if err != nil {
		return "", nil, err
	}
	return prompt, history, nil
}

func (c *RecommendController) runRecommenders(ctx context.Context, prompt string) (*recommend.Result, string, error) {
	recommenders, _ := c.activeBackends()
	var lastErr error
	for _, r := range recommenders {
		result, err := r.Recommend(ctx, prompt)
		if err != nil {
			c.logger.WithField("backend", r.Name()).WithError(err).Warn("Recommendation backend failed, trying next")
			lastErr = err
			continue
		}
		return result, r.Name(), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no recommendation backend configured")
	}
	return nil, "", lastErr
}

func (c *RecommendController) recordStats(search *models.Search, usage recommend.TokenUsage, backend string) {
	stat := &models.SearchStat{
		SearchID:        search.ID,
		PromptTokens:    usage.PromptTokens,
		CandidateTokens: usage.CandidateTokens,
		ThoughtTokens:   usage.ThoughtTokens,
		TotalTokens:     usage.TotalTokens,
	}
	if err := c.db.AddSearchStat(stat); err != nil {
		c.logger.WithError(err).Error("Failed to record search statistics")
	}
	if err := c.db.UpdateSearchRunDate(search.ID, time.Now()); err != nil {
		c.logger.WithError(err).Error("Failed to stamp search run date")
	}
	metrics.TokensUsed.WithLabelValues(backend).Add(float64(usage.TotalTokens))
}

func (c *RecommendController) storeSuggestions(ctx context.Context, candidates []recommend.Candidate, history []*models.WatchHistory, backend string, search *models.Search) int {
	watched := make(map[string]bool, len(history))
	var watchedTitles []string
	for _, row := range history {
		watched[row.Title] = true
		watchedTitles = append(watchedTitles, row.Title)
	}

	autoRequest := c.settings.GetBool("app", "auto_request")
	stored := 0
	for _, candidate := range candidates {
		if watched[candidate.Title] {
			c.logger.WithField("title", candidate.Title).Debug("Model suggested something already watched, dropping")
			continue
		}
		if _, err := c.db.GetSuggestionByTitle(candidate.Title); err == nil {
			c.logger.WithField("title", candidate.Title).Debug("Suggestion already known, dropping")
			continue
		}

		sourceTitle := candidate.Similarity
		if sourceTitle == "" {
			sourceTitle, _ = recommend.BestMatch(candidate.Title, watchedTitles)
		}

		suggestion := &models.Suggestion{
			Title:         candidate.Title,
			SourceTitle:   sourceTitle,
			MediaType:     candidate.MediaType,
			Description:   candidate.Description,
			Similarity:    candidate.Similarity,
			RequestStatus: models.RequestStatusPending,
			Provider:      backend,
		}
		if search != nil && search.ID != 0 {
			suggestion.SearchID = &search.ID
		}

		if autoRequest {
			c.fulfill(ctx, suggestion)
		}

		if err := c.db.CreateSuggestion(suggestion); err != nil {
			c.logger.WithField("title", candidate.Title).WithError(err).Error("Failed to store suggestion")
			continue
		}
		metrics.Suggestions.WithLabelValues(backend).Inc()
		stored++
	}
	return stored
}

// fulfill files the suggestion with the first provider that accepts its
// media type and records the outcome on the row
func (c *RecommendController) fulfill(ctx context.Context, suggestion *models.Suggestion) {
	if c.settings.GetBool("app", "test_mode") {
		suggestion.RequestStatus = models.RequestStatusSkipped
		suggestion.RequestMessage = "test mode is on, request not sent"
		return
	}

	provider := c.providerFor(suggestion.MediaType)
	if provider == nil {
		suggestion.RequestStatus = models.RequestStatusSkipped
		suggestion.RequestMessage = "no request provider configured"
		return
	}

	result := provider.AddMedia(ctx, providers.AddMediaRequest{
		Title:     suggestion.Title,
		MediaType: suggestion.MediaType,
		TMDBID:    suggestion.TMDBID,
	})
	if result.Success {
		suggestion.RequestStatus = models.RequestStatusRequested
		metrics.Requests.WithLabelValues(provider.Name(), "requested").Inc()
	} else {
		suggestion.RequestStatus = models.RequestStatusFailed
		suggestion.RequestMessage = result.Message
		metrics.Requests.WithLabelValues(provider.Name(), "failed").Inc()
	}
}

// RequestSuggestion files one stored suggestion on demand
func (c *RecommendController) RequestSuggestion(ctx context.Context, id uint64) (*models.Suggestion, error) {
	suggestion, err := c.db.GetSuggestionByID(id)
	if err != nil {
		return nil, err
	}

	c.fulfill(ctx, suggestion)
	if err := c.db.UpdateSuggestion(suggestion); err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (c *RecommendController) providerFor(mediaType models.MediaType) providers.RequestProvider {
	_, requestProviders := c.activeBackends()
	for _, p := range requestProviders {
		if p.Supports(mediaType) {
			return p
		}
	}
	return nil
}

func (c *RecommendController) markProcessed(history []*models.WatchHistory) {
	for _, row := range history {
		if row.Processed {
			continue
		}
		if err := c.db.MarkWatchHistoryProcessed(row.ID, true); err != nil {
			c.logger.WithField("id", row.ID).WithError(err).Error("Failed to mark history row processed")
		}
	}
}
