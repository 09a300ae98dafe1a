package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
)

// SearchHandler manages saved searches and their usage statistics
type SearchHandler struct {
	db            *models.Database
	recommendCtrl *controllers.RecommendController
	logger        *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(db *models.Database, recommendCtrl *controllers.RecommendController, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{db: db, recommendCtrl: recommendCtrl, logger: logger}
}

type searchPayload struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	Kwargs string `json:"kwargs"`
}

// List returns saved searches, most recently updated first
func (h *SearchHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	searches, err := h.db.GetSearches(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read searches")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if searches == nil {
		searches = []*models.Search{}
	}
	writeJSON(w, http.StatusOK, searches)
}

// Create stores a new saved search
func (h *SearchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload searchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	search := &models.Search{Name: payload.Name, Prompt: payload.Prompt, Kwargs: payload.Kwargs}
	if err := h.db.CreateSearch(search); err != nil {
		h.logger.WithError(err).Error("Failed to create search")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, search)
}

// Update modifies a saved search
func (h *SearchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	search, err := h.db.GetSearchByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}

	var payload searchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name != "" {
		search.Name = payload.Name
	}
	search.Prompt = payload.Prompt
	search.Kwargs = payload.Kwargs

	if err := h.db.UpdateSearch(search); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, search)
}

// Delete removes a saved search along with its schedule and stats
func (h *SearchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.DeleteSearch(id); err != nil {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Run executes the search's recommendation cycle now
func (h *SearchHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	search, err := h.db.GetSearchByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}

	if err := h.recommendCtrl.RunCycle(context.Background(), search); err != nil {
		h.logger.WithField("search", search.Name).WithError(err).Error("Search run failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}

// Stats returns the token usage rows for one search
func (h *SearchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	stats, err := h.db.GetSearchStats(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if stats == nil {
		stats = []*models.SearchStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// Summary aggregates token usage over an optional date range
func (h *SearchHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var start, end time.Time
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		end = parsed
	}

	summary, err := h.db.SummarizeSearchStats(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Preview renders the prompt a search would use, without calling any
// model
func (h *SearchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var search *models.Search
	if raw := r.URL.Query().Get("search_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid search_id")
			return
		}
		search, err = h.db.GetSearchByID(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "search not found")
			return
		}
	}

	prompt, err := h.recommendCtrl.BuildPromptPreview(search)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}
