package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
)

// StatusHandler reports pipeline state at a glance
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{db: db, logger: logger}
}

// StatusResponse summarizes the stored pipeline state
type StatusResponse struct {
	HistoryRows          int            `json:"history_rows"`
	UnprocessedRows      int            `json:"unprocessed_rows"`
	ActiveSuggestions    int            `json:"active_suggestions"`
	IgnoredSuggestions   int            `json:"ignored_suggestions"`
	SuggestionsByStatus  map[string]int `json:"suggestions_by_status"`
	SavedSearches        int            `json:"saved_searches"`
	EnabledSchedules     int            `json:"enabled_schedules"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	history, err := h.db.GetWatchHistory(0, false)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read watch history")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	unprocessed, err := h.db.GetWatchHistory(0, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	active, err := h.db.GetActiveSuggestions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	ignored, err := h.db.GetIgnoredSuggestions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	searches, err := h.db.GetSearches(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	schedules, err := h.db.GetEnabledSchedules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := StatusResponse{
		HistoryRows:         len(history),
		UnprocessedRows:     len(unprocessed),
		ActiveSuggestions:   len(active),
		IgnoredSuggestions:  len(ignored),
		SuggestionsByStatus: make(map[string]int),
		SavedSearches:       len(searches),
		EnabledSchedules:    len(schedules),
	}
	for _, s := range active {
		response.SuggestionsByStatus[string(s.RequestStatus)]++
	}
	writeJSON(w, http.StatusOK, response)
}
