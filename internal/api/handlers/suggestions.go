package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
)

// SuggestionsHandler serves stored suggestions and their lifecycle
type SuggestionsHandler struct {
	db            *models.Database
	recommendCtrl *controllers.RecommendController
	logger        *logrus.Logger
}

// NewSuggestionsHandler creates a new suggestions handler
func NewSuggestionsHandler(db *models.Database, recommendCtrl *controllers.RecommendController, logger *logrus.Logger) *SuggestionsHandler {
	return &SuggestionsHandler{db: db, recommendCtrl: recommendCtrl, logger: logger}
}

// List returns active or ignored suggestions
func (h *SuggestionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var rows []*models.Suggestion
	var err error
	if r.URL.Query().Get("ignored") == "true" {
		rows, err = h.db.GetIgnoredSuggestions()
	} else {
		rows, err = h.db.GetActiveSuggestions()
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to read suggestions")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rows == nil {
		rows = []*models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Values returns the distinct values of one suggestion field, for
// building filter dropdowns
func (h *SuggestionsHandler) Values(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	values, err := h.db.UniqueSuggestionValues(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, values)
}

// ToggleIgnore flips the ignore flag on a suggestion
func (h *SuggestionsHandler) ToggleIgnore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.ToggleSuggestionIgnore(id); err != nil {
		writeError(w, http.StatusNotFound, "suggestion not found")
		return
	}
	suggestion, err := h.db.GetSuggestionByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// Request files one suggestion with its request provider now
func (h *SuggestionsHandler) Request(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	suggestion, err := h.recommendCtrl.RequestSuggestion(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "suggestion not found")
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// Delete removes a suggestion
func (h *SuggestionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.DeleteSuggestion(id); err != nil {
		writeError(w, http.StatusNotFound, "suggestion not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
