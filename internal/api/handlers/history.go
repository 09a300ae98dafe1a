package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// HistoryHandler serves and maintains the stored watch history
type HistoryHandler struct {
	db       *models.Database
	syncCtrl *controllers.SyncController
	settings *settings.Service
	logger   *logrus.Logger
}

// NewHistoryHandler creates a new watch history handler
func NewHistoryHandler(db *models.Database, syncCtrl *controllers.SyncController, settingsSvc *settings.Service, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{db: db, syncCtrl: syncCtrl, settings: settingsSvc, logger: logger}
}

// List returns watch history grouped by user
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	var rows []*models.WatchHistory
	var err error
	if r.URL.Query().Get("start") != "" || r.URL.Query().Get("end") != "" {
		var start, end time.Time
		if raw := r.URL.Query().Get("start"); raw != "" {
			if start, err = time.Parse(time.RFC3339, raw); err != nil {
				writeError(w, http.StatusBadRequest, "start must be RFC3339")
				return
			}
		}
		if raw := r.URL.Query().Get("end"); raw != "" {
			if end, err = time.Parse(time.RFC3339, raw); err != nil {
				writeError(w, http.StatusBadRequest, "end must be RFC3339")
				return
			}
		}
		rows, err = h.db.GetWatchHistoryRange(start, end)
	} else {
		rows, err = h.db.GetWatchHistory(limit, r.URL.Query().Get("unprocessed") == "true")
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to read watch history")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	grouped := make(map[string][]*models.WatchHistory)
	for _, row := range rows {
		grouped[row.WatchedBy] = append(grouped[row.WatchedBy], row)
	}
	writeJSON(w, http.StatusOK, grouped)
}

// Users returns the distinct users present in watch history
func (h *HistoryHandler) Users(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.GetWatchHistory(0, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	seen := make(map[string]bool)
	users := []string{}
	for _, row := range rows {
		if row.WatchedBy == "" || seen[row.WatchedBy] {
			continue
		}
		seen[row.WatchedBy] = true
		users = append(users, row.WatchedBy)
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteOne removes a single watch history row
func (h *HistoryHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.DeleteWatchHistoryItem(id); err != nil {
		writeError(w, http.StatusNotFound, "watch history row not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// DeleteAll wipes the watch history
func (h *HistoryHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.db.DeleteAllWatchHistory()
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete watch history")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Sync runs a watch history sync now
func (h *HistoryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	written, err := h.syncCtrl.SyncWatchHistory(context.Background(), h.settings.GetInt("app", "sync_limit"))
	if err != nil {
		h.logger.WithError(err).Error("Sync failed")
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": written})
}
