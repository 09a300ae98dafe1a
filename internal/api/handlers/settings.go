package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/settings"
)

// SettingsHandler exposes the settings registry
type SettingsHandler struct {
	settings *settings.Service
	logger   *logrus.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsSvc *settings.Service, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settingsSvc, logger: logger}
}

// List returns all settings grouped by group
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.settings.Groups()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read settings")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

// Update sets one setting's value
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	name := r.PathValue("name")

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.settings.Set(group, name, payload.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"group": group,
		"name":  name,
		"value": payload.Value,
	})
}
