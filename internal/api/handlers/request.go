package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/providers"
)

// RequestHandler exposes the request providers directly: manual
// requests, lookups, quality profiles, and provider users
type RequestHandler struct {
	mu        sync.RWMutex
	providers map[string]providers.RequestProvider
	logger    *logrus.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requestProviders []providers.RequestProvider, logger *logrus.Logger) *RequestHandler {
	h := &RequestHandler{logger: logger}
	h.SetProviders(requestProviders)
	return h
}

// SetProviders replaces the active providers, used when settings
// change. Safe to call while requests are in flight.
func (h *RequestHandler) SetProviders(requestProviders []providers.RequestProvider) {
	byName := make(map[string]providers.RequestProvider, len(requestProviders))
	for _, p := range requestProviders {
		byName[p.Name()] = p
	}
	h.mu.Lock()
	h.providers = byName
	h.mu.Unlock()
}

func (h *RequestHandler) providerByName(name string) (providers.RequestProvider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.providers[name]
	return p, ok
}

func (h *RequestHandler) provider(w http.ResponseWriter, r *http.Request) (providers.RequestProvider, bool) {
	name := r.PathValue("provider")
	p, ok := h.providerByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider: "+name)
		return nil, false
	}
	return p, true
}

func writeResult(w http.ResponseWriter, result *providers.APIResult) {
	status := result.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

type requestPayload struct {
	Provider  string           `json:"provider"`
	Title     string           `json:"title"`
	MediaType models.MediaType `json:"media_type"`
	TMDBID    int64            `json:"tmdb_id"`
	ProfileID int64            `json:"quality_profile_id"`
}

// Request files a manual media request with a named provider
func (h *RequestHandler) Request(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, ok := h.providerByName(payload.Provider)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider: "+payload.Provider)
		return
	}

	result := p.AddMedia(r.Context(), providers.AddMediaRequest{
		Title:            payload.Title,
		MediaType:        payload.MediaType,
		TMDBID:           payload.TMDBID,
		QualityProfileID: payload.ProfileID,
	})
	writeResult(w, result)
}

// Lookup searches a named provider by title, or by tmdb id plus media
// type when tmdb_id is given
func (h *RequestHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	query := providers.MediaQuery{
		Title:     r.URL.Query().Get("title"),
		MediaType: models.MediaType(r.URL.Query().Get("media_type")),
	}
	if raw := r.URL.Query().Get("tmdb_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "tmdb_id must be an integer")
			return
		}
		query.TMDBID = id
	}

	writeResult(w, p.LookupMedia(r.Context(), query))
}

// QualityProfiles lists a provider's quality profiles
func (h *RequestHandler) QualityProfiles(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	writeResult(w, p.GetQualityProfiles(r.Context()))
}

// Users lists a provider's user accounts
func (h *RequestHandler) Users(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	writeResult(w, p.GetUsers(r.Context()))
}
