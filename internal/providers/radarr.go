package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// Radarr fulfills movie requests through a Radarr instance
type Radarr struct {
	rest             *restClient
	rootFolder       string
	qualityProfileID int64
	logger           *logrus.Logger
}

// NewRadarr creates a Radarr provider. qualityProfileID is the profile
// used when a request does not name one.
func NewRadarr(baseURL, apiKey, rootFolder string, qualityProfileID int64, logger *logrus.Logger) *Radarr {
	return &Radarr{
		rest:             newRESTClient(baseURL, map[string]string{"X-Api-Key": apiKey}, logger),
		rootFolder:       rootFolder,
		qualityProfileID: qualityProfileID,
		logger:           logger,
	}
}

func (r *Radarr) Name() string { return "radarr" }

// Supports reports whether the provider handles this media type
func (r *Radarr) Supports(mediaType models.MediaType) bool {
	return mediaType == models.MediaTypeMovie
}

// DefaultSettings declares the settings this provider reads
func (r *Radarr) DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "radarr", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable requesting movies through Radarr"},
		{Group: "radarr", Name: "base_url", Type: settings.TypeString, Default: "", Description: "Radarr URL"},
		{Group: "radarr", Name: "api_key", Type: settings.TypeString, Default: "", Description: "Radarr API key"},
		{Group: "radarr", Name: "root_folder", Type: settings.TypeString, Default: "/movies", Description: "Root folder for added movies"},
		{Group: "radarr", Name: "quality_profile_id", Type: settings.TypeInt, Default: "1", Description: "Quality profile for added movies"},
	}
}

type radarrMovie struct {
	TMDBID   int64  `json:"tmdbId"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Overview string `json:"overview"`
}

// LookupMedia searches Radarr by title or by tmdb id
func (r *Radarr) LookupMedia(ctx context.Context, query MediaQuery) *APIResult {
	if failed := query.validate(); failed != nil {
		return failed
	}
	if query.MediaType != "" && query.MediaType != models.MediaTypeMovie {
		return Fail(fmt.Sprintf("radarr only handles movies, got %s", query.MediaType), nil, http.StatusBadRequest)
	}

	if query.Title == "" {
		var movie radarrMovie
		path := fmt.Sprintf("/api/v3/movie/lookup/tmdb?tmdbId=%d", query.TMDBID)
		status, err := r.rest.getCached(ctx, path, &movie)
		if err != nil {
			return Fail(fmt.Sprintf("radarr lookup failed for tmdb id %d", query.TMDBID), err, status)
		}
		return OK([]MediaLookup{{
			ID:        movie.TMDBID,
			Title:     movie.Title,
			MediaType: models.MediaTypeMovie,
			Year:      movie.Year,
			Overview:  movie.Overview,
		}}, status)
	}

	var results []radarrMovie
	path := "/api/v3/movie/lookup?term=" + url.QueryEscape(query.Title)
	status, err := r.rest.getCached(ctx, path, &results)
	if err != nil {
		return Fail(fmt.Sprintf("radarr lookup failed for %q", query.Title), err, status)
	}

	matches := make([]MediaLookup, 0, len(results))
	for _, m := range results {
		matches = append(matches, MediaLookup{
			ID:        m.TMDBID,
			Title:     m.Title,
			MediaType: models.MediaTypeMovie,
			Year:      m.Year,
			Overview:  m.Overview,
		})
	}
	return OK(matches, status)
}

// AddMedia adds a movie for monitored download
func (r *Radarr) AddMedia(ctx context.Context, req AddMediaRequest) *APIResult {
	if req.Title == "" {
		return Fail("title is required", nil, http.StatusBadRequest)
	}
	if req.MediaType != models.MediaTypeMovie {
		return Fail(fmt.Sprintf("radarr only handles movies, got %s", req.MediaType), nil, http.StatusBadRequest)
	}

	tmdbID := req.TMDBID
	if tmdbID == 0 {
		lookup := r.LookupMedia(ctx, MediaQuery{Title: req.Title, MediaType: models.MediaTypeMovie})
		if !lookup.Success {
			return lookup
		}
		matches, _ := lookup.Data.([]MediaLookup)
		if len(matches) == 0 {
			return Fail(fmt.Sprintf("no radarr match for %q", req.Title), nil, http.StatusNotFound)
		}
		tmdbID = matches[0].ID
	}

	rootFolder := req.RootFolder
	if rootFolder == "" {
		rootFolder = r.rootFolder
	}
	profileID := req.QualityProfileID
	if profileID == 0 {
		profileID = r.qualityProfileID
	}

	body := map[string]interface{}{
		"title":            req.Title,
		"tmdbId":           tmdbID,
		"qualityProfileId": profileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions": map[string]interface{}{
			"searchForMovie": true,
		},
	}

	var created map[string]interface{}
	status, err := r.rest.do(ctx, http.MethodPost, "/api/v3/movie", body, &created)
	if err != nil {
		return Fail(fmt.Sprintf("radarr add failed for %q", req.Title), err, status)
	}

	r.logger.WithFields(logrus.Fields{
		"title":   req.Title,
		"tmdb_id": tmdbID,
	}).Info("Added movie to Radarr")
	return OK(created, status)
}

// GetQualityProfiles lists Radarr's quality profiles
func (r *Radarr) GetQualityProfiles(ctx context.Context) *APIResult {
	var profiles []QualityProfile
	status, err := r.rest.getCached(ctx, "/api/v3/qualityprofile", &profiles)
	if err != nil {
		return Fail("failed to list radarr quality profiles", err, status)
	}
	return OK(profiles, status)
}

// GetUsers is not supported; Radarr has no per-user accounts
func (r *Radarr) GetUsers(ctx context.Context) *APIResult {
	return Fail("users are not supported by radarr", nil, http.StatusBadRequest)
}
