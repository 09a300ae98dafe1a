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

// Sonarr fulfills series requests through a Sonarr instance
type Sonarr struct {
	rest             *restClient
	rootFolder       string
	qualityProfileID int64
	logger           *logrus.Logger
}

// NewSonarr creates a Sonarr provider. qualityProfileID is the profile
// used when a request does not name one.
func NewSonarr(baseURL, apiKey, rootFolder string, qualityProfileID int64, logger *logrus.Logger) *Sonarr {
	return &Sonarr{
		rest:             newRESTClient(baseURL, map[string]string{"X-Api-Key": apiKey}, logger),
		rootFolder:       rootFolder,
		qualityProfileID: qualityProfileID,
		logger:           logger,
	}
}

func (s *Sonarr) Name() string { return "sonarr" }

// Supports reports whether the provider handles this media type
func (s *Sonarr) Supports(mediaType models.MediaType) bool {
	return mediaType == models.MediaTypeTV
}

// DefaultSettings declares the settings this provider reads
func (s *Sonarr) DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "sonarr", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable requesting series through Sonarr"},
		{Group: "sonarr", Name: "base_url", Type: settings.TypeString, Default: "", Description: "Sonarr URL"},
		{Group: "sonarr", Name: "api_key", Type: settings.TypeString, Default: "", Description: "Sonarr API key"},
		{Group: "sonarr", Name: "root_folder", Type: settings.TypeString, Default: "/tv", Description: "Root folder for added series"},
		{Group: "sonarr", Name: "quality_profile_id", Type: settings.TypeInt, Default: "1", Description: "Quality profile for added series"},
	}
}

type sonarrSeries struct {
	TVDBID   int64  `json:"tvdbId"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Overview string `json:"overview"`
}

// LookupMedia searches Sonarr by title or by tmdb id; id queries use
// the lookup endpoint's "tmdb:" term form
func (s *Sonarr) LookupMedia(ctx context.Context, query MediaQuery) *APIResult {
	if failed := query.validate(); failed != nil {
		return failed
	}
	if query.MediaType != "" && query.MediaType != models.MediaTypeTV {
		return Fail(fmt.Sprintf("sonarr only handles series, got %s", query.MediaType), nil, http.StatusBadRequest)
	}

	term := query.Title
	if term == "" {
		term = fmt.Sprintf("tmdb:%d", query.TMDBID)
	}

	var results []sonarrSeries
	path := "/api/v3/series/lookup?term=" + url.QueryEscape(term)
	status, err := s.rest.getCached(ctx, path, &results)
	if err != nil {
		return Fail(fmt.Sprintf("sonarr lookup failed for %q", term), err, status)
	}

	matches := make([]MediaLookup, 0, len(results))
	for _, m := range results {
		matches = append(matches, MediaLookup{
			ID:        m.TVDBID,
			Title:     m.Title,
			MediaType: models.MediaTypeTV,
			Year:      m.Year,
			Overview:  m.Overview,
		})
	}
	return OK(matches, status)
}

// AddMedia adds a series for monitored download. The series is resolved
// by lookup; Sonarr keys on TVDB ids, not TMDB.
func (s *Sonarr) AddMedia(ctx context.Context, req AddMediaRequest) *APIResult {
	if req.Title == "" {
		return Fail("title is required", nil, http.StatusBadRequest)
	}
	if req.MediaType != models.MediaTypeTV {
		return Fail(fmt.Sprintf("sonarr only handles series, got %s", req.MediaType), nil, http.StatusBadRequest)
	}

	lookup := s.LookupMedia(ctx, MediaQuery{Title: req.Title, MediaType: models.MediaTypeTV})
	if !lookup.Success {
		return lookup
	}
	matches, _ := lookup.Data.([]MediaLookup)
	if len(matches) == 0 {
		return Fail(fmt.Sprintf("no sonarr match for %q", req.Title), nil, http.StatusNotFound)
	}
	tvdbID := matches[0].ID

	rootFolder := req.RootFolder
	if rootFolder == "" {
		rootFolder = s.rootFolder
	}
	profileID := req.QualityProfileID
	if profileID == 0 {
		profileID = s.qualityProfileID
	}

	body := map[string]interface{}{
		"title":            req.Title,
		"tvdbId":           tvdbID,
		"qualityProfileId": profileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions": map[string]interface{}{
			"searchForMissingEpisodes": true,
		},
	}

	var created map[string]interface{}
	status, err := s.rest.do(ctx, http.MethodPost, "/api/v3/series", body, &created)
	if err != nil {
		return Fail(fmt.Sprintf("sonarr add failed for %q", req.Title), err, status)
	}

	s.logger.WithFields(logrus.Fields{
		"title":   req.Title,
		"tvdb_id": tvdbID,
	}).Info("Added series to Sonarr")
	return OK(created, status)
}

// GetQualityProfiles lists Sonarr's quality profiles
func (s *Sonarr) GetQualityProfiles(ctx context.Context) *APIResult {
	var profiles []QualityProfile
	status, err := s.rest.getCached(ctx, "/api/v3/qualityprofile", &profiles)
	if err != nil {
		return Fail("failed to list sonarr quality profiles", err, status)
	}
	return OK(profiles, status)
}

// GetUsers is not supported; Sonarr has no per-user accounts
func (s *Sonarr) GetUsers(ctx context.Context) *APIResult {
	return Fail("users are not supported by sonarr", nil, http.StatusBadRequest)
}
