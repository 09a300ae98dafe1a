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

// Jellyseerr fulfills requests through a Jellyseerr instance
type Jellyseerr struct {
	rest   *restClient
	userID int64
	logger *logrus.Logger
}

// NewJellyseerr creates a Jellyseerr provider. A nonzero userID files
// requests as that account instead of the API key owner.
func NewJellyseerr(baseURL, apiKey string, userID int64, logger *logrus.Logger) *Jellyseerr {
	return &Jellyseerr{
		rest:   newRESTClient(baseURL, map[string]string{"X-Api-Key": apiKey}, logger),
		userID: userID,
		logger: logger,
	}
}

func (j *Jellyseerr) Name() string { return "jellyseerr" }

// Supports reports whether the provider handles this media type.
// Jellyseerr requests both movies and series.
func (j *Jellyseerr) Supports(mediaType models.MediaType) bool {
	return mediaType.Valid()
}

// DefaultSettings declares the settings this provider reads
func (j *Jellyseerr) DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "jellyseerr", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable requesting through Jellyseerr"},
		{Group: "jellyseerr", Name: "base_url", Type: settings.TypeString, Default: "", Description: "Jellyseerr URL"},
		{Group: "jellyseerr", Name: "api_key", Type: settings.TypeString, Default: "", Description: "Jellyseerr API key"},
		{Group: "jellyseerr", Name: "user_id", Type: settings.TypeInt, Default: "0", Description: "Jellyseerr user to file requests as, 0 for the API key owner"},
	}
}

type jellyseerrSearchResponse struct {
	Results []struct {
		ID        int64  `json:"id"`
		MediaType string `json:"mediaType"`
		Title     string `json:"title"`
		Name      string `json:"name"`
		Overview  string `json:"overview"`
	} `json:"results"`
}

type jellyseerrDetailsResponse struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Name     string `json:"name"`
	Overview string `json:"overview"`
}

// LookupMedia searches Jellyseerr by title, or fetches one entry by
// tmdb id when the query carries a catalog id instead
func (j *Jellyseerr) LookupMedia(ctx context.Context, query MediaQuery) *APIResult {
	if failed := query.validate(); failed != nil {
		return failed
	}

	if query.Title == "" {
		endpoint := "movie"
		if query.MediaType == models.MediaTypeTV {
			endpoint = "tv"
		}
		var details jellyseerrDetailsResponse
		path := fmt.Sprintf("/api/v1/%s/%d", endpoint, query.TMDBID)
		status, err := j.rest.getCached(ctx, path, &details)
		if err != nil {
			return Fail(fmt.Sprintf("jellyseerr lookup failed for tmdb id %d", query.TMDBID), err, status)
		}
		name := details.Title
		if name == "" {
			name = details.Name
		}
		return OK([]MediaLookup{{
			ID:        details.ID,
			Title:     name,
			MediaType: query.MediaType,
			Overview:  details.Overview,
		}}, status)
	}

	var resp jellyseerrSearchResponse
	path := "/api/v1/search?query=" + url.QueryEscape(query.Title)
	status, err := j.rest.getCached(ctx, path, &resp)
	if err != nil {
		return Fail(fmt.Sprintf("jellyseerr search failed for %q", query.Title), err, status)
	}

	var matches []MediaLookup
	for _, r := range resp.Results {
		if query.MediaType != "" && r.MediaType != string(query.MediaType) {
			continue
		}
		name := r.Title
		if name == "" {
			name = r.Name
		}
		matches = append(matches, MediaLookup{
			ID:        r.ID,
			Title:     name,
			MediaType: models.MediaType(r.MediaType),
			Overview:  r.Overview,
		})
	}
	return OK(matches, status)
}

// AddMedia files a request for a title. The media id is resolved with
// an implicit lookup; when nothing matches the request is still sent
// with a null media id, mirroring what the web UI does for manual
// entries.
func (j *Jellyseerr) AddMedia(ctx context.Context, req AddMediaRequest) *APIResult {
	if req.Title == "" {
		return Fail("title is required", nil, http.StatusBadRequest)
	}
	if !req.MediaType.Valid() {
		return Fail(fmt.Sprintf("invalid media type: %s", req.MediaType), nil, http.StatusBadRequest)
	}

	var mediaID *int64
	lookup := j.LookupMedia(ctx, MediaQuery{Title: req.Title, MediaType: req.MediaType})
	if lookup.Success {
		if matches, ok := lookup.Data.([]MediaLookup); ok && len(matches) > 0 {
			mediaID = &matches[0].ID
		}
	}
	if mediaID == nil {
		j.logger.WithField("title", req.Title).Warn("No Jellyseerr match found, requesting with null media id")
	}

	body := map[string]interface{}{
		"mediaType": string(req.MediaType),
		"mediaId":   mediaID,
	}
	userID := req.UserID
	if userID == 0 {
		userID = j.userID
	}
	if userID > 0 {
		body["userId"] = userID
	}

	var created map[string]interface{}
	status, err := j.rest.do(ctx, http.MethodPost, "/api/v1/request", body, &created)
	if err != nil {
		return Fail(fmt.Sprintf("jellyseerr request failed for %q", req.Title), err, status)
	}

	j.logger.WithFields(logrus.Fields{
		"title":      req.Title,
		"media_type": req.MediaType,
	}).Info("Requested media through Jellyseerr")
	return OK(created, status)
}

// GetQualityProfiles reports that Jellyseerr manages quality through
// its own defaults: a success with no profiles, not a failure
func (j *Jellyseerr) GetQualityProfiles(ctx context.Context) *APIResult {
	result := OK([]QualityProfile{}, http.StatusOK)
	result.Message = "jellyseerr manages quality profiles internally"
	return result
}

type jellyseerrUsersResponse struct {
	Results []struct {
		ID          int64  `json:"id"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	} `json:"results"`
}

// GetUsers lists the Jellyseerr user accounts
func (j *Jellyseerr) GetUsers(ctx context.Context) *APIResult {
	var resp jellyseerrUsersResponse
	status, err := j.rest.getCached(ctx, "/api/v1/user?take=100", &resp)
	if err != nil {
		return Fail("failed to list jellyseerr users", err, status)
	}

	users := make([]ProviderUser, 0, len(resp.Results))
	for _, u := range resp.Results {
		users = append(users, ProviderUser{ID: u.ID, Name: u.DisplayName, Email: u.Email})
	}
	return OK(users, status)
}
