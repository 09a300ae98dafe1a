package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// APIResult is the uniform envelope every provider operation returns.
// Success false always carries a human-readable message.
type APIResult struct {
	Success    bool                   `json:"success"`
	Data       interface{}            `json:"data,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Error      map[string]interface{} `json:"error,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
}

// OK builds a successful result
func OK(data interface{}, statusCode int) *APIResult {
	return &APIResult{Success: true, Data: data, StatusCode: statusCode}
}

// Fail builds a failed result. The message must explain what went wrong.
func Fail(message string, err error, statusCode int) *APIResult {
	result := &APIResult{Success: false, Message: message, StatusCode: statusCode}
	if err != nil {
		result.Error = map[string]interface{}{"detail": err.Error()}
	}
	return result
}

// MediaQuery identifies media to look up, either by free-text title or
// by external catalog id plus media type
type MediaQuery struct {
	Title     string
	TMDBID    int64
	MediaType models.MediaType
}

// validate returns a client-error result when the query carries neither
// identifier form, nil when it is usable
func (q MediaQuery) validate() *APIResult {
	if q.Title == "" && q.TMDBID == 0 {
		return Fail("a title or a catalog id is required", nil, http.StatusBadRequest)
	}
	if q.Title == "" && q.MediaType == "" {
		return Fail("a media type is required with a catalog id", nil, http.StatusBadRequest)
	}
	if q.MediaType != "" && !q.MediaType.Valid() {
		return Fail(fmt.Sprintf("invalid media type: %s", q.MediaType), nil, http.StatusBadRequest)
	}
	return nil
}

// MediaLookup is one match from a provider's search endpoint
type MediaLookup struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	MediaType models.MediaType `json:"media_type"`
	Year      int              `json:"year,omitempty"`
	Overview  string           `json:"overview,omitempty"`
}

// QualityProfile is a download quality profile on a provider
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProviderUser is a user account on a request provider
type ProviderUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RequestProvider fulfills media requests against a downstream service
type RequestProvider interface {
	// Name identifies the provider in suggestion records and logs
	Name() string

	// Supports reports whether the provider handles this media type
	Supports(mediaType models.MediaType) bool

	// LookupMedia searches the provider by title or by catalog id
	LookupMedia(ctx context.Context, query MediaQuery) *APIResult

	// AddMedia requests the given media for download
	AddMedia(ctx context.Context, req AddMediaRequest) *APIResult

	// GetQualityProfiles lists the provider's quality profiles
	GetQualityProfiles(ctx context.Context) *APIResult

	// GetUsers lists the provider's user accounts
	GetUsers(ctx context.Context) *APIResult

	// DefaultSettings declares the settings this provider reads
	DefaultSettings() []settings.Spec
}

// AddMediaRequest carries everything needed to request one title
type AddMediaRequest struct {
	Title            string
	MediaType        models.MediaType
	TMDBID           int64
	QualityProfileID int64
	RootFolder       string
	UserID           int64
}
