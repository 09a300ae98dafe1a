package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mlefebvre/suggestarr/internal/consolidate"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// Client handles communication with a Jellyfin server
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient creates a new Jellyfin API client
func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
	}
}

// DefaultSettings declares the settings this adapter reads
func DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "jellyfin", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable the Jellyfin watch history source"},
		{Group: "jellyfin", Name: "base_url", Type: settings.TypeString, Default: "", Description: "Jellyfin server URL"},
		{Group: "jellyfin", Name: "api_key", Type: settings.TypeString, Default: "", Description: "Jellyfin API key"},
		{Group: "jellyfin", Name: "users", Type: settings.TypeString, Default: "", Description: "Comma-separated user names to sync, empty for all"},
	}
}

// User is a Jellyfin user account
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type item struct {
	ID           string `json:"Id"`
	Name         string `json:"Name"`
	Type         string `json:"Type"`
	SeriesID     string `json:"SeriesId"`
	SeriesName   string `json:"SeriesName"`
	UserData     *userData
}

type userData struct {
	LastPlayedDate string `json:"LastPlayedDate"`
	PlayCount      *int   `json:"PlayCount"`
	IsFavorite     *bool  `json:"IsFavorite"`
}

type itemsResponse struct {
	Items []item `json:"Items"`
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	c.logger.WithField("url", fullURL).Debug("Making Jellyfin API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization",
		fmt.Sprintf(`MediaBrowser Client="Suggestarr", Device="Suggestarr", DeviceId="suggestarr", Version="1.0", Token=%q`, c.apiKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetUsers retrieves all user accounts on the server
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doRequest(ctx, "/Users", nil, &users); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// GetUserByName retrieves one user account by display name
func (c *Client) GetUserByName(ctx context.Context, name string) (*User, error) {
	users, err := c.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Name == name {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("jellyfin user not found: %s", name)
}

// GetRecentlyWatched retrieves a user's play history, newest first
func (c *Client) GetRecentlyWatched(ctx context.Context, userID string, limit int) ([]consolidate.RawMediaEvent, error) {
	query := url.Values{}
	query.Set("SortBy", "DatePlayed")
	query.Set("SortOrder", "Descending")
	query.Set("IncludeItemTypes", "Movie,Episode")
	query.Set("Filters", "IsPlayed")
	query.Set("Recursive", "true")
	query.Set("Fields", "UserData")
	if limit > 0 {
		query.Set("Limit", fmt.Sprintf("%d", limit))
	}

	var resp itemsResponse
	if err := c.doRequest(ctx, "/Users/"+userID+"/Items", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get watch history: %w", err)
	}
	return c.toEvents(resp.Items, consolidate.ScanHistory), nil
}

// GetFavorites retrieves the items a user has marked as favorites
func (c *Client) GetFavorites(ctx context.Context, userID string) ([]consolidate.RawMediaEvent, error) {
	query := url.Values{}
	query.Set("IncludeItemTypes", "Movie,Series")
	query.Set("Filters", "IsFavorite")
	query.Set("Recursive", "true")
	query.Set("Fields", "UserData")

	var resp itemsResponse
	if err := c.doRequest(ctx, "/Users/"+userID+"/Items", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	return c.toEvents(resp.Items, consolidate.ScanHistory), nil
}

// GetAllItems retrieves everything in the user's libraries. Library
// scans never carry recency.
func (c *Client) GetAllItems(ctx context.Context, userID string) ([]consolidate.RawMediaEvent, error) {
	query := url.Values{}
	query.Set("IncludeItemTypes", "Movie,Series")
	query.Set("Recursive", "true")
	query.Set("Fields", "UserData")

	var resp itemsResponse
	if err := c.doRequest(ctx, "/Users/"+userID+"/Items", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get library items: %w", err)
	}
	return c.toEvents(resp.Items, consolidate.ScanLibrary), nil
}

func (c *Client) toEvents(items []item, scan consolidate.ScanKind) []consolidate.RawMediaEvent {
	events := make([]consolidate.RawMediaEvent, 0, len(items))
	for _, it := range items {
		ev := consolidate.RawMediaEvent{
			Name: it.Name,
			ID:   it.ID,
			Scan: scan,
		}
		switch it.Type {
		case "Movie":
			ev.Kind = consolidate.KindMovie
		case "Episode":
			ev.Kind = consolidate.KindEpisode
			ev.SeriesName = it.SeriesName
			ev.SeriesID = it.SeriesID
		case "Series":
			ev.Kind = consolidate.KindSeries
		default:
			c.logger.WithField("type", it.Type).Debug("Skipping unsupported item type")
			continue
		}
		if it.UserData != nil {
			ev.LastPlayedDate = it.UserData.LastPlayedDate
			ev.PlayCount = it.UserData.PlayCount
			ev.IsFavorite = it.UserData.IsFavorite
		}
		events = append(events, ev)
	}
	return events
}
