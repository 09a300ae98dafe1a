package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mlefebvre/suggestarr/internal/consolidate"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// A user rating at or above this marks an item as a favorite. Plex has
// no favorite flag of its own.
const favoriteRatingThreshold = 9.0

// Client handles communication with a Plex Media Server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient creates a new Plex API client
func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
	}
}

// DefaultSettings declares the settings this adapter reads
func DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "plex", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable the Plex watch history source"},
		{Group: "plex", Name: "base_url", Type: settings.TypeString, Default: "", Description: "Plex server URL"},
		{Group: "plex", Name: "token", Type: settings.TypeString, Default: "", Description: "Plex authentication token"},
		{Group: "plex", Name: "users", Type: settings.TypeString, Default: "", Description: "Comma-separated account names to sync, empty for all"},
	}
}

// User is a Plex server account
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type mediaContainerResponse struct {
	MediaContainer struct {
		Accounts []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"Account"`
		Directories []struct {
			Key  string `json:"key"`
			Type string `json:"type"`
		} `json:"Directory"`
		Metadata []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type metadata struct {
	RatingKey            string   `json:"ratingKey"`
	Title                string   `json:"title"`
	Type                 string   `json:"type"`
	GrandparentKey       string   `json:"grandparentKey"`
	GrandparentTitle     string   `json:"grandparentTitle"`
	ViewedAt             int64    `json:"viewedAt"`
	ViewCount            *int     `json:"viewCount"`
	UserRating           *float64 `json:"userRating"`
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	c.logger.WithField("url", fullURL).Debug("Making Plex API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
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

// GetUsers retrieves the accounts known to the server
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var resp mediaContainerResponse
	if err := c.doRequest(ctx, "/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	users := make([]User, 0, len(resp.MediaContainer.Accounts))
	for _, acc := range resp.MediaContainer.Accounts {
		if acc.Name == "" {
			continue
		}
		users = append(users, User{ID: acc.ID, Name: acc.Name})
	}
	return users, nil
}

// GetUserByName retrieves one account by name
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
	return nil, fmt.Errorf("plex account not found: %s", name)
}

// GetRecentlyWatched retrieves an account's play history, newest first
func (c *Client) GetRecentlyWatched(ctx context.Context, accountID, limit int) ([]consolidate.RawMediaEvent, error) {
	query := url.Values{}
	query.Set("accountID", strconv.Itoa(accountID))
	query.Set("sort", "viewedAt:desc")
	if limit > 0 {
		query.Set("X-Plex-Container-Size", strconv.Itoa(limit))
	}

	var resp mediaContainerResponse
	if err := c.doRequest(ctx, "/status/sessions/history/all", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get watch history: %w", err)
	}
	return c.toEvents(resp.MediaContainer.Metadata, consolidate.ScanHistory), nil
}

// GetFavorites retrieves highly rated library items. Plex has no user
// favorite flag, so a high user rating stands in for one.
func (c *Client) GetFavorites(ctx context.Context) ([]consolidate.RawMediaEvent, error) {
	all, err := c.GetAllItems(ctx)
	if err != nil {
		return nil, err
	}
	favorites := all[:0]
	for _, ev := range all {
		if ev.IsFavorite != nil && *ev.IsFavorite {
			favorites = append(favorites, ev)
		}
	}
	return favorites, nil
}

// GetAllItems retrieves every movie and show in the server's libraries.
// Library scans never carry recency.
func (c *Client) GetAllItems(ctx context.Context) ([]consolidate.RawMediaEvent, error) {
	var sections mediaContainerResponse
	if err := c.doRequest(ctx, "/library/sections", nil, &sections); err != nil {
		return nil, fmt.Errorf("failed to list library sections: %w", err)
	}

	var events []consolidate.RawMediaEvent
	for _, dir := range sections.MediaContainer.Directories {
		if dir.Type != "movie" && dir.Type != "show" {
			continue
		}
		var resp mediaContainerResponse
		if err := c.doRequest(ctx, "/library/sections/"+dir.Key+"/all", nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to scan library section %s: %w", dir.Key, err)
		}
		events = append(events, c.toEvents(resp.MediaContainer.Metadata, consolidate.ScanLibrary)...)
	}
	return events, nil
}

func (c *Client) toEvents(items []metadata, scan consolidate.ScanKind) []consolidate.RawMediaEvent {
	events := make([]consolidate.RawMediaEvent, 0, len(items))
	for _, it := range items {
		ev := consolidate.RawMediaEvent{
			Name:      it.Title,
			ID:        it.RatingKey,
			PlayCount: it.ViewCount,
			Scan:      scan,
		}
		switch it.Type {
		case "movie":
			ev.Kind = consolidate.KindMovie
		case "episode":
			ev.Kind = consolidate.KindEpisode
			ev.SeriesName = it.GrandparentTitle
			ev.SeriesID = it.GrandparentKey
		case "show":
			ev.Kind = consolidate.KindSeries
		default:
			c.logger.WithField("type", it.Type).Debug("Skipping unsupported item type")
			continue
		}
		if scan == consolidate.ScanHistory && it.ViewedAt > 0 {
			ev.LastPlayedDate = time.Unix(it.ViewedAt, 0).UTC().Format(time.RFC3339)
		}
		if it.UserRating != nil {
			fav := *it.UserRating >= favoriteRatingThreshold
			ev.IsFavorite = &fav
		}
		events = append(events, ev)
	}
	return events
}
