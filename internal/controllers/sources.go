package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/consolidate"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/services/jellyfin"
	"github.com/mlefebvre/suggestarr/internal/services/plex"
)

// UserEvents is one user's raw events from one media server
type UserEvents struct {
	User   string
	Source models.SourceKind
	Events []consolidate.RawMediaEvent
}

// WatchSource feeds raw media events into the sync pipeline
type WatchSource interface {
	// Name identifies the source in logs
	Name() string

	// Fetch returns per-user event batches
	Fetch(ctx context.Context, limit int) ([]UserEvents, error)
}

// JellyfinSource adapts a Jellyfin client into a WatchSource
type JellyfinSource struct {
	client *jellyfin.Client
	users  []string // empty means every account
	logger *logrus.Logger
}

// NewJellyfinSource creates a Jellyfin watch source. users is a
// comma-separated name list, empty for all accounts.
func NewJellyfinSource(client *jellyfin.Client, users string, logger *logrus.Logger) *JellyfinSource {
	return &JellyfinSource{
		client: client,
		users:  splitUsers(users),
		logger: logger,
	}
}

func (s *JellyfinSource) Name() string { return string(models.SourceJellyfin) }

// Fetch pulls play history and favorites for each selected user
func (s *JellyfinSource) Fetch(ctx context.Context, limit int) ([]UserEvents, error) {
	accounts, err := s.client.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jellyfin users: %w", err)
	}

	var batches []UserEvents
	for _, account := range accounts {
		if !selected(account.Name, s.users) {
			continue
		}

		events, err := s.client.GetRecentlyWatched(ctx, account.ID, limit)
		if err != nil {
			s.logger.WithField("user", account.Name).WithError(err).Error("Failed to fetch jellyfin watch history")
			continue
		}
		favorites, err := s.client.GetFavorites(ctx, account.ID)
		if err != nil {
			s.logger.WithField("user", account.Name).WithError(err).Warn("Failed to fetch jellyfin favorites")
		} else {
			events = append(events, favorites...)
		}

		batches = append(batches, UserEvents{
			User:   account.Name,
			Source: models.SourceJellyfin,
			Events: events,
		})
	}
	return batches, nil
}

// PlexSource adapts a Plex client into a WatchSource
type PlexSource struct {
	client *plex.Client
	users  []string
	logger *logrus.Logger
}

// NewPlexSource creates a Plex watch source. users is a comma-separated
// name list, empty for all accounts.
func NewPlexSource(client *plex.Client, users string, logger *logrus.Logger) *PlexSource {
	return &PlexSource{
		client: client,
		users:  splitUsers(users),
		logger: logger,
	}
}

func (s *PlexSource) Name() string { return string(models.SourcePlex) }

// Fetch pulls play history for each selected account, plus the library
// ratings standing in for favorites
func (s *PlexSource) Fetch(ctx context.Context, limit int) ([]UserEvents, error) {
	accounts, err := s.client.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plex accounts: %w", err)
	}

	var batches []UserEvents
	for _, account := range accounts {
		if !selected(account.Name, s.users) {
			continue
		}

		events, err := s.client.GetRecentlyWatched(ctx, account.ID, limit)
		if err != nil {
			s.logger.WithField("user", account.Name).WithError(err).Error("Failed to fetch plex watch history")
			continue
		}
		favorites, err := s.client.GetFavorites(ctx)
		if err != nil {
			s.logger.WithField("user", account.Name).WithError(err).Warn("Failed to fetch plex favorites")
		} else {
			events = append(events, favorites...)
		}

		batches = append(batches, UserEvents{
			User:   account.Name,
			Source: models.SourcePlex,
			Events: events,
		})
	}
	return batches, nil
}

func splitUsers(users string) []string {
	var out []string
	for _, u := range strings.Split(users, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func selected(name string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}
