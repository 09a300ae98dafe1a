package controllers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/consolidate"
	"github.com/mlefebvre/suggestarr/internal/metrics"
	"github.com/mlefebvre/suggestarr/internal/models"
)

// SyncController pulls watch history from the configured media servers
// into the database
type SyncController struct {
	db     *models.Database
	logger *logrus.Logger

	mu      sync.RWMutex
	sources []WatchSource
}

// NewSyncController creates a new sync controller
func NewSyncController(db *models.Database, sources []WatchSource, logger *logrus.Logger) *SyncController {
	return &SyncController{
		db:      db,
		sources: sources,
		logger:  logger,
	}
}

// SetSources replaces the active sources, used when settings change.
// Safe to call while a sync is running.
func (c *SyncController) SetSources(sources []WatchSource) {
	c.mu.Lock()
	c.sources = sources
	c.mu.Unlock()
}

func (c *SyncController) activeSources() []WatchSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources
}

// SyncWatchHistory fetches events from every source, consolidates each
// user's batch, and upserts the result. One failing source does not
// abort the others. Returns the number of rows written.
func (c *SyncController) SyncWatchHistory(ctx context.Context, limit int) (int, error) {
	c.logger.Info("Starting watch history sync")

	written := 0
	failed := false
	for _, source := range c.activeSources() {
		batches, err := source.Fetch(ctx, limit)
		if err != nil {
			c.logger.WithField("source", source.Name()).WithError(err).Error("Source sync failed")
			failed = true
			continue
		}

		for _, batch := range batches {
			items := consolidate.Consolidate(batch.Events)
			for _, item := range items {
				entry := &models.WatchHistory{
					Title:          item.Name,
					MediaID:        item.ID,
					MediaType:      item.Type,
					WatchedBy:      batch.User,
					Source:         batch.Source,
					LastPlayedDate: item.LastPlayedDate,
					PlayCount:      item.PlayCount,
					IsFavorite:     item.IsFavorite,
				}
				if err := c.db.UpsertWatchHistory(entry); err != nil {
					c.logger.WithFields(logrus.Fields{
						"title": item.Name,
						"user":  batch.User,
					}).WithError(err).Error("Failed to store watch history row")
					continue
				}
				written++
			}
			c.logger.WithFields(logrus.Fields{
				"source": source.Name(),
				"user":   batch.User,
				"items":  len(items),
			}).Info("Synced user watch history")
		}
	}

	outcome := "success"
	if failed {
		outcome = "partial"
	}
	metrics.SyncRuns.WithLabelValues(outcome).Inc()
	metrics.SyncedItems.Add(float64(written))

	c.logger.WithField("written", written).Info("Watch history sync completed")
	return written, nil
}
