package consolidate

import (
	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
)

// EventKind classifies a raw media event from a source server
type EventKind string

const (
	KindMovie   EventKind = "movie"
	KindEpisode EventKind = "episode"
	KindSeries  EventKind = "series"
)

// ScanKind tells where an event came from. Only history scans carry a
// meaningful last-played date; library scans must never advance recency.
type ScanKind string

const (
	ScanHistory ScanKind = "history"
	ScanLibrary ScanKind = "library"
)

// RawMediaEvent is one item as reported by a media server, before
// consolidation
type RawMediaEvent struct {
	Kind EventKind
	Name string
	ID   string

	// Set on episode events; the episode is folded into its series
	SeriesName string
	SeriesID   string

	LastPlayedDate string // ISO-8601 UTC, empty when unknown
	PlayCount      *int
	IsFavorite     *bool

	Scan ScanKind
}

// Consolidate folds raw events into one MediaItem per distinct name.
// Episodes collapse into their parent series. The most recent played
// date wins across duplicates, while play count and favorite keep the
// first non-nil value seen. Events with no usable name are dropped.
func Consolidate(events []RawMediaEvent) []models.MediaItem {
	byName := make(map[string]*models.MediaItem)
	var order []string

	for _, ev := range events {
		name, id, mediaType, ok := identity(ev)
		if !ok {
			continue
		}

		item, seen := byName[name]
		if !seen {
			item = &models.MediaItem{
				Name: name,
				ID:   id,
				Type: mediaType,
			}
			byName[name] = item
			order = append(order, name)
		}

		if ev.Scan != ScanLibrary && ev.LastPlayedDate != "" {
			// ISO-8601 strings compare chronologically
			if item.LastPlayedDate == "" || ev.LastPlayedDate > item.LastPlayedDate {
				item.LastPlayedDate = ev.LastPlayedDate
			}
		}
		if item.PlayCount == nil && ev.PlayCount != nil {
			item.PlayCount = ev.PlayCount
		}
		if item.IsFavorite == nil && ev.IsFavorite != nil {
			item.IsFavorite = ev.IsFavorite
		}
	}

	items := make([]models.MediaItem, 0, len(order))
	for _, name := range order {
		items = append(items, *byName[name])
	}
	return items
}

// Names consolidates events and returns just the distinct media names,
// in first-seen order
func Names(events []RawMediaEvent) []string {
	items := Consolidate(events)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

func identity(ev RawMediaEvent) (name, id string, mediaType models.MediaType, ok bool) {
	switch ev.Kind {
	case KindMovie:
		name, id, mediaType = ev.Name, ev.ID, models.MediaTypeMovie
	case KindEpisode:
		// Episodes count as a watch of the series itself
		name, id, mediaType = ev.SeriesName, ev.SeriesID, models.MediaTypeTV
	case KindSeries:
		name, id, mediaType = ev.Name, ev.ID, models.MediaTypeTV
	default:
		logrus.WithField("kind", ev.Kind).Debug("Skipping event with unknown kind")
		return "", "", "", false
	}

	if name == "" {
		logrus.WithFields(logrus.Fields{
			"kind": ev.Kind,
			"id":   id,
		}).Debug("Skipping event without a name")
		return "", "", "", false
	}
	return name, id, mediaType, true
}
