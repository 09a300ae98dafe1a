package models

import "time"

// MediaItem is the canonical, deduplicated representation of a movie or
// series produced by consolidation. For episodes the name and id refer to
// the parent series, never the episode itself.
type MediaItem struct {
	Name           string    `json:"name"`
	ID             string    `json:"id"`
	Type           MediaType `json:"type"`
	LastPlayedDate string    `json:"last_played_date,omitempty"` // ISO-8601, empty when unknown
	PlayCount      *int      `json:"play_count,omitempty"`
	IsFavorite     *bool     `json:"is_favorite,omitempty"`
}

// WatchHistory is a persisted consolidated watch record for one user
type WatchHistory struct {
	ID      uint64 `boltholdKey:"ID"`
	Title   string `boltholdIndex:"Title"`
	MediaID string

	MediaType MediaType
	WatchedBy string     `boltholdIndex:"WatchedBy"`
	Source    SourceKind // which media server reported it

	LastPlayedDate string // ISO-8601, advanced monotonically on re-sync
	PlayCount      *int
	IsFavorite     *bool

	// Processed tracks whether this row has been fed through a
	// recommendation cycle yet
	Processed bool `boltholdIndex:"Processed"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Suggestion is a recommended title returned by the recommendation
// collaborator, with its per-title fulfillment outcome
type Suggestion struct {
	ID          uint64 `boltholdKey:"ID"`
	Title       string `boltholdIndex:"Title"`
	SourceTitle string // the watched title this suggestion was derived from

	MediaType   MediaType
	TMDBID      int64
	Description string
	Similarity  string

	Ignore bool `boltholdIndex:"Ignore"`

	// Not indexed: bolthold gob-encodes index values and gob cannot
	// encode a nil pointer
	SearchID *uint64

	// Fulfillment outcome
	RequestStatus  RequestStatus
	RequestMessage string
	Provider       string // which request provider handled it

	CreatedAt time.Time
	UpdatedAt time.Time
}
