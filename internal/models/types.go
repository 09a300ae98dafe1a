package models

// MediaType represents the type of media (movie or tv show)
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether the media type is one of the supported values.
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// RequestStatus represents the fulfillment outcome of a suggested title
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"   // Not yet sent to a provider
	RequestStatusRequested RequestStatus = "requested" // Accepted by a request provider
	RequestStatusSkipped   RequestStatus = "skipped"   // Already present or ignored
	RequestStatusFailed    RequestStatus = "failed"    // Lookup or request failed
)

// SourceKind identifies which media server a record came from
type SourceKind string

const (
	SourceJellyfin SourceKind = "jellyfin"
	SourcePlex     SourceKind = "plex"
)
