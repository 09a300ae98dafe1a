package models

import "time"

// Search is a saved, replayable search: a named prompt plus the
// parameter bag it was created with
type Search struct {
	ID     uint64 `boltholdKey:"ID"`
	Name   string
	Prompt string
	Kwargs string // JSON-encoded parameter bag

	LastRunAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchStat records token usage for one recommendation run of a search
type SearchStat struct {
	ID       uint64 `boltholdKey:"ID"`
	SearchID uint64 `boltholdIndex:"SearchID"`

	PromptTokens    int
	CandidateTokens int
	ThoughtTokens   int
	TotalTokens     int

	CreatedAt time.Time
}

// StatSummary is the aggregate of SearchStat rows over a date range
type StatSummary struct {
	TotalPromptTokens    int `json:"total_prompt_tokens"`
	TotalCandidateTokens int `json:"total_candidates_tokens"`
	TotalThoughtTokens   int `json:"total_thoughts_tokens"`
	TotalTokens          int `json:"total_tokens"`
}
