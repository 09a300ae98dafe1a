package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// TokenUsage is the token accounting for one model call. Backends that
// do not report a field leave it zero.
type TokenUsage struct {
	PromptTokens    int `json:"prompt_token_count"`
	CandidateTokens int `json:"candidates_token_count"`
	ThoughtTokens   int `json:"thoughts_token_count"`
	TotalTokens     int `json:"total_token_count"`
}

// Candidate is one suggested title from the model
type Candidate struct {
	Title       string           `json:"title"`
	MediaType   models.MediaType `json:"media_type"`
	Description string           `json:"description"`
	Similarity  string           `json:"similarity"`
}

// Result is the outcome of one recommendation call
type Result struct {
	Candidates []Candidate
	Usage      TokenUsage
}

// Recommender produces media suggestions from a prompt
type Recommender interface {
	// Name identifies the backend in suggestion records and logs
	Name() string

	// Recommend runs the prompt and returns parsed suggestions
	Recommend(ctx context.Context, prompt string) (*Result, error)

	// DefaultSettings declares the settings this backend reads
	DefaultSettings() []settings.Spec
}

// ParseCandidates extracts suggestions from a model's raw text reply.
// Models wrap JSON in markdown fences or an object envelope often
// enough that both are tolerated.
func ParseCandidates(raw string) ([]Candidate, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(text), &candidates); err == nil {
		return validCandidates(candidates), nil
	}

	var envelope struct {
		Suggestions []Candidate `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Suggestions != nil {
		return validCandidates(envelope.Suggestions), nil
	}

	return nil, fmt.Errorf("model reply is not a suggestion list: %.120s", text)
}

func validCandidates(candidates []Candidate) []Candidate {
	valid := candidates[:0]
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		if !c.MediaType.Valid() {
			c.MediaType = models.MediaTypeMovie
		}
		valid = append(valid, c)
	}
	return valid
}
