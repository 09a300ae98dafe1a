package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/recommend"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

// Client talks to a local Ollama instance
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *logrus.Logger
}

// NewClient creates an Ollama recommendation backend. A zero temperature
// leaves the model default in place.
func NewClient(baseURL, model string, temperature float64, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		// Local model inference is slow; give it room
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

func (c *Client) Name() string { return "ollama" }

// DefaultSettings declares the settings this backend reads
func (c *Client) DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "ollama", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable the Ollama recommendation backend"},
		{Group: "ollama", Name: "base_url", Type: settings.TypeString, Default: "http://localhost:11434", Description: "Ollama server URL"},
		{Group: "ollama", Name: "model", Type: settings.TypeString, Default: "llama3.1", Description: "Model to run"},
		{Group: "ollama", Name: "temperature", Type: settings.TypeFloat, Default: "0", Description: "Sampling temperature, 0 for the model default"},
	}
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Format  string           `json:"format"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Recommend runs the prompt through /api/generate and parses the reply
func (c *Client) Recommend(ctx context.Context, prompt string) (*recommend.Result, error) {
	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}
	if c.temperature > 0 {
		body.Options = &generateOptions{Temperature: c.temperature}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.WithField("model", c.model).Debug("Calling Ollama")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	candidates, err := recommend.ParseCandidates(generated.Response)
	if err != nil {
		return nil, err
	}

	// Ollama reports eval counts only; it has no separate thought tokens
	return &recommend.Result{
		Candidates: candidates,
		Usage: recommend.TokenUsage{
			PromptTokens:    generated.PromptEvalCount,
			CandidateTokens: generated.EvalCount,
			TotalTokens:     generated.PromptEvalCount + generated.EvalCount,
		},
	}, nil
}
