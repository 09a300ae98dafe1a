package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client talks to the Gemini API
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	temperature    float64
	thinkingBudget int
	httpClient     *http.Client
	logger         *logrus.Logger
}

// NewClient creates a Gemini recommendation backend. An empty baseURL
// uses the public endpoint; zero temperature and thinking budget leave
// the model defaults in place.
func NewClient(baseURL, apiKey, model string, temperature float64, thinkingBudget int, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		model:          model,
		temperature:    temperature,
		thinkingBudget: thinkingBudget,
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
		logger:         logger,
	}
}

func (c *Client) Name() string { return "gemini" }

// DefaultSettings declares the settings this backend reads
func (c *Client) DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "gemini", Name: "enabled", Type: settings.TypeBool, Default: "false", Description: "Enable the Gemini recommendation backend"},
		{Group: "gemini", Name: "api_key", Type: settings.TypeString, Default: "", Description: "Gemini API key"},
		{Group: "gemini", Name: "model", Type: settings.TypeString, Default: "gemini-2.0-flash", Description: "Model to call"},
		{Group: "gemini", Name: "temperature", Type: settings.TypeFloat, Default: "0", Description: "Sampling temperature, 0 for the model default"},
		{Group: "gemini", Name: "thinking_budget", Type: settings.TypeInt, Default: "0", Description: "Thinking token budget, 0 for the model default"},
	}
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	ThinkingConfig   *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Recommend runs the prompt through generateContent and parses the reply
func (c *Client) Recommend(ctx context.Context, prompt string) (*recommend.Result, error) {
	config := &generationConfig{ResponseMIMEType: "application/json"}
	if c.temperature > 0 {
		config.Temperature = &c.temperature
	}
	if c.thinkingBudget > 0 {
		config.ThinkingConfig = &thinkingConfig{ThinkingBudget: c.thinkingBudget}
	}
	payload, err := json.Marshal(generateContentRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	c.logger.WithField("model", c.model).Debug("Calling Gemini")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var generated generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(generated.Candidates) == 0 || len(generated.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	candidates, err := recommend.ParseCandidates(generated.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}

	usage := generated.UsageMetadata
	return &recommend.Result{
		Candidates: candidates,
		Usage: recommend.TokenUsage{
			PromptTokens:    usage.PromptTokenCount,
			CandidateTokens: usage.CandidatesTokenCount,
			ThoughtTokens:   usage.ThoughtsTokenCount,
			TotalTokens:     usage.TotalTokenCount,
		},
	}, nil
}
