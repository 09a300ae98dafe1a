package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Transient status codes worth retrying
func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// restClient is the HTTP plumbing shared by all providers: JSON
// round-trips, bounded retry on transient failures, and a small
// read-through cache for lookups.
type restClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *logrus.Logger
}

func newRESTClient(baseURL string, headers map[string]string, logger *logrus.Logger) *restClient {
	return &restClient{
		baseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache.New(5*time.Minute, 10*time.Minute),
		logger:     logger,
	}
}

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.status, e.body)
}

// do performs one JSON request with retry on network errors and
// transient status codes. At most two retries after the first attempt.
func (c *restClient) do(ctx context.Context, method, path string, body interface{}, result interface{}) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var status int
	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		c.logger.WithFields(logrus.Fields{
			"method": method,
			"url":    c.baseURL + path,
		}).Debug("Making provider API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			herr := &httpError{status: resp.StatusCode, body: string(bodyBytes)}
			if retryable(resp.StatusCode) {
				return herr
			}
			return backoff.Permanent(herr)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return status, err
	}
	return status, nil
}

// getCached performs a GET, serving repeats of the same path from the
// cache for its lifetime
func (c *restClient) getCached(ctx context.Context, path string, result interface{}) (int, error) {
	if cached, found := c.cache.Get(path); found {
		raw := cached.([]byte)
		if err := json.Unmarshal(raw, result); err == nil {
			return http.StatusOK, nil
		}
	}

	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodGet, path, nil, &raw)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return status, fmt.Errorf("failed to decode response: %w", err)
	}
	c.cache.Set(path, []byte(raw), cache.DefaultExpiration)
	return status, nil
}
