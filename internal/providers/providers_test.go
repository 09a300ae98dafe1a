package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestValidationFailsWithoutNetworkCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	ctx := context.Background()
	logger := testLogger()

	checks := []*APIResult{
		NewJellyseerr(server.URL, "k", 0, logger).LookupMedia(ctx, MediaQuery{}),
		NewJellyseerr(server.URL, "k", 0, logger).LookupMedia(ctx, MediaQuery{TMDBID: 603}),
		NewJellyseerr(server.URL, "k", 0, logger).AddMedia(ctx, AddMediaRequest{Title: "X", MediaType: "album"}),
		NewRadarr(server.URL, "k", "/movies", 0, logger).AddMedia(ctx, AddMediaRequest{Title: "X", MediaType: models.MediaTypeTV}),
		NewSonarr(server.URL, "k", "/tv", 0, logger).AddMedia(ctx, AddMediaRequest{Title: "X", MediaType: models.MediaTypeMovie}),
		NewRadarr(server.URL, "k", "/movies", 0, logger).LookupMedia(ctx, MediaQuery{MediaType: models.MediaTypeMovie}),
	}

	for i, result := range checks {
		if result.Success {
			t.Errorf("check %d: expected failure", i)
		}
		if result.StatusCode != http.StatusBadRequest {
			t.Errorf("check %d: expected 400, got %d", i, result.StatusCode)
		}
		if result.Message == "" {
			t.Errorf("check %d: failed result must carry a message", i)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("validation failures must not reach the network, saw %d calls", n)
	}
}

func TestFailEncodesStructuredError(t *testing.T) {
	raw, err := json.Marshal(Fail("radarr add failed", errors.New("connection refused"), http.StatusBadGateway))
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Error   map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Success {
		t.Error("expected success false")
	}
	if envelope.Error["detail"] != "connection refused" {
		t.Errorf("expected error detail mapping, got %v", envelope.Error)
	}

	// Without a cause the error key stays absent
	raw, _ = json.Marshal(Fail("title is required", nil, http.StatusBadRequest))
	var bare map[string]interface{}
	json.Unmarshal(raw, &bare)
	if _, present := bare["error"]; present {
		t.Errorf("expected no error key, got %v", bare["error"])
	}
}

func TestJellyseerrAddMediaResolvesID(t *testing.T) {
	var requestBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/search":
			w.Write([]byte(`{"results":[
				{"id":603,"mediaType":"movie","title":"The Matrix"},
				{"id":604,"mediaType":"movie","title":"The Matrix Reloaded"}
			]}`))
		case "/api/v1/request":
			json.NewDecoder(r.Body).Decode(&requestBody)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":1}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	provider := NewJellyseerr(server.URL, "k", 0, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:     "The Matrix",
		MediaType: models.MediaTypeMovie,
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if got, ok := requestBody["mediaId"].(float64); !ok || got != 603 {
		t.Errorf("expected first match id 603, got %v", requestBody["mediaId"])
	}
}

func TestJellyseerrAddMediaNullIDWhenNoMatch(t *testing.T) {
	var requestBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/search":
			w.Write([]byte(`{"results":[]}`))
		case "/api/v1/request":
			json.NewDecoder(r.Body).Decode(&requestBody)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":2}`))
		}
	}))
	defer server.Close()

	provider := NewJellyseerr(server.URL, "k", 0, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:     "Completely Unknown Title",
		MediaType: models.MediaTypeMovie,
	})
	if !result.Success {
		t.Fatalf("expected the request to go out anyway, got %+v", result)
	}
	if v, present := requestBody["mediaId"]; !present || v != nil {
		t.Errorf("expected explicit null mediaId, got %v (present=%v)", v, present)
	}
}

func TestRadarrAddMedia(t *testing.T) {
	var added map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/movie/lookup":
			w.Write([]byte(`[{"tmdbId":603,"title":"The Matrix","year":1999}]`))
		case "/api/v3/movie":
			if r.Header.Get("X-Api-Key") != "secret" {
				t.Errorf("missing api key header")
			}
			json.NewDecoder(r.Body).Decode(&added)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":10}`))
		}
	}))
	defer server.Close()

	provider := NewRadarr(server.URL, "secret", "/movies", 0, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:            "The Matrix",
		MediaType:        models.MediaTypeMovie,
		QualityProfileID: 4,
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if added["tmdbId"].(float64) != 603 {
		t.Errorf("expected resolved tmdbId, got %v", added["tmdbId"])
	}
	if added["rootFolderPath"] != "/movies" {
		t.Errorf("expected default root folder, got %v", added["rootFolderPath"])
	}
	if added["qualityProfileId"].(float64) != 4 {
		t.Errorf("expected quality profile 4, got %v", added["qualityProfileId"])
	}
}

func TestSonarrAddMediaNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	provider := NewSonarr(server.URL, "k", "/tv", 0, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:     "No Such Show",
		MediaType: models.MediaTypeTV,
	})
	if result.Success {
		t.Fatal("expected failure when lookup finds nothing")
	}
	if result.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", result.StatusCode)
	}
}

func TestJellyseerrQualityProfilesManagedInternally(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	result := NewJellyseerr(server.URL, "k", 0, testLogger()).GetQualityProfiles(context.Background())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	profiles, ok := result.Data.([]QualityProfile)
	if !ok || len(profiles) != 0 {
		t.Errorf("expected an empty profile list, got %v", result.Data)
	}
	if result.Message == "" {
		t.Error("expected a message explaining why the list is empty")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("no request should go out, saw %d calls", calls)
	}
}

func TestRadarrLookupByCatalogID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie/lookup/tmdb" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("tmdbId") != "603" {
			t.Errorf("unexpected tmdbId %q", r.URL.Query().Get("tmdbId"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tmdbId":603,"title":"The Matrix","year":1999}`))
	}))
	defer server.Close()

	provider := NewRadarr(server.URL, "k", "/movies", 0, testLogger())
	result := provider.LookupMedia(context.Background(), MediaQuery{TMDBID: 603, MediaType: models.MediaTypeMovie})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	matches, _ := result.Data.([]MediaLookup)
	if len(matches) != 1 || matches[0].ID != 603 || matches[0].Title != "The Matrix" {
		t.Errorf("unexpected matches %+v", matches)
	}
}

func TestJellyseerrLookupByCatalogID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tv/1396" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1396,"name":"Breaking Bad","overview":"Chemistry"}`))
	}))
	defer server.Close()

	provider := NewJellyseerr(server.URL, "k", 0, testLogger())
	result := provider.LookupMedia(context.Background(), MediaQuery{TMDBID: 1396, MediaType: models.MediaTypeTV})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	matches, _ := result.Data.([]MediaLookup)
	if len(matches) != 1 || matches[0].Title != "Breaking Bad" {
		t.Errorf("unexpected matches %+v", matches)
	}
}

func TestRadarrAddMediaUsesConfiguredProfile(t *testing.T) {
	var added map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/movie/lookup":
			w.Write([]byte(`[{"tmdbId":603,"title":"The Matrix","year":1999}]`))
		case "/api/v3/movie":
			json.NewDecoder(r.Body).Decode(&added)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":11}`))
		}
	}))
	defer server.Close()

	provider := NewRadarr(server.URL, "k", "/movies", 7, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:     "The Matrix",
		MediaType: models.MediaTypeMovie,
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if added["qualityProfileId"].(float64) != 7 {
		t.Errorf("expected configured profile 7, got %v", added["qualityProfileId"])
	}
}

func TestJellyseerrAddMediaUsesConfiguredUser(t *testing.T) {
	var requestBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/search":
			w.Write([]byte(`{"results":[{"id":603,"mediaType":"movie","title":"The Matrix"}]}`))
		case "/api/v1/request":
			json.NewDecoder(r.Body).Decode(&requestBody)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":3}`))
		}
	}))
	defer server.Close()

	provider := NewJellyseerr(server.URL, "k", 42, testLogger())
	result := provider.AddMedia(context.Background(), AddMediaRequest{
		Title:     "The Matrix",
		MediaType: models.MediaTypeMovie,
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if got, ok := requestBody["userId"].(float64); !ok || got != 42 {
		t.Errorf("expected configured user 42, got %v", requestBody["userId"])
	}
}

func TestRetryOnTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"HD-1080p"}]`))
	}))
	defer server.Close()

	provider := NewRadarr(server.URL, "k", "/movies", 0, testLogger())
	result := provider.GetQualityProfiles(context.Background())
	if !result.Success {
		t.Fatalf("expected recovery after retry, got %+v", result)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected exactly one retry, saw %d calls", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewRadarr(server.URL, "bad-key", "/movies", 0, testLogger())
	result := provider.GetQualityProfiles(context.Background())
	if result.Success {
		t.Fatal("expected failure")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("client errors must not be retried, saw %d calls", calls)
	}
}
