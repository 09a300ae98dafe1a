package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/controllers"
	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/providers"
	"github.com/mlefebvre/suggestarr/internal/scheduler"
	"github.com/mlefebvre/suggestarr/internal/settings"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fixture struct {
	db    *models.Database
	svc   *settings.Service
	sched *scheduler.Scheduler
	mux   *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := settings.NewService(db)
	if err := svc.Register(controllers.DefaultSettings()); err != nil {
		t.Fatalf("failed to register settings: %v", err)
	}

	logger := testLogger()
	sched := scheduler.NewScheduler(db, logger)
	recommendCtrl := controllers.NewRecommendController(db, svc, nil, nil, logger)
	syncCtrl := controllers.NewSyncController(db, nil, logger)

	mux := http.NewServeMux()

	statusHandler := NewStatusHandler(db, logger)
	mux.HandleFunc("GET /api/status", statusHandler.ServeHTTP)

	historyHandler := NewHistoryHandler(db, syncCtrl, svc, logger)
	mux.HandleFunc("GET /api/history", historyHandler.List)
	mux.HandleFunc("DELETE /api/history", historyHandler.DeleteAll)
	mux.HandleFunc("DELETE /api/history/{id}", historyHandler.DeleteOne)
	mux.HandleFunc("GET /api/users", historyHandler.Users)

	suggestionsHandler := NewSuggestionsHandler(db, recommendCtrl, logger)
	mux.HandleFunc("GET /api/suggestions", suggestionsHandler.List)
	mux.HandleFunc("GET /api/suggestions/values", suggestionsHandler.Values)
	mux.HandleFunc("POST /api/suggestions/{id}/ignore", suggestionsHandler.ToggleIgnore)

	searchHandler := NewSearchHandler(db, recommendCtrl, logger)
	mux.HandleFunc("GET /api/searches", searchHandler.List)
	mux.HandleFunc("POST /api/searches", searchHandler.Create)
	mux.HandleFunc("DELETE /api/searches/{id}", searchHandler.Delete)
	mux.HandleFunc("GET /api/searches/{id}/stats", searchHandler.Stats)
	mux.HandleFunc("GET /api/stats/summary", searchHandler.Summary)
	mux.HandleFunc("GET /api/prompt/preview", searchHandler.Preview)

	scheduleHandler := NewScheduleHandler(db, sched, logger)
	mux.HandleFunc("GET /api/schedules", scheduleHandler.List)
	mux.HandleFunc("POST /api/schedules", scheduleHandler.Create)
	mux.HandleFunc("POST /api/schedules/{job_id}/trigger", scheduleHandler.Trigger)

	settingsHandler := NewSettingsHandler(svc, logger)
	mux.HandleFunc("GET /api/settings", settingsHandler.List)
	mux.HandleFunc("PUT /api/settings/{group}/{name}", settingsHandler.Update)

	return &fixture{db: db, svc: svc, sched: sched, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestHistoryListGroupsByUser(t *testing.T) {
	f := newFixture(t)
	for _, row := range []*models.WatchHistory{
		{Title: "Heat", WatchedBy: "alice", MediaType: models.MediaTypeMovie},
		{Title: "Severance", WatchedBy: "alice", MediaType: models.MediaTypeTV},
		{Title: "Heat", WatchedBy: "bob", MediaType: models.MediaTypeMovie},
	} {
		if err := f.db.UpsertWatchHistory(row); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var grouped map[string][]*models.WatchHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(grouped["alice"]) != 2 || len(grouped["bob"]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}
}

func TestHistoryListRejectsBadLimit(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/history?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHistoryListRange(t *testing.T) {
	f := newFixture(t)
	if err := f.db.UpsertWatchHistory(&models.WatchHistory{Title: "Heat", WatchedBy: "alice"}); err != nil {
		t.Fatal(err)
	}

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := f.do(t, http.MethodGet, "/api/history?start="+start+"&end="+end, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var grouped map[string][]*models.WatchHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(grouped["alice"]) != 1 {
		t.Errorf("expected row inside range, got %v", grouped)
	}

	rec = f.do(t, http.MethodGet, "/api/history?start="+end, "")
	var empty map[string][]*models.WatchHistory
	json.Unmarshal(rec.Body.Bytes(), &empty)
	if len(empty) != 0 {
		t.Errorf("expected no rows before start, got %v", empty)
	}

	rec = f.do(t, http.MethodGet, "/api/history?start=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad start, got %d", rec.Code)
	}
}

func TestUsersEndpoint(t *testing.T) {
	f := newFixture(t)
	if err := f.db.UpsertWatchHistory(&models.WatchHistory{Title: "Heat", WatchedBy: "alice"}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/users", "")
	var users []string
	json.Unmarshal(rec.Body.Bytes(), &users)
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("unexpected users %v", users)
	}
}

func TestDeleteHistoryRow(t *testing.T) {
	f := newFixture(t)
	if err := f.db.UpsertWatchHistory(&models.WatchHistory{Title: "Heat", WatchedBy: "alice"}); err != nil {
		t.Fatal(err)
	}
	rows, _ := f.db.GetWatchHistory(0, false)

	rec := f.do(t, http.MethodDelete, "/api/history/"+itoa(rows[0].ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	remaining, _ := f.db.GetWatchHistory(0, false)
	if len(remaining) != 0 {
		t.Errorf("row should be gone, got %d", len(remaining))
	}

	rec = f.do(t, http.MethodDelete, "/api/history/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestSearchCreateAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/searches", `{"name":"weekly","prompt":"custom {{.Limit}}"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/searches", `{"prompt":"nameless"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/searches", "")
	var searches []*models.Search
	json.Unmarshal(rec.Body.Bytes(), &searches)
	if len(searches) != 1 || searches[0].Name != "weekly" {
		t.Errorf("unexpected searches %+v", searches)
	}
}

func TestSearchStatsAndSummary(t *testing.T) {
	f := newFixture(t)
	search := &models.Search{Name: "weekly"}
	if err := f.db.CreateSearch(search); err != nil {
		t.Fatal(err)
	}
	if err := f.db.AddSearchStat(&models.SearchStat{SearchID: search.ID, PromptTokens: 10, TotalTokens: 15}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/searches/"+itoa(search.ID)+"/stats", "")
	var stats []*models.SearchStat
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if len(stats) != 1 || stats[0].TotalTokens != 15 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rec = f.do(t, http.MethodGet, "/api/stats/summary", "")
	var summary models.StatSummary
	json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.TotalTokens != 15 {
		t.Errorf("unexpected summary %+v", summary)
	}

	rec = f.do(t, http.MethodGet, "/api/stats/summary?start=not-a-date", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestPromptPreview(t *testing.T) {
	f := newFixture(t)
	if err := f.db.UpsertWatchHistory(&models.WatchHistory{Title: "Heat", WatchedBy: "alice"}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/prompt/preview", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]string
	json.Unmarshal(rec.Body.Bytes(), &payload)
	if !strings.Contains(payload["prompt"], "Heat") {
		t.Errorf("preview should mention watched titles, got %q", payload["prompt"])
	}
}

func TestScheduleCreateConflictAndTrigger(t *testing.T) {
	f := newFixture(t)

	body := `{"job_id":"nightly","func_name":"run_recommendation_cycle","hour":"2","minute":"0"}`
	rec := f.do(t, http.MethodPost, "/api/schedules", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate job ids are rejected
	rec = f.do(t, http.MethodPost, "/api/schedules", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate job_id, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/schedules/nightly/trigger", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/schedules/unknown/trigger", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestSuggestionsEndpoints(t *testing.T) {
	f := newFixture(t)
	s := &models.Suggestion{Title: "Collateral", MediaType: models.MediaTypeMovie, RequestStatus: models.RequestStatusPending}
	if err := f.db.CreateSuggestion(s); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/suggestions", "")
	var suggestions []*models.Suggestion
	json.Unmarshal(rec.Body.Bytes(), &suggestions)
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}

	rec = f.do(t, http.MethodPost, "/api/suggestions/"+itoa(s.ID)+"/ignore", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/suggestions?ignored=true", "")
	json.Unmarshal(rec.Body.Bytes(), &suggestions)
	if len(suggestions) != 1 || !suggestions[0].Ignore {
		t.Errorf("expected the ignored row, got %+v", suggestions)
	}

	rec = f.do(t, http.MethodGet, "/api/suggestions/values?field=title", "")
	var values []string
	json.Unmarshal(rec.Body.Bytes(), &values)
	if len(values) != 1 || values[0] != "Collateral" {
		t.Errorf("unexpected values %v", values)
	}
	rec = f.do(t, http.MethodGet, "/api/suggestions/values", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without field, got %d", rec.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/settings/app/recent_limit", `{"value":"50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.svc.GetInt("app", "recent_limit"); got != 50 {
		t.Errorf("setting not applied, got %d", got)
	}

	rec = f.do(t, http.MethodPut, "/api/settings/app/recent_limit", `{"value":"lots"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for type mismatch, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/settings", "")
	var grouped map[string][]*models.Setting
	json.Unmarshal(rec.Body.Bytes(), &grouped)
	if len(grouped["app"]) == 0 {
		t.Errorf("expected app settings in listing")
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	if err := f.db.UpsertWatchHistory(&models.WatchHistory{Title: "Heat", WatchedBy: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := f.db.CreateSuggestion(&models.Suggestion{Title: "Collateral", RequestStatus: models.RequestStatusPending}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var status StatusResponse
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.HistoryRows != 1 || status.ActiveSuggestions != 1 {
		t.Errorf("unexpected status payload %+v", status)
	}
	if status.SuggestionsByStatus["pending"] != 1 {
		t.Errorf("expected pending count, got %+v", status.SuggestionsByStatus)
	}
}

type recordingProvider struct {
	name    string
	queries []providers.MediaQuery
}

func (p *recordingProvider) Name() string                      { return p.name }
func (p *recordingProvider) Supports(mt models.MediaType) bool { return true }
func (p *recordingProvider) DefaultSettings() []settings.Spec  { return nil }
func (p *recordingProvider) LookupMedia(ctx context.Context, query providers.MediaQuery) *providers.APIResult {
	p.queries = append(p.queries, query)
	return providers.OK([]providers.MediaLookup{}, http.StatusOK)
}
func (p *recordingProvider) AddMedia(ctx context.Context, req providers.AddMediaRequest) *providers.APIResult {
	return providers.OK(nil, http.StatusCreated)
}
func (p *recordingProvider) GetQualityProfiles(ctx context.Context) *providers.APIResult {
	return providers.OK([]providers.QualityProfile{}, http.StatusOK)
}
func (p *recordingProvider) GetUsers(ctx context.Context) *providers.APIResult {
	return providers.OK([]providers.ProviderUser{}, http.StatusOK)
}

func TestRequestLookupParsesCatalogID(t *testing.T) {
	provider := &recordingProvider{name: "radarr"}
	handler := NewRequestHandler([]providers.RequestProvider{provider}, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/request/{provider}/lookup", handler.Lookup)

	req := httptest.NewRequest(http.MethodGet, "/api/request/radarr/lookup?tmdb_id=603&media_type=movie", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(provider.queries) != 1 {
		t.Fatalf("expected one lookup, got %d", len(provider.queries))
	}
	if q := provider.queries[0]; q.TMDBID != 603 || q.MediaType != models.MediaTypeMovie || q.Title != "" {
		t.Errorf("unexpected query %+v", q)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/request/radarr/lookup?tmdb_id=abc", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad id, got %d", rec.Code)
	}
	if len(provider.queries) != 1 {
		t.Errorf("bad ids must not reach the provider, saw %d lookups", len(provider.queries))
	}
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
