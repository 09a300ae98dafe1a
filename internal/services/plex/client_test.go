package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/consolidate"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestGetRecentlyWatchedConvertsViewedAt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "tok" {
			t.Errorf("missing plex token header")
		}
		if r.URL.Path != "/status/sessions/history/all" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("accountID") != "7" {
			t.Errorf("expected accountID=7, got %q", r.URL.Query().Get("accountID"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"m1","title":"Heat","type":"movie","viewedAt":1712059200},
			{"ratingKey":"e1","title":"Pilot","type":"episode","grandparentKey":"s1","grandparentTitle":"Severance","viewedAt":1712145600}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", testLogger())
	events, err := client.GetRecentlyWatched(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[0].LastPlayedDate != "2024-04-02T12:00:00Z" {
		t.Errorf("unexpected converted date %q", events[0].LastPlayedDate)
	}
	if events[1].Kind != consolidate.KindEpisode || events[1].SeriesName != "Severance" {
		t.Errorf("unexpected episode event: %+v", events[1])
	}
}

func TestGetAllItemsWalksSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(`{"MediaContainer":{"Directory":[
				{"key":"1","type":"movie"},
				{"key":"2","type":"show"},
				{"key":"3","type":"photo"}
			]}}`))
		case "/library/sections/1/all":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"m1","title":"Heat","type":"movie","viewedAt":1712059200,"userRating":9.5}]}}`))
		case "/library/sections/2/all":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"s1","title":"Severance","type":"show","userRating":5}]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", testLogger())
	events, err := client.GetAllItems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Library scan: recency stays empty even though viewedAt is present
	if events[0].LastPlayedDate != "" {
		t.Errorf("library scan must not set recency, got %q", events[0].LastPlayedDate)
	}
	if events[0].IsFavorite == nil || !*events[0].IsFavorite {
		t.Errorf("rating 9.5 should mark favorite, got %v", events[0].IsFavorite)
	}
	if events[1].IsFavorite == nil || *events[1].IsFavorite {
		t.Errorf("rating 5 should not mark favorite, got %v", events[1].IsFavorite)
	}
}

func TestGetFavoritesFiltersByRating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(`{"MediaContainer":{"Directory":[{"key":"1","type":"movie"}]}}`))
		case "/library/sections/1/all":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[
				{"ratingKey":"m1","title":"Heat","type":"movie","userRating":10},
				{"ratingKey":"m2","title":"Dud","type":"movie","userRating":3}
			]}}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", testLogger())
	events, err := client.GetFavorites(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Name != "Heat" {
		t.Fatalf("expected only Heat, got %+v", events)
	}
}

func TestGetUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Account":[{"id":0,"name":""},{"id":7,"name":"alice"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", testLogger())
	users, err := client.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Name != "alice" || users[0].ID != 7 {
		t.Fatalf("expected the named account only, got %+v", users)
	}
}
