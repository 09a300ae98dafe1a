package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts watch history sync runs by outcome
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suggestarr_sync_runs_total",
		Help: "Watch history sync runs by outcome.",
	}, []string{"outcome"})

	// SyncedItems counts watch history rows written during syncs
	SyncedItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suggestarr_synced_items_total",
		Help: "Watch history rows written during syncs.",
	})

	// Cycles counts recommendation cycles by outcome
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suggestarr_recommendation_cycles_total",
		Help: "Recommendation cycles by outcome.",
	}, []string{"outcome"})

	// Suggestions counts stored suggestions by backend
	Suggestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suggestarr_suggestions_total",
		Help: "Stored suggestions by recommendation backend.",
	}, []string{"backend"})

	// Requests counts provider requests by provider and status
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suggestarr_provider_requests_total",
		Help: "Media requests sent to providers by outcome.",
	}, []string{"provider", "status"})

	// TokensUsed counts model tokens consumed by backend
	TokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suggestarr_model_tokens_total",
		Help: "Model tokens consumed by backend.",
	}, []string{"backend"})
)
