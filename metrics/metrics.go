// Package metrics exposes Prometheus collectors for game sessions and the
// currency client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

const namespace = "memorygame"

// Selection outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeIgnored  = "ignored"
	OutcomeInvalid  = "invalid"
)

// Request results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Game sessions created.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Game sessions currently held in memory.",
	})

	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "card_selections_total",
		Help:      "Card selections by outcome.",
	}, []string{"outcome"})

	EngineEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_events_total",
		Help:      "Engine events by type.",
	}, []string{"type"})

	GamesWon = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_won_total",
		Help:      "Runs that ended with every pair matched.",
	})

	AttemptsToWin = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "attempts_to_win",
		Help:      "Pair attempts needed to win a run.",
		Buckets:   prometheus.LinearBuckets(2, 4, 12),
	})

	SecondsToWin = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "seconds_to_win",
		Help:      "Elapsed game seconds when a run was won.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
	})

	CurrencyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "currency_requests_total",
		Help:      "Exchange-rate API requests by operation and result.",
	}, []string{"op", "result"})
)

// ObserveEvent updates collectors from an engine event
func ObserveEvent(ev engine.Event) {
	EngineEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == engine.EventVictory {
		GamesWon.Inc()
		AttemptsToWin.Observe(float64(ev.Attempts))
		SecondsToWin.Observe(float64(ev.ElapsedSeconds))
	}
}

// ObserveSelection counts a card selection
func ObserveSelection(outcome string) {
	Selections.WithLabelValues(outcome).Inc()
}

// ObserveCurrencyRequest counts an exchange-rate API call
func ObserveCurrencyRequest(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	CurrencyRequests.WithLabelValues(op, result).Inc()
}
