package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "equilibrium_runs_total",
		Help: "Selection runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "equilibrium_run_duration_seconds",
		Help:    "Wall time of a selection run, generation through persistence.",
		Buckets: prometheus.DefBuckets,
	})

	candidatesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "equilibrium_candidates_evaluated_total",
		Help: "Candidate slates scored by the welfare evaluator.",
	})

	candidatesPenalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "equilibrium_candidates_penalized_total",
		Help: "Candidate slates that incurred a Rawlsian penalty.",
	})

	lastScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "equilibrium_last_welfare_score",
		Help: "Penalized welfare score of the most recent run, per strategy.",
	}, []string{"strategy"})

	lastUtility = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "equilibrium_last_stakeholder_utility",
		Help: "Stakeholder utility of the most recent run, per strategy.",
	}, []string{"strategy", "stakeholder"})

	catalogItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "equilibrium_catalog_items",
		Help: "Items in the active catalog.",
	})
)
