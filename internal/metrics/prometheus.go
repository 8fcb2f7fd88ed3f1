package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "morph_turn_stage_duration_seconds",
			Help:    "Chat turn duration by stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morph_turns_total",
			Help: "Total number of chat turns",
		},
		[]string{"status"},
	)

	TokensGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "morph_generated_tokens",
			Help:    "Tokens in generated answers",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600},
		},
	)

	TokensPerSecond = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "morph_generation_tokens_per_second",
			Help:    "Generation throughput in tokens per second",
			Buckets: []float64{1, 5, 10, 20, 40, 80, 160},
		},
	)

	Recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morph_recommendations_total",
			Help: "Chat turns by recommendation outcome",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morph_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morph_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morph_llm_tokens_used",
			Help: "Total LLM tokens reported by the provider",
		},
		[]string{"model", "type"},
	)

	LessonsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "morph_lessons_loaded",
			Help: "Lessons present after the last catalog load",
		},
	)

	registerOnce sync.Once
)

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TurnDuration)
		prometheus.MustRegister(TurnsTotal)
		prometheus.MustRegister(TokensGenerated)
		prometheus.MustRegister(TokensPerSecond)
		prometheus.MustRegister(Recommendations)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(LessonsLoaded)
	})
}

func ObserveTurn(total, retrieval, contextBuild, generation time.Duration, tokens int, tokensPerSec float64) {
	TurnDuration.WithLabelValues("total").Observe(total.Seconds())
	TurnDuration.WithLabelValues("retrieval").Observe(retrieval.Seconds())
	TurnDuration.WithLabelValues("context").Observe(contextBuild.Seconds())
	TurnDuration.WithLabelValues("generation").Observe(generation.Seconds())
	TokensGenerated.Observe(float64(tokens))
	TokensPerSecond.Observe(tokensPerSec)
}

func ObserveRecommendation(found bool) {
	if found {
		Recommendations.WithLabelValues("lesson").Inc()
		return
	}
	Recommendations.WithLabelValues("none").Inc()
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
