package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aqimap_provider_requests_total",
		Help: "Total AQI provider requests",
	})
	ProviderSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aqimap_provider_success_total",
		Help: "Total AQI provider successes",
	})
	ProviderFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aqimap_provider_fail_total",
		Help: "Total AQI provider failures by kind",
	}, []string{"kind"})
	ProviderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aqimap_provider_duration_ms",
		Help:    "AQI provider call duration in milliseconds",
		Buckets: []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	BatchLandmarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aqimap_batch_landmarks_total",
		Help: "Landmarks attempted during batch loads by outcome",
	}, []string{"outcome"})
	BatchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aqimap_batch_duration_ms",
		Help:    "Batch load duration in milliseconds",
		Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
	})
	PointQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aqimap_point_queries_total",
		Help: "Point queries by outcome",
	}, []string{"outcome"})
	StaleDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aqimap_stale_drops_total",
		Help: "Acquisition results dropped because a newer sequence started",
	})
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aqimap_event_subscribers",
		Help: "Connected marker event subscribers",
	})
)

func init() {
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderSuccessTotal)
	prometheus.MustRegister(ProviderFailTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(BatchLandmarksTotal)
	prometheus.MustRegister(BatchDurationMs)
	prometheus.MustRegister(PointQueriesTotal)
	prometheus.MustRegister(StaleDropsTotal)
	prometheus.MustRegister(Subscribers)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：在主入口挂载到 API 前缀下的 /metrics。
func Handler() http.Handler { return promhttp.Handler() }
