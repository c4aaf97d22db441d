// Package metrics 注册并记录服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 持有服务的全部指标
// nil *Registry 的记录方法均为空操作, 便于测试时省略
type Registry struct {
	registry *prometheus.Registry

	CacheLookupsTotal     *prometheus.CounterVec
	EndpointAttemptsTotal *prometheus.CounterVec
	FetchDuration         *prometheus.HistogramVec
	PathResolutionsTotal  *prometheus.CounterVec
}

// NewRegistry 创建独立的指标注册表
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.CacheLookupsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "powergrid_cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"}, // hit, miss
	)

	r.EndpointAttemptsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "powergrid_mapdata_endpoint_attempts_total",
			Help: "Map-data query attempts by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // success, failure
	)

	r.FetchDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powergrid_mapdata_fetch_duration_seconds",
			Help:    "Duration of a map-data fetch across all endpoints",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		},
		[]string{"resource"}, // boundary, power
	)

	r.PathResolutionsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "powergrid_path_resolutions_total",
			Help: "Upstream path resolutions by result",
		},
		[]string{"result"}, // found, empty, error
	)

	reg.MustRegister(collectors.NewGoCollector())

	return r
}

// RecordCacheLookup 记录一次缓存查询
func (r *Registry) RecordCacheLookup(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordEndpointAttempt 记录一次端点尝试
func (r *Registry) RecordEndpointAttempt(endpoint string, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.EndpointAttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordFetch 记录一次完整抓取的耗时
func (r *Registry) RecordFetch(resource string, d time.Duration) {
	if r == nil {
		return
	}
	r.FetchDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// RecordPathResolution 记录一次溯源结果
func (r *Registry) RecordPathResolution(result string) {
	if r == nil {
		return
	}
	r.PathResolutionsTotal.WithLabelValues(result).Inc()
}

// Handler /metrics 的 HTTP handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// GetPrometheusRegistry 返回底层注册表
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
