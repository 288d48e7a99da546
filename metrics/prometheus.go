// Package metrics 封装了基于 Prometheus 的指标注册表，以及最近格点服务的标准指标。
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及预定义的标准监控指标。
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	// HTTP 标准指标
	HTTPRequestsTotal   *prometheus.CounterVec   // 维度: method, path, status
	HTTPRequestDuration *prometheus.HistogramVec // 维度: method, path
	HTTPInFlight        *prometheus.GaugeVec     // 维度: method, path

	// 索引与查询指标
	IndexBuildDuration *prometheus.HistogramVec // 维度: field, strategy
	IndexPoints        *prometheus.GaugeVec     // 维度: field
	QueriesTotal       *prometheus.CounterVec   // 维度: field, strategy, outcome
	QueryPointsTotal   *prometheus.CounterVec   // 维度: field, strategy
	QueryDuration      *prometheus.HistogramVec // 维度: field, strategy
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.HTTPInFlight = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_server_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	}, []string{"method", "path"})

	m.IndexBuildDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geonear_index_build_seconds",
		Help:    "Time spent building a spatial index",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"field", "strategy"})

	m.IndexPoints = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geonear_index_points",
		Help: "Number of gridpoints in a registered field",
	}, []string{"field"})

	m.QueriesTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_queries_total",
		Help: "Nearest-gridpoint query batches by outcome",
	}, []string{"field", "strategy", "outcome"})

	m.QueryPointsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_query_points_total",
		Help: "Reference points resolved",
	}, []string{"field", "strategy"})

	m.QueryDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geonear_query_duration_seconds",
		Help:    "Latency of a nearest-gridpoint query batch",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
	}, []string{"field", "strategy"})

	m.CacheHitsTotal = m.NewCounter(prometheus.CounterOpts{
		Name: "geonear_cache_hits_total",
		Help: "Single-point lookups served from the result cache",
	})
	m.CacheMissesTotal = m.NewCounter(prometheus.CounterOpts{
		Name: "geonear_cache_misses_total",
		Help: "Single-point lookups that missed the result cache",
	})

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// NewCounter 创建并注册一个新的计数器。
func (m *Metrics) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	m.registry.MustRegister(c)
	return c
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 返回底层注册表，供测试读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBuild 记录一次索引构建。m 为 nil 时不做任何事。
func (m *Metrics) ObserveBuild(field, strategy string, points int, took time.Duration) {
	if m == nil {
		return
	}
	m.IndexBuildDuration.WithLabelValues(field, strategy).Observe(took.Seconds())
	m.IndexPoints.WithLabelValues(field).Set(float64(points))
}

// ObserveQuery 记录一次批量查询。
func (m *Metrics) ObserveQuery(field, strategy string, points int, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.QueriesTotal.WithLabelValues(field, strategy, outcome).Inc()
	if err == nil {
		m.QueryPointsTotal.WithLabelValues(field, strategy).Add(float64(points))
		m.QueryDuration.WithLabelValues(field, strategy).Observe(took.Seconds())
	}
}

// ForgetField 删除已移除格点场的标签序列。
func (m *Metrics) ForgetField(field string) {
	if m == nil {
		return
	}
	m.IndexPoints.DeleteLabelValues(field)
}

// ExposeHttp 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(port string) func() {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
