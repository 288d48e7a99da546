package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/cache"
	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/contextx"
	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/gridfield"
	"github.com/wyfcoding/geonear/health"
	"github.com/wyfcoding/geonear/logging"
	"github.com/wyfcoding/geonear/metrics"
	"github.com/wyfcoding/geonear/nearest"
	"github.com/wyfcoding/geonear/registry"
	"github.com/wyfcoding/geonear/response"
	"github.com/wyfcoding/geonear/storage"
	"github.com/wyfcoding/geonear/xerrors"
)

// API 提供格点场管理与最近格点查询的 HTTP 接口。
type API struct {
	registry *registry.Registry
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	health   *health.Service
	sources  map[string]storage.Storage
	datasets map[string]config.DatasetConfig
	maxBatch int
	logger   *logging.Logger
}

// APIOption 定义 API 构造参数。
type APIOption func(*API)

// WithCache 为单点查询启用结果缓存。
func WithCache(c cache.Cache, ttl time.Duration) APIOption {
	return func(a *API) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

// WithMetrics 注入指标采集器，同时暴露指标端点。
func WithMetrics(m *metrics.Metrics) APIOption {
	return func(a *API) { a.metrics = m }
}

// WithHealth 注入健康检查聚合器。
func WithHealth(h *health.Service) APIOption {
	return func(a *API) { a.health = h }
}

// WithDatasets 配置可重载的数据集及其来源。
func WithDatasets(sources map[string]storage.Storage, datasets []config.DatasetConfig) APIOption {
	return func(a *API) {
		a.sources = sources
		a.datasets = make(map[string]config.DatasetConfig, len(datasets))
		for _, ds := range datasets {
			a.datasets[ds.Name] = ds
		}
	}
}

// WithMaxBatchPoints 限制单次批量查询的参考点数，0 表示不限制。
func WithMaxBatchPoints(n int) APIOption {
	return func(a *API) { a.maxBatch = n }
}

// WithLogger 注入日志记录器。
func WithLogger(l *logging.Logger) APIOption {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAPI 创建 HTTP 接口。
func NewAPI(reg *registry.Registry, opts ...APIOption) *API {
	a := &API{
		registry: reg,
		logger:   logging.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register 挂载全部路由。metricsPath 为空时不挂载指标端点。
func (a *API) Register(r gin.IRouter, metricsPath string) {
	r.GET(healthPath, a.healthz)
	if a.metrics != nil && metricsPath != "" {
		r.GET(metricsPath, gin.WrapH(a.metrics.Handler()))
	}

	v1 := r.Group("/v1/fields")
	v1.GET("", a.listFields)
	v1.GET("/:name", a.getField)
	v1.DELETE("/:name", a.removeField)
	v1.POST("/:name/reload", a.reloadField)
	v1.GET("/:name/nearest", a.nearestOne)
	v1.POST("/:name/nearest", a.nearestBatch)
}

func (a *API) healthz(c *gin.Context) {
	if a.health == nil {
		response.SuccessWithRawData(c, http.StatusOK, gin.H{"status": health.StatusUp})
		return
	}
	report := a.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	response.SuccessWithRawData(c, status, report)
}

func (a *API) listFields(c *gin.Context) {
	response.Success(c, a.registry.Infos())
}

func (a *API) getField(c *gin.Context) {
	e, err := a.registry.Get(c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, e.Info())
}

func (a *API) removeField(c *gin.Context) {
	if err := a.registry.Remove(c.Param("name")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) reloadField(c *gin.Context) {
	name := c.Param("name")
	ds, ok := a.datasets[name]
	if !ok {
		_ = c.Error(xerrors.Derive(xerrors.ErrFieldNotFound, "%s is not a configured dataset", name))
		return
	}
	e, err := a.registry.ReloadDataset(fieldContext(c), a.sources, ds)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, e.Info())
}

// NearestResponse 是最近格点查询的响应体。
type NearestResponse struct {
	Field      string             `json:"field"`
	Generation uint64             `json:"generation"`
	Strategy   string             `json:"strategy"`
	Samples    []gridfield.Sample `json:"samples"`
}

// NearestRequest 是批量查询的请求体。参考点可以按点列表或按纬度、经度两列给出，二者只能取其一。
type NearestRequest struct {
	Points []geo.Point `json:"points"`
	Lats   []float64   `json:"lats"`
	Lons   []float64   `json:"lons"`
}

func (r NearestRequest) points() ([]geo.Point, error) {
	columnar := r.Lats != nil || r.Lons != nil
	if len(r.Points) > 0 && columnar {
		return nil, xerrors.InvalidInput("give either points or lats/lons, not both")
	}
	if columnar {
		return nearest.QueryPoints(r.Lats, r.Lons)
	}
	return r.Points, nil
}

func (a *API) nearestOne(c *gin.Context) {
	name := c.Param("name")
	lat, err := queryFloat(c, "lat")
	if err != nil {
		_ = c.Error(err)
		return
	}
	lon, err := queryFloat(c, "lon")
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := fieldContext(c)

	e, err := a.registry.Get(name)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key := cacheKey(name, e.Generation, lat, lon)
	if a.cache != nil {
		var sample gridfield.Sample
		if err := a.cache.Get(ctx, key, &sample); err == nil {
			a.cacheResult(true)
			c.JSON(http.StatusOK, NearestResponse{
				Field: name, Generation: e.Generation, Strategy: e.Strategy,
				Samples: []gridfield.Sample{sample},
			})
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			a.logger.WarnContext(ctx, "result cache read failed", "key", key, "error", err)
		}
		a.cacheResult(false)
	}

	samples, used, err := a.registry.Query(ctx, name, []geo.Point{{Lat: lat, Lon: lon}})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if a.cache != nil {
		// 命中条目可能已被替换，按实际使用的代次写入
		if err := a.cache.Set(ctx, cacheKey(name, used.Generation, lat, lon), samples[0], a.cacheTTL); err != nil {
			a.logger.WarnContext(ctx, "result cache write failed", "key", key, "error", err)
		}
	}
	c.JSON(http.StatusOK, NearestResponse{
		Field: name, Generation: used.Generation, Strategy: used.Strategy, Samples: samples,
	})
}

func (a *API) nearestBatch(c *gin.Context) {
	name := c.Param("name")
	var req NearestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "request body too large", err.Error())
			return
		}
		_ = c.Error(xerrors.InvalidInput("malformed request body: %v", err))
		return
	}
	points, err := req.points()
	if err != nil {
		_ = c.Error(err)
		return
	}
	if a.maxBatch > 0 && len(points) > a.maxBatch {
		_ = c.Error(xerrors.InvalidInput("batch of %d points exceeds limit %d", len(points), a.maxBatch))
		return
	}

	samples, e, err := a.registry.Query(fieldContext(c), name, points)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, NearestResponse{
		Field: name, Generation: e.Generation, Strategy: e.Strategy, Samples: samples,
	})
}

func (a *API) cacheResult(hit bool) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.CacheHitsTotal.Inc()
	} else {
		a.metrics.CacheMissesTotal.Inc()
	}
}

// fieldContext 将格点场名称注入请求上下文，供日志使用。
func fieldContext(c *gin.Context) context.Context {
	ctx := contextx.WithField(c.Request.Context(), c.Param("name"))
	c.Request = c.Request.WithContext(ctx)
	return ctx
}

func queryFloat(c *gin.Context, key string) (float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return 0, xerrors.InvalidInput("missing query parameter %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, xerrors.InvalidInput("query parameter %q: %q is not a number", key, raw)
	}
	return v, nil
}

func cacheKey(name string, gen uint64, lat, lon float64) string {
	return fmt.Sprintf("%s@%d:%s,%s", name, gen,
		strconv.FormatFloat(lat, 'g', -1, 64), strconv.FormatFloat(lon, 'g', -1, 64))
}
