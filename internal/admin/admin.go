// Package admin serves the management API of a running interceptor: an
// endpoint inventory, cache statistics and flushing, a health probe, and
// Prometheus metrics. The handler is a plain http.Handler built on gin,
// mountable wherever the host application serves HTTP.
package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtend/virtend/internal/cache"
	"github.com/virtend/virtend/internal/dispatch"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/proxy"
	"github.com/virtend/virtend/internal/router"
)

// Handler serves the management API. Construct it with New and mount it
// as an http.Handler.
type Handler struct {
	registry  *router.Registry
	cache     *cache.ResponseCache
	logger    observability.Logger
	promReg   *prometheus.Registry
	tokenHash string
	startTime time.Time
	engine    *gin.Engine
}

// Option is a functional option for configuring the admin handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithAuthToken protects the /v1 API with a bearer token. hash is the
// bcrypt hash of the expected token, never the token itself.
func WithAuthToken(hash string) Option {
	return func(h *Handler) {
		h.tokenHash = hash
	}
}

// WithPrometheusRegistry sets the registry served at /metrics. When
// unset, a fresh registry is created and the interceptor's collectors
// are registered on it.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(h *Handler) {
		h.promReg = reg
	}
}

// New builds the admin handler over a registry and response cache.
func New(reg *router.Registry, rc *cache.ResponseCache, opts ...Option) *Handler {
	h := &Handler{
		registry:  reg,
		cache:     rc,
		logger:    observability.NopLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.promReg == nil {
		h.promReg = newMetricsRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	h.engine = gin.New()
	h.engine.Use(gin.Recovery())
	h.setupRoutes()

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

// newMetricsRegistry builds a registry carrying every interceptor
// collector plus the standard process and Go runtime collectors.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cm := cache.GetCacheMetrics()
	cm.MustRegister(reg)
	cm.Init()

	rm := router.GetRouterMetrics()
	rm.MustRegister(reg)
	rm.Init()

	dm := dispatch.GetDispatchMetrics()
	dm.MustRegister(reg)
	dm.Init()

	pm := proxy.GetProxyMetrics()
	pm.MustRegister(reg)
	pm.Init()

	return reg
}

func (h *Handler) setupRoutes() {
	h.engine.GET("/healthz", h.healthzHandler())
	h.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.promReg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})))

	v1 := h.engine.Group("/v1")
	if h.tokenHash != "" {
		v1.Use(h.authMiddleware())
	}
	v1.GET("/endpoints", h.listEndpointsHandler())
	v1.DELETE("/endpoints/:id", h.removeEndpointHandler())
	v1.GET("/cache/stats", h.cacheStatsHandler())
	v1.DELETE("/cache", h.flushCacheHandler())
}

// authMiddleware checks the Authorization bearer token against the
// configured bcrypt hash.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(h.tokenHash), []byte(token)); err != nil {
			h.logger.Warn("admin auth rejected",
				observability.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}
	return value[len(prefix):], true
}

func (h *Handler) healthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"uptime":    time.Since(h.startTime).String(),
		})
	}
}

// endpointList is the response envelope of GET /v1/endpoints.
type endpointList struct {
	Endpoints []router.EndpointInfo `json:"endpoints"`
	Count     int                   `json:"count"`
}

func (h *Handler) listEndpointsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := h.registry.Snapshot()
		c.JSON(http.StatusOK, endpointList{
			Endpoints: infos,
			Count:     len(infos),
		})
	}
}

func (h *Handler) removeEndpointHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !h.registry.RemoveID(id) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "endpoint not found",
				"id":    id,
			})
			return
		}

		h.logger.Info("endpoint removed via admin API",
			observability.String("id", id),
		)
		c.Status(http.StatusNoContent)
	}
}

// cacheStats is the response envelope of GET /v1/cache/stats.
type cacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int64   `json:"size"`
	HitRate float64 `json:"hitRate"`
}

func (h *Handler) cacheStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := h.cache.Stats()
		c.JSON(http.StatusOK, cacheStats{
			Hits:    stats.Hits,
			Misses:  stats.Misses,
			Size:    stats.Size,
			HitRate: stats.HitRate(),
		})
	}
}

func (h *Handler) flushCacheHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.cache.Flush(c.Request.Context()); err != nil {
			h.logger.Error("cache flush failed",
				observability.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "cache flush failed",
			})
			return
		}

		h.logger.Info("cache flushed via admin API")
		c.Status(http.StatusNoContent)
	}
}
