package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/registry"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/service"
)

const defaultSearchLimit = 20

// statser is implemented by modules that own a runtime pool.
type statser interface {
	Stats() map[string]interface{}
}

// Handlers serves the non-module endpoints.
type Handlers struct {
	registry *registry.Registry
	catalog  *service.Catalog
	metrics  *monitoring.Metrics
	fetch    *client.Client
	started  time.Time
}

// NewHandlers creates handlers. metrics and fetch may be nil.
func NewHandlers(reg *registry.Registry, catalog *service.Catalog, metrics *monitoring.Metrics, fetch *client.Client) *Handlers {
	return &Handlers{
		registry: reg,
		catalog:  catalog,
		metrics:  metrics,
		fetch:    fetch,
		started:  time.Now(),
	}
}

// Register mounts /, /health, /api and, with metrics, /metrics.
func (h *Handlers) Register(router gin.IRoutes) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/api", h.ListAPIs)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// Root returns the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "ScraperAPI",
		"status":  "running",
		"apis":    h.registry.Len(),
		"endpoints": gin.H{
			"apis":    "/api",
			"module":  RoutePrefix + ":name",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}

// Health reports registry, pool and upstream state.
func (h *Handlers) Health(c *gin.Context) {
	pools := gin.H{}
	h.registry.Each(func(name string, d module.Descriptor) {
		if s, ok := d.(statser); ok {
			pools[name] = s.Stats()
		}
	})

	resp := gin.H{
		"status":    "healthy",
		"apis":      h.registry.Len(),
		"pools":     pools,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().Unix(),
	}
	if h.catalog != nil {
		resp["catalog"] = h.catalog.Stats()
	}
	if h.metrics != nil {
		resp["requests"] = h.metrics.Snapshot()
	}
	if h.fetch != nil {
		resp["upstreams"] = h.fetch.Breakers()
	}
	c.JSON(http.StatusOK, resp)
}

// ListAPIs lists the shared catalog. ?q= ranks by relevance, ?tag= filters
// and ?limit= caps search results.
func (h *Handlers) ListAPIs(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "API catalog not available"})
		return
	}

	var entries []service.Entry
	if q := c.Query("q"); q != "" {
		limit := defaultSearchLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		entries = h.catalog.Search(q, limit)
	} else {
		entries = h.catalog.List(c.Query("tag"))
	}

	c.JSON(http.StatusOK, gin.H{
		"apis":  entries,
		"count": len(entries),
	})
}
