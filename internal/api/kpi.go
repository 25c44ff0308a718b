package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mspr-sante/backend/internal/kpi"
)

// KPIHandler serves the aggregate metric groups.
type KPIHandler struct {
	engine *kpi.Engine
	cache  *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewKPIHandler creates a KPI handler. cache may be nil, which disables
// response caching.
func NewKPIHandler(engine *kpi.Engine, cache *redis.Client, ttl time.Duration, log zerolog.Logger) *KPIHandler {
	return &KPIHandler{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log,
	}
}

// RegisterRoutes registers the KPI routes.
func (h *KPIHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/kpi")
	{
		group.GET("/overview", h.GetOverview)
		group.GET("/engagement", h.GetEngagement)
		group.GET("/conversion", h.GetConversion)
		group.GET("/satisfaction", h.GetSatisfaction)
		group.GET("/data-quality", h.GetDataQuality)
	}
}

// GetOverview returns the population overview metrics.
func (h *KPIHandler) GetOverview(c *gin.Context) {
	h.respond(c, "overview", func() (interface{}, error) { return h.engine.Overview() })
}

// GetEngagement returns the gym engagement metrics.
func (h *KPIHandler) GetEngagement(c *gin.Context) {
	h.respond(c, "engagement", func() (interface{}, error) { return h.engine.Engagement() })
}

// GetConversion returns the adherence band metrics.
func (h *KPIHandler) GetConversion(c *gin.Context) {
	h.respond(c, "conversion", func() (interface{}, error) { return h.engine.Conversion() })
}

// GetSatisfaction returns the clinical health score metrics.
func (h *KPIHandler) GetSatisfaction(c *gin.Context) {
	h.respond(c, "satisfaction", func() (interface{}, error) { return h.engine.Satisfaction() })
}

// GetDataQuality returns the latest run report and store completeness.
func (h *KPIHandler) GetDataQuality(c *gin.Context) {
	h.respond(c, "data-quality", func() (interface{}, error) { return h.engine.DataQuality() })
}

// respond serves one KPI group, through the Redis cache when configured.
// Cache failures fall back to computing the group directly.
func (h *KPIHandler) respond(c *gin.Context, group string, compute func() (interface{}, error)) {
	key := "kpi:" + group

	if h.cache != nil {
		cached, err := h.cache.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
		if err != redis.Nil {
			h.log.Warn().Err(err).Str("group", group).Msg("KPI cache read failed")
		}
	}

	result, err := compute()
	if err != nil {
		h.log.Error().Err(err).Str("group", group).Msg("KPI computation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute metrics"})
		return
	}

	if h.cache != nil {
		body, err := json.Marshal(result)
		if err == nil {
			if err := h.cache.Set(c.Request.Context(), key, body, h.ttl).Err(); err != nil {
				h.log.Warn().Err(err).Str("group", group).Msg("KPI cache write failed")
			}
		}
	}

	c.JSON(http.StatusOK, result)
}
