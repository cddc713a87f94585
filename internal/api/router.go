package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"medtrack-backend/config"
	"medtrack-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/doses/:dose_id/take", h.TakeDose)
		api.POST("/doses/:dose_id/skip", h.SkipDose)
		api.POST("/doses/:dose_id/snooze", h.SnoozeDose)

		api.POST("/notifications", h.ScheduleNotification)
		api.POST("/notifications/process", h.ProcessNotifications)

		api.GET("/medications/:medication_id/stock", caching, h.GetStock)
		api.GET("/medications/:medication_id/streak", caching, h.GetStreak)
	}

	return r
}
