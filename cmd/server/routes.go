package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/ZanzyTHEbar/dlm-gallery/docs"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/cache"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/frontend"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/ratelimit"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// router builds the gin engine. Middleware runs in this order: compression, monitoring,
// security monitoring, error handling, recovery, security headers and CSP, CORS,
// request timeout, then rate limiting and the response cache on /api.
func (a *app) router() (*gin.Engine, error) {
	r := gin.New()

	if err := r.SetTrustedProxies(a.security.Config().TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(a.compression.Handler())
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(a.logger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())
	r.Use(a.security.SecurityHeadersMiddleware())
	r.Use(a.security.CSPMiddleware())
	r.Use(a.security.CORS())
	r.Use(a.security.RequestTimeout)
	r.Use(a.security.ValidateContentType)

	r.GET("/health", a.handleHealth)
	r.GET("/health/services", a.handleServiceHealth)

	api := r.Group("/api/v1")
	api.Use(a.limiter.IPRateLimitMiddleware())
	api.Use(cache.Middleware(a.responses, cache.MiddlewareConfig{
		Prefix:  "/api/v1/photos",
		Exclude: []string{sources.ImageRoute, "/api/v1/photos/status", "/api/v1/photos/local/health"},
	}, a.metrics, a.logger))

	photos := api.Group("/photos")
	{
		photos.GET("", a.handleListPhotos)
		photos.GET("/search",
			a.limiter.EndpointRateLimitMiddleware(ratelimit.EndpointSearch),
			a.security.ValidateSearchRequest,
			a.handleSearchPhotos)
		photos.GET("/analysis", a.handleAnalysis)
		photos.GET("/status", a.handleStatus)
		photos.GET("/image/:photoId",
			a.limiter.EndpointRateLimitMiddleware(ratelimit.EndpointImage),
			a.proxy.Handle)

		photos.GET("/local", a.handleLocalList)
		photos.GET("/local/search",
			a.limiter.EndpointRateLimitMiddleware(ratelimit.EndpointSearch),
			a.security.ValidateSearchRequest,
			a.handleLocalSearch)
		photos.GET("/local/health", a.handleLocalHealth)
		photos.GET("/local/:id", a.handleLocalPhoto)
		photos.POST("/local/rescan", a.handleRescan)

		photos.GET("/:id", a.handleGetPhoto)
	}
	api.GET("/albums", a.handleAlbums)
	api.GET("/ratelimit/status", a.limiter.HandleRateLimitStatus())

	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.metrics.GetStats())
	})
	r.GET("/metrics/ratelimit", a.limiter.HandleRateLimitStats())
	r.GET("/cache/stats", a.handleCacheStats)

	r.GET("/pools/google", poolStats("google", a.pool.GetStats))
	r.GET("/pools/database", poolStats("database", a.databasePoolStats))
	r.GET("/pools/redis", poolStats("redis", a.redis.GetPoolStats))
	r.GET("/pools/compression", poolStats("compression", a.compression.GetStats))
	r.GET("/pools/images", poolStats("images", a.proxy.Stats))

	if a.cfg.Profiling {
		a.logger.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
		r.GET("/debug/pprof/:profile", gin.WrapF(pprof.Index))
		r.POST("/debug/resilience/reset", a.handleResilienceReset)
	}

	spa, err := frontend.New(a.cfg.Distribution.Columns)
	if err != nil {
		return nil, err
	}
	r.NoRoute(spa)

	return r, nil
}

func (a *app) databasePoolStats() map[string]interface{} {
	if a.db == nil {
		return map[string]interface{}{"enabled": false}
	}
	return a.db.GetPoolStats()
}
