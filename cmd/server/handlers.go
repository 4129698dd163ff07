package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/distribution"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/security"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"github.com/gin-gonic/gin"
)

const (
	maxColumns        = 6
	localListLimit    = 200
	localSearchLimit  = 50
	localMaxLimit     = 1000
	healthTimeout     = 5 * time.Second
	categoryListUsage = "portraits, landscape, architecture, abstract, wildlife, uncategorized"
)

var errNoDatabase = errors.NewConfigurationError("local photo database is not available", nil)

// handleHealth godoc
// @Summary      Service health
// @Description  Reports "degraded" with 503 when any photo source is in emergency
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (a *app) handleHealth(c *gin.Context) {
	services := a.health.GetAllServiceHealth()

	response := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   sources.Version,
		"services":  services,
		"metrics":   a.metrics.GetStats(),
	}

	for _, service := range services {
		if service.Level == resilience.LevelEmergency {
			response["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

// handleServiceHealth godoc
// @Summary  Photo source health and circuit breakers
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Router   /health/services [get]
func (a *app) handleServiceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services":         a.health.GetAllServiceHealth(),
		"circuit_breakers": resilience.GetCircuitBreakerStats(),
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// handleResilienceReset clears service health and closes every circuit breaker.
// Only routed when profiling is enabled.
func (a *app) handleResilienceReset(c *gin.Context) {
	services := a.health.GetAllServiceHealth()
	for name := range services {
		a.health.ResetService(name)
	}
	resilience.ResetCircuitBreakers()
	a.logger.Info("Resilience state reset", "services", len(services))

	c.JSON(http.StatusOK, gin.H{
		"reset":            len(services),
		"circuit_breakers": resilience.GetCircuitBreakerStats(),
	})
}

// engineFor applies the ?columns= override
func (a *app) engineFor(c *gin.Context) (*distribution.Engine, error) {
	raw := c.Query("columns")
	if raw == "" {
		return a.engine, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxColumns {
		return nil, errors.NewValidationError(
			fmt.Sprintf("columns must be an integer between 1 and %d", maxColumns), raw)
	}
	if n == a.engine.Options().Columns {
		return a.engine, nil
	}
	return a.engine.WithColumns(n), nil
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewValidationError(fmt.Sprintf("%s must be true or false", key), raw)
	}
	return v, nil
}

// queryErrors folds per-parameter validation failures into one error
func queryErrors(failures map[string]error) error {
	switch len(failures) {
	case 0:
		return nil
	case 1:
		for _, err := range failures {
			return err
		}
	}
	fields := make(map[string]string, len(failures))
	for param, err := range failures {
		fields[param] = errors.ToAppError(err).ErrBuilder.Msg
	}
	return errors.NewValidationErrorWithMap(fields)
}

// handleListPhotos godoc
// @Summary      List photos
// @Description  Photos from the primary source or its fallbacks, in balanced column order
// @Tags         photos
// @Produce      json
// @Param        category    query  string  false  "Category filter"
// @Param        distribute  query  bool    false  "Apply column balancing (default true)"
// @Param        columns     query  int     false  "Column count, 1 to 6"
// @Param        debug       query  string  false  "layout adds the computed columns"
// @Success      200  {object}  types.PhotoResponse
// @Failure      400  {object}  errors.AppError
// @Router       /api/v1/photos [get]
func (a *app) handleListPhotos(c *gin.Context) {
	ctx := c.Request.Context()

	failures := make(map[string]error)
	distribute, err := queryBool(c, "distribute", true)
	if err != nil {
		failures["distribute"] = err
	}
	engine, err := a.engineFor(c)
	if err != nil {
		failures["columns"] = err
	}
	var category types.Category
	if raw := c.Query("category"); raw != "" {
		parsed, ok := types.ParseCategory(raw)
		if !ok {
			failures["category"] = errors.NewValidationError(fmt.Sprintf("unknown category %q", raw), categoryListUsage)
		}
		category = parsed
	}
	if err := queryErrors(failures); err != nil {
		errors.Respond(c, err)
		return
	}

	var resp *types.PhotoResponse
	if category != "" {
		resp, err = a.chain.GetByCategory(ctx, string(category))
	} else {
		resp, err = a.chain.GetAll(ctx)
	}
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if resp.Config.Metadata == nil {
		resp.Config.Metadata = make(map[string]interface{})
	}

	if distribute {
		start := time.Now()
		layout, err := engine.Layout(resp.Data)
		if err != nil {
			errors.Respond(c, err)
			return
		}
		resp.Data = layout.Photos
		a.metrics.IncrementDistribution()
		a.logger.DistributionLogger(len(layout.Photos), engine.Options().Columns, layout.HeightSpread(), time.Since(start))

		resp.Config.Metadata["distribution"] = gin.H{
			"columns":      engine.Options().Columns,
			"heightSpread": layout.HeightSpread(),
		}
		if c.Query("debug") == "layout" {
			resp.Config.Metadata["layout"] = layout
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleSearchPhotos godoc
// @Summary  Search photos by description, category or filename
// @Tags     photos
// @Produce  json
// @Param    q  query  string  true  "Search text, 1 to 100 characters"
// @Success  200  {object}  types.PhotoResponse
// @Failure  400  {object}  errors.AppError
// @Failure  429  {object}  errors.AppError
// @Router   /api/v1/photos/search [get]
func (a *app) handleSearchPhotos(c *gin.Context) {
	query := c.GetString(security.SearchQueryKey)

	resp, err := a.chain.Search(c.Request.Context(), query)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if resp.Config.Metadata == nil {
		resp.Config.Metadata = make(map[string]interface{})
	}
	resp.Config.Metadata["query"] = query
	c.JSON(http.StatusOK, resp)
}

// handleAnalysis godoc
// @Summary  Distribution analysis of the current photo set
// @Tags     photos
// @Produce  json
// @Param    columns  query  int  false  "Column count, 1 to 6"
// @Success  200  {object}  distribution.Summary
// @Router   /api/v1/photos/analysis [get]
func (a *app) handleAnalysis(c *gin.Context) {
	engine, err := a.engineFor(c)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	resp, err := a.chain.GetAll(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	summary, err := engine.Analysis(resp.Data)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis": summary,
		"columns":  engine.Options().Columns,
		"service":  resp.Config.Service,
	})
}

// handleStatus godoc
// @Summary  Fallback chain status
// @Tags     photos
// @Produce  json
// @Success  200  {object}  sources.StatusReport
// @Router   /api/v1/photos/status [get]
func (a *app) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, a.chain.Status(c.Request.Context()))
}

// handleGetPhoto godoc
// @Summary  Get one photo
// @Tags     photos
// @Produce  json
// @Param    id  path  string  true  "Photo id"
// @Success  200  {object}  types.PhotoResult
// @Failure  404  {object}  errors.AppError
// @Router   /api/v1/photos/{id} [get]
func (a *app) handleGetPhoto(c *gin.Context) {
	id := c.Param("id")
	result, err := a.chain.GetByID(c.Request.Context(), id)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if result.Data == nil {
		errors.Respond(c, errors.NewNotFoundError("photo", id))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *app) localSource(c *gin.Context) (*sources.LocalSource, bool) {
	if a.chain.Local == nil {
		errors.Respond(c, errNoDatabase)
		return nil, false
	}
	return a.chain.Local, true
}

func queryLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > localMaxLimit {
		return 0, errors.NewValidationError(fmt.Sprintf("limit must be an integer between 1 and %d", localMaxLimit), raw)
	}
	return n, nil
}

// handleLocalList godoc
// @Summary  List imported photos
// @Tags     local
// @Produce  json
// @Param    category  query  string  false  "Category filter"
// @Param    limit     query  int     false  "Maximum photos (default 200)"
// @Success  200  {object}  sources.LocalListing
// @Router   /api/v1/photos/local [get]
func (a *app) handleLocalList(c *gin.Context) {
	local, ok := a.localSource(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c, localListLimit)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	listing, err := local.List(c.Request.Context(), strings.TrimSpace(c.Query("category")), limit)
	if err != nil {
		errors.Respond(c, errors.NewInternalError("Error fetching photos", err))
		return
	}
	c.JSON(http.StatusOK, listing)
}

// handleLocalSearch godoc
// @Summary  Search imported photos by title, description, filename or category
// @Tags     local
// @Produce  json
// @Param    q      query  string  true   "Search text"
// @Param    limit  query  int     false  "Maximum photos (default 50)"
// @Success  200  {object}  sources.LocalListing
// @Router   /api/v1/photos/local/search [get]
func (a *app) handleLocalSearch(c *gin.Context) {
	local, ok := a.localSource(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c, localSearchLimit)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	listing, err := local.SearchListing(c.Request.Context(), c.GetString(security.SearchQueryKey), limit)
	if err != nil {
		errors.Respond(c, errors.NewInternalError("Error searching photos", err))
		return
	}
	c.JSON(http.StatusOK, listing)
}

// handleLocalHealth godoc
// @Summary  Local database health
// @Tags     local
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  503  {object}  map[string]interface{}
// @Router   /api/v1/photos/local/health [get]
func (a *app) handleLocalHealth(c *gin.Context) {
	if a.chain.Local == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"service":  sources.LocalName,
			"database": "unavailable",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	count, err := a.chain.Local.Count(ctx)
	if err == nil {
		err = a.db.HealthCheck(ctx)
	}
	if err != nil {
		a.logger.Error("Local photo health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"service":  sources.LocalName,
			"database": "error",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    sources.LocalName,
		"database":   "connected",
		"photoCount": count,
	})
}

// handleLocalPhoto godoc
// @Summary  Get one imported photo
// @Tags     local
// @Produce  json
// @Param    id  path  string  true  "Photo id"
// @Success  200  {object}  map[string]sources.LocalPhoto
// @Failure  404  {object}  errors.AppError
// @Router   /api/v1/photos/local/{id} [get]
func (a *app) handleLocalPhoto(c *gin.Context) {
	local, ok := a.localSource(c)
	if !ok {
		return
	}
	id := c.Param("id")
	row, err := local.Photo(c.Request.Context(), id)
	if err != nil {
		errors.Respond(c, errors.NewInternalError("Error fetching photo", err))
		return
	}
	if row == nil {
		errors.Respond(c, errors.NewNotFoundError("photo", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo": sources.ToLocalPhoto(*row)})
}

// handleRescan godoc
// @Summary  Re-import the photos directory
// @Tags     local
// @Produce  json
// @Success  200  {object}  database.ImportResult
// @Router   /api/v1/photos/local/rescan [post]
func (a *app) handleRescan(c *gin.Context) {
	result, err := a.seed(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAlbums godoc
// @Summary  Albums with photo counts
// @Tags     local
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Router   /api/v1/albums [get]
func (a *app) handleAlbums(c *gin.Context) {
	local, ok := a.localSource(c)
	if !ok {
		return
	}
	albums, err := local.Repository().ListAlbums(c.Request.Context())
	if err != nil {
		errors.Respond(c, errors.NewInternalError("Error fetching albums", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"albums":     albums,
		"totalCount": len(albums),
	})
}

func (a *app) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"responses": a.responses.Stats(),
		"images":    a.proxy.Stats(),
	})
}

func poolStats(name string, stats func() map[string]interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  name,
			"stats": stats(),
		})
	}
}
