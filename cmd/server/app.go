package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/cache"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/config"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/database"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/distribution"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/imageproxy"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/middleware"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/oauth"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/ratelimit"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/security"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

// app holds every long-lived component the router is built from
type app struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	health  *resilience.DegradationManager

	db       *database.DB
	importer *database.Importer
	pool     *resilience.ConnectionPool
	chain    *sources.Chain
	engine   *distribution.Engine
	proxy    *imageproxy.Proxy

	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	responses   cache.Store
	memCache    *cache.Cache
	compression *middleware.CompressionMiddleware
	security    *security.SecurityMiddleware
}

// newApp builds the application. A database failure is fatal only when the local
// source is primary; otherwise the local endpoints report unavailable.
func newApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(),
		health:  resilience.DefaultManager(),
	}

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		if cfg.Source.Primary == sources.KindLocal {
			return nil, err
		}
		logger.Warn("Local photo database unavailable", "data_dir", cfg.DataDir, "error", err)
	} else {
		a.db = db
		a.importer = database.NewImporter(database.NewRepository(db), cfg.PhotosDir, logger.Logger)
	}

	resilience.RegisterServicePolicy(resilience.ServiceGooglePhotos, resilience.SlowRetryPolicy)
	cb := resilience.GetCircuitBreaker(resilience.ServiceGooglePhotos, resilience.CircuitBreakerConfig{})
	a.pool = resilience.NewConnectionPool(10, 20, 90*time.Second, cb)

	a.chain, err = sources.FromConfig(sourceOptions(cfg), sources.Deps{
		DB:      a.db,
		Pool:    a.pool,
		Health:  a.health,
		Logger:  logger,
		Metrics: a.metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine = distribution.NewEngine(distributionOptions(cfg), logger.Logger)

	backends := imageproxy.Backends{Mock: a.chain.Mock}
	if a.chain.Google != nil {
		backends.Google = a.chain.Google
	}
	if a.chain.Local != nil {
		backends.Local = a.chain.Local
	}
	a.proxy = imageproxy.New(proxyConfig(cfg), backends, nil, a.metrics, logger)

	a.redis, err = ratelimit.NewRedisClient(ctx, ratelimit.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory rate limiting and caching", "addr", cfg.Redis.Addr, "error", err)
	}
	a.limiter = ratelimit.NewRateLimiter(a.redis, rateLimitConfig(cfg), a.metrics)

	if a.redis.IsEnabled() {
		a.responses = cache.NewRedisStore(a.redis.GetClient(), "gallery:response:", cfg.Cache.TTL)
	} else {
		a.memCache = cache.NewCache(cache.Config{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries})
		a.responses = a.memCache
	}

	a.compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	a.security = security.NewSecurityMiddleware(securityConfig(cfg))

	return a, nil
}

// close releases resources in reverse construction order. Safe on a partly built app.
func (a *app) close() {
	if a.health != nil {
		a.health.GracefulShutdown()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		errors.SafeClose(a.redis, "redis")
	}
	if a.memCache != nil {
		a.memCache.Close()
	}
	if a.proxy != nil {
		a.proxy.Close()
	}
	if a.pool != nil {
		errors.SafeClose(a.pool, "google connection pool")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}

func sourceOptions(cfg *config.Config) sources.Options {
	albums := make(map[types.Category]string, len(cfg.Google.Albums))
	for category, id := range cfg.Google.Albums {
		albums[types.Category(category)] = id
	}
	return sources.Options{
		Primary:         cfg.Source.Primary,
		EnableFallback:  cfg.Source.EnableFallback,
		MockPerCategory: cfg.Source.MockPerCategory,
		Google: sources.GoogleConfig{
			OAuth: oauth.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RefreshToken: cfg.Google.RefreshToken,
				TokenURL:     cfg.Google.TokenURL,
				ExpiryBuffer: cfg.Google.TokenExpiryBuffer,
			},
			AlbumIDs: albums,
			APIBase:  cfg.Google.APIBase,
		},
	}
}

func distributionOptions(cfg *config.Config) distribution.Options {
	return distribution.Options{
		Columns:      cfg.Distribution.Columns,
		ColumnWidth:  cfg.Distribution.ColumnWidth,
		Margin:       cfg.Distribution.Margin,
		TargetBuffer: cfg.Distribution.TargetBuffer,
		Interleave:   cfg.Distribution.Interleave,
	}
}

func proxyConfig(cfg *config.Config) imageproxy.Config {
	pc := imageproxy.DefaultConfig()
	pc.PhotosDir = cfg.PhotosDir
	pc.CacheTTL = cfg.Cache.ImageTTL
	pc.MaxEntries = cfg.Cache.ImageCacheSize
	pc.MaxBytes = cfg.Cache.ImageCacheBytes
	return pc
}

func rateLimitConfig(cfg *config.Config) ratelimit.Config {
	rc := ratelimit.DefaultConfig()
	rc.IPLimitPerMin = cfg.RateLimit.PerMinute
	rc.EndpointLimits = map[string]int{
		ratelimit.EndpointImage:  cfg.RateLimit.ImagePerMinute,
		ratelimit.EndpointSearch: cfg.RateLimit.SearchPerMinute,
	}
	return rc
}

func securityConfig(cfg *config.Config) security.SecurityConfig {
	sc := security.DefaultSecurityConfig()
	sc.AllowedOrigins = cfg.Security.AllowedOrigins
	sc.RequestTimeout = cfg.Security.RequestTimeout
	sc.EnableHSTS = cfg.Security.EnableHSTS
	sc.CSPReportURI = cfg.Security.CSPReportURI
	return sc
}

// seed imports the photos directory once and drops cached listings when photos were added
func (a *app) seed(ctx context.Context) (*database.ImportResult, error) {
	if a.importer == nil {
		return nil, errNoDatabase
	}
	result, err := a.importer.Import(ctx)
	if err != nil {
		return nil, err
	}
	a.photosChanged(result)
	return result, nil
}

func (a *app) photosChanged(r *database.ImportResult) {
	if r.Added > 0 && a.memCache != nil {
		a.memCache.Clear()
	}
}

// watch re-imports on file changes until ctx is done
func (a *app) watch(ctx context.Context) {
	if a.importer == nil {
		a.logger.Warn("Photo watcher disabled: no database")
		return
	}
	w := database.NewWatcher(a.importer, a.cfg.Watch.Debounce, a.logger.Logger, a.photosChanged)
	go func() {
		if err := w.Run(ctx); err != nil {
			a.logger.Error("Photo watcher stopped", "error", err)
		}
	}()
}

func newLogger(level string) *monitoring.Logger {
	logger := monitoring.NewLogger()
	logger.SetLevel(monitoring.ParseLevel(level))
	slog.SetDefault(logger.Logger)
	return logger
}
