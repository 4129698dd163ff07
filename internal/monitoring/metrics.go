package monitoring

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds in-process counters for the gallery API
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	PhotosServed        int64
	DistributionRuns    int64
	ImageProxyRequests  int64
	SourceFallbacks     int64
	AverageResponseTime int64 // exponential moving average in nanoseconds
	StartTime           time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.RWMutex

	requestCountByStatus map[int]int64
	statusMutex          sync.RWMutex

	externalAPIRequests   map[string]int64
	externalAPIErrorCount map[string]int64
	sourceServed          map[string]int64
	externalAPIMutex      sync.RWMutex

	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	rateLimitEndpointBlocks map[string]int64
	rateLimitMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		responseTimes:           make([]time.Duration, 0, maxResponseSamples),
		requestCountByStatus:    make(map[int]int64),
		externalAPIRequests:     make(map[string]int64),
		externalAPIErrorCount:   make(map[string]int64),
		sourceServed:            make(map[string]int64),
		rateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// RecordPhotosServed counts photos returned by a source and which source served them
func (m *Metrics) RecordPhotosServed(source string, n int, fallback bool) {
	atomic.AddInt64(&m.PhotosServed, int64(n))
	if fallback {
		atomic.AddInt64(&m.SourceFallbacks, 1)
	}

	m.externalAPIMutex.Lock()
	m.sourceServed[source]++
	m.externalAPIMutex.Unlock()
}

// IncrementDistribution counts a layout computation
func (m *Metrics) IncrementDistribution() {
	atomic.AddInt64(&m.DistributionRuns, 1)
}

// IncrementImageProxy counts an image proxy request
func (m *Metrics) IncrementImageProxy() {
	atomic.AddInt64(&m.ImageProxyRequests, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	for {
		current := atomic.LoadInt64(&m.AverageResponseTime)
		next := duration.Nanoseconds()
		if current != 0 {
			next = (current*9 + next) / 10
		}
		if atomic.CompareAndSwapInt64(&m.AverageResponseTime, current, next) {
			break
		}
	}

	m.responseTimesMutex.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[len(m.responseTimes)-maxResponseSamples:]
	}
	m.responseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalAPIMutex.Lock()
	defer m.externalAPIMutex.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrorCount[apiName]++
	}
}

// GetPercentileResponseTime returns the nearest-rank percentile of recorded response times
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMutex.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseTimesMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	// nearest rank
	index := int(math.Ceil(percentile/100.0*float64(len(times)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetExternalAPIStats returns request and error counts per upstream API
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.externalAPIRequests))
	for api, requests := range m.externalAPIRequests {
		errs := m.externalAPIErrorCount[api]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errs) / float64(requests) * 100
		}

		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     errs,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetSourceStats returns how often each photo source served a request
func (m *Metrics) GetSourceStats() map[string]int64 {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	out := make(map[string]int64, len(m.sourceServed))
	for k, v := range m.sourceServed {
		out[k] = v
	}
	return out
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errs := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errs) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"total_requests":         requests,
		"error_count":            errs,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"photos_served":          atomic.LoadInt64(&m.PhotosServed),
		"distribution_runs":      atomic.LoadInt64(&m.DistributionRuns),
		"image_proxy_requests":   atomic.LoadInt64(&m.ImageProxyRequests),
		"source_fallbacks":       atomic.LoadInt64(&m.SourceFallbacks),
		"avg_response_time_ms":   float64(atomic.LoadInt64(&m.AverageResponseTime)) / 1e6,
		"start_time":             m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),
		"source_stats":             m.GetSourceStats(),
		"rate_limit":               m.GetRateLimitStats(),

		"go_goroutines":       runtime.NumGoroutine(),
		"go_gc_count":         mem.NumGC,
		"go_heap_alloc_bytes": mem.HeapAlloc,
		"go_heap_sys_bytes":   mem.HeapSys,
	}
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.rateLimitMutex.Lock()
	defer m.rateLimitMutex.Unlock()
	m.rateLimitEndpointBlocks[endpoint]++
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.rateLimitMutex.RLock()
	endpointBlocks := make(map[string]int64, len(m.rateLimitEndpointBlocks))
	for k, v := range m.rateLimitEndpointBlocks {
		endpointBlocks[k] = v
	}
	m.rateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocks,
	}
}
