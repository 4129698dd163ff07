package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListPhotos_Performance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	r := setupRouter(t)

	// warm up
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/photos", nil).Code)

	var totalDuration time.Duration
	for columns := 1; columns <= maxColumns; columns++ {
		path := fmt.Sprintf("/api/v1/photos?columns=%d&distribute=true", columns)

		start := time.Now()
		w := do(r, http.MethodGet, path, nil)
		duration := time.Since(start)
		totalDuration += duration

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Less(t, duration, time.Second, "layout for %d columns took %v", columns, duration)
	}

	averageDuration := totalDuration / maxColumns
	t.Logf("Performance test completed: %d requests, average response time: %v", maxColumns, averageDuration)
	assert.Less(t, averageDuration, 500*time.Millisecond)
}

func TestListPhotos_LoadTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	r := setupRouter(t)

	const numRequests = 100
	const numConcurrent = 10

	type result struct {
		duration time.Duration
		status   int
	}
	results := make(chan result, numRequests)

	paths := []string{
		"/api/v1/photos",
		"/api/v1/photos?category=landscape",
		"/api/v1/photos/search?q=portraits",
		"/api/v1/photos/analysis",
		"/api/v1/photos/status",
	}

	for i := 0; i < numConcurrent; i++ {
		go func(worker int) {
			for j := 0; j < numRequests/numConcurrent; j++ {
				path := paths[(worker+j)%len(paths)]
				start := time.Now()
				req := httptest.NewRequest(http.MethodGet, path, nil)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				results <- result{time.Since(start), w.Code}
			}
		}(i)
	}

	durations := make([]time.Duration, 0, numRequests)
	var successCount int
	for i := 0; i < numRequests; i++ {
		res := <-results
		durations = append(durations, res.duration)
		if res.status == http.StatusOK {
			successCount++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	p50 := durations[numRequests/2]
	p95 := durations[numRequests*95/100]
	successRate := float64(successCount) / float64(numRequests) * 100

	t.Logf("Load test results:")
	t.Logf("  Total requests: %d", numRequests)
	t.Logf("  Successful responses: %d (%.1f%%)", successCount, successRate)
	t.Logf("  p50 response time: %v", p50)
	t.Logf("  p95 response time: %v", p95)
	t.Logf("  Max response time: %v", durations[numRequests-1])

	assert.Equal(t, numRequests, successCount)
	assert.Less(t, p95, 2*time.Second)
}

func BenchmarkListPhotos(b *testing.B) {
	r := setupRouter(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/photos?distribute=true", nil))
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}
