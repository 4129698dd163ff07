package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

// HealthChecker reports whether a source may be tried. The resilience degradation
// manager satisfies it.
type HealthChecker interface {
	IsServiceAvailable(serviceName string) bool
}

type alwaysHealthy struct{}

func (alwaysHealthy) IsServiceAvailable(string) bool { return true }

// Fallback tries its sources in priority order and returns the first success
type Fallback struct {
	sources []PhotoSource
	health  HealthChecker
	logger  *monitoring.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	lastUsed string
}

// NewFallback creates a chain. sources[0] is the primary.
func NewFallback(sources []PhotoSource, health HealthChecker, logger *monitoring.Logger, metrics *monitoring.Metrics) *Fallback {
	if health == nil {
		health = alwaysHealthy{}
	}
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	return &Fallback{sources: sources, health: health, logger: logger, metrics: metrics}
}

// Sources returns the chain in priority order
func (f *Fallback) Sources() []PhotoSource {
	return f.sources
}

// Primary returns the first source of the chain
func (f *Fallback) Primary() PhotoSource {
	if len(f.sources) == 0 {
		return nil
	}
	return f.sources[0]
}

// LastUsed names the source that served the last successful call
func (f *Fallback) LastUsed() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastUsed
}

// candidates drops sources in emergency state. When every source is in emergency
// the whole chain is tried anyway.
func (f *Fallback) candidates() []PhotoSource {
	out := make([]PhotoSource, 0, len(f.sources))
	for _, s := range f.sources {
		if f.health.IsServiceAvailable(s.ServiceName()) {
			out = append(out, s)
		} else {
			f.logger.Warn("Skipping photo source in emergency state", "source", s.Name())
		}
	}
	if len(out) == 0 {
		return f.sources
	}
	return out
}

func execute[T any](ctx context.Context, f *Fallback, operation string, fn func(PhotoSource) (T, *types.ResponseConfig, error)) (T, error) {
	var zero T
	var lastErr error

	for i, source := range f.candidates() {
		if err := ctx.Err(); err != nil {
			return zero, errors.NewTimeoutError(fmt.Sprintf("%s cancelled", operation), err)
		}

		start := time.Now()
		result, cfg, err := fn(source)
		if err != nil {
			f.logger.Warn("Photo source failed",
				"operation", operation,
				"source", source.Name(),
				"error", err)
			lastErr = err
			continue
		}

		isFallback := source != f.Primary()
		name := source.Name()
		if isFallback {
			name += " (fallback)"
		}
		f.mu.Lock()
		f.lastUsed = name
		f.mu.Unlock()

		if cfg.Metadata == nil {
			cfg.Metadata = make(map[string]interface{})
		}
		cfg.Metadata["servedBy"] = source.Name()
		cfg.Metadata["fallback"] = isFallback
		if isFallback {
			cfg.Metadata["attempts"] = i + 1
		}

		f.logger.SourceLogger(operation, source.Name(), cfg.TotalCount, isFallback, time.Since(start))
		if f.metrics != nil {
			f.metrics.RecordPhotosServed(source.Name(), cfg.TotalCount, isFallback)
		}
		return result, nil
	}

	if lastErr == nil {
		lastErr = errors.NewConfigurationError(fmt.Sprintf("no photo sources available for %s", operation), nil)
	}
	f.logger.Error("All photo sources failed", "operation", operation, "error", lastErr)
	return zero, lastErr
}

func (f *Fallback) Name() string {
	if p := f.Primary(); p != nil {
		return p.Name()
	}
	return "None"
}

func (f *Fallback) ServiceName() string {
	if p := f.Primary(); p != nil {
		return p.ServiceName()
	}
	return ""
}

func (f *Fallback) GetAll(ctx context.Context) (*types.PhotoResponse, error) {
	return execute(ctx, f, "getAllPhotos", func(s PhotoSource) (*types.PhotoResponse, *types.ResponseConfig, error) {
		resp, err := s.GetAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		return resp, &resp.Config, nil
	})
}

func (f *Fallback) GetByCategory(ctx context.Context, category string) (*types.PhotoResponse, error) {
	return execute(ctx, f, "getPhotosByCategory", func(s PhotoSource) (*types.PhotoResponse, *types.ResponseConfig, error) {
		resp, err := s.GetByCategory(ctx, category)
		if err != nil {
			return nil, nil, err
		}
		return resp, &resp.Config, nil
	})
}

func (f *Fallback) GetByID(ctx context.Context, id string) (*types.PhotoResult, error) {
	return execute(ctx, f, "getPhotoById", func(s PhotoSource) (*types.PhotoResult, *types.ResponseConfig, error) {
		res, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return res, &res.Config, nil
	})
}

func (f *Fallback) Search(ctx context.Context, query string) (*types.PhotoResponse, error) {
	return execute(ctx, f, "searchPhotos", func(s PhotoSource) (*types.PhotoResponse, *types.ResponseConfig, error) {
		resp, err := s.Search(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		return resp, &resp.Config, nil
	})
}

// IsAvailable reports whether any source in the chain is available
func (f *Fallback) IsAvailable(ctx context.Context) bool {
	for _, s := range f.sources {
		if s.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (f *Fallback) Config(ctx context.Context) types.SourceConfig {
	cfg := types.SourceConfig{Name: f.Name(), Version: Version, Metadata: map[string]interface{}{}}
	if p := f.Primary(); p != nil {
		cfg = p.Config(ctx)
		if cfg.Metadata == nil {
			cfg.Metadata = map[string]interface{}{}
		}
	}
	names := make([]string, 0, len(f.sources))
	for _, s := range f.sources[min(1, len(f.sources)):] {
		names = append(names, s.Name())
	}
	cfg.Metadata["fallbacks"] = names
	return cfg
}

// SourceStatus is one entry of the chain status report
type SourceStatus struct {
	Name      string              `json:"name"`
	Available bool                `json:"available"`
	Config    *types.SourceConfig `json:"config"`
}

// StatusReport describes the whole chain
type StatusReport struct {
	Primary        SourceStatus   `json:"primary"`
	Fallbacks      []SourceStatus `json:"fallbacks"`
	LastUsed       string         `json:"lastUsed"`
	EnableFallback bool           `json:"enableFallback"`
}

// Status queries every source for availability and configuration
func (f *Fallback) Status(ctx context.Context) StatusReport {
	report := StatusReport{
		Primary:        SourceStatus{Name: "None"},
		Fallbacks:      make([]SourceStatus, 0),
		LastUsed:       f.LastUsed(),
		EnableFallback: len(f.sources) > 1,
	}

	for i, s := range f.sources {
		cfg := s.Config(ctx)
		status := SourceStatus{Name: s.Name(), Available: cfg.IsAvailable, Config: &cfg}
		if i == 0 {
			report.Primary = status
		} else {
			report.Fallbacks = append(report.Fallbacks, status)
		}
	}

	f.logger.Info("Service status retrieved", "primary", report.Primary.Name, "last_used", report.LastUsed)
	return report
}
