package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON health reports
func (l DegradationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// DegradationConfig holds configuration for graceful degradation
type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DegradedThreshold   float64       `json:"degraded_threshold"`
	CriticalThreshold   float64       `json:"critical_threshold"`
	EmergencyThreshold  float64       `json:"emergency_threshold"`
	// RecoveryTimeWindow bounds the requests the error rate is computed over
	RecoveryTimeWindow  time.Duration `json:"recovery_time_window"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout"`
	MaxDegradedDuration time.Duration `json:"max_degraded_duration"`
	// MinRequests below which a source is never degraded
	MinRequests int `json:"min_requests"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.25,
		EmergencyThreshold:  0.5,
		RecoveryTimeWindow:  5 * time.Minute,
		HealthCheckTimeout:  5 * time.Second,
		MaxDegradedDuration: 10 * time.Minute,
		MinRequests:         3,
	}
}

// ServiceHealth is a snapshot of one photo source's health
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime time.Time        `json:"last_error_time,omitempty"`
	DegradedSince *time.Time       `json:"degraded_since,omitempty"`
	StatusMessage string           `json:"status_message"`
}

type outcome struct {
	at      time.Time
	success bool
}

type serviceState struct {
	health   ServiceHealth
	outcomes []outcome
}

// DegradationManager tracks windowed error rates per photo source
type DegradationManager struct {
	config       DegradationConfig
	services     map[string]*serviceState
	healthChecks map[string]HealthCheckFunc
	mutex        sync.RWMutex
	now          func() time.Time
}

// HealthCheckFunc represents a function that checks service health
type HealthCheckFunc func(ctx context.Context) error

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:       config,
		services:     make(map[string]*serviceState),
		healthChecks: make(map[string]HealthCheckFunc),
		now:          time.Now,
	}
}

// RegisterService registers a service with its health check function. Re-registering
// keeps the recorded history and replaces the health check.
func (dm *DegradationManager) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if _, exists := dm.services[serviceName]; !exists {
		dm.services[serviceName] = &serviceState{health: ServiceHealth{
			ServiceName:   serviceName,
			Level:         LevelNormal,
			StatusMessage: "Service is healthy",
		}}
	}

	if healthCheck != nil {
		dm.healthChecks[serviceName] = healthCheck
	}

	slog.Info("Registered service for degradation management", "service", serviceName)
}

// RecordRequest records a request and its success/failure
func (dm *DegradationManager) RecordRequest(serviceName string, success bool) {
	if success {
		dm.record(serviceName, nil)
		return
	}
	dm.record(serviceName, errors.NewInternalError("Service request failed", nil))
}

// RecordError records a failed request for a service
func (dm *DegradationManager) RecordError(serviceName string, err error) {
	if err == nil {
		err = errors.NewInternalError("Service request failed", nil)
	}
	dm.record(serviceName, err)
}

func (dm *DegradationManager) record(serviceName string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	state, exists := dm.services[serviceName]
	if !exists {
		return
	}

	now := dm.now()
	state.outcomes = append(state.outcomes, outcome{at: now, success: err == nil})
	state.health.TotalRequests++
	if err != nil {
		state.health.ErrorCount++
		state.health.LastError = err.Error()
		state.health.LastErrorTime = now
	}

	dm.updateDegradationLevel(state, now)
}

func (dm *DegradationManager) updateDegradationLevel(state *serviceState, now time.Time) {
	if dm.config.RecoveryTimeWindow > 0 {
		cutoff := now.Add(-dm.config.RecoveryTimeWindow)
		i := 0
		for i < len(state.outcomes) && state.outcomes[i].at.Before(cutoff) {
			i++
		}
		state.outcomes = state.outcomes[i:]
	}

	failures := 0
	for _, o := range state.outcomes {
		if !o.success {
			failures++
		}
	}

	service := &state.health
	service.ErrorRate = 0
	if len(state.outcomes) > 0 {
		service.ErrorRate = float64(failures) / float64(len(state.outcomes))
	}

	oldLevel := service.Level
	var newLevel DegradationLevel
	var statusMessage string

	switch {
	case len(state.outcomes) < dm.config.MinRequests:
		newLevel = LevelNormal
		statusMessage = "Service is healthy"
	case service.ErrorRate >= dm.config.EmergencyThreshold:
		newLevel = LevelEmergency
		statusMessage = "Service is in emergency state - high error rate"
	case service.ErrorRate >= dm.config.CriticalThreshold:
		newLevel = LevelCritical
		statusMessage = "Service is in critical state - elevated error rate"
	case service.ErrorRate >= dm.config.DegradedThreshold:
		newLevel = LevelDegraded
		statusMessage = "Service is degraded - moderate error rate"
	default:
		newLevel = LevelNormal
		statusMessage = "Service is healthy"
	}

	if newLevel == LevelDegraded && service.DegradedSince != nil &&
		now.Sub(*service.DegradedSince) > dm.config.MaxDegradedDuration {
		newLevel = LevelEmergency
		statusMessage = "Service has been degraded too long - entering emergency state"
	}

	if newLevel == LevelDegraded && service.DegradedSince == nil {
		since := now
		service.DegradedSince = &since
	} else if newLevel == LevelNormal {
		service.DegradedSince = nil
	}

	service.Level = newLevel
	service.StatusMessage = statusMessage

	if oldLevel != newLevel {
		slog.Warn("Service degradation level changed",
			"service", service.ServiceName,
			"old_level", oldLevel.String(),
			"new_level", newLevel.String(),
			"error_rate", service.ErrorRate,
			"window_requests", len(state.outcomes))
	}
}

// GetServiceHealth returns a copy of the health status of a service
func (dm *DegradationManager) GetServiceHealth(serviceName string) (*ServiceHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	state, exists := dm.services[serviceName]
	if !exists {
		return nil, false
	}
	health := state.health
	return &health, true
}

// GetAllServiceHealth returns health status for all services
func (dm *DegradationManager) GetAllServiceHealth() map[string]*ServiceHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]*ServiceHealth, len(dm.services))
	for name, state := range dm.services {
		health := state.health
		result[name] = &health
	}
	return result
}

// IsServiceAvailable reports false only for registered services in emergency state
func (dm *DegradationManager) IsServiceAvailable(serviceName string) bool {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	state, exists := dm.services[serviceName]
	if !exists {
		return true
	}
	return state.health.Level != LevelEmergency
}

// AnyInEmergency reports whether any registered service is in emergency state
func (dm *DegradationManager) AnyInEmergency() bool {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	for _, state := range dm.services {
		if state.health.Level == LevelEmergency {
			return true
		}
	}
	return false
}

// StartHealthChecks runs the health checks every HealthCheckInterval until ctx is done
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.RunHealthChecks(ctx)
		}
	}
}

// RunHealthChecks runs every registered health check once and waits for them
func (dm *DegradationManager) RunHealthChecks(ctx context.Context) {
	dm.mutex.RLock()
	checks := make(map[string]HealthCheckFunc, len(dm.healthChecks))
	for name, check := range dm.healthChecks {
		checks[name] = check
	}
	dm.mutex.RUnlock()

	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
			defer cancel()

			if err := check(checkCtx); err != nil {
				dm.RecordError(name, errors.WrapError(err, "health check failed for service %s", name))
				return
			}
			dm.RecordRequest(name, true)
		}(name, check)
	}
	wg.Wait()
}

// ResetService resets a service's health status
func (dm *DegradationManager) ResetService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if state, exists := dm.services[serviceName]; exists {
		state.outcomes = nil
		state.health = ServiceHealth{
			ServiceName:   serviceName,
			Level:         LevelNormal,
			StatusMessage: "Service is healthy",
		}
		slog.Info("Service health reset", "service", serviceName)
	}
}

// GracefulShutdown logs the final status of every service
func (dm *DegradationManager) GracefulShutdown() {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	slog.Info("Degradation manager shutting down", "services", len(dm.services))
	for name, state := range dm.services {
		slog.Info("Final service status",
			"service", name,
			"level", state.health.Level.String(),
			"error_rate", state.health.ErrorRate,
			"total_requests", state.health.TotalRequests,
			"error_count", state.health.ErrorCount)
	}
}

var globalDegradationManager = NewDegradationManager(DefaultDegradationConfig())

// DefaultManager returns the process-wide degradation manager
func DefaultManager() *DegradationManager {
	return globalDegradationManager
}

// RegisterService registers a service globally
func RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	globalDegradationManager.RegisterService(serviceName, healthCheck)
}

// RecordRequest records a request globally
func RecordRequest(serviceName string, success bool) {
	globalDegradationManager.RecordRequest(serviceName, success)
}

// RecordError records an error globally
func RecordError(serviceName string, err error) {
	globalDegradationManager.RecordError(serviceName, err)
}

// IsServiceAvailable checks availability globally
func IsServiceAvailable(serviceName string) bool {
	return globalDegradationManager.IsServiceAvailable(serviceName)
}

// GetServiceHealth gets health status globally
func GetServiceHealth(serviceName string) (*ServiceHealth, bool) {
	return globalDegradationManager.GetServiceHealth(serviceName)
}

// GetAllServiceHealth gets all health statuses globally
func GetAllServiceHealth() map[string]*ServiceHealth {
	return globalDegradationManager.GetAllServiceHealth()
}

// StartHealthChecks starts global health checks in the background
func StartHealthChecks(ctx context.Context) {
	go globalDegradationManager.StartHealthChecks(ctx)
}
