package services

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// MetricsSource reports a dependency's own counters, such as consumer lag.
type MetricsSource func() map[string]float64

type HealthService struct {
	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	sources     map[string]MetricsSource
	timeout     time.Duration
	metrics     *MetricsCollector
	logger      *logrus.Logger
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

func NewHealthService(metrics *MetricsCollector, logger *logrus.Logger) *HealthService {
	return &HealthService{
		critical:    make(map[string]HealthCheck),
		nonCritical: make(map[string]HealthCheck),
		sources:     make(map[string]MetricsSource),
		timeout:     5 * time.Second,
		metrics:     metrics,
		logger:      logger,
	}
}

// AddCritical registers a dependency the service cannot work without.
func (s *HealthService) AddCritical(name string, check HealthCheck) {
	s.critical[name] = check
}

// AddNonCritical registers a dependency whose failure only degrades the
// service.
func (s *HealthService) AddNonCritical(name string, check HealthCheck) {
	s.nonCritical[name] = check
}

// AddMetricsSource exports source's values as system_info gauges prefixed
// with name on every CollectSystemMetrics tick.
func (s *HealthService) AddMetricsSource(name string, source MetricsSource) {
	s.sources[name] = source
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	// Check critical services
	allCriticalHealthy := true
	for _, name := range sortedCheckNames(s.critical) {
		if err := s.run(ctx, s.critical[name]); err != nil {
			status.Services[name] = HealthStatusUnhealthy
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.updateMetrics(name, false)
		} else {
			status.Services[name] = HealthStatusHealthy
			s.updateMetrics(name, true)
		}
	}

	// Check non-critical services
	for _, name := range sortedCheckNames(s.nonCritical) {
		if err := s.run(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = HealthStatusUnhealthy
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.updateMetrics(name, false)
		} else {
			status.Services[name] = HealthStatusHealthy
			s.updateMetrics(name, true)
		}
	}

	// Overall status
	switch {
	case !allCriticalHealthy:
		status.Status = HealthStatusUnhealthy
	case len(status.NonCritical) > 0:
		status.Status = HealthStatusDegraded
	default:
		status.Status = HealthStatusHealthy
	}

	return status
}

func (s *HealthService) run(ctx context.Context, check HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

// CollectSystemMetrics samples runtime statistics every interval until ctx
// is cancelled.
func (s *HealthService) CollectSystemMetrics(ctx context.Context, interval time.Duration) {
	if s.metrics == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var memStats runtime.MemStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runtime.ReadMemStats(&memStats)
		s.metrics.UpdateSystemInfo("memory_alloc_bytes", float64(memStats.Alloc))
		s.metrics.UpdateSystemInfo("memory_sys_bytes", float64(memStats.Sys))
		s.metrics.UpdateSystemInfo("goroutines_count", float64(runtime.NumGoroutine()))
		s.metrics.UpdateSystemInfo("gc_runs_total", float64(memStats.NumGC))
		s.collectSources()
	}
}

func (s *HealthService) collectSources() {
	for name, source := range s.sources {
		for metric, value := range source() {
			s.metrics.UpdateSystemInfo(name+"_"+metric, value)
		}
	}
}

func (s *HealthService) updateMetrics(name string, healthy bool) {
	if s.metrics != nil {
		s.metrics.UpdateHealthMetrics(name, healthy)
	}
}

func sortedCheckNames(checks map[string]HealthCheck) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
