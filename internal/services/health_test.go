package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthService_CheckHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name        string
		critical    HealthCheck
		nonCritical HealthCheck
		expected    string
	}{
		{"all healthy", ok, ok, HealthStatusHealthy},
		{"optional dependency down", ok, down, HealthStatusDegraded},
		{"store down", down, ok, HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewHealthService(NewMetricsCollector(prometheus.NewRegistry()), testLogger())
			s.AddCritical("store", tt.critical)
			s.AddNonCritical("redis", tt.nonCritical)

			status := s.CheckHealth(context.Background())

			assert.Equal(t, tt.expected, status.Status)
			assert.Len(t, status.Services, 2)
		})
	}
}

func TestHealthService_UpdatesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsCollector(reg)
	s := NewHealthService(metrics, testLogger())
	s.AddCritical("store", func(context.Context) error { return nil })
	s.AddNonCritical("neo4j", func(context.Context) error { return errors.New("down") })

	status := s.CheckHealth(context.Background())

	assert.Equal(t, []string{"neo4j"}, status.NonCritical)

	families, err := reg.Gather()
	require.NoError(t, err)

	gauges := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "health_check_status" {
			continue
		}
		for _, m := range family.GetMetric() {
			gauges[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"store": 1, "neo4j": 0}, gauges)
}

func TestHealthService_CollectSystemMetricsExportsSources(t *testing.T) {
	metrics := NewMetricsCollector(prometheus.NewRegistry())
	s := NewHealthService(metrics, testLogger())
	s.AddMetricsSource("kafka", func() map[string]float64 {
		return map[string]float64{"consumer_lag": 7, "errors": 2}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.CollectSystemMetrics(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.systemInfo.WithLabelValues("kafka_consumer_lag")) == 7
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.systemInfo.WithLabelValues("kafka_errors")))
	assert.Positive(t, testutil.ToFloat64(metrics.systemInfo.WithLabelValues("goroutines_count")))

	cancel()
	<-done
}
