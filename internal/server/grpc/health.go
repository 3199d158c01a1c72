package grpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultHealthInterval = 15 * time.Second

// Pinger checks the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor drives grpc.health.v1 statuses from periodic store pings.
// The overall ("") service and every named service share one status.
type HealthMonitor struct {
	db       Pinger
	health   *health.Server
	interval time.Duration
	logger   *zap.Logger
	services []string

	mu      sync.Mutex
	serving bool
	checked bool
}

// NewHealthMonitor builds a monitor. Until the first check every service
// reports NOT_SERVING.
func NewHealthMonitor(db Pinger, hs *health.Server, interval time.Duration, logger *zap.Logger, services ...string) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HealthMonitor{
		db:       db,
		health:   hs,
		interval: interval,
		logger:   logger,
		services: append([]string{""}, services...),
	}
	m.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return m
}

// Run checks immediately, then on every interval until ctx ends.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings the store once and publishes the outcome. It reports whether
// the store answered.
func (m *HealthMonitor) Check(ctx context.Context) bool {
	err := m.db.Ping(ctx)
	serving := err == nil

	m.mu.Lock()
	changed := !m.checked || serving != m.serving
	m.serving, m.checked = serving, true
	m.mu.Unlock()

	if serving {
		m.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		m.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}

	if changed {
		if serving {
			m.logger.Info("store reachable; health SERVING")
		} else {
			m.logger.Warn("store unreachable; health NOT_SERVING", zap.Error(err))
		}
	}
	return serving
}

// Shutdown marks every service NOT_SERVING permanently.
func (m *HealthMonitor) Shutdown() {
	m.health.Shutdown()
}

func (m *HealthMonitor) set(st healthpb.HealthCheckResponse_ServingStatus) {
	for _, svc := range m.services {
		m.health.SetServingStatus(svc, st)
	}
}
