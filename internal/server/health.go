package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported alongside the overall status.
const ServiceName = "payment-receipts"

// Pinger is satisfied by *repository.DB.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// HealthReporter drives the gRPC serving status from periodic database pings.
type HealthReporter struct {
	hs       *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	healthy  atomic.Bool
	logger   *slog.Logger
}

func NewHealthReporter(db Pinger, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hr := &HealthReporter{
		hs:       health.NewServer(),
		db:       db,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger,
	}
	hr.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return hr
}

// Check pings once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) bool {
	err := h.db.HealthCheck(ctx, h.timeout)
	ok := err == nil
	if was := h.healthy.Swap(ok); was != ok {
		h.logger.Info("health.status.changed", "serving", ok, "error", err)
	}
	if ok {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Run checks every interval until ctx ends.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Healthy is the result of the latest check.
func (h *HealthReporter) Healthy() bool { return h.healthy.Load() }

// Shutdown marks every service as not serving and rejects later updates.
func (h *HealthReporter) Shutdown() { h.hs.Shutdown() }

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(ServiceName, status)
}

// NewGRPCServer registers the health service and reflection.
func NewGRPCServer(h *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.hs)
	// Reflection for grpcurl
	reflection.Register(s)
	return s
}
