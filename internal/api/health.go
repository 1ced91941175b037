package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"storefront-catalog-service/internal/logging"
	"storefront-catalog-service/internal/store"
)

const (
	// ServiceName is the gRPC health service name reported alongside "".
	ServiceName   = "storefront.catalog"
	pingTimeout   = 2 * time.Second
	statusHealthy = "healthy"
)

// HealthStatus is the body of GET /api/healthz.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"serviceName"`
	Timestamp string `json:"timestamp"`
	Store     string `json:"store"`
}

// HealthChecker pings the store and mirrors the result into the gRPC health
// server.
type HealthChecker struct {
	pinger store.Pinger
	grpc   *health.Server

	mu      sync.Mutex
	healthy bool
}

// NewHealthChecker creates a HealthChecker. grpcHealth may be nil.
func NewHealthChecker(pinger store.Pinger, grpcHealth *health.Server) *HealthChecker {
	return &HealthChecker{pinger: pinger, grpc: grpcHealth}
}

// Check pings the store once and updates the serving status.
func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := h.pinger.Ping(ctx)

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.mu.Lock()
	changed := h.healthy != (err == nil)
	h.healthy = err == nil
	h.mu.Unlock()

	if h.grpc != nil {
		h.grpc.SetServingStatus("", status)
		h.grpc.SetServingStatus(ServiceName, status)
	}
	if changed {
		logging.FromContext(ctx).WithError(err).WithField("status", status.String()).Info("store_health_changed")
	}
	return err
}

// Watch runs Check every interval until ctx is done.
func (h *HealthChecker) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	_ = h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = h.Check(ctx)
		}
	}
}

// ServeHTTP answers 200 when the store is reachable and 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := HealthStatus{
		Status:    statusHealthy,
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Store:     statusHealthy,
	}
	code := http.StatusOK
	if err := h.Check(r.Context()); err != nil {
		body.Status = "degraded"
		body.Store = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, body)
}
