package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/metrics"
	"github.com/halvard/coxswain/internal/realtime"
)

type HealthHandlers struct {
	db      *database.DB
	broker  *realtime.Broker
	version string
}

func NewHealthHandlers(db *database.DB, broker *realtime.Broker, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		broker:  broker,
		version: version,
	}
}

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
	Clients int          `json:"clients,omitempty"`
}

type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Goroutines int                        `json:"goroutines"`
	Components map[string]ComponentHealth `json:"components"`
}

var startTime = time.Now()

const healthCheckTimeout = 5 * time.Second

// Health handles GET /api/health.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overall := HealthStatusHealthy

	dbStart := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		components["database"] = ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Message: err.Error(),
		}
		overall = HealthStatusUnhealthy
	} else {
		components["database"] = ComponentHealth{
			Status:  HealthStatusHealthy,
			Latency: time.Since(dbStart).String(),
		}
		metrics.UpdateDBStats(h.db.Stats().OpenConnections)
	}

	if h.broker != nil {
		components["realtime"] = ComponentHealth{
			Status:  HealthStatusHealthy,
			Clients: h.broker.ClientCount(),
		}
	}

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, HealthResponse{
		Status:     overall,
		Version:    h.version,
		Uptime:     time.Since(startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Goroutines: runtime.NumGoroutine(),
		Components: components,
	})
}
