package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"galaxy-server/internal/shared/response"
	"galaxy-server/internal/universe"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Regions   int    `json:"regions"`
}

// Pinger probes one backend.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	database Pinger
	redis    Pinger
	store    *universe.Store
}

// NewHealthHandler accepts nil pingers for backends that are not configured.
func NewHealthHandler(database, redis Pinger, store *universe.Store) *HealthHandler {
	return &HealthHandler{database: database, redis: redis, store: store}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  probe(ctx, logger, "database", h.database),
		Redis:     probe(ctx, logger, "redis", h.redis),
	}
	if h.store != nil {
		resp.Regions = len(h.store.List())
	}
	if resp.Database == "disconnected" || resp.Redis == "disconnected" {
		resp.Status = "degraded"
	}

	response.Success(w, http.StatusOK, resp)
}

func probe(ctx context.Context, logger *slog.Logger, name string, ping Pinger) string {
	if ping == nil {
		return "disabled"
	}
	if err := ping(ctx); err != nil {
		logger.Warn("Health probe failed", "backend", name, "error", err)
		return "disconnected"
	}
	return "connected"
}
