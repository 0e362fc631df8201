package server

import (
	"log/slog"
	"net/http"

	"galaxy-server/internal/galaxy"
	galaxyHandlers "galaxy-server/internal/galaxy/handlers"
	"galaxy-server/internal/middleware"
	serverHandlers "galaxy-server/internal/server/handlers"
)

type Routes struct {
	service       *galaxy.Service
	health        *serverHandlers.HealthHandler
	allowedOrigin string
	logger        *slog.Logger
}

func NewRoutes(service *galaxy.Service, health *serverHandlers.HealthHandler, allowedOrigin string, logger *slog.Logger) *Routes {
	return &Routes{
		service:       service,
		health:        health,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := r.logger.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	generationHandler := galaxyHandlers.NewGenerationHandler(r.service, r.allowedOrigin)
	regionHandler := galaxyHandlers.NewRegionHandler(r.service)

	// Public endpoints
	mux.Handle("/api/server/health", r.health)
	mux.HandleFunc("/api/regions", regionHandler.List)
	mux.HandleFunc("/api/regions/{name}", regionHandler.Get)
	mux.HandleFunc("/api/regions/{name}/sectors/{id}", regionHandler.Sector)

	// Protected endpoints (authenticated players)
	mux.Handle("/api/regions/{name}/sectors/{id}/ownership", middleware.RequireUser(http.HandlerFunc(regionHandler.Ownership)))
	mux.Handle("/api/regions/{name}/tunnels", middleware.RequireUser(http.HandlerFunc(regionHandler.ConstructTunnel)))

	// Admin-only endpoints (authenticated + admin role)
	mux.Handle("/api/admin/generation", middleware.RequireAdmin(http.HandlerFunc(generationHandler.Trigger)))
	mux.Handle("/api/admin/generation/{id}", middleware.RequireAdmin(http.HandlerFunc(generationHandler.Task)))
	mux.Handle("/api/admin/generation/{id}/watch", middleware.RequireAdmin(http.HandlerFunc(generationHandler.Watch)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/regions", "/api/regions/{name}", "/api/regions/{name}/sectors/{id}"},
		"protected_endpoints", []string{"/api/regions/{name}/sectors/{id}/ownership", "/api/regions/{name}/tunnels"},
		"admin_endpoints", []string{"/api/admin/generation", "/api/admin/generation/{id}", "/api/admin/generation/{id}/watch"},
	)

	return mux
}
