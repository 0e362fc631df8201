package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"galaxy-server/internal/auth"
	"galaxy-server/internal/galaxy"
	serverHandlers "galaxy-server/internal/server/handlers"
	"galaxy-server/internal/shared/config"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/task"
	"galaxy-server/internal/universe"
)

func TestRoutes_AdminGuard(t *testing.T) {
	prev := config.GlobalConfig
	config.GlobalConfig = &config.Config{Auth: config.AuthConfig{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		TokenExpiration: time.Hour,
	}}
	t.Cleanup(func() { config.GlobalConfig = prev })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := universe.NewStore()
	bp, err := galaxy.NewBlueprint(tables.Default(), store, nil, nil, nil, galaxy.Options{Workers: 2}, logger)
	if err != nil {
		t.Fatalf("failed to build blueprint: %v", err)
	}
	service := galaxy.NewService(bp, task.NewManager(task.NewMemoryStore(time.Hour), logger), logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Shutdown(ctx)
	})

	mux := NewRoutes(service, serverHandlers.NewHealthHandler(nil, nil, store), "", logger).Setup()

	body := `{"region_kind":"player_owned","region_name":"zeta","total_sectors":300}`
	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/generation", strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous trigger = %d", code)
	}
	player, _ := auth.GenerateJWT(2, "pilot", auth.RolePlayer)
	if code := send(player); code != http.StatusForbidden {
		t.Fatalf("player trigger = %d", code)
	}
	admin, _ := auth.GenerateJWT(1, "ops", auth.RoleAdmin)
	if code := send(admin); code != http.StatusAccepted {
		t.Fatalf("admin trigger = %d", code)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/server/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/regions/zeta/tunnels", strings.NewReader(`{"from":1,"to":2}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous tunnel = %d", rec.Code)
	}
}
