package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"galaxy-server/internal/auth"
	"galaxy-server/internal/galaxy"
	"galaxy-server/internal/middleware"
	"galaxy-server/internal/shared/config"
	"galaxy-server/internal/shared/response"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/task"
	"galaxy-server/internal/universe"
	"galaxy-server/internal/warp"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service *galaxy.Service
	mux     *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	prev := config.GlobalConfig
	config.GlobalConfig = &config.Config{Auth: config.AuthConfig{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		TokenExpiration: time.Hour,
	}}
	t.Cleanup(func() { config.GlobalConfig = prev })

	logger := discardLogger()
	bp, err := galaxy.NewBlueprint(tables.Default(), universe.NewStore(), universe.NewMemoryRepository(),
		universe.NewArchive(t.TempDir(), logger), galaxy.NewMemoryLocker(),
		galaxy.Options{Workers: 2, LockTTL: time.Minute}, logger)
	if err != nil {
		t.Fatalf("failed to build blueprint: %v", err)
	}
	tasks := task.NewManager(task.NewMemoryStore(time.Hour), logger)
	service := galaxy.NewService(bp, tasks, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Shutdown(ctx)
	})

	generation := NewGenerationHandler(service, "")
	regions := NewRegionHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/generation", generation.Trigger)
	mux.HandleFunc("/api/admin/generation/{id}", generation.Task)
	mux.HandleFunc("/api/admin/generation/{id}/watch", generation.Watch)
	mux.HandleFunc("/api/regions", regions.List)
	mux.HandleFunc("/api/regions/{name}", regions.Get)
	mux.HandleFunc("/api/regions/{name}/sectors/{id}", regions.Sector)
	mux.Handle("/api/regions/{name}/sectors/{id}/ownership", middleware.RequireUser(http.HandlerFunc(regions.Ownership)))
	mux.Handle("/api/regions/{name}/tunnels", middleware.RequireUser(http.HandlerFunc(regions.ConstructTunnel)))

	return &fixture{service: service, mux: mux}
}

func (f *fixture) seed(t *testing.T, name string) {
	t.Helper()
	req := galaxy.Request{RegionKind: universe.KindPlayerOwned, RegionName: name, TotalSectors: 300, Seed: 11}
	if _, err := f.service.Generate(context.Background(), req, nil); err != nil {
		t.Fatalf("seed generation failed: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func bearer(t *testing.T, playerID int, role string) []string {
	t.Helper()
	tok, err := auth.GenerateJWT(playerID, "pilot", role)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return []string{"Authorization", "Bearer " + tok}
}

func waitFinished(t *testing.T, f *fixture, id string) task.Record {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.do(t, http.MethodGet, "/api/admin/generation/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status code %d: %s", rec.Code, rec.Body.String())
		}
		r := decode[task.Record](t, rec)
		if r.Status.Done() {
			return r
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return task.Record{}
}

func TestTrigger_Accepted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/generation",
		`{"region_kind":"player_owned","region_name":"alpha","total_sectors":300,"seed":5}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[TriggerResponse](t, rec)
	if resp.TaskID == "" || resp.EstimatedDurationMs <= 0 {
		t.Fatalf("unexpected response %+v", resp)
	}

	final := waitFinished(t, f, resp.TaskID)
	if final.Status != task.StatusSucceeded || final.Phase != string(galaxy.StateCommitted) {
		t.Fatalf("final record %+v", final)
	}

	list := decode[[]universe.RegionInfo](t, f.do(t, http.MethodGet, "/api/regions", ""))
	if len(list) != 1 || list[0].Name != "alpha" || list[0].TotalSectors != 300 {
		t.Fatalf("regions = %+v", list)
	}
}

func TestTrigger_RejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		kind string
	}{
		{"malformed", `{"region_kind":`, ""},
		{"unknown field", `{"region_kind":"player_owned","region_name":"a","total_sectors":300,"colour":"red"}`, ""},
		{"too few sectors", `{"region_kind":"player_owned","region_name":"a","total_sectors":10}`, "insufficient_sectors"},
		{"unknown kind", `{"region_kind":"moon","region_name":"a","total_sectors":300}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/admin/generation", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			env := decode[response.ErrorResponse](t, rec)
			if tt.kind != "" && string(env.Kind) != tt.kind {
				t.Fatalf("kind = %q, want %q", env.Kind, tt.kind)
			}
		})
	}

	if rec := f.do(t, http.MethodGet, "/api/admin/generation", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET trigger status = %d", rec.Code)
	}
}

func TestTask_UnknownAndCancelFinished(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/api/admin/generation/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/admin/generation",
		`{"region_kind":"player_owned","region_name":"beta","total_sectors":300}`)
	id := decode[TriggerResponse](t, rec).TaskID
	waitFinished(t, f, id)

	if rec := f.do(t, http.MethodDelete, "/api/admin/generation/"+id, ""); rec.Code != http.StatusConflict {
		t.Fatalf("cancel finished status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegions_ReadAPI(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "gamma")

	rec := f.do(t, http.MethodGet, "/api/regions/gamma", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("region status = %d", rec.Code)
	}
	view := decode[RegionView](t, rec)
	if len(view.Zones) != 3 || len(view.Clusters) == 0 || view.Version != 1 {
		t.Fatalf("region view zones=%d clusters=%d version=%d", len(view.Zones), len(view.Clusters), view.Version)
	}

	sec := decode[SectorView](t, f.do(t, http.MethodGet, "/api/regions/gamma/sectors/150", ""))
	if sec.Sector == nil || sec.ID != 150 || len(sec.Neighbors) == 0 {
		t.Fatalf("sector view %+v", sec)
	}
	if sec.ZoneType != "border" {
		t.Fatalf("sector 150 zone = %q, want border", sec.ZoneType)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/regions/missing", http.StatusNotFound},
		{"/api/regions/gamma/sectors/9999", http.StatusNotFound},
		{"/api/regions/gamma/sectors/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := f.do(t, http.MethodGet, tt.path, ""); rec.Code != tt.want {
			t.Fatalf("%s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "delta")
	path := "/api/regions/delta/sectors/10/ownership"

	if rec := f.do(t, http.MethodPost, path, `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, path, `{}`, bearer(t, 42, auth.RolePlayer)...)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[SectorView](t, rec)
	if view.Ownership == nil || view.Ownership.OwnerID != 42 || view.Version != 2 {
		t.Fatalf("claimed view %+v", view)
	}

	if rec := f.do(t, http.MethodPost, path, `{"release":true}`, bearer(t, 7, auth.RolePlayer)...); rec.Code != http.StatusForbidden {
		t.Fatalf("other player status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, path, `{"release":true}`, bearer(t, 1, auth.RoleAdmin)...)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin release status = %d: %s", rec.Code, rec.Body.String())
	}
	if view := decode[SectorView](t, rec); view.Ownership != nil || view.Version != 3 {
		t.Fatalf("released view %+v", view)
	}
}

func TestConstructTunnel(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "zeta")
	owner := bearer(t, 42, auth.RolePlayer)
	for _, id := range []int{10, 250} {
		path := "/api/regions/zeta/sectors/" + strconv.Itoa(id) + "/ownership"
		if rec := f.do(t, http.MethodPost, path, `{}`, owner...); rec.Code != http.StatusOK {
			t.Fatalf("claim %d status = %d: %s", id, rec.Code, rec.Body.String())
		}
	}

	path := "/api/regions/zeta/tunnels"
	body := `{"from":10,"to":250,"expected_lifetime_days":30}`
	if rec := f.do(t, http.MethodPost, path, body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, path, body, bearer(t, 7, auth.RolePlayer)...); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, path, `{"from":10,"to":250,"color":"red"}`, owner...); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, path, body, owner...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("construct status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[TunnelView](t, rec)
	if view.A != 10 || view.B != 250 || view.Type != warp.TunnelArtificial || view.Version != 4 {
		t.Fatalf("tunnel view %+v", view)
	}
	if view.Construction == nil || view.Construction.BuilderID != 42 || view.Construction.ExpectedLifetimeDays != 30 {
		t.Fatalf("construction %+v", view.Construction)
	}

	if rec := f.do(t, http.MethodPost, path, `{"from":250,"to":10}`, owner...); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate tunnel status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, path, `{"from":10,"to":9999}`, bearer(t, 1, auth.RoleAdmin)...); rec.Code != http.StatusNotFound {
		t.Fatalf("missing endpoint status = %d", rec.Code)
	}
}

func TestWatch_StreamsUntilFinished(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	rec := f.do(t, http.MethodPost, "/api/admin/generation",
		`{"region_kind":"player_owned","region_name":"epsilon","total_sectors":400,"seed":3}`)
	id := decode[TriggerResponse](t, rec).TaskID

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/generation/" + id + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var last task.Record
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var r task.Record
		if err := conn.ReadJSON(&r); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			t.Fatalf("read: %v", err)
		}
		if r.ID != id {
			t.Fatalf("record for %s on stream of %s", r.ID, id)
		}
		last = r
	}
	if last.ID == "" {
		t.Fatalf("no task updates streamed")
	}

	final := waitFinished(t, f, id)
	if final.Status != task.StatusSucceeded {
		t.Fatalf("final %+v", final)
	}
}
