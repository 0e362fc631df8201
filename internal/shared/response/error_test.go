package response

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"galaxy-server/internal/shared/errors"
)

func TestError_MapsTypesAndCarriesKind(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		err  error
		code int
		kind errors.Kind
	}{
		{"budget", errors.InsufficientSectors(10, 300), http.StatusBadRequest, errors.KindInsufficientSectors},
		{"wrapped conflict", fmt.Errorf("failed to generate: %w", errors.AlreadyExistsf("region alpha exists")), http.StatusConflict, errors.KindAlreadyExists},
		{"not found", errors.NotFoundf("task x"), http.StatusNotFound, errors.KindNotFound},
		{"rate limited", errors.RateLimited("slow down"), http.StatusTooManyRequests, ""},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, tt.err)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.code || body.Kind != tt.kind {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestError_DetailsInEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodPost, "/", nil), logger, errors.InsufficientSectors(10, 300))

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["requested"] != float64(10) || details["minimum"] != float64(300) {
		t.Fatalf("details = %v", body["details"])
	}
}
