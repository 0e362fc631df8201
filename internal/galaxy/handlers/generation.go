package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"galaxy-server/internal/galaxy"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/response"
	"galaxy-server/internal/task"

	"github.com/gorilla/websocket"
)

const maxBodyBytes = 1 << 20

type TriggerResponse struct {
	TaskID              string `json:"task_id"`
	EstimatedDuration   string `json:"estimated_duration"`
	EstimatedDurationMs int64  `json:"estimated_duration_ms"`
	StatusURL           string `json:"status_url"`
	WatchURL            string `json:"watch_url"`
}

type GenerationHandler struct {
	service  *galaxy.Service
	upgrader websocket.Upgrader
}

func NewGenerationHandler(service *galaxy.Service, allowedOrigin string) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *GenerationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "trigger_generation")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req galaxy.Request
	if err := dec.Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	rec, err := h.service.Trigger(ctx, req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	logger.Info("Generation accepted", "task_id", rec.ID, "region", rec.Subject)

	response.Success(w, http.StatusAccepted, TriggerResponse{
		TaskID:              rec.ID,
		EstimatedDuration:   rec.EstimatedDuration.String(),
		EstimatedDurationMs: rec.EstimatedDuration.Milliseconds(),
		StatusURL:           "/api/admin/generation/" + rec.ID,
		WatchURL:            "/api/admin/generation/" + rec.ID + "/watch",
	})
}

// Task serves GET (status) and DELETE (cancel) on a single task.
func (h *GenerationHandler) Task(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "generation_task")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("task ID is required"))
		return
	}

	var (
		rec *task.Record
		err error
	)
	switch r.Method {
	case http.MethodGet:
		rec, err = h.service.Status(ctx, id)
	case http.MethodDelete:
		rec, err = h.service.Cancel(ctx, id)
		if err == nil {
			logger.Info("Generation cancel requested", "task_id", id)
		}
	default:
		err = errors.MethodNotAllowed(r.Method)
	}
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, rec)
}

// Watch streams task records over a websocket until the task finishes or the
// client goes away.
func (h *GenerationHandler) Watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "watch_generation")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	id := r.PathValue("id")
	updates, stop, err := h.service.Watch(ctx, id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("Websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()
	// The server read timeout would otherwise end long watches.
	_ = conn.SetReadDeadline(time.Time{})

	// Drain client frames so close and ping control messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			logger.Debug("Watcher disconnected", "task_id", id)
			return
		case rec, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(rec); err != nil {
				logger.Debug("Failed to write task update", "task_id", id, "error", err)
				return
			}
		}
	}
}
