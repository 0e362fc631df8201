package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"galaxy-server/internal/shared/errors"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

type running struct {
	rec    *Record
	cancel context.CancelFunc
	subs   []chan Record
}

// Manager runs jobs in the background and tracks them in a Store. In-flight
// records are served from memory; finished ones from the store.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]*running
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
	now     func() time.Time
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		logger:  logger.With("component", "task_manager"),
		active:  make(map[string]*running),
		baseCtx: ctx,
		stop:    stop,
		now:     time.Now,
	}
}

// Submit records a pending task and starts the job. The job context is not
// derived from ctx: it lives until the job ends, Cancel or Shutdown.
func (m *Manager) Submit(ctx context.Context, subject string, estimate time.Duration, job Job) (*Record, error) {
	now := m.now()
	rec := &Record{
		ID:                uuid.NewString(),
		Subject:           subject,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDuration: estimate,
	}
	logger := m.logger.With("operation", "submit", "task_id", rec.ID, "subject", subject)

	if err := m.baseCtx.Err(); err != nil {
		return nil, errors.Conflictf("task manager is shutting down")
	}
	if err := m.store.Save(ctx, rec); err != nil {
		logger.Error("Failed to save task record", "error", err)
		return nil, fmt.Errorf("failed to save task record: %w", err)
	}

	submitted := rec.clone()
	jobCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.active[rec.ID] = &running{rec: rec, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(jobCtx, cancel, rec.ID, job)

	logger.Info("Task submitted", "estimated_duration", estimate)
	return submitted, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, id string, job Job) {
	defer m.wg.Done()
	defer cancel()
	logger := m.logger.With("operation", "run", "task_id", id)

	started := m.now()
	m.update(id, func(r *Record) { r.Status = StatusRunning })

	result, err := m.safeRun(ctx, job, func(phase string) {
		m.update(id, func(r *Record) {
			r.Phase = phase
			r.Phases = append(r.Phases, PhaseChange{Phase: phase, At: m.now()})
		})
	})

	elapsed := m.now().Sub(started)
	m.update(id, func(r *Record) {
		r.ActualDuration = elapsed
		switch {
		case err == nil:
			r.Status = StatusSucceeded
			if result != nil {
				b, mErr := json.Marshal(result)
				if mErr != nil {
					logger.Error("Failed to encode task result", "error", mErr)
				}
				r.Result = b
			}
		case ctx.Err() != nil:
			r.Status = StatusCancelled
			r.Error = failureOf(err)
		default:
			r.Status = StatusFailed
			r.Error = failureOf(err)
		}
	})

	m.mu.Lock()
	final := m.active[id].rec.clone()
	m.mu.Unlock()
	if sErr := m.store.Save(context.Background(), final); sErr != nil {
		logger.Error("Failed to save final task record", "error", sErr)
	}

	m.mu.Lock()
	for _, ch := range m.active[id].subs {
		close(ch)
	}
	delete(m.active, id)
	m.mu.Unlock()

	if err != nil {
		logger.Warn("Task ended without a result", "status", final.Status, "error", err, "duration", elapsed)
		return
	}
	logger.Info("Task completed", "duration", elapsed)
}

func (m *Manager) safeRun(ctx context.Context, job Job, report Reporter) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapInternal("task panicked", fmt.Errorf("%v", r))
		}
	}()
	return job(ctx, report)
}

// update mutates the live record, persists a copy and fans it out.
func (m *Manager) update(id string, fn func(*Record)) {
	m.mu.Lock()
	entry, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(entry.rec)
	entry.rec.UpdatedAt = m.now()
	snap := entry.rec.clone()
	for _, ch := range entry.subs {
		if snap.Status.Done() {
			deliver(ch, *snap)
			continue
		}
		select {
		case ch <- *snap:
		default:
		}
	}
	m.mu.Unlock()

	if snap.Status.Done() {
		return
	}
	if err := m.store.Save(context.Background(), snap); err != nil {
		m.logger.Error("Failed to save task record", "operation", "update", "task_id", id, "error", err)
	}
}

// deliver sends rec even to a full channel by dropping the oldest buffered
// record. Callers hold m.mu, so no other sender competes for the slot.
func deliver(ch chan Record, rec Record) {
	for {
		select {
		case ch <- rec:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m *Manager) Status(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	if entry, ok := m.active[id]; ok {
		rec := entry.rec.clone()
		m.mu.Unlock()
		return rec, nil
	}
	m.mu.Unlock()
	return m.store.Get(ctx, id)
}

// Cancel stops a running task. Cancelling a finished task is a conflict.
func (m *Manager) Cancel(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	entry, ok := m.active[id]
	if ok {
		entry.cancel()
		rec := entry.rec.clone()
		m.mu.Unlock()
		m.logger.Info("Task cancellation requested", "operation", "cancel", "task_id", id)
		return rec, nil
	}
	m.mu.Unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, errors.Conflictf("generation task %s already %s", id, rec.Status)
}

// Subscribe streams record updates of a running task. The channel closes
// when the task ends; a finished task yields a closed channel carrying its
// final record.
func (m *Manager) Subscribe(ctx context.Context, id string) (<-chan Record, func(), error) {
	ch := make(chan Record, subscriberBuffer)

	m.mu.Lock()
	entry, ok := m.active[id]
	if ok {
		ch <- *entry.rec.clone()
		entry.subs = append(entry.subs, ch)
		m.mu.Unlock()
		return ch, func() { m.unsubscribe(id, ch) }, nil
	}
	m.mu.Unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch <- *rec
	close(ch)
	return ch, func() {}, nil
}

func (m *Manager) unsubscribe(id string, ch chan Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.active[id]
	if !ok {
		return
	}
	for i, c := range entry.subs {
		if c == ch {
			entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Shutdown cancels every running task and waits for them to finish or for
// ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
