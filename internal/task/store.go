package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"galaxy-server/internal/shared/errors"

	"github.com/redis/go-redis/v9"
)

// Store keeps task records for status queries. Records expire after the
// configured TTL.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
}

type memoryEntry struct {
	rec     *Record
	expires time.Time
}

// MemoryStore is the in-process fallback used when Redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, records: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.records {
		if now.After(e.expires) {
			delete(s.records, id)
		}
	}
	s.records[rec.ID] = memoryEntry{rec: rec.clone(), expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok || s.now().After(e.expires) {
		return nil, errors.NotFoundf("generation task %s not found", id)
	}
	return e.rec.clone(), nil
}

const keyPrefix = "generation:task:"

// RedisStore keeps records as JSON strings under generation:task:<id>.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+rec.ID, b, s.ttl).Err(); err != nil {
		return errors.WrapExternal("failed to store task record", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	b, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFoundf("generation task %s not found", id)
	}
	if err != nil {
		return nil, errors.WrapExternal("failed to load task record", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode task record: %w", err)
	}
	return &rec, nil
}
