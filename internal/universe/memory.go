package universe

import (
	"context"
	"sort"
	"sync"

	"galaxy-server/internal/shared/errors"
)

// MemoryRepository keeps committed snapshots in process. It backs the
// server when no database is configured and the tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	regions map[string]*Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{regions: make(map[string]*Snapshot)}
}

func (r *MemoryRepository) SaveRegion(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.regions[snap.RegionName] = snap
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) SaveOwnership(ctx context.Context, snap *Snapshot, sectorID int) error {
	if _, ok := snap.Sector(sectorID); !ok {
		return errors.NotFoundf("sector %d not found", sectorID)
	}
	return r.SaveRegion(ctx, snap)
}

func (r *MemoryRepository) LoadRegion(_ context.Context, name string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.regions[name]
	if !ok {
		return nil, errors.NotFoundf("region %q not found", name)
	}
	return snap, nil
}

func (r *MemoryRepository) ListRegions(_ context.Context) ([]RegionInfo, error) {
	r.mu.RLock()
	out := make([]RegionInfo, 0, len(r.regions))
	for _, snap := range r.regions {
		out = append(out, snap.Info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
