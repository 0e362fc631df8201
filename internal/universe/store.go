package universe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"galaxy-server/internal/shared/errors"
)

// Store holds the committed snapshot of each region. Publishing a new
// version is a single pointer swap; readers keep whatever snapshot they
// loaded.
type Store struct {
	mu      sync.RWMutex
	regions map[string]*atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	return &Store{regions: make(map[string]*atomic.Pointer[Snapshot])}
}

func (s *Store) slot(name string, create bool) *atomic.Pointer[Snapshot] {
	s.mu.RLock()
	p, ok := s.regions[name]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.regions[name]; ok {
		return p
	}
	p = &atomic.Pointer[Snapshot]{}
	s.regions[name] = p
	return p
}

// Get returns the committed snapshot of a region, or nil.
func (s *Store) Get(name string) *Snapshot {
	p := s.slot(name, false)
	if p == nil {
		return nil
	}
	return p.Load()
}

// Publish makes snap the committed version of its region and returns the
// version it replaced.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	return s.slot(snap.RegionName, true).Swap(snap)
}

// Update applies fn to the current snapshot and publishes the result if no
// other writer got there first.
func (s *Store) Update(name string, fn func(*Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	p := s.slot(name, false)
	if p == nil {
		return nil, errors.NotFoundf("region %q not found", name)
	}
	for {
		cur := p.Load()
		if cur == nil {
			return nil, errors.NotFoundf("region %q not found", name)
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if p.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}

// List returns the committed snapshots ordered by region name.
func (s *Store) List() []*Snapshot {
	s.mu.RLock()
	out := make([]*Snapshot, 0, len(s.regions))
	for _, p := range s.regions {
		if snap := p.Load(); snap != nil {
			out = append(out, snap)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RegionName < out[j].RegionName })
	return out
}

// Hydrate loads every region the repository holds at a newer version than
// the store and publishes it. It returns how many regions were loaded.
func (s *Store) Hydrate(ctx context.Context, repo Repository) (int, error) {
	infos, err := repo.ListRegions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list regions: %w", err)
	}
	n := 0
	for _, info := range infos {
		if cur := s.Get(info.Name); cur != nil && cur.Version >= info.Version {
			continue
		}
		snap, err := repo.LoadRegion(ctx, info.Name)
		if err != nil {
			return n, fmt.Errorf("failed to load region %s: %w", info.Name, err)
		}
		s.Publish(snap)
		n++
	}
	return n, nil
}
