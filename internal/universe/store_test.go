package universe

import (
	"context"
	"sync"
	"testing"

	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
)

func TestStore_PublishSwapsPointer(t *testing.T) {
	store := NewStore()
	if store.Get("alpha") != nil {
		t.Fatalf("empty store returned a snapshot")
	}

	first := testSnapshot(t)
	if prev := store.Publish(first); prev != nil {
		t.Fatalf("first publish replaced %v", prev)
	}
	second := testSnapshot(t)
	second.Version = 2
	if prev := store.Publish(second); prev != first {
		t.Fatalf("publish did not return the replaced snapshot")
	}
	if store.Get("alpha") != second {
		t.Fatalf("store does not serve the latest snapshot")
	}
	if got := store.List(); len(got) != 1 {
		t.Fatalf("list = %d snapshots, want 1", len(got))
	}
}

func TestStore_UpdateIsSerialized(t *testing.T) {
	store := NewStore()
	store.Publish(testSnapshot(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(owner int) {
			defer wg.Done()
			_, err := store.Update("alpha", func(cur *Snapshot) (*Snapshot, error) {
				return cur.WithOwnership(20+owner, &sector.Ownership{OwnerID: owner})
			})
			if err != nil {
				t.Errorf("update %d: %v", owner, err)
			}
		}(i)
	}
	wg.Wait()

	final := store.Get("alpha")
	if final.Version != 9 {
		t.Fatalf("version = %d, want 9", final.Version)
	}
	if final.Summary.ClaimedSectors != 9 {
		t.Fatalf("claimed = %d, want 9", final.Summary.ClaimedSectors)
	}
}

func TestStore_UpdateMissingRegion(t *testing.T) {
	_, err := NewStore().Update("nowhere", func(s *Snapshot) (*Snapshot, error) { return s, nil })
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_HydrateLoadsNewerVersions(t *testing.T) {
	repo := NewMemoryRepository()
	newer := testSnapshot(t)
	newer.Version = 3
	if err := repo.SaveRegion(context.Background(), newer); err != nil {
		t.Fatalf("save: %v", err)
	}

	store := NewStore()
	stale := testSnapshot(t)
	stale.Version = 1
	store.Publish(stale)

	n, err := store.Hydrate(context.Background(), repo)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 1 || store.Get("alpha").Version != 3 {
		t.Fatalf("hydrated %d, version %d", n, store.Get("alpha").Version)
	}

	n, err = store.Hydrate(context.Background(), repo)
	if err != nil || n != 0 {
		t.Fatalf("second hydrate = %d, %v", n, err)
	}
}
