package universe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArchive_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := NewArchive(dir, discardLogger())
	snap := testSnapshot(t)

	path, err := archive.Write(snap)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if filepath.Base(path) != "v00000001.snap.zst" {
		t.Fatalf("unexpected archive name %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}

	got, err := archive.Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.RegionID != snap.RegionID || got.Seed != snap.Seed || !got.GeneratedAt.Equal(snap.GeneratedAt) {
		t.Fatalf("header fields differ: %+v", got.Info())
	}
	if got.Summary != snap.Summary {
		t.Fatalf("summary = %+v, want %+v", got.Summary, snap.Summary)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("decoded snapshot invalid: %v", err)
	}
	if o := got.Sectors[4].Ownership; o == nil || o.Assets[0].ID != *snap.Sectors[4].PlanetID {
		t.Fatalf("ownership lost: %+v", o)
	}
	if got.Sectors[17].Resources != snap.Sectors[17].Resources {
		t.Fatalf("resources differ")
	}
	if len(got.Graph.Connections) != len(snap.Graph.Connections) {
		t.Fatalf("connections = %d, want %d", len(got.Graph.Connections), len(snap.Graph.Connections))
	}
	if got.Graph.Tunnels[0].Construction == nil {
		t.Fatalf("tunnel construction lost")
	}
}

func TestArchive_LatestAndRestore(t *testing.T) {
	dir := t.TempDir()
	archive := NewArchive(dir, discardLogger())

	for v := int64(1); v <= 3; v++ {
		snap := testSnapshot(t)
		snap.Version = v
		if _, err := archive.Write(snap); err != nil {
			t.Fatalf("write v%d: %v", v, err)
		}
	}

	versions, err := archive.Versions("alpha")
	if err != nil || len(versions) != 3 || versions[2] != 3 {
		t.Fatalf("versions = %v, %v", versions, err)
	}

	store := NewStore()
	n, err := archive.Restore(store)
	if err != nil || n != 1 {
		t.Fatalf("restore = %d, %v", n, err)
	}
	if got := store.Get("alpha"); got == nil || got.Version != 3 {
		t.Fatalf("restored version = %v", got)
	}

	if snap, err := archive.Latest("missing"); snap != nil || err != nil {
		t.Fatalf("latest of missing region = %v, %v", snap, err)
	}
}
