package universe

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const archiveFormatVersion = 1

// ArchiveHeader is written as a JSON line ahead of the gob payload so the
// archive can be identified without decoding it.
type ArchiveHeader struct {
	Format      int       `json:"format"`
	RegionID    uuid.UUID `json:"region_id"`
	RegionName  string    `json:"region_name"`
	Version     int64     `json:"version"`
	Seed        int64     `json:"seed"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
}

// Archive stores every committed snapshot as a zstd compressed file.
type Archive struct {
	dir    string
	logger *slog.Logger
}

func NewArchive(dir string, logger *slog.Logger) *Archive {
	return &Archive{dir: dir, logger: logger.With("component", "snapshot_archive")}
}

func (a *Archive) path(region string, version int64) string {
	return filepath.Join(a.dir, region, fmt.Sprintf("v%08d.snap.zst", version))
}

// Write archives the snapshot. The file appears atomically under its final
// name.
func (a *Archive) Write(snap *Snapshot) (string, error) {
	logger := a.logger.With("operation", "write", "region", snap.RegionName, "version", snap.Version)

	path := a.path(snap.RegionName, snap.Version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := writeSnapshotFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		logger.Error("Failed to write snapshot archive", "error", err)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to publish archive: %w", err)
	}

	logger.Info("Snapshot archived", "path", path)
	return path, nil
}

func writeSnapshotFile(path string, snap *Snapshot) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(headerOf(snap))
	if err != nil {
		return fmt.Errorf("failed to encode archive header: %w", err)
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return f.Sync()
}

func headerOf(snap *Snapshot) ArchiveHeader {
	return ArchiveHeader{
		Format:      archiveFormatVersion,
		RegionID:    snap.RegionID,
		RegionName:  snap.RegionName,
		Version:     snap.Version,
		Seed:        snap.Seed,
		GeneratedAt: snap.GeneratedAt,
		Summary:     snap.Summary,
	}
}

// Read decodes an archived snapshot and finalizes it for sharing.
func (a *Archive) Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read archive header: %w", err)
	}
	var header ArchiveHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, fmt.Errorf("failed to decode archive header: %w", err)
	}
	if header.Format != archiveFormatVersion {
		return nil, fmt.Errorf("unsupported archive format %d", header.Format)
	}

	var snap Snapshot
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	snap.Finalize()
	return &snap, nil
}

// Versions lists the archived versions of a region in ascending order.
func (a *Archive) Versions(region string) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(a.dir, region))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	var versions []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		var v int64
		if _, err := fmt.Sscanf(name, "v%d.snap.zst", &v); err == nil {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Regions lists the region names present in the archive.
func (a *Archive) Regions() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest reads the newest archived snapshot of a region, or nil if none.
func (a *Archive) Latest(region string) (*Snapshot, error) {
	versions, err := a.Versions(region)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return a.Read(a.path(region, versions[len(versions)-1]))
}

// Restore loads the latest snapshot of every archived region into the store.
func (a *Archive) Restore(store *Store) (int, error) {
	logger := a.logger.With("operation", "restore")
	regions, err := a.Regions()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range regions {
		snap, err := a.Latest(name)
		if err != nil {
			return n, fmt.Errorf("failed to restore region %s: %w", name, err)
		}
		if snap == nil {
			continue
		}
		store.Publish(snap)
		n++
		logger.Info("Region restored from archive", "region", name, "version", snap.Version)
	}
	return n, nil
}
