package universe

import (
	"context"
	"fmt"
	"log/slog"

	"galaxy-server/internal/shared/errors"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteRepository writes the same rows as the Postgres repository to a
// single file. The offline generator and the tests use it.
type SQLiteRepository struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteRepository, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	r := &SQLiteRepository{conn: conn, logger: logger.With("component", "sqlite_repository")}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		total_sectors INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		version INTEGER NOT NULL,
		generated_at TEXT NOT NULL,
		settings TEXT NOT NULL,
		summary TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sectors (
		region_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		type TEXT NOT NULL,
		is_hidden INTEGER NOT NULL,
		navigable INTEGER NOT NULL,
		nav_hazard INTEGER NOT NULL,
		port_id TEXT,
		planet_id TEXT,
		zone_id TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		district_id TEXT,
		resources TEXT NOT NULL,
		ownership TEXT,
		PRIMARY KEY (region_id, id)
	);

	CREATE TABLE IF NOT EXISTS clusters (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		district_id TEXT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_sector INTEGER NOT NULL,
		end_sector INTEGER NOT NULL,
		hubs TEXT NOT NULL,
		entry_points TEXT NOT NULL,
		stats TEXT NOT NULL,
		warp_stability REAL NOT NULL,
		discovered INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nebula_fields (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		quantum_field_strength REAL NOT NULL,
		coverage_percent REAL NOT NULL,
		center_sector INTEGER NOT NULL,
		center TEXT NOT NULL,
		radius REAL NOT NULL,
		core_radius REAL NOT NULL,
		core_sectors TEXT NOT NULL,
		edge_density TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS zones (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		district_id TEXT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_sector INTEGER NOT NULL,
		end_sector INTEGER NOT NULL,
		policing_level INTEGER NOT NULL,
		danger_rating INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS districts (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		district_key TEXT NOT NULL,
		name TEXT NOT NULL,
		start_sector INTEGER NOT NULL,
		end_sector INTEGER NOT NULL,
		profile TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ports (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		sector_id INTEGER NOT NULL,
		class INTEGER NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS planets (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		sector_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		habitability INTEGER NOT NULL,
		max_population INTEGER NOT NULL,
		owner_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS warp_connections (
		region_id TEXT NOT NULL,
		sector_a INTEGER NOT NULL,
		sector_b INTEGER NOT NULL,
		one_way INTEGER NOT NULL,
		is_natural INTEGER NOT NULL,
		distance REAL NOT NULL,
		turn_cost REAL NOT NULL,
		PRIMARY KEY (region_id, sector_a, sector_b)
	);

	CREATE TABLE IF NOT EXISTS warp_tunnels (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL,
		sector_a INTEGER NOT NULL,
		sector_b INTEGER NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		stability REAL NOT NULL,
		distance REAL NOT NULL,
		turn_cost REAL NOT NULL,
		discovered INTEGER NOT NULL,
		decay_per_day REAL NOT NULL,
		construction TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_clusters_region ON clusters(region_id);
	CREATE INDEX IF NOT EXISTS idx_zones_region ON zones(region_id);
	CREATE INDEX IF NOT EXISTS idx_ports_region ON ports(region_id);
	CREATE INDEX IF NOT EXISTS idx_planets_region ON planets(region_id);
	CREATE INDEX IF NOT EXISTS idx_tunnels_region ON warp_tunnels(region_id);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// SaveRegion writes all rows of the region (full replace).
func (r *SQLiteRepository) SaveRegion(ctx context.Context, snap *Snapshot) error {
	logger := r.logger.With("operation", "save_region", "region", snap.RegionName, "version", snap.Version)

	rs, err := toRows(snap)
	if err != nil {
		return fmt.Errorf("failed to build region rows: %w", err)
	}

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := len(childTables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE region_id = ?", childTables[i].name), rs.Region.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", childTables[i].name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM regions WHERE id = ? OR name = ?", rs.Region.ID, rs.Region.Name); err != nil {
		return fmt.Errorf("failed to clear region: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, regionTable.namedInsert(), rs.Region); err != nil {
		return fmt.Errorf("failed to insert region: %w", err)
	}

	for _, t := range childTables {
		if err := insertNamed(ctx, tx, t, rs); err != nil {
			logger.Error("Failed to insert region rows", "table", t.name, "error", err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit region: %w", err)
	}
	logger.Info("Region written", "sectors", len(rs.Sectors))
	return nil
}

func insertNamed(ctx context.Context, tx *sqlx.Tx, t tableSpec, rs *rowSet) error {
	if t.count(rs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, t.namedInsert())
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", t.name, err)
	}
	defer stmt.Close()

	var exec func(any) error
	exec = func(row any) error {
		_, err := stmt.ExecContext(ctx, row)
		return err
	}

	switch rows := t.rows(rs).(type) {
	case []sectorRow:
		err = each(rows, exec)
	case []clusterRow:
		err = each(rows, exec)
	case []nebulaRow:
		err = each(rows, exec)
	case []zoneRow:
		err = each(rows, exec)
	case []districtRow:
		err = each(rows, exec)
	case []portRow:
		err = each(rows, exec)
	case []planetRow:
		err = each(rows, exec)
	case []connectionRow:
		err = each(rows, exec)
	case []tunnelRow:
		err = each(rows, exec)
	default:
		err = fmt.Errorf("unsupported row type %T", rows)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", t.name, err)
	}
	return nil
}

func each[T any](rows []T, fn func(any) error) error {
	for _, row := range rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) SaveOwnership(ctx context.Context, snap *Snapshot, sectorID int) error {
	sec, ok := snap.Sector(sectorID)
	if !ok {
		return errors.NotFoundf("sector %d not found", sectorID)
	}
	var ownership *string
	if sec.Ownership != nil {
		o, err := jsonText(sec.Ownership)
		if err != nil {
			return fmt.Errorf("failed to encode ownership: %w", err)
		}
		ownership = &o
	}
	summary, err := jsonText(snap.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE sectors SET ownership = ? WHERE region_id = ? AND id = ?",
		ownership, snap.RegionID.String(), sectorID); err != nil {
		return fmt.Errorf("failed to update ownership: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE regions SET version = ?, summary = ? WHERE id = ?",
		snap.Version, summary, snap.RegionID.String()); err != nil {
		return fmt.Errorf("failed to bump region version: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) LoadRegion(ctx context.Context, name string) (*Snapshot, error) {
	rs, err := loadRowSet(ctx, r.conn, name)
	if err != nil {
		return nil, err
	}
	return rs.toSnapshot()
}

func (r *SQLiteRepository) ListRegions(ctx context.Context) ([]RegionInfo, error) {
	rows, err := listRegionRows(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	out := make([]RegionInfo, 0, len(rows))
	for _, row := range rows {
		info, err := row.info()
		if err != nil {
			return nil, fmt.Errorf("failed to decode region %s: %w", row.Name, err)
		}
		out = append(out, info)
	}
	return out, nil
}
