package universe

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"galaxy-server/internal/shared/database"
	"galaxy-server/internal/shared/errors"

	"github.com/jmoiron/sqlx"
)

// Migrations holds the PostgreSQL schema applied at server start.
//
//go:embed migrations/*.sql
var Migrations embed.FS

type PostgresRepository struct {
	db     *database.DB
	x      *sqlx.DB
	logger *slog.Logger
}

func NewPostgresRepository(db *database.DB, logger *slog.Logger) *PostgresRepository {
	logger.Debug("Initializing universe repository")

	return &PostgresRepository{
		db:     db,
		x:      sqlx.NewDb(db.DB, "postgres"),
		logger: logger.With("component", "universe_repository"),
	}
}

func (r *PostgresRepository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresRepository) SaveRegion(ctx context.Context, snap *Snapshot) error {
	logger := r.logger.With("operation", "save_region", "region", snap.RegionName, "version", snap.Version)
	logger.Debug("Persisting region")

	rs, err := toRows(snap)
	if err != nil {
		return fmt.Errorf("failed to build region rows: %w", err)
	}

	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err.Error() != "sql: transaction has already been committed or rolled back" {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if err := r.deleteRegion(ctx, snap, tx); err != nil {
		return err
	}

	region, err := json.Marshal([]regionRow{rs.Region})
	if err != nil {
		return fmt.Errorf("failed to marshal region: %w", err)
	}
	if _, err := r.getExecutor(tx).ExecContext(ctx, regionTable.jsonInsert(), string(region)); err != nil {
		logger.Error("Failed to insert region", "error", err)
		return fmt.Errorf("failed to insert region: %w", err)
	}

	for _, t := range childTables {
		if err := r.insertBatch(ctx, t, rs, tx); err != nil {
			logger.Error("Failed to insert region rows", "table", t.name, "error", err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit region", "error", err)
		return fmt.Errorf("failed to commit region: %w", err)
	}

	logger.Info("Region persisted", "sectors", len(rs.Sectors), "connections", len(rs.Connections))
	return nil
}

func (r *PostgresRepository) deleteRegion(ctx context.Context, snap *Snapshot, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	for i := len(childTables) - 1; i >= 0; i-- {
		query := fmt.Sprintf("DELETE FROM %s WHERE region_id = $1", childTables[i].name)
		if _, err := exec.ExecContext(ctx, query, snap.RegionID.String()); err != nil {
			return fmt.Errorf("failed to clear %s: %w", childTables[i].name, err)
		}
	}
	if _, err := exec.ExecContext(ctx, "DELETE FROM regions WHERE id = $1 OR name = $2", snap.RegionID.String(), snap.RegionName); err != nil {
		return fmt.Errorf("failed to clear region: %w", err)
	}
	return nil
}

func (r *PostgresRepository) insertBatch(ctx context.Context, t tableSpec, rs *rowSet, tx *database.Tx) error {
	if t.count(rs) == 0 {
		return nil
	}
	payload, err := json.Marshal(t.rows(rs))
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", t.name, err)
	}
	if _, err := r.getExecutor(tx).ExecContext(ctx, t.jsonInsert(), string(payload)); err != nil {
		return fmt.Errorf("failed to batch insert %s: %w", t.name, err)
	}
	return nil
}

func (r *PostgresRepository) SaveOwnership(ctx context.Context, snap *Snapshot, sectorID int) error {
	logger := r.logger.With("operation", "save_ownership", "region", snap.RegionName, "sector_id", sectorID)

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

	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err.Error() != "sql: transaction has already been committed or rolled back" {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	exec := r.getExecutor(tx)
	if _, err := exec.ExecContext(ctx, "UPDATE sectors SET ownership = $3::jsonb WHERE region_id = $1 AND id = $2",
		snap.RegionID.String(), sectorID, ownership); err != nil {
		logger.Error("Failed to update ownership", "error", err)
		return fmt.Errorf("failed to update ownership: %w", err)
	}
	summary, err := jsonText(snap.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if _, err := exec.ExecContext(ctx, "UPDATE regions SET version = $2, summary = $3::jsonb WHERE id = $1",
		snap.RegionID.String(), snap.Version, summary); err != nil {
		return fmt.Errorf("failed to bump region version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ownership: %w", err)
	}
	logger.Debug("Ownership persisted", "version", snap.Version)
	return nil
}

func (r *PostgresRepository) LoadRegion(ctx context.Context, name string) (*Snapshot, error) {
	rs, err := loadRowSet(ctx, r.x, name)
	if err != nil {
		return nil, err
	}
	return rs.toSnapshot()
}

func (r *PostgresRepository) ListRegions(ctx context.Context) ([]RegionInfo, error) {
	rows, err := listRegionRows(ctx, r.x)
	if err != nil {
		r.logger.Error("Failed to list regions", "error", err)
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
