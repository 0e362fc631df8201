package galaxy

import (
	"context"
	"fmt"
	"log/slog"

	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/task"
	"galaxy-server/internal/universe"
	"galaxy-server/internal/warp"
)

// Service exposes generation as background tasks and serialises gameplay
// writes against it.
type Service struct {
	blueprint *Blueprint
	tasks     *task.Manager
	repo      universe.Repository
	archive   *universe.Archive
	logger    *slog.Logger
}

func NewService(blueprint *Blueprint, tasks *task.Manager, logger *slog.Logger) *Service {
	logger.Debug("Initializing galaxy service")

	return &Service{
		blueprint: blueprint,
		tasks:     tasks,
		repo:      blueprint.repo,
		archive:   blueprint.archive,
		logger:    logger.With("component", "galaxy_service"),
	}
}

func (s *Service) Store() *universe.Store {
	return s.blueprint.Store()
}

// Trigger checks the request shape and starts the run in the background.
// Rules that depend on the committed region are checked by the run itself.
func (s *Service) Trigger(ctx context.Context, req Request) (*task.Record, error) {
	logger := s.logger.With("operation", "trigger", "region_kind", req.RegionKind, "region", req.RegionName)

	p, err := s.blueprint.validate(req)
	if err != nil {
		return nil, err
	}
	req.RegionName = p.name

	rec, err := s.tasks.Submit(ctx, p.name, EstimateDuration(p.kind, p.total), func(ctx context.Context, report task.Reporter) (any, error) {
		res, err := s.blueprint.Generate(ctx, req, func(st State) { report(string(st)) })
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}

	logger.Info("Generation triggered", "task_id", rec.ID, "estimated_duration", rec.EstimatedDuration)
	return rec, nil
}

func (s *Service) Status(ctx context.Context, id string) (*task.Record, error) {
	return s.tasks.Status(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id string) (*task.Record, error) {
	return s.tasks.Cancel(ctx, id)
}

func (s *Service) Watch(ctx context.Context, id string) (<-chan task.Record, func(), error) {
	return s.tasks.Subscribe(ctx, id)
}

// Generate runs a request synchronously. The offline CLI uses this.
func (s *Service) Generate(ctx context.Context, req Request, observe Observer) (*Result, error) {
	return s.blueprint.Generate(ctx, req, observe)
}

// Claimant is the caller of an ownership change.
type Claimant struct {
	PlayerID int
	Admin    bool
}

// SetOwnership attaches gameplay ownership to a sector as a new version of
// the region, or releases it when ownership is nil. Topology is untouched.
// A sector owned by another player can only be changed by an admin.
func (s *Service) SetOwnership(ctx context.Context, region string, sectorID int, by Claimant, ownership *sector.Ownership) (*universe.Snapshot, error) {
	logger := s.logger.With("operation", "set_ownership", "region", region, "sector_id", sectorID, "player_id", by.PlayerID)

	held, unlock, err := s.blueprint.Locker().Lock(ctx, region, s.blueprint.LockTTL())
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = held

	next, err := s.Store().Update(region, func(cur *universe.Snapshot) (*universe.Snapshot, error) {
		if sec, ok := cur.Sector(sectorID); ok && sec.IsClaimed() && sec.Ownership.OwnerID != by.PlayerID && !by.Admin {
			return nil, errors.Forbidden("sector is owned by another player")
		}
		next, err := cur.WithOwnership(sectorID, ownership)
		if err != nil {
			return nil, err
		}
		if s.repo != nil {
			if err := s.repo.SaveOwnership(ctx, next, sectorID); err != nil {
				return nil, fmt.Errorf("failed to persist ownership: %w", err)
			}
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if _, err := s.archive.Write(next); err != nil {
			logger.Error("Failed to archive region snapshot", "error", err)
		}
	}
	logger.Info("Sector ownership updated", "version", next.Version, "claimed", ownership != nil)
	return next, nil
}

// ConstructTunnel joins two sectors with a player-built tunnel. The caller
// must own both endpoints unless they are an admin. The tunnel survives
// regeneration like other player data.
func (s *Service) ConstructTunnel(ctx context.Context, region string, from, to int, by Claimant, cons warp.Construction) (*universe.Snapshot, *warp.Tunnel, error) {
	logger := s.logger.With("operation", "construct_tunnel", "region", region, "from", from, "to", to, "player_id", by.PlayerID)

	held, unlock, err := s.blueprint.Locker().Lock(ctx, region, s.blueprint.LockTTL())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()
	ctx = held

	var tunnel *warp.Tunnel
	next, err := s.Store().Update(region, func(cur *universe.Snapshot) (*universe.Snapshot, error) {
		if !by.Admin {
			for _, id := range []int{from, to} {
				sec, ok := cur.Sector(id)
				if ok && (!sec.IsClaimed() || sec.Ownership.OwnerID != by.PlayerID) {
					return nil, errors.Forbidden(fmt.Sprintf("sector %d is not owned by the caller", id))
				}
			}
		}
		next, t, err := cur.WithConstructedTunnel(from, to, cons)
		if err != nil {
			return nil, err
		}
		if s.repo != nil {
			if err := s.repo.SaveRegion(ctx, next); err != nil {
				return nil, fmt.Errorf("failed to persist tunnel: %w", err)
			}
		}
		tunnel = t
		return next, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.archive != nil {
		if _, err := s.archive.Write(next); err != nil {
			logger.Error("Failed to archive region snapshot", "error", err)
		}
	}
	logger.Info("Tunnel constructed", "version", next.Version, "tunnel_id", tunnel.ID)
	return next, tunnel, nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.tasks.Shutdown(ctx)
}
