package galaxy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/district"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/planet"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/random"
	"galaxy-server/internal/spatial"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/universe"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Workers     int
	DefaultSeed int64
	LockTTL     time.Duration
}

// Blueprint sequences the generators into one atomic run per region.
type Blueprint struct {
	tables    *tables.Tables
	zones     *zone.Partitioner
	assembler *cluster.Assembler
	districts *district.Allocator
	warp      *warp.Builder
	store     *universe.Store
	repo      universe.Repository
	archive   *universe.Archive
	locker    Locker
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewBlueprint wires the generators from the tables. repo and archive may
// be nil; the store is always required.
func NewBlueprint(t *tables.Tables, store *universe.Store, repo universe.Repository, archive *universe.Archive, locker Locker, opts Options, logger *slog.Logger) (*Blueprint, error) {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}

	attributes := attribute.NewDistributor(t.Density, planet.NewGenerator(), logger)
	nebulae := nebula.NewGenerator(t.Nebula, logger)
	assembler := cluster.NewAssembler(t.Catalog, spatial.DefaultLattice(), nebulae, attributes, opts.Workers, logger)
	zones := zone.NewPartitioner(logger)
	districts, err := district.NewAllocator(t.Districts, t.Density, zones, assembler, opts.Workers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build district allocator: %w", err)
	}

	return &Blueprint{
		tables:    t,
		zones:     zones,
		assembler: assembler,
		districts: districts,
		warp:      warp.NewBuilder(t.Warp, logger),
		store:     store,
		repo:      repo,
		archive:   archive,
		locker:    locker,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With("component", "galaxy_blueprint"),
	}, nil
}

func (b *Blueprint) Store() *universe.Store {
	return b.store
}

func (b *Blueprint) Locker() Locker {
	return b.locker
}

func (b *Blueprint) LockTTL() time.Duration {
	return b.opts.LockTTL
}

// runPlan is a validated request.
type runPlan struct {
	kind     universe.RegionKind
	name     string
	regionID uuid.UUID
	total    int
	seed     int64
	splits   []zone.Split
	settings universe.RegionSettings
	force    bool
	preserve bool
	filter   map[district.Key]bool
	prior    *universe.Snapshot
}

// draft is the region under construction. Nothing in it is visible to
// readers until commit publishes the finalized snapshot.
type draft struct {
	zones     []zone.Zone
	clusters  []*cluster.Cluster
	districts []district.District
	sectors   map[int]*sector.Sector
	ports     []attribute.Port
	planets   []planet.Planet
	graph     *warp.Graph
}

// Generate runs one request to a terminal state. The result is returned
// even when the run rolls back; the error then carries the failure kind.
func (b *Blueprint) Generate(ctx context.Context, req Request, observe Observer) (*Result, error) {
	if observe == nil {
		observe = func(State) {}
	}
	logger := b.logger.With("operation", "generate", "region_kind", req.RegionKind, "region", req.RegionName)

	started := b.now()
	res := &Result{
		RegionName:        req.RegionName,
		Kind:              req.RegionKind,
		EstimatedDuration: EstimateDuration(req.RegionKind, req.TotalSectors),
	}
	transition := func(s State) {
		res.State = s
		logger.Debug("Generation state changed", "state", s)
		observe(s)
	}

	transition(StateRequested)
	err := b.run(ctx, req, res, transition)
	res.ActualDuration = b.now().Sub(started)
	if err != nil {
		res.Summary = nil
		transition(StateRolledBack)
		logger.Warn("Generation rolled back",
			"kind", errors.KindOf(err),
			"error", err,
			"duration", res.ActualDuration,
		)
		return res, err
	}

	transition(StateCommitted)
	logger.Info("Generation committed",
		"region_id", res.RegionID,
		"version", res.Version,
		"sectors", res.Summary.Sectors,
		"ports", res.Summary.Ports,
		"planets", res.Summary.Planets,
		"tunnels", res.Summary.Tunnels,
		"duration", res.ActualDuration,
	)
	return res, nil
}

func (b *Blueprint) run(ctx context.Context, req Request, res *Result, transition func(State)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapInternal("generation panicked", fmt.Errorf("%v", r))
		}
	}()

	transition(StateValidating)
	p, err := b.validate(req)
	if err != nil {
		return err
	}
	res.RegionName, res.RegionID, res.Seed = p.name, p.regionID, p.seed

	held, unlock, err := b.locker.Lock(ctx, p.name, b.opts.LockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	defer func() {
		if err != nil && context.Cause(held) == ErrLockLost {
			err = errors.WrapInternal("region lock lost during generation", ErrLockLost)
		}
	}()
	ctx = held

	if err := b.resolvePrior(ctx, p); err != nil {
		return err
	}
	res.EstimatedDuration = EstimateDuration(p.kind, p.total)
	for key := range p.filter {
		res.Regenerated = append(res.Regenerated, string(key))
	}
	sort.Strings(res.Regenerated)
	if err := ctx.Err(); err != nil {
		return err
	}

	transition(StateGenerating)
	d, err := b.generate(ctx, p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	transition(StateCommitting)
	snap, preserved, err := b.commit(ctx, p, d)
	if err != nil {
		return err
	}
	res.Version = snap.Version
	res.Preserved = preserved
	summary := snap.Summary
	res.Summary = &summary
	return nil
}

func (b *Blueprint) validate(req Request) (*runPlan, error) {
	kind := req.RegionKind
	if !kind.Valid() {
		return nil, errors.InvalidRequestf(errors.Details{"region_kind": kind}, "unknown region kind %q", kind)
	}

	name := strings.TrimSpace(req.RegionName)
	if name == "" {
		name = DefaultRegionName(kind)
	}
	if !regionNamePattern.MatchString(name) {
		return nil, errors.InvalidRequestf(errors.Details{"region_name": name},
			"region name %q must be lowercase letters, digits, '-' or '_'", name)
	}

	p := &runPlan{
		kind:     kind,
		name:     name,
		regionID: RegionID(name),
		total:    req.TotalSectors,
		force:    req.ForceRegenerate,
		preserve: req.PreservePlayerData,
	}

	if len(req.DistrictsToRegenerate) > 0 {
		if kind != universe.KindCentralNexus {
			return nil, errors.InvalidRequestf(errors.Details{"region_kind": kind},
				"districts can only be regenerated in a %s region", universe.KindCentralNexus)
		}
		filter, err := b.districts.ParseKeys(req.DistrictsToRegenerate)
		if err != nil {
			return nil, err
		}
		p.filter = filter
	}
	// A partial regeneration may leave the size to the committed region.
	if p.total != 0 || p.filter == nil {
		if err := checkBudget(kind, p.total); err != nil {
			return nil, err
		}
	}

	switch {
	case len(req.ZoneSplits) > 0 && kind != universe.KindPlayerOwned:
		return nil, errors.InvalidRequestf(errors.Details{"region_kind": kind},
			"custom zone splits are only accepted for %s regions", universe.KindPlayerOwned)
	case len(req.ZoneSplits) > 0:
		p.splits = req.ZoneSplits
	default:
		p.splits = b.tables.StandardSplits
	}
	if kind != universe.KindCentralNexus {
		if err := zone.ValidateSplits(p.splits); err != nil {
			return nil, err
		}
	}

	settings, err := universe.NewRegionSettings(kind, req.Settings.Governance, req.Settings.TaxRate, req.Settings.TradeBonuses)
	if err != nil {
		return nil, err
	}
	p.settings = settings

	p.seed = req.Seed
	if p.seed == 0 {
		p.seed = b.opts.DefaultSeed
	}
	p.seed = random.Seed(p.seed)
	return p, nil
}

func checkBudget(kind universe.RegionKind, total int) error {
	min, max, _ := universe.Budget(kind)
	if total < min {
		return errors.InsufficientSectors(total, min)
	}
	if total > max {
		return errors.InvalidRequestf(errors.Details{"requested": total, "maximum": max},
			"%d sectors requested, at most %d allowed for %s", total, max, kind)
	}
	return nil
}

// resolvePrior loads the committed region and applies the existence rules.
// It runs under the region lock.
func (b *Blueprint) resolvePrior(ctx context.Context, p *runPlan) error {
	prior := b.store.Get(p.name)
	if prior == nil && b.repo != nil {
		snap, err := b.repo.LoadRegion(ctx, p.name)
		switch {
		case err == nil:
			prior = snap
		case errors.GetType(err) == errors.ErrorTypeNotFound:
		default:
			return fmt.Errorf("failed to load committed region: %w", err)
		}
	}
	p.prior = prior

	if p.filter != nil {
		if prior == nil {
			return errors.NotFoundf("region %q does not exist, no districts to regenerate", p.name)
		}
		if prior.Kind != universe.KindCentralNexus {
			return errors.InvalidRequestf(errors.Details{"region_kind": prior.Kind},
				"region %q is a %s region and has no districts", p.name, prior.Kind)
		}
		if p.total == 0 {
			p.total = prior.TotalSectors
		} else if p.total != prior.TotalSectors {
			return errors.InvalidRequestf(errors.Details{"requested": p.total, "committed": prior.TotalSectors},
				"partial regeneration must keep the committed size of %d sectors", prior.TotalSectors)
		}
		return nil
	}

	if prior != nil && !p.force {
		return errors.AlreadyExistsf("region %q already exists at version %d; set force_regenerate to replace it", p.name, prior.Version)
	}
	return nil
}

// generate lays out zones and clusters, materializes sectors, builds the
// warp graph over the whole region and populates the fresh clusters.
func (b *Blueprint) generate(ctx context.Context, p *runPlan) (*draft, error) {
	logger := b.logger.With("operation", "generate_region", "region", p.name, "total_sectors", p.total, "seed", p.seed)
	ns := runNamespace(p.regionID, p.seed)

	var (
		d     *draft
		fresh []*cluster.Cluster
		err   error
	)
	if p.kind == universe.KindCentralNexus {
		d, fresh, err = b.layoutNexus(ctx, p, ns)
	} else {
		d, fresh, err = b.layoutRegion(ctx, p, ns)
	}
	if err != nil {
		return nil, err
	}

	for id, s := range b.assembler.Materialize(p.seed, fresh, b.pinned(p)) {
		d.sectors[id] = s
	}
	if len(d.sectors) != p.total {
		return nil, errors.WrapInternal("sector layout incomplete", fmt.Errorf("%d of %d sectors materialized", len(d.sectors), p.total))
	}

	nodes := make([]warp.Node, 0, p.total)
	for id := 1; id <= p.total; id++ {
		nodes = append(nodes, warp.Node{ID: id, Coordinates: d.sectors[id].Coordinates})
	}
	g, err := b.warp.Build(random.New(p.seed, "warp"), nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to build warp graph: %w", err)
	}
	if !g.IsStronglyConnected() {
		return nil, errors.WrapInternal("warp graph audit failed", fmt.Errorf("%d sectors unreachable", len(g.Unreachable())))
	}

	b.assembler.Designate(fresh, g)
	tunnels := b.warp.AddTunnels(random.New(p.seed, "tunnels"), g, ns, cluster.Endpoints(d.clusters, d.sectors))
	d.graph = g

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lookup := zone.NewLookup(d.zones)
	populated, err := b.assembler.Populate(ctx, p.seed, fresh, d.sectors, lookup.Danger)
	if err != nil {
		return nil, fmt.Errorf("failed to populate clusters: %w", err)
	}
	d.ports = append(d.ports, populated.Ports...)
	d.planets = append(d.planets, populated.Planets...)

	logger.Debug("Region generated",
		"zones", len(d.zones),
		"clusters", len(d.clusters),
		"fresh_clusters", len(fresh),
		"connections", len(g.Connections),
		"tunnels", tunnels,
		"ports", len(d.ports),
		"planets", len(d.planets),
	)
	return d, nil
}

// guard turns a panic in fn into an internal error.
func guard(what string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.WrapInternal(what+" panicked", fmt.Errorf("%v", r))
			}
		}()
		return fn()
	}
}

// layoutRegion partitions zones and clusters of a single-scope region. The
// two axes are independent and run in parallel.
func (b *Blueprint) layoutRegion(ctx context.Context, p *runPlan, ns uuid.UUID) (*draft, []*cluster.Cluster, error) {
	full := sector.Range{Start: 1, End: p.total}
	d := &draft{sectors: make(map[int]*sector.Sector, p.total)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard("zone partition", func() error {
		zones, err := b.zones.Partition(p.regionID, ns, nil, full, p.splits)
		if err != nil {
			return err
		}
		d.zones = zones
		return nil
	}))
	g.Go(guard("cluster partition", func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		clusters, err := b.assembler.Partition(random.New(p.seed, "clusters"), cluster.Scope{
			RegionID:     p.regionID,
			Namespace:    ns,
			Range:        full,
			Distribution: b.tables.Distribution(string(p.kind)),
			Salt:         string(p.kind),
		})
		if err != nil {
			return err
		}
		d.clusters = clusters
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return d, d.clusters, nil
}

// layoutNexus allocates the districts and plans the ones being generated.
// On a partial regeneration the other districts are carried over from the
// committed region unchanged.
func (b *Blueprint) layoutNexus(ctx context.Context, p *runPlan, ns uuid.UUID) (*draft, []*cluster.Cluster, error) {
	districts, err := b.districts.Allocate(p.regionID, p.total)
	if err != nil {
		return nil, nil, err
	}
	d := &draft{districts: districts, sectors: make(map[int]*sector.Sector, p.total)}

	if p.filter != nil {
		for _, nd := range districts {
			od, ok := p.prior.District(nd.Key)
			if !ok || od.Range != nd.Range {
				return nil, nil, errors.PreservationConflict(
					fmt.Sprintf("district %s no longer matches its committed range", nd.Key),
					errors.Details{"district": string(nd.Key), "range": nd.Range.String()},
				)
			}
		}
	}

	plans, err := b.districts.Plan(ctx, p.seed, ns, districts, p.filter)
	if err != nil {
		return nil, nil, err
	}
	var fresh []*cluster.Cluster
	for _, plan := range plans {
		d.zones = append(d.zones, plan.Zones...)
		fresh = append(fresh, plan.Clusters...)
	}
	d.clusters = append(d.clusters, fresh...)

	if p.filter != nil {
		for _, dist := range districts {
			if !p.filter[dist.Key] {
				carryDistrict(p.prior, dist, d)
			}
		}
	}
	return d, fresh, nil
}

// carryDistrict copies an unaffected district's structures into the draft.
func carryDistrict(prior *universe.Snapshot, dist district.District, d *draft) {
	r := dist.Range
	for _, z := range prior.Zones {
		if r.Contains(z.Range.Start) {
			d.zones = append(d.zones, z)
		}
	}
	for _, c := range prior.Clusters {
		if r.Contains(c.Range.Start) {
			d.clusters = append(d.clusters, c.Clone())
		}
	}
	for id := r.Start; id <= r.End; id++ {
		if s, ok := prior.Sectors[id]; ok {
			c := *s
			c.Ownership = s.Ownership.Clone()
			d.sectors[id] = &c
		}
	}
	for _, port := range prior.Ports {
		if r.Contains(port.SectorID) {
			d.ports = append(d.ports, port)
		}
	}
	for _, pl := range prior.Planets {
		if r.Contains(pl.SectorID) {
			d.planets = append(d.planets, pl)
		}
	}
}

// pinned returns the coordinates of claimed sectors that survive the run.
func (b *Blueprint) pinned(p *runPlan) map[int]sector.Coordinates {
	if p.prior == nil || !p.preserve {
		return nil
	}
	out := make(map[int]sector.Coordinates)
	for _, id := range p.prior.ClaimedSectors() {
		if id <= p.total {
			out[id] = p.prior.Sectors[id].Coordinates
		}
	}
	return out
}

// commit merges preserved player data, audits the snapshot, persists it
// and swaps it in. Nothing is visible until the final Publish.
func (b *Blueprint) commit(ctx context.Context, p *runPlan, d *draft) (*universe.Snapshot, int, error) {
	logger := b.logger.With("operation", "commit", "region", p.name)

	preserved, err := preserve(p, d)
	if err != nil {
		return nil, 0, err
	}
	d.graph.PriceTurns(func(id int) int { return d.sectors[id].NavHazard })

	version := int64(1)
	if p.prior != nil {
		version = p.prior.Version + 1
	}
	snap := &universe.Snapshot{
		Version:      version,
		RegionID:     p.regionID,
		RegionName:   p.name,
		Kind:         p.kind,
		TotalSectors: p.total,
		Seed:         p.seed,
		GeneratedAt:  b.now().UTC(),
		Settings:     p.settings,
		Sectors:      d.sectors,
		Clusters:     d.clusters,
		Zones:        d.zones,
		Districts:    d.districts,
		Ports:        d.ports,
		Planets:      d.planets,
		Graph:        d.graph,
	}
	snap.Finalize()
	if err := snap.Validate(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if b.repo != nil {
		if err := b.repo.SaveRegion(ctx, snap); err != nil {
			logger.Error("Failed to persist region", "error", err)
			return nil, 0, fmt.Errorf("failed to persist region: %w", err)
		}
	}
	if b.archive != nil {
		if path, err := b.archive.Write(snap); err != nil {
			logger.Error("Failed to archive region snapshot", "error", err)
		} else {
			logger.Debug("Region snapshot archived", "path", path)
		}
	}
	b.store.Publish(snap)
	return snap, preserved, nil
}

// preserve carries claimed sectors, claimed planets and constructed tunnels
// of the committed region into the draft. A claim that cannot survive the
// new layout fails the run.
func preserve(p *runPlan, d *draft) (int, error) {
	if p.prior == nil {
		return 0, nil
	}
	full := sector.Range{Start: 1, End: p.total}

	count := 0
	if p.preserve {
		zoneTypes := make(map[zone.ZoneType]bool, len(d.zones))
		for _, z := range d.zones {
			zoneTypes[z.Type] = true
		}

		for _, id := range p.prior.ClaimedSectors() {
			old := p.prior.Sectors[id]
			if !full.Contains(id) {
				return 0, errors.PreservationConflict(
					fmt.Sprintf("claimed sector %d falls outside the new range %s", id, full),
					errors.Details{"sector_id": id, "range": full.String()},
				)
			}
			if oz, ok := p.prior.ZoneOf(id); ok && !zoneTypes[oz.Type] {
				return 0, errors.PreservationConflict(
					fmt.Sprintf("zone type %s of claimed sector %d no longer exists", oz.Type, id),
					errors.Details{"sector_id": id, "zone_type": oz.Type, "zone_range": oz.Range.String()},
				)
			}

			s := d.sectors[id]
			s.Coordinates = old.Coordinates
			s.Ownership = old.Ownership.Clone()
			for _, pid := range old.Ownership.AssetIDs(sector.AssetClaimedPlanet) {
				pl, ok := p.prior.Planet(pid)
				if !ok {
					return 0, errors.PreservationConflict(
						fmt.Sprintf("claimed planet %s of sector %d is missing from the committed region", pid, id),
						errors.Details{"sector_id": id, "planet_id": pid.String()},
					)
				}
				d.planets = replacePlanet(d.planets, pl)
				planetID := pl.ID
				s.PlanetID = &planetID
			}
			count++
		}
	}

	if !p.preserve && p.filter == nil {
		return count, nil
	}
	for _, t := range p.prior.Graph.Tunnels {
		if !t.IsConstructed() {
			continue
		}
		if !d.graph.HasNode(t.A) || !d.graph.HasNode(t.B) {
			return 0, errors.PreservationConflict(
				fmt.Sprintf("constructed tunnel %s lost an endpoint", t.ID),
				errors.Details{"tunnel_id": t.ID.String(), "sector_a": t.A, "sector_b": t.B, "range": full.String()},
			)
		}
		d.graph.Tunnels = dropTunnel(d.graph.Tunnels, t.A, t.B)
		nt := t
		cons := *t.Construction
		nt.Construction = &cons
		d.graph.AddTunnel(nt)
	}
	return count, nil
}

// replacePlanet puts pl in place of whatever planet its sector had.
func replacePlanet(planets []planet.Planet, pl planet.Planet) []planet.Planet {
	out := planets[:0]
	for _, existing := range planets {
		if existing.SectorID != pl.SectorID && existing.ID != pl.ID {
			out = append(out, existing)
		}
	}
	return append(out, pl)
}

func dropTunnel(tunnels []warp.Tunnel, a, b int) []warp.Tunnel {
	out := tunnels[:0]
	for _, t := range tunnels {
		if (t.A == a && t.B == b) || (t.A == b && t.B == a) {
			continue
		}
		out = append(out, t)
	}
	return out
}
