package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/random"
	"galaxy-server/internal/spatial"
	"galaxy-server/internal/warp"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Assembler struct {
	catalog    *Catalog
	lattice    spatial.Lattice
	nebulae    *nebula.Generator
	attributes *attribute.Distributor
	workers    int
	logger     *slog.Logger
}

func NewAssembler(catalog *Catalog, lattice spatial.Lattice, nebulae *nebula.Generator, attributes *attribute.Distributor, workers int, logger *slog.Logger) *Assembler {
	if workers < 1 {
		workers = 1
	}
	return &Assembler{
		catalog:    catalog,
		lattice:    lattice,
		nebulae:    nebulae,
		attributes: attributes,
		workers:    workers,
		logger:     logger.With("component", "cluster_assembler"),
	}
}

func (a *Assembler) Catalog() *Catalog {
	return a.catalog
}

// Partition splits the scope into contiguous clusters. Each cluster's type
// is drawn from the scope distribution and its size from the type's range.
//
// The final cluster absorbs the remainder: when fewer sectors than the
// smallest legal cluster would be left after a draw, they join the current
// cluster instead. The last cluster may therefore be undersized (the scope
// itself is smaller than the drawn size) or exceed its type's maximum by
// less than the smallest legal size. This is expected, not a defect.
func (a *Assembler) Partition(rng *rand.Rand, scope Scope) ([]*Cluster, error) {
	logger := a.logger.With("operation", "partition", "range", scope.Range.String(), "salt", scope.Salt)

	if scope.Range.Len() < 1 {
		return nil, errors.InsufficientSectors(scope.Range.Len(), 1)
	}
	if err := scope.Distribution.Validate(a.catalog); err != nil {
		return nil, err
	}

	weights := make([]int, len(scope.Distribution))
	for i, w := range scope.Distribution {
		weights[i] = w.Weight
	}
	minLegal := a.catalog.MinSize(scope.Distribution)

	var clusters []*Cluster
	start := scope.Range.Start
	for start <= scope.Range.End {
		clusterType := scope.Distribution[random.Pick(rng, weights)].Type
		profile, _ := a.catalog.Profile(clusterType)

		remaining := scope.Range.End - start + 1
		size := random.Between(rng, profile.MinSize, profile.MaxSize)
		if size >= remaining || remaining-size < minLegal {
			size = remaining
		}

		r := sector.Range{Start: start, End: start + size - 1}
		clusters = append(clusters, &Cluster{
			ID:            uuid.NewSHA1(scope.Namespace, []byte(fmt.Sprintf("cluster/%d", r.Start))),
			RegionID:      scope.RegionID,
			DistrictID:    scope.DistrictID,
			Name:          clusterName(len(clusters), profile.Label, r.Start),
			Type:          clusterType,
			Range:         r,
			WarpStability: profile.WarpStability,
			Bias:          profile.Bias.Combine(scope.Bias),
		})
		start += size
	}

	logger.Debug("Scope partitioned into clusters", "clusters", len(clusters))
	return clusters, nil
}

var clusterPrefixes = []string{
	"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta", "Theta",
	"Iota", "Kappa", "Lambda", "Mu", "Nu", "Xi", "Omicron", "Pi",
	"Rho", "Sigma", "Tau", "Upsilon", "Phi", "Chi", "Psi", "Omega",
}

func clusterName(index int, label string, start int) string {
	prefix := clusterPrefixes[index%len(clusterPrefixes)]
	if index < len(clusterPrefixes) {
		return fmt.Sprintf("%s %s", prefix, label)
	}
	return fmt.Sprintf("%s %s %d", prefix, label, start)
}

// Materialize creates the sector records of the clusters and lays out their
// coordinates. Pinned coordinates are honoured.
func (a *Assembler) Materialize(seed int64, clusters []*Cluster, pinned map[int]sector.Coordinates) map[int]*sector.Sector {
	sectors := make(map[int]*sector.Sector)
	for _, c := range clusters {
		rng := random.New(seed, "layout", c.ID.String())
		coords := a.lattice.Place(rng, c.Range.Start, c.Members(), pinned)
		for _, id := range c.Members() {
			sectors[id] = &sector.Sector{
				ID:          id,
				Coordinates: coords[id],
				Type:        sector.TypeStandard,
				Navigable:   true,
			}
		}
	}
	return sectors
}

func hubCount(size int) int {
	switch {
	case size < 10:
		return 1
	case size < 20:
		return 2
	default:
		return 3
	}
}

// Designate picks hubs (highest internal degree) and entry points (most
// cross-cluster edges, falling back to lowest ids). Ties go to the lower id.
func (a *Assembler) Designate(clusters []*Cluster, g *warp.Graph) {
	for _, c := range clusters {
		members := c.Members()
		set := make(map[int]bool, len(members))
		for _, id := range members {
			set[id] = true
		}

		type deg struct {
			id                 int
			internal, external int
		}
		degs := make([]deg, len(members))
		for i, id := range members {
			in, ex := g.InternalDegree(id, set)
			degs[i] = deg{id: id, internal: in, external: ex}
		}

		want := hubCount(len(members))

		sort.SliceStable(degs, func(i, j int) bool {
			if degs[i].internal != degs[j].internal {
				return degs[i].internal > degs[j].internal
			}
			return degs[i].id < degs[j].id
		})
		c.Hubs = c.Hubs[:0]
		for _, d := range degs[:want] {
			c.Hubs = append(c.Hubs, d.id)
		}
		sort.Ints(c.Hubs)

		sort.SliceStable(degs, func(i, j int) bool {
			if degs[i].external != degs[j].external {
				return degs[i].external > degs[j].external
			}
			return degs[i].id < degs[j].id
		})
		c.EntryPoints = c.EntryPoints[:0]
		for _, d := range degs {
			if len(c.EntryPoints) == want || d.external == 0 {
				break
			}
			c.EntryPoints = append(c.EntryPoints, d.id)
		}
		for _, id := range members {
			if len(c.EntryPoints) == want {
				break
			}
			if !c.IsEntryPoint(id) {
				c.EntryPoints = append(c.EntryPoints, id)
			}
		}
		sort.Ints(c.EntryPoints)
	}
}

// Endpoints lists the hub and entry sectors eligible for tunnels.
func Endpoints(clusters []*Cluster, sectors map[int]*sector.Sector) []warp.Endpoint {
	var out []warp.Endpoint
	for _, c := range clusters {
		seen := map[int]bool{}
		for _, id := range append(append([]int(nil), c.Hubs...), c.EntryPoints...) {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, warp.Endpoint{SectorID: id, ClusterID: c.ID, Coordinates: sectors[id].Coordinates})
		}
	}
	return out
}

// DangerFunc resolves the danger rating of a sector's zone.
type DangerFunc func(sectorID int) int

// Populate types the sectors, rolls the nebula and distributes attributes
// for every cluster in parallel, then computes cluster stats.
func (a *Assembler) Populate(ctx context.Context, seed int64, clusters []*Cluster, sectors map[int]*sector.Sector, danger DangerFunc) (attribute.Result, error) {
	logger := a.logger.With("operation", "populate", "clusters", len(clusters))

	slots := make([]attribute.Result, len(clusters))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, c := range clusters {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.WrapInternal(fmt.Sprintf("cluster worker panicked on %s", c.Range), fmt.Errorf("%v", r))
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = a.populateCluster(seed, c, sectors, danger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return attribute.Result{}, err
	}

	var res attribute.Result
	for _, s := range slots {
		res.Ports = append(res.Ports, s.Ports...)
		res.Planets = append(res.Planets, s.Planets...)
	}
	logger.Debug("Clusters populated", "ports", len(res.Ports), "planets", len(res.Planets))
	return res, nil
}

func (a *Assembler) populateCluster(seed int64, c *Cluster, sectors map[int]*sector.Sector, danger DangerFunc) attribute.Result {
	rng := random.New(seed, "populate", c.ID.String())
	profile, _ := a.catalog.Profile(c.Type)
	members := c.Members()

	weights := make([]int, len(profile.SectorTypes))
	for i, st := range profile.SectorTypes {
		weights[i] = st.Weight
	}
	for _, id := range members {
		s := sectors[id]
		s.Type = sector.TypeStandard
		if rng.Float64() < profile.SpecialShare {
			if idx := random.Pick(rng, weights); idx >= 0 {
				s.Type = profile.SectorTypes[idx].Type
			}
		}
		s.IsHidden = s.Type == sector.TypeForbidden || s.Type == sector.TypeWormhole
	}

	nm := make([]nebula.Member, len(members))
	for i, id := range members {
		nm[i] = nebula.Member{ID: id, Coordinates: sectors[id].Coordinates}
	}
	c.Nebula = a.nebulae.Generate(rng, nebula.Input{ClusterID: c.ID, Members: nm, EntryPoints: c.EntryPoints})

	ctxs := make([]attribute.SectorContext, len(members))
	for i, id := range members {
		s := sectors[id]
		sc := attribute.SectorContext{Sector: s, Bias: c.Bias, DangerRating: danger(id)}
		if c.Nebula != nil {
			if c.Nebula.InCore(id) {
				s.Type = sector.TypeNebula
			}
			if d := c.Nebula.DensityOf(id); d > 0 {
				sc.NebulaDensity = d
				sc.Affinity = c.Nebula.Type.Affinity()
			}
		}
		ctxs[i] = sc
	}

	res := a.attributes.Distribute(rng, c.ID, ctxs)
	c.Stats = computeStats(members, sectors, danger)
	c.Discovered = c.Type != TypeSpecialInterest
	return res
}

func computeStats(members []int, sectors map[int]*sector.Sector, danger DangerFunc) Stats {
	st := Stats{TotalSectors: len(members)}
	if len(members) == 0 {
		return st
	}
	var resources, dangerSum, hazardSum float64
	for _, id := range members {
		s := sectors[id]
		if s.PortID != nil {
			st.PortCount++
		}
		if s.PlanetID != nil {
			st.PlanetCount++
		}
		if s.PortID != nil || s.PlanetID != nil {
			st.PopulatedSectors++
		}
		resources += float64(s.Resources.Total())
		dangerSum += float64(danger(id))
		hazardSum += float64(s.NavHazard)
	}
	n := float64(len(members))
	st.EmptySectors = st.TotalSectors - st.PopulatedSectors
	st.ResourceValue = clampScore(resources / n / 40)
	st.DangerLevel = clampScore(dangerSum/n*7 + hazardSum/n*3)
	st.DevelopmentIndex = clampScore(float64(st.PortCount*3+st.PlanetCount*2) / n * 100)
	return st
}

func clampScore(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
