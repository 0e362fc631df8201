package universe

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/planet"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSnapshot builds a small, valid 30-sector region by hand.
func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	logger := discardLogger()
	regionID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("test/region/alpha"))

	sectors := make(map[int]*sector.Sector, 30)
	nodes := make([]warp.Node, 0, 30)
	for id := 1; id <= 30; id++ {
		c := sector.Coordinates{X: float64((id - 1) % 6 * 12), Y: float64((id - 1) / 6 * 12), Z: float64(id % 3)}
		sectors[id] = &sector.Sector{
			ID: id, Coordinates: c, Type: sector.TypeStandard, Navigable: true, NavHazard: id % 4,
			Resources: sector.ResourceYield{sector.ResourceOre: 100 + id, sector.ResourceFuel: 200},
		}
		nodes = append(nodes, warp.Node{ID: id, Coordinates: c})
	}

	g, err := warp.NewBuilder(warp.DefaultConfig(), logger).Build(rand.New(rand.NewSource(7)), nodes)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	first := &cluster.Cluster{
		ID: uuid.NewSHA1(regionID, []byte("cluster/1")), RegionID: regionID, Name: "Alpha Expanse",
		Type: cluster.TypeStandard, Range: sector.Range{Start: 1, End: 15},
		Hubs: []int{2}, EntryPoints: []int{15}, WarpStability: 0.9, Discovered: true,
		Stats: cluster.Stats{TotalSectors: 15, PortCount: 1, ResourceValue: 12},
	}
	first.Nebula = &nebula.Field{
		ID: uuid.NewSHA1(first.ID, []byte("nebula")), ClusterID: first.ID, Name: "Crimson Veil",
		Type: nebula.TypeCrimson, QuantumFieldStrength: 42.5, CoveragePercent: 40,
		CenterSector: 5, Center: sectors[5].Coordinates, Radius: 20, CoreRadius: 10,
		CoreSectors: []int{5}, EdgeSectors: []int{6}, EdgeDensity: map[int]int{6: 45},
	}
	sectors[5].Type = sector.TypeNebula
	second := &cluster.Cluster{
		ID: uuid.NewSHA1(regionID, []byte("cluster/16")), RegionID: regionID, Name: "Beta Lode",
		Type: cluster.TypeResourceRich, Range: sector.Range{Start: 16, End: 30},
		Hubs: []int{20}, EntryPoints: []int{16}, WarpStability: 0.8, Discovered: true,
	}

	zones, err := zone.NewPartitioner(logger).Partition(regionID, regionID, nil, sector.Range{Start: 1, End: 30}, zone.StandardSplits())
	if err != nil {
		t.Fatalf("partition zones: %v", err)
	}

	portID := uuid.NewSHA1(first.ID, []byte("port/3"))
	sectors[3].PortID = &portID
	planetID := uuid.NewSHA1(first.ID, []byte("planet/4"))
	sectors[4].PlanetID = &planetID

	tunnelID := uuid.NewSHA1(regionID, []byte("tunnel/2-20"))
	g.AddTunnel(warp.NewConstructedTunnel(tunnelID, nodes[1], nodes[19], warp.Construction{
		BuilderID: 7, StartedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC), ExpectedLifetimeDays: 90,
	}))

	owner := 7
	sectors[4].Ownership = &sector.Ownership{
		OwnerID: owner, ClaimedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Assets: []sector.Asset{{Kind: sector.AssetClaimedPlanet, ID: planetID}},
	}

	snap := &Snapshot{
		Version: 1, RegionID: regionID, RegionName: "alpha", Kind: KindPlayerOwned,
		TotalSectors: 30, Seed: 99, GeneratedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Settings: RegionSettings{Governance: GovernanceDemocracy, TaxRate: 0.12, TradeBonuses: TradeBonuses{Ore: 1.5, Organics: 1, Equipment: 1}},
		Sectors:  sectors, Clusters: []*cluster.Cluster{second, first}, Zones: zones,
		Ports:   []attribute.Port{{ID: portID, SectorID: 3, Class: 4, Name: "Vega Station 3"}},
		Planets: []planet.Planet{{ID: planetID, SectorID: 4, Name: "Kepler Prime", Type: planet.PlanetTypeTerran, Habitability: 80, MaxPopulation: 900000, OwnerID: &owner}},
		Graph:   g,
	}
	snap.Finalize()
	return snap
}
