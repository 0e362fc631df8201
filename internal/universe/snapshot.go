package universe

import (
	"fmt"
	"math"
	"sort"
	"time"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/district"
	"galaxy-server/internal/planet"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

// Snapshot is one complete, immutable version of a region. Generation
// always builds a new snapshot; readers never see one being assembled.
type Snapshot struct {
	Version      int64                  `json:"version"`
	RegionID     uuid.UUID              `json:"region_id"`
	RegionName   string                 `json:"region_name"`
	Kind         RegionKind             `json:"kind"`
	TotalSectors int                    `json:"total_sectors"`
	Seed         int64                  `json:"seed"`
	GeneratedAt  time.Time              `json:"generated_at"`
	Settings     RegionSettings         `json:"settings"`
	Sectors      map[int]*sector.Sector `json:"sectors"`
	Clusters     []*cluster.Cluster     `json:"clusters"`
	Zones        []zone.Zone            `json:"zones"`
	Districts    []district.District    `json:"districts,omitempty"`
	Ports        []attribute.Port       `json:"ports"`
	Planets      []planet.Planet        `json:"planets"`
	Graph        *warp.Graph            `json:"graph"`

	// Membership axes are kept apart from the sector records.
	SectorZone     map[int]uuid.UUID `json:"sector_zone"`
	SectorCluster  map[int]uuid.UUID `json:"sector_cluster"`
	SectorDistrict map[int]uuid.UUID `json:"sector_district,omitempty"`

	Summary Summary `json:"summary"`
}

type RegionInfo struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Kind         RegionKind `json:"kind"`
	TotalSectors int        `json:"total_sectors"`
	Version      int64      `json:"version"`
	Seed         int64      `json:"seed"`
	GeneratedAt  time.Time  `json:"generated_at"`
	Summary      Summary    `json:"summary"`
}

func (s *Snapshot) Info() RegionInfo {
	return RegionInfo{
		ID:           s.RegionID,
		Name:         s.RegionName,
		Kind:         s.Kind,
		TotalSectors: s.TotalSectors,
		Version:      s.Version,
		Seed:         s.Seed,
		GeneratedAt:  s.GeneratedAt,
		Summary:      s.Summary,
	}
}

// Finalize builds the membership maps, indexes the graph and computes the
// summary. It must run before the snapshot is published.
func (s *Snapshot) Finalize() {
	s.SectorZone = make(map[int]uuid.UUID, len(s.Sectors))
	s.SectorCluster = make(map[int]uuid.UUID, len(s.Sectors))
	s.SectorDistrict = nil

	for _, z := range s.Zones {
		for id := z.Range.Start; id <= z.Range.End; id++ {
			s.SectorZone[id] = z.ID
		}
	}
	for _, c := range s.Clusters {
		for id := c.Range.Start; id <= c.Range.End; id++ {
			s.SectorCluster[id] = c.ID
		}
	}
	if len(s.Districts) > 0 {
		s.SectorDistrict = make(map[int]uuid.UUID, len(s.Sectors))
		for _, d := range s.Districts {
			for id := d.Range.Start; id <= d.Range.End; id++ {
				s.SectorDistrict[id] = d.ID
			}
		}
	}

	sort.Slice(s.Clusters, func(i, j int) bool { return s.Clusters[i].Range.Start < s.Clusters[j].Range.Start })
	sort.Slice(s.Zones, func(i, j int) bool { return s.Zones[i].Range.Start < s.Zones[j].Range.Start })
	sort.Slice(s.Ports, func(i, j int) bool { return s.Ports[i].SectorID < s.Ports[j].SectorID })
	sort.Slice(s.Planets, func(i, j int) bool { return s.Planets[i].SectorID < s.Planets[j].SectorID })

	if s.Graph != nil {
		s.Graph.Index()
	}
	s.Summary = s.summarize()
}

func (s *Snapshot) summarize() Summary {
	sum := Summary{
		Sectors:   len(s.Sectors),
		Ports:     len(s.Ports),
		Planets:   len(s.Planets),
		Clusters:  len(s.Clusters),
		Zones:     len(s.Zones),
		Districts: len(s.Districts),
	}
	if s.Graph != nil {
		sum.Connections = len(s.Graph.Connections)
		sum.OneWayConnections = s.Graph.OneWayCount()
		sum.Tunnels = len(s.Graph.Tunnels)
	}
	for _, c := range s.Clusters {
		if c.Nebula != nil {
			sum.Nebulae++
		}
	}
	for _, sec := range s.Sectors {
		if sec.IsClaimed() {
			sum.ClaimedSectors++
		}
	}
	if sum.Sectors > 0 {
		sum.PortPercent = round2(100 * float64(sum.Ports) / float64(sum.Sectors))
		sum.PlanetPercent = round2(100 * float64(sum.Planets) / float64(sum.Sectors))
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Snapshot) Sector(id int) (*sector.Sector, bool) {
	sec, ok := s.Sectors[id]
	return sec, ok
}

func (s *Snapshot) ZoneOf(id int) (zone.Zone, bool) {
	zid, ok := s.SectorZone[id]
	if !ok {
		return zone.Zone{}, false
	}
	for _, z := range s.Zones {
		if z.ID == zid {
			return z, true
		}
	}
	return zone.Zone{}, false
}

func (s *Snapshot) ClusterOf(id int) (*cluster.Cluster, bool) {
	i := sort.Search(len(s.Clusters), func(i int) bool { return s.Clusters[i].Range.End >= id })
	if i < len(s.Clusters) && s.Clusters[i].Range.Contains(id) {
		return s.Clusters[i], true
	}
	return nil, false
}

func (s *Snapshot) DistrictOf(id int) (district.District, bool) {
	for _, d := range s.Districts {
		if d.Range.Contains(id) {
			return d, true
		}
	}
	return district.District{}, false
}

func (s *Snapshot) District(key district.Key) (district.District, bool) {
	for _, d := range s.Districts {
		if d.Key == key {
			return d, true
		}
	}
	return district.District{}, false
}

// Neighbors lists the sectors reachable in one jump, tunnels included.
func (s *Snapshot) Neighbors(id int) []int {
	if s.Graph == nil {
		return nil
	}
	return s.Graph.Neighbors(id)
}

// ClaimedSectors returns the sorted ids of sectors carrying ownership.
func (s *Snapshot) ClaimedSectors() []int {
	var ids []int
	for id, sec := range s.Sectors {
		if sec.IsClaimed() {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (s *Snapshot) Planet(id uuid.UUID) (planet.Planet, bool) {
	for _, p := range s.Planets {
		if p.ID == id {
			return p, true
		}
	}
	return planet.Planet{}, false
}

// WithOwnership returns a copy of the snapshot where the sector carries the
// given ownership. Topology is shared with the receiver; only the touched
// sector record is copied.
func (s *Snapshot) WithOwnership(sectorID int, ownership *sector.Ownership) (*Snapshot, error) {
	sec, ok := s.Sectors[sectorID]
	if !ok {
		return nil, errors.NotFoundf("sector %d not found in region %s", sectorID, s.RegionName)
	}

	for _, id := range ownership.AssetIDs(sector.AssetClaimedPlanet) {
		if sec.PlanetID == nil || *sec.PlanetID != id {
			return nil, errors.InvalidRequestf(
				errors.Details{"sector_id": sectorID, "planet_id": id.String()},
				"planet %s is not in sector %d", id, sectorID,
			)
		}
	}
	for _, id := range ownership.AssetIDs(sector.AssetConstructedTunnel) {
		if !s.hasTunnelAt(id, sectorID) {
			return nil, errors.InvalidRequestf(
				errors.Details{"sector_id": sectorID, "tunnel_id": id.String()},
				"tunnel %s does not touch sector %d", id, sectorID,
			)
		}
	}

	next := *s
	next.Version = s.Version + 1
	next.Sectors = make(map[int]*sector.Sector, len(s.Sectors))
	for id, v := range s.Sectors {
		next.Sectors[id] = v
	}
	updated := *sec
	updated.Ownership = ownership.Clone()
	next.Sectors[sectorID] = &updated
	next.Summary = next.summarize()
	return &next, nil
}

// WithConstructedTunnel returns the next version of the region with a
// player tunnel between sectors a and b. Standard adjacency is untouched.
func (s *Snapshot) WithConstructedTunnel(a, b int, cons warp.Construction) (*Snapshot, *warp.Tunnel, error) {
	if a == b {
		return nil, nil, errors.InvalidRequestf(errors.Details{"sector_id": a}, "a tunnel needs two different sectors")
	}
	from, ok := s.Sectors[a]
	if !ok {
		return nil, nil, errors.NotFoundf("sector %d not found in region %s", a, s.RegionName)
	}
	to, ok := s.Sectors[b]
	if !ok {
		return nil, nil, errors.NotFoundf("sector %d not found in region %s", b, s.RegionName)
	}
	if s.Graph == nil {
		return nil, nil, errors.WrapInternal("region has no warp graph", fmt.Errorf("region %s", s.RegionName))
	}
	for _, t := range s.Graph.Tunnels {
		if (t.A == a && t.B == b) || (t.A == b && t.B == a) {
			return nil, nil, errors.AlreadyExistsf("sectors %d and %d are already joined by tunnel %s", a, b, t.ID)
		}
	}

	id := uuid.NewSHA1(s.RegionID, []byte(fmt.Sprintf("tunnel/constructed/%d/%d/%d", a, b, s.Version+1)))
	tunnel := warp.NewConstructedTunnel(id,
		warp.Node{ID: a, Coordinates: from.Coordinates},
		warp.Node{ID: b, Coordinates: to.Coordinates},
		cons,
	)

	next := *s
	next.Version = s.Version + 1
	next.Graph = s.Graph.Clone()
	if !next.Graph.AddTunnel(tunnel) {
		return nil, nil, errors.InvalidRequestf(errors.Details{"from": a, "to": b}, "sectors %d and %d are not in the warp graph", a, b)
	}
	next.Summary = next.summarize()
	return &next, &tunnel, nil
}

func (s *Snapshot) hasTunnelAt(id uuid.UUID, sectorID int) bool {
	if s.Graph == nil {
		return false
	}
	for _, t := range s.Graph.Tunnels {
		if t.ID == id && (t.A == sectorID || t.B == sectorID) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a finalized snapshot.
func (s *Snapshot) Validate() error {
	if len(s.Sectors) != s.TotalSectors {
		return errors.WrapInternal("snapshot audit failed", fmt.Errorf("%d sectors for a budget of %d", len(s.Sectors), s.TotalSectors))
	}
	full := sector.Range{Start: 1, End: s.TotalSectors}
	if err := zone.VerifyCoverage(s.Zones, full); err != nil {
		return err
	}
	next := 1
	for _, c := range s.Clusters {
		if c.Range.Start != next {
			return errors.WrapInternal("snapshot audit failed", fmt.Errorf("cluster %s starts at %d, expected %d", c.Name, c.Range.Start, next))
		}
		next = c.Range.End + 1
		if c.Nebula == nil {
			continue
		}
		for _, e := range c.EntryPoints {
			if c.Nebula.InCore(e) {
				return errors.WrapInternal("snapshot audit failed", fmt.Errorf("entry point %d of cluster %s in nebula core", e, c.Name))
			}
		}
	}
	if next != s.TotalSectors+1 {
		return errors.WrapInternal("snapshot audit failed", fmt.Errorf("clusters end at %d of %d", next-1, s.TotalSectors))
	}
	if s.Graph == nil || !s.Graph.IsStronglyConnected() {
		return errors.WrapInternal("snapshot audit failed", fmt.Errorf("warp graph is not connected"))
	}
	for _, p := range s.Ports {
		if sec, ok := s.Sectors[p.SectorID]; !ok || sec.PortID == nil || *sec.PortID != p.ID {
			return errors.WrapInternal("snapshot audit failed", fmt.Errorf("port %s not referenced by sector %d", p.ID, p.SectorID))
		}
	}
	return nil
}
