package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/district"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/planet"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Row types mirror the persisted tables. The json tags let the Postgres
// repository ship whole tables through json_array_elements.

type regionRow struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Kind         string `db:"kind" json:"kind"`
	TotalSectors int    `db:"total_sectors" json:"total_sectors"`
	Seed         int64  `db:"seed" json:"seed"`
	Version      int64  `db:"version" json:"version"`
	GeneratedAt  string `db:"generated_at" json:"generated_at"`
	Settings     string `db:"settings" json:"settings"`
	Summary      string `db:"summary" json:"summary"`
}

type sectorRow struct {
	RegionID   string  `db:"region_id" json:"region_id"`
	ID         int     `db:"id" json:"id"`
	X          float64 `db:"x" json:"x"`
	Y          float64 `db:"y" json:"y"`
	Z          float64 `db:"z" json:"z"`
	Type       string  `db:"type" json:"type"`
	IsHidden   bool    `db:"is_hidden" json:"is_hidden"`
	Navigable  bool    `db:"navigable" json:"navigable"`
	NavHazard  int     `db:"nav_hazard" json:"nav_hazard"`
	PortID     *string `db:"port_id" json:"port_id"`
	PlanetID   *string `db:"planet_id" json:"planet_id"`
	ZoneID     string  `db:"zone_id" json:"zone_id"`
	ClusterID  string  `db:"cluster_id" json:"cluster_id"`
	DistrictID *string `db:"district_id" json:"district_id"`
	Resources  string  `db:"resources" json:"resources"`
	Ownership  *string `db:"ownership" json:"ownership"`
}

type clusterRow struct {
	ID            string  `db:"id" json:"id"`
	RegionID      string  `db:"region_id" json:"region_id"`
	DistrictID    *string `db:"district_id" json:"district_id"`
	Name          string  `db:"name" json:"name"`
	Type          string  `db:"type" json:"type"`
	StartSector   int     `db:"start_sector" json:"start_sector"`
	EndSector     int     `db:"end_sector" json:"end_sector"`
	Hubs          string  `db:"hubs" json:"hubs"`
	EntryPoints   string  `db:"entry_points" json:"entry_points"`
	Stats         string  `db:"stats" json:"stats"`
	WarpStability float64 `db:"warp_stability" json:"warp_stability"`
	Discovered    bool    `db:"discovered" json:"discovered"`
}

type nebulaRow struct {
	ID                   string  `db:"id" json:"id"`
	RegionID             string  `db:"region_id" json:"region_id"`
	ClusterID            string  `db:"cluster_id" json:"cluster_id"`
	Name                 string  `db:"name" json:"name"`
	Type                 string  `db:"type" json:"type"`
	QuantumFieldStrength float64 `db:"quantum_field_strength" json:"quantum_field_strength"`
	CoveragePercent      float64 `db:"coverage_percent" json:"coverage_percent"`
	CenterSector         int     `db:"center_sector" json:"center_sector"`
	Center               string  `db:"center" json:"center"`
	Radius               float64 `db:"radius" json:"radius"`
	CoreRadius           float64 `db:"core_radius" json:"core_radius"`
	CoreSectors          string  `db:"core_sectors" json:"core_sectors"`
	EdgeDensity          string  `db:"edge_density" json:"edge_density"`
}

type zoneRow struct {
	ID            string  `db:"id" json:"id"`
	RegionID      string  `db:"region_id" json:"region_id"`
	DistrictID    *string `db:"district_id" json:"district_id"`
	Name          string  `db:"name" json:"name"`
	Type          string  `db:"type" json:"type"`
	StartSector   int     `db:"start_sector" json:"start_sector"`
	EndSector     int     `db:"end_sector" json:"end_sector"`
	PolicingLevel int     `db:"policing_level" json:"policing_level"`
	DangerRating  int     `db:"danger_rating" json:"danger_rating"`
}

type districtRow struct {
	ID          string `db:"id" json:"id"`
	RegionID    string `db:"region_id" json:"region_id"`
	Key         string `db:"district_key" json:"district_key"`
	Name        string `db:"name" json:"name"`
	StartSector int    `db:"start_sector" json:"start_sector"`
	EndSector   int    `db:"end_sector" json:"end_sector"`
	Profile     string `db:"profile" json:"profile"`
}

type portRow struct {
	ID       string `db:"id" json:"id"`
	RegionID string `db:"region_id" json:"region_id"`
	SectorID int    `db:"sector_id" json:"sector_id"`
	Class    int    `db:"class" json:"class"`
	Name     string `db:"name" json:"name"`
}

type planetRow struct {
	ID            string `db:"id" json:"id"`
	RegionID      string `db:"region_id" json:"region_id"`
	SectorID      int    `db:"sector_id" json:"sector_id"`
	Name          string `db:"name" json:"name"`
	Type          string `db:"type" json:"type"`
	Habitability  int    `db:"habitability" json:"habitability"`
	MaxPopulation int64  `db:"max_population" json:"max_population"`
	OwnerID       *int   `db:"owner_id" json:"owner_id"`
}

type connectionRow struct {
	RegionID string  `db:"region_id" json:"region_id"`
	SectorA  int     `db:"sector_a" json:"sector_a"`
	SectorB  int     `db:"sector_b" json:"sector_b"`
	OneWay   bool    `db:"one_way" json:"one_way"`
	Natural  bool    `db:"is_natural" json:"is_natural"`
	Distance float64 `db:"distance" json:"distance"`
	TurnCost float64 `db:"turn_cost" json:"turn_cost"`
}

type tunnelRow struct {
	ID           string  `db:"id" json:"id"`
	RegionID     string  `db:"region_id" json:"region_id"`
	SectorA      int     `db:"sector_a" json:"sector_a"`
	SectorB      int     `db:"sector_b" json:"sector_b"`
	Type         string  `db:"type" json:"type"`
	Status       string  `db:"status" json:"status"`
	Stability    float64 `db:"stability" json:"stability"`
	Distance     float64 `db:"distance" json:"distance"`
	TurnCost     float64 `db:"turn_cost" json:"turn_cost"`
	Discovered   bool    `db:"discovered" json:"discovered"`
	DecayPerDay  float64 `db:"decay_per_day" json:"decay_per_day"`
	Construction *string `db:"construction" json:"construction"`
}

type rowSet struct {
	Region      regionRow
	Sectors     []sectorRow
	Clusters    []clusterRow
	Nebulae     []nebulaRow
	Zones       []zoneRow
	Districts   []districtRow
	Ports       []portRow
	Planets     []planetRow
	Connections []connectionRow
	Tunnels     []tunnelRow
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalIDFromMap(m map[int]uuid.UUID, key int) *string {
	if m == nil {
		return nil
	}
	id, ok := m[key]
	if !ok {
		return nil
	}
	s := id.String()
	return &s
}

func toRows(snap *Snapshot) (*rowSet, error) {
	region := snap.RegionID.String()
	settings, err := jsonText(snap.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	summary, err := jsonText(snap.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}

	rs := &rowSet{Region: regionRow{
		ID:           region,
		Name:         snap.RegionName,
		Kind:         string(snap.Kind),
		TotalSectors: snap.TotalSectors,
		Seed:         snap.Seed,
		Version:      snap.Version,
		GeneratedAt:  snap.GeneratedAt.UTC().Format(time.RFC3339Nano),
		Settings:     settings,
		Summary:      summary,
	}}

	ids := make([]int, 0, len(snap.Sectors))
	for id := range snap.Sectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := snap.Sectors[id]
		resources, err := jsonText(s.Resources)
		if err != nil {
			return nil, fmt.Errorf("failed to encode resources of sector %d: %w", id, err)
		}
		row := sectorRow{
			RegionID:   region,
			ID:         id,
			X:          s.Coordinates.X,
			Y:          s.Coordinates.Y,
			Z:          s.Coordinates.Z,
			Type:       string(s.Type),
			IsHidden:   s.IsHidden,
			Navigable:  s.Navigable,
			NavHazard:  s.NavHazard,
			PortID:     optionalID(s.PortID),
			PlanetID:   optionalID(s.PlanetID),
			ZoneID:     snap.SectorZone[id].String(),
			ClusterID:  snap.SectorCluster[id].String(),
			DistrictID: optionalIDFromMap(snap.SectorDistrict, id),
			Resources:  resources,
		}
		if s.Ownership != nil {
			o, err := jsonText(s.Ownership)
			if err != nil {
				return nil, fmt.Errorf("failed to encode ownership of sector %d: %w", id, err)
			}
			row.Ownership = &o
		}
		rs.Sectors = append(rs.Sectors, row)
	}

	for _, c := range snap.Clusters {
		hubs, _ := jsonText(c.Hubs)
		entries, _ := jsonText(c.EntryPoints)
		stats, _ := jsonText(c.Stats)
		rs.Clusters = append(rs.Clusters, clusterRow{
			ID:            c.ID.String(),
			RegionID:      region,
			DistrictID:    optionalID(c.DistrictID),
			Name:          c.Name,
			Type:          string(c.Type),
			StartSector:   c.Range.Start,
			EndSector:     c.Range.End,
			Hubs:          hubs,
			EntryPoints:   entries,
			Stats:         stats,
			WarpStability: c.WarpStability,
			Discovered:    c.Discovered,
		})
		if n := c.Nebula; n != nil {
			center, _ := jsonText(n.Center)
			core, _ := jsonText(n.CoreSectors)
			edge, _ := jsonText(n.EdgeDensity)
			rs.Nebulae = append(rs.Nebulae, nebulaRow{
				ID:                   n.ID.String(),
				RegionID:             region,
				ClusterID:            c.ID.String(),
				Name:                 n.Name,
				Type:                 string(n.Type),
				QuantumFieldStrength: n.QuantumFieldStrength,
				CoveragePercent:      n.CoveragePercent,
				CenterSector:         n.CenterSector,
				Center:               center,
				Radius:               n.Radius,
				CoreRadius:           n.CoreRadius,
				CoreSectors:          core,
				EdgeDensity:          edge,
			})
		}
	}

	for _, z := range snap.Zones {
		rs.Zones = append(rs.Zones, zoneRow{
			ID:            z.ID.String(),
			RegionID:      region,
			DistrictID:    optionalID(z.DistrictID),
			Name:          z.Name,
			Type:          string(z.Type),
			StartSector:   z.Range.Start,
			EndSector:     z.Range.End,
			PolicingLevel: z.PolicingLevel,
			DangerRating:  z.DangerRating,
		})
	}

	for _, d := range snap.Districts {
		profile, err := jsonText(d.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to encode district %s: %w", d.Key, err)
		}
		rs.Districts = append(rs.Districts, districtRow{
			ID:          d.ID.String(),
			RegionID:    region,
			Key:         string(d.Key),
			Name:        d.Name,
			StartSector: d.Range.Start,
			EndSector:   d.Range.End,
			Profile:     profile,
		})
	}

	for _, p := range snap.Ports {
		rs.Ports = append(rs.Ports, portRow{ID: p.ID.String(), RegionID: region, SectorID: p.SectorID, Class: p.Class, Name: p.Name})
	}
	for _, p := range snap.Planets {
		rs.Planets = append(rs.Planets, planetRow{
			ID:            p.ID.String(),
			RegionID:      region,
			SectorID:      p.SectorID,
			Name:          p.Name,
			Type:          string(p.Type),
			Habitability:  p.Habitability,
			MaxPopulation: p.MaxPopulation,
			OwnerID:       p.OwnerID,
		})
	}

	if g := snap.Graph; g != nil {
		for _, c := range g.Connections {
			rs.Connections = append(rs.Connections, connectionRow{
				RegionID: region, SectorA: c.A, SectorB: c.B, OneWay: c.OneWay,
				Natural: c.Natural, Distance: c.Distance, TurnCost: c.TurnCost,
			})
		}
		for _, t := range g.Tunnels {
			row := tunnelRow{
				ID: t.ID.String(), RegionID: region, SectorA: t.A, SectorB: t.B,
				Type: string(t.Type), Status: string(t.Status), Stability: t.Stability,
				Distance: t.Distance, TurnCost: t.TurnCost, Discovered: t.Discovered, DecayPerDay: t.DecayPerDay,
			}
			if t.Construction != nil {
				cons, _ := jsonText(t.Construction)
				row.Construction = &cons
			}
			rs.Tunnels = append(rs.Tunnels, row)
		}
	}
	return rs, nil
}

func parseOptionalID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (rs *rowSet) toSnapshot() (*Snapshot, error) {
	r := rs.Region
	regionID, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse region id: %w", err)
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, r.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated_at: %w", err)
	}
	snap := &Snapshot{
		Version:      r.Version,
		RegionID:     regionID,
		RegionName:   r.Name,
		Kind:         RegionKind(r.Kind),
		TotalSectors: r.TotalSectors,
		Seed:         r.Seed,
		GeneratedAt:  generatedAt.UTC(),
		Sectors:      make(map[int]*sector.Sector, len(rs.Sectors)),
	}
	if err := json.Unmarshal([]byte(r.Settings), &snap.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	nodes := make([]int, 0, len(rs.Sectors))
	for _, row := range rs.Sectors {
		s := &sector.Sector{
			ID:          row.ID,
			Coordinates: sector.Coordinates{X: row.X, Y: row.Y, Z: row.Z},
			Type:        sector.SectorType(row.Type),
			IsHidden:    row.IsHidden,
			Navigable:   row.Navigable,
			NavHazard:   row.NavHazard,
		}
		if s.PortID, err = parseOptionalID(row.PortID); err != nil {
			return nil, fmt.Errorf("sector %d port id: %w", row.ID, err)
		}
		if s.PlanetID, err = parseOptionalID(row.PlanetID); err != nil {
			return nil, fmt.Errorf("sector %d planet id: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.Resources), &s.Resources); err != nil {
			return nil, fmt.Errorf("sector %d resources: %w", row.ID, err)
		}
		if row.Ownership != nil {
			s.Ownership = &sector.Ownership{}
			if err := json.Unmarshal([]byte(*row.Ownership), s.Ownership); err != nil {
				return nil, fmt.Errorf("sector %d ownership: %w", row.ID, err)
			}
		}
		snap.Sectors[row.ID] = s
		nodes = append(nodes, row.ID)
	}

	nebulae := make(map[string]*nebula.Field, len(rs.Nebulae))
	for _, row := range rs.Nebulae {
		f := &nebula.Field{
			Name:                 row.Name,
			Type:                 nebula.NebulaType(row.Type),
			QuantumFieldStrength: row.QuantumFieldStrength,
			CoveragePercent:      row.CoveragePercent,
			CenterSector:         row.CenterSector,
			Radius:               row.Radius,
			CoreRadius:           row.CoreRadius,
		}
		if f.ID, err = uuid.Parse(row.ID); err != nil {
			return nil, fmt.Errorf("nebula id: %w", err)
		}
		if f.ClusterID, err = uuid.Parse(row.ClusterID); err != nil {
			return nil, fmt.Errorf("nebula cluster id: %w", err)
		}
		if err := json.Unmarshal([]byte(row.Center), &f.Center); err != nil {
			return nil, fmt.Errorf("nebula center: %w", err)
		}
		if err := json.Unmarshal([]byte(row.CoreSectors), &f.CoreSectors); err != nil {
			return nil, fmt.Errorf("nebula core: %w", err)
		}
		if err := json.Unmarshal([]byte(row.EdgeDensity), &f.EdgeDensity); err != nil {
			return nil, fmt.Errorf("nebula edge: %w", err)
		}
		for id := range f.EdgeDensity {
			f.EdgeSectors = append(f.EdgeSectors, id)
		}
		sort.Ints(f.EdgeSectors)
		nebulae[row.ClusterID] = f
	}

	for _, row := range rs.Clusters {
		c := &cluster.Cluster{
			RegionID:      regionID,
			Name:          row.Name,
			Type:          cluster.ClusterType(row.Type),
			Range:         sector.Range{Start: row.StartSector, End: row.EndSector},
			WarpStability: row.WarpStability,
			Discovered:    row.Discovered,
			Nebula:        nebulae[row.ID],
		}
		if c.ID, err = uuid.Parse(row.ID); err != nil {
			return nil, fmt.Errorf("cluster id: %w", err)
		}
		if c.DistrictID, err = parseOptionalID(row.DistrictID); err != nil {
			return nil, fmt.Errorf("cluster district id: %w", err)
		}
		if err := json.Unmarshal([]byte(row.Hubs), &c.Hubs); err != nil {
			return nil, fmt.Errorf("cluster hubs: %w", err)
		}
		if err := json.Unmarshal([]byte(row.EntryPoints), &c.EntryPoints); err != nil {
			return nil, fmt.Errorf("cluster entry points: %w", err)
		}
		if err := json.Unmarshal([]byte(row.Stats), &c.Stats); err != nil {
			return nil, fmt.Errorf("cluster stats: %w", err)
		}
		snap.Clusters = append(snap.Clusters, c)
	}

	for _, row := range rs.Zones {
		z := zone.Zone{
			RegionID:      regionID,
			Name:          row.Name,
			Type:          zone.ZoneType(row.Type),
			Range:         sector.Range{Start: row.StartSector, End: row.EndSector},
			PolicingLevel: row.PolicingLevel,
			DangerRating:  row.DangerRating,
		}
		if z.ID, err = uuid.Parse(row.ID); err != nil {
			return nil, fmt.Errorf("zone id: %w", err)
		}
		if z.DistrictID, err = parseOptionalID(row.DistrictID); err != nil {
			return nil, fmt.Errorf("zone district id: %w", err)
		}
		snap.Zones = append(snap.Zones, z)
	}

	for _, row := range rs.Districts {
		d := district.District{
			RegionID: regionID,
			Key:      district.Key(row.Key),
			Name:     row.Name,
			Range:    sector.Range{Start: row.StartSector, End: row.EndSector},
		}
		if d.ID, err = uuid.Parse(row.ID); err != nil {
			return nil, fmt.Errorf("district id: %w", err)
		}
		if err := json.Unmarshal([]byte(row.Profile), &d.Profile); err != nil {
			return nil, fmt.Errorf("district profile: %w", err)
		}
		snap.Districts = append(snap.Districts, d)
	}

	for _, row := range rs.Ports {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("port id: %w", err)
		}
		snap.Ports = append(snap.Ports, attribute.Port{ID: id, SectorID: row.SectorID, Class: row.Class, Name: row.Name})
	}
	for _, row := range rs.Planets {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("planet id: %w", err)
		}
		snap.Planets = append(snap.Planets, planet.Planet{
			ID: id, SectorID: row.SectorID, Name: row.Name, Type: planet.PlanetType(row.Type),
			Habitability: row.Habitability, MaxPopulation: row.MaxPopulation, OwnerID: row.OwnerID,
		})
	}

	g := warp.NewGraph(nodes)
	for _, row := range rs.Connections {
		g.Connections = append(g.Connections, warp.Connection{
			A: row.SectorA, B: row.SectorB, OneWay: row.OneWay, Natural: row.Natural,
			Distance: row.Distance, TurnCost: row.TurnCost,
		})
	}
	for _, row := range rs.Tunnels {
		t := warp.Tunnel{
			A: row.SectorA, B: row.SectorB, Type: warp.TunnelType(row.Type), Status: warp.TunnelStatus(row.Status),
			Stability: row.Stability, Distance: row.Distance, TurnCost: row.TurnCost,
			Discovered: row.Discovered, DecayPerDay: row.DecayPerDay,
		}
		if t.ID, err = uuid.Parse(row.ID); err != nil {
			return nil, fmt.Errorf("tunnel id: %w", err)
		}
		if row.Construction != nil {
			t.Construction = &warp.Construction{}
			if err := json.Unmarshal([]byte(*row.Construction), t.Construction); err != nil {
				return nil, fmt.Errorf("tunnel construction: %w", err)
			}
		}
		g.Tunnels = append(g.Tunnels, t)
	}
	snap.Graph = g

	snap.Finalize()
	return snap, nil
}

// loadRowSet reads every table of a region. Both repositories share it;
// queries are rebound to the driver's placeholder style.
func loadRowSet(ctx context.Context, db *sqlx.DB, name string) (*rowSet, error) {
	rs := &rowSet{}
	err := db.GetContext(ctx, &rs.Region, db.Rebind(`
		SELECT id, name, kind, total_sectors, seed, version, generated_at, settings, summary
		FROM regions WHERE name = ?`), name)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NotFoundf("region %q not found", name)
		}
		return nil, fmt.Errorf("failed to load region: %w", err)
	}
	id := rs.Region.ID

	queries := []struct {
		dest  any
		query string
	}{
		{&rs.Sectors, `SELECT region_id, id, x, y, z, type, is_hidden, navigable, nav_hazard, port_id, planet_id,
			zone_id, cluster_id, district_id, resources, ownership FROM sectors WHERE region_id = ? ORDER BY id`},
		{&rs.Clusters, `SELECT id, region_id, district_id, name, type, start_sector, end_sector, hubs, entry_points,
			stats, warp_stability, discovered FROM clusters WHERE region_id = ? ORDER BY start_sector`},
		{&rs.Nebulae, `SELECT id, region_id, cluster_id, name, type, quantum_field_strength, coverage_percent,
			center_sector, center, radius, core_radius, core_sectors, edge_density FROM nebula_fields WHERE region_id = ?`},
		{&rs.Zones, `SELECT id, region_id, district_id, name, type, start_sector, end_sector, policing_level,
			danger_rating FROM zones WHERE region_id = ? ORDER BY start_sector`},
		{&rs.Districts, `SELECT id, region_id, district_key, name, start_sector, end_sector, profile
			FROM districts WHERE region_id = ? ORDER BY start_sector`},
		{&rs.Ports, `SELECT id, region_id, sector_id, class, name FROM ports WHERE region_id = ? ORDER BY sector_id`},
		{&rs.Planets, `SELECT id, region_id, sector_id, name, type, habitability, max_population, owner_id
			FROM planets WHERE region_id = ? ORDER BY sector_id`},
		{&rs.Connections, `SELECT region_id, sector_a, sector_b, one_way, is_natural, distance, turn_cost
			FROM warp_connections WHERE region_id = ? ORDER BY sector_a, sector_b`},
		{&rs.Tunnels, `SELECT id, region_id, sector_a, sector_b, type, status, stability, distance, turn_cost,
			discovered, decay_per_day, construction FROM warp_tunnels WHERE region_id = ? ORDER BY sector_a, sector_b`},
	}
	for _, q := range queries {
		if err := db.SelectContext(ctx, q.dest, db.Rebind(q.query), id); err != nil {
			return nil, fmt.Errorf("failed to load region rows: %w", err)
		}
	}
	return rs, nil
}

func listRegionRows(ctx context.Context, db *sqlx.DB) ([]regionRow, error) {
	var rows []regionRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, name, kind, total_sectors, seed, version, generated_at, settings, summary
		FROM regions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return rows, nil
}

func (r regionRow) info() (RegionInfo, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return RegionInfo{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, r.GeneratedAt)
	if err != nil {
		return RegionInfo{}, err
	}
	info := RegionInfo{
		ID: id, Name: r.Name, Kind: RegionKind(r.Kind), TotalSectors: r.TotalSectors,
		Version: r.Version, Seed: r.Seed, GeneratedAt: at.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Summary), &info.Summary); err != nil {
		return RegionInfo{}, err
	}
	return info, nil
}
