package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository persists committed snapshots as relational rows for the
// gameplay services. SaveRegion replaces every row of the region in one
// transaction.
type Repository interface {
	SaveRegion(ctx context.Context, snap *Snapshot) error
	SaveOwnership(ctx context.Context, snap *Snapshot, sectorID int) error
	LoadRegion(ctx context.Context, name string) (*Snapshot, error)
	ListRegions(ctx context.Context) ([]RegionInfo, error)
}

type column struct {
	name string
	cast string // postgres type of the column
}

type tableSpec struct {
	name    string
	columns []column
	rows    func(rs *rowSet) any
	count   func(rs *rowSet) int
}

// childTables are written after the region row and deleted before it.
var childTables = []tableSpec{
	{
		name: "sectors",
		columns: []column{
			{"region_id", "uuid"}, {"id", "integer"}, {"x", "double precision"}, {"y", "double precision"},
			{"z", "double precision"}, {"type", "text"}, {"is_hidden", "boolean"}, {"navigable", "boolean"},
			{"nav_hazard", "integer"}, {"port_id", "uuid"}, {"planet_id", "uuid"}, {"zone_id", "uuid"},
			{"cluster_id", "uuid"}, {"district_id", "uuid"}, {"resources", "jsonb"}, {"ownership", "jsonb"},
		},
		rows:  func(rs *rowSet) any { return rs.Sectors },
		count: func(rs *rowSet) int { return len(rs.Sectors) },
	},
	{
		name: "clusters",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"district_id", "uuid"}, {"name", "text"}, {"type", "text"},
			{"start_sector", "integer"}, {"end_sector", "integer"}, {"hubs", "jsonb"}, {"entry_points", "jsonb"},
			{"stats", "jsonb"}, {"warp_stability", "double precision"}, {"discovered", "boolean"},
		},
		rows:  func(rs *rowSet) any { return rs.Clusters },
		count: func(rs *rowSet) int { return len(rs.Clusters) },
	},
	{
		name: "nebula_fields",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"cluster_id", "uuid"}, {"name", "text"}, {"type", "text"},
			{"quantum_field_strength", "double precision"}, {"coverage_percent", "double precision"},
			{"center_sector", "integer"}, {"center", "jsonb"}, {"radius", "double precision"},
			{"core_radius", "double precision"}, {"core_sectors", "jsonb"}, {"edge_density", "jsonb"},
		},
		rows:  func(rs *rowSet) any { return rs.Nebulae },
		count: func(rs *rowSet) int { return len(rs.Nebulae) },
	},
	{
		name: "zones",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"district_id", "uuid"}, {"name", "text"}, {"type", "text"},
			{"start_sector", "integer"}, {"end_sector", "integer"}, {"policing_level", "integer"}, {"danger_rating", "integer"},
		},
		rows:  func(rs *rowSet) any { return rs.Zones },
		count: func(rs *rowSet) int { return len(rs.Zones) },
	},
	{
		name: "districts",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"district_key", "text"}, {"name", "text"},
			{"start_sector", "integer"}, {"end_sector", "integer"}, {"profile", "jsonb"},
		},
		rows:  func(rs *rowSet) any { return rs.Districts },
		count: func(rs *rowSet) int { return len(rs.Districts) },
	},
	{
		name: "ports",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"sector_id", "integer"}, {"class", "integer"}, {"name", "text"},
		},
		rows:  func(rs *rowSet) any { return rs.Ports },
		count: func(rs *rowSet) int { return len(rs.Ports) },
	},
	{
		name: "planets",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"sector_id", "integer"}, {"name", "text"}, {"type", "text"},
			{"habitability", "integer"}, {"max_population", "bigint"}, {"owner_id", "integer"},
		},
		rows:  func(rs *rowSet) any { return rs.Planets },
		count: func(rs *rowSet) int { return len(rs.Planets) },
	},
	{
		name: "warp_connections",
		columns: []column{
			{"region_id", "uuid"}, {"sector_a", "integer"}, {"sector_b", "integer"}, {"one_way", "boolean"},
			{"is_natural", "boolean"}, {"distance", "double precision"}, {"turn_cost", "double precision"},
		},
		rows:  func(rs *rowSet) any { return rs.Connections },
		count: func(rs *rowSet) int { return len(rs.Connections) },
	},
	{
		name: "warp_tunnels",
		columns: []column{
			{"id", "uuid"}, {"region_id", "uuid"}, {"sector_a", "integer"}, {"sector_b", "integer"},
			{"type", "text"}, {"status", "text"}, {"stability", "double precision"}, {"distance", "double precision"},
			{"turn_cost", "double precision"}, {"discovered", "boolean"}, {"decay_per_day", "double precision"},
			{"construction", "jsonb"},
		},
		rows:  func(rs *rowSet) any { return rs.Tunnels },
		count: func(rs *rowSet) int { return len(rs.Tunnels) },
	},
}

var regionTable = tableSpec{
	name: "regions",
	columns: []column{
		{"id", "uuid"}, {"name", "text"}, {"kind", "text"}, {"total_sectors", "integer"}, {"seed", "bigint"},
		{"version", "bigint"}, {"generated_at", "timestamptz"}, {"settings", "jsonb"}, {"summary", "jsonb"},
	},
}

func (t tableSpec) columnList() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

// jsonInsert selects each column out of a json array passed as $1.
func (t tableSpec) jsonInsert() string {
	exprs := make([]string, len(t.columns))
	for i, c := range t.columns {
		if c.cast == "text" {
			exprs[i] = fmt.Sprintf("data->>'%s'", c.name)
			continue
		}
		exprs[i] = fmt.Sprintf("(data->>'%s')::%s", c.name, c.cast)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM json_array_elements($1::json) AS data",
		t.name, t.columnList(), strings.Join(exprs, ", "))
}

// namedInsert is the sqlx named-parameter insert of one row.
func (t tableSpec) namedInsert() string {
	params := make([]string, len(t.columns))
	for i, c := range t.columns {
		params[i] = ":" + c.name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, t.columnList(), strings.Join(params, ", "))
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
