package cluster

import (
	"galaxy-server/internal/attribute"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/sector"

	"github.com/google/uuid"
)

type ClusterType string

const (
	TypeStandard         ClusterType = "standard"
	TypeResourceRich     ClusterType = "resource_rich"
	TypePopulationCenter ClusterType = "population_center"
	TypeTradeHub         ClusterType = "trade_hub"
	TypeMilitaryZone     ClusterType = "military_zone"
	TypeFrontierOutpost  ClusterType = "frontier_outpost"
	TypeContested        ClusterType = "contested"
	TypeSpecialInterest  ClusterType = "special_interest"
)

type Stats struct {
	TotalSectors     int `json:"total_sectors"`
	PopulatedSectors int `json:"populated_sectors"`
	EmptySectors     int `json:"empty_sectors"`
	PortCount        int `json:"port_count"`
	PlanetCount      int `json:"planet_count"`
	ResourceValue    int `json:"resource_value"`
	DangerLevel      int `json:"danger_level"`
	DevelopmentIndex int `json:"development_index"`
}

type Cluster struct {
	ID            uuid.UUID      `json:"id"`
	RegionID      uuid.UUID      `json:"region_id"`
	DistrictID    *uuid.UUID     `json:"district_id,omitempty"`
	Name          string         `json:"name"`
	Type          ClusterType    `json:"type"`
	Range         sector.Range   `json:"range"`
	Hubs          []int          `json:"hubs"`
	EntryPoints   []int          `json:"entry_points"`
	Nebula        *nebula.Field  `json:"nebula,omitempty"`
	Stats         Stats          `json:"stats"`
	WarpStability float64        `json:"warp_stability"`
	Discovered    bool           `json:"discovered"`
	Bias          attribute.Bias `json:"-"`
}

// Members returns the sorted member sector ids.
func (c *Cluster) Members() []int {
	out := make([]int, 0, c.Range.Len())
	for id := c.Range.Start; id <= c.Range.End; id++ {
		out = append(out, id)
	}
	return out
}

func (c *Cluster) Size() int {
	return c.Range.Len()
}

func (c *Cluster) IsEntryPoint(id int) bool {
	for _, e := range c.EntryPoints {
		if e == id {
			return true
		}
	}
	return false
}

// Clone copies the cluster including its nebula descriptor.
func (c *Cluster) Clone() *Cluster {
	out := *c
	out.Hubs = append([]int(nil), c.Hubs...)
	out.EntryPoints = append([]int(nil), c.EntryPoints...)
	if c.DistrictID != nil {
		id := *c.DistrictID
		out.DistrictID = &id
	}
	if c.Nebula != nil {
		n := *c.Nebula
		n.CoreSectors = append([]int(nil), c.Nebula.CoreSectors...)
		n.EdgeSectors = append([]int(nil), c.Nebula.EdgeSectors...)
		n.EdgeDensity = make(map[int]int, len(c.Nebula.EdgeDensity))
		for k, v := range c.Nebula.EdgeDensity {
			n.EdgeDensity[k] = v
		}
		out.Nebula = &n
	}
	return &out
}

// Scope is the sector range a partition runs over, with the profile that
// applies to it.
type Scope struct {
	RegionID     uuid.UUID
	Namespace    uuid.UUID
	DistrictID   *uuid.UUID
	Range        sector.Range
	Distribution Distribution
	Bias         attribute.Bias
	Salt         string
}
