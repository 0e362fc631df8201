package sector

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type SectorType string

const (
	TypeStandard      SectorType = "standard"
	TypeNebula        SectorType = "nebula"
	TypeAsteroidField SectorType = "asteroid_field"
	TypeBlackHole     SectorType = "black_hole"
	TypeStarCluster   SectorType = "star_cluster"
	TypeVoid          SectorType = "void"
	TypeIndustrial    SectorType = "industrial"
	TypeAgricultural  SectorType = "agricultural"
	TypeForbidden     SectorType = "forbidden"
	TypeWormhole      SectorType = "wormhole"
)

// hazardRanges holds the inclusive navigation hazard band for each sector type.
var hazardRanges = map[SectorType][2]int{
	TypeStandard:      {0, 3},
	TypeNebula:        {4, 7},
	TypeAsteroidField: {5, 8},
	TypeBlackHole:     {8, 10},
	TypeStarCluster:   {2, 5},
	TypeVoid:          {1, 4},
	TypeIndustrial:    {1, 3},
	TypeAgricultural:  {0, 2},
	TypeForbidden:     {7, 10},
	TypeWormhole:      {6, 9},
}

// HazardRange returns the inclusive nav hazard band of a sector type.
func HazardRange(t SectorType) (min, max int) {
	r, ok := hazardRanges[t]
	if !ok {
		return 0, 3
	}
	return r[0], r[1]
}

func (t SectorType) Valid() bool {
	_, ok := hazardRanges[t]
	return ok
}

type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (c Coordinates) DistanceTo(o Coordinates) float64 {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.1f,%.1f,%.1f)", c.X, c.Y, c.Z)
}

type ResourceKind int

const (
	ResourceOre ResourceKind = iota
	ResourceOrganics
	ResourceEquipment
	ResourceFuel
	ResourceLuxuryGoods
	ResourceExoticMatter
	NumResourceKinds
)

var resourceNames = [NumResourceKinds]string{
	"ore", "organics", "equipment", "fuel", "luxury_goods", "exotic_matter",
}

func (k ResourceKind) String() string {
	if k < 0 || k >= NumResourceKinds {
		return fmt.Sprintf("resource(%d)", int(k))
	}
	return resourceNames[k]
}

// ParseResourceKind maps a resource name back to its kind.
func ParseResourceKind(name string) (ResourceKind, bool) {
	for i, n := range resourceNames {
		if n == name {
			return ResourceKind(i), true
		}
	}
	return 0, false
}

// ResourceYield is the base amount of each resource a sector produces.
type ResourceYield [NumResourceKinds]int

func (y ResourceYield) Total() int {
	total := 0
	for _, v := range y {
		total += v
	}
	return total
}

// Kinds returns the resource kinds with a non-zero yield.
func (y ResourceYield) Kinds() []ResourceKind {
	var kinds []ResourceKind
	for i, v := range y {
		if v > 0 {
			kinds = append(kinds, ResourceKind(i))
		}
	}
	return kinds
}

func (y ResourceYield) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumResourceKinds)
	for i, v := range y {
		if v > 0 {
			m[resourceNames[i]] = v
		}
	}
	return json.Marshal(m)
}

func (y *ResourceYield) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*y = ResourceYield{}
	for name, v := range m {
		kind, ok := ParseResourceKind(name)
		if !ok {
			return fmt.Errorf("unknown resource kind %q", name)
		}
		y[kind] = v
	}
	return nil
}

// ResourceWeights scales resource draws per kind. The zero value means no affinity.
type ResourceWeights [NumResourceKinds]float64

type AssetKind string

const (
	AssetShip              AssetKind = "ship"
	AssetClaimedPlanet     AssetKind = "claimed_planet"
	AssetConstructedTunnel AssetKind = "constructed_tunnel"
)

type Asset struct {
	Kind AssetKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Ownership is gameplay-owned claim metadata attached to a sector.
type Ownership struct {
	OwnerID   int       `json:"owner_id"`
	ClaimedAt time.Time `json:"claimed_at"`
	Assets    []Asset   `json:"assets,omitempty"`
}

func (o *Ownership) Clone() *Ownership {
	if o == nil {
		return nil
	}
	c := *o
	c.Assets = append([]Asset(nil), o.Assets...)
	return &c
}

// AssetIDs returns the ids of every asset of the given kind.
func (o *Ownership) AssetIDs(kind AssetKind) []uuid.UUID {
	if o == nil {
		return nil
	}
	var ids []uuid.UUID
	for _, a := range o.Assets {
		if a.Kind == kind {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

type Sector struct {
	ID          int           `json:"id"`
	Coordinates Coordinates   `json:"coordinates"`
	Type        SectorType    `json:"type"`
	IsHidden    bool          `json:"is_hidden"`
	Navigable   bool          `json:"navigable"`
	NavHazard   int           `json:"nav_hazard"`
	PortID      *uuid.UUID    `json:"port_id,omitempty"`
	PlanetID    *uuid.UUID    `json:"planet_id,omitempty"`
	Resources   ResourceYield `json:"resources"`
	Ownership   *Ownership    `json:"ownership,omitempty"`
}

func (s *Sector) IsClaimed() bool {
	return s.Ownership != nil
}

// Range is an inclusive span of sector ids.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r Range) Contains(id int) bool {
	return id >= r.Start && id <= r.End
}

func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}
