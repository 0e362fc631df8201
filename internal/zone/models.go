package zone

import (
	"galaxy-server/internal/sector"

	"github.com/google/uuid"
)

type ZoneType string

const (
	TypeExpanse    ZoneType = "expanse"
	TypeFederation ZoneType = "federation"
	TypeBorder     ZoneType = "border"
	TypeFrontier   ZoneType = "frontier"
	TypeCustom     ZoneType = "custom"
)

func (t ZoneType) Valid() bool {
	switch t {
	case TypeExpanse, TypeFederation, TypeBorder, TypeFrontier, TypeCustom:
		return true
	}
	return false
}

const (
	MinLevel = 0
	MaxLevel = 10
)

// Zone is a contiguous security band. Zones cross-cut clusters.
type Zone struct {
	ID            uuid.UUID    `json:"id"`
	RegionID      uuid.UUID    `json:"region_id"`
	DistrictID    *uuid.UUID   `json:"district_id,omitempty"`
	Name          string       `json:"name"`
	Type          ZoneType     `json:"type"`
	Range         sector.Range `json:"range"`
	PolicingLevel int          `json:"policing_level"`
	DangerRating  int          `json:"danger_rating"`
}

// Split describes one zone of a requested partition. Percent is a share of
// the partitioned range.
type Split struct {
	Name          string   `json:"name" yaml:"name"`
	Type          ZoneType `json:"type" yaml:"type"`
	Percent       float64  `json:"percent" yaml:"percent"`
	PolicingLevel int      `json:"policing_level" yaml:"policing_level"`
	DangerRating  int      `json:"danger_rating" yaml:"danger_rating"`
}

// StandardSplits is the federation/border/frontier thirds used by terran
// and player-owned space.
func StandardSplits() []Split {
	third := 100.0 / 3
	return []Split{
		{Name: "Federation Space", Type: TypeFederation, Percent: third, PolicingLevel: 9, DangerRating: 1},
		{Name: "Border Regions", Type: TypeBorder, Percent: third, PolicingLevel: 5, DangerRating: 4},
		{Name: "Frontier Territories", Type: TypeFrontier, Percent: third, PolicingLevel: 2, DangerRating: 8},
	}
}

// ExpanseSplit is the single zone covering a nexus-style scope.
func ExpanseSplit() []Split {
	return []Split{
		{Name: "The Expanse", Type: TypeExpanse, Percent: 100, PolicingLevel: 8, DangerRating: 2},
	}
}
