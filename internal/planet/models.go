package planet

import (
	"github.com/google/uuid"
)

type PlanetType string

const (
	PlanetTypeTerran      PlanetType = "terran"
	PlanetTypeDesert      PlanetType = "desert"
	PlanetTypeOceanic     PlanetType = "oceanic"
	PlanetTypeIce         PlanetType = "ice"
	PlanetTypeVolcanic    PlanetType = "volcanic"
	PlanetTypeGasGiant    PlanetType = "gas_giant"
	PlanetTypeBarren      PlanetType = "barren"
	PlanetTypeJungle      PlanetType = "jungle"
	PlanetTypeArctic      PlanetType = "arctic"
	PlanetTypeTropical    PlanetType = "tropical"
	PlanetTypeMountainous PlanetType = "mountainous"
	PlanetTypeArtificial  PlanetType = "artificial"
)

type Planet struct {
	ID            uuid.UUID  `json:"id"`
	SectorID      int        `json:"sector_id"`
	Name          string     `json:"name"`
	Type          PlanetType `json:"type"`
	Habitability  int        `json:"habitability"`
	MaxPopulation int64      `json:"max_population"`
	OwnerID       *int       `json:"owner_id,omitempty"`
}

// Band groups danger ratings into the three weight tables.
type Band int

const (
	BandSafe Band = iota
	BandMixed
	BandDangerous
)

func BandFor(danger int) Band {
	switch {
	case danger <= 3:
		return BandSafe
	case danger <= 6:
		return BandMixed
	default:
		return BandDangerous
	}
}

type weightedType struct {
	Type   PlanetType
	Weight int
}

var typeWeights = map[Band][]weightedType{
	BandSafe: {
		{PlanetTypeTerran, 30}, {PlanetTypeOceanic, 15}, {PlanetTypeTropical, 15},
		{PlanetTypeMountainous, 10}, {PlanetTypeJungle, 10}, {PlanetTypeDesert, 5},
		{PlanetTypeIce, 5}, {PlanetTypeArtificial, 10},
	},
	BandMixed: {
		{PlanetTypeTerran, 15}, {PlanetTypeOceanic, 10}, {PlanetTypeDesert, 15},
		{PlanetTypeMountainous, 15}, {PlanetTypeArctic, 10}, {PlanetTypeBarren, 15},
		{PlanetTypeVolcanic, 10}, {PlanetTypeGasGiant, 10},
	},
	BandDangerous: {
		{PlanetTypeTerran, 5}, {PlanetTypeDesert, 10}, {PlanetTypeIce, 15},
		{PlanetTypeVolcanic, 20}, {PlanetTypeBarren, 25}, {PlanetTypeGasGiant, 15},
		{PlanetTypeArctic, 10},
	},
}

// habitability bands are inclusive [min, max].
var habitability = map[PlanetType][2]int{
	PlanetTypeTerran:      {80, 100},
	PlanetTypeDesert:      {30, 60},
	PlanetTypeOceanic:     {60, 85},
	PlanetTypeIce:         {20, 40},
	PlanetTypeVolcanic:    {10, 30},
	PlanetTypeGasGiant:    {0, 0},
	PlanetTypeBarren:      {10, 30},
	PlanetTypeJungle:      {50, 80},
	PlanetTypeArctic:      {20, 50},
	PlanetTypeTropical:    {60, 90},
	PlanetTypeMountainous: {40, 70},
	PlanetTypeArtificial:  {70, 90},
}

var baseCapacity = map[PlanetType]int64{
	PlanetTypeTerran:      1_000_000,
	PlanetTypeDesert:      500_000,
	PlanetTypeOceanic:     800_000,
	PlanetTypeIce:         300_000,
	PlanetTypeVolcanic:    200_000,
	PlanetTypeGasGiant:    0,
	PlanetTypeBarren:      100_000,
	PlanetTypeJungle:      700_000,
	PlanetTypeArctic:      400_000,
	PlanetTypeTropical:    900_000,
	PlanetTypeMountainous: 600_000,
	PlanetTypeArtificial:  500_000,
}
