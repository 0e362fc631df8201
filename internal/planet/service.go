package planet

import (
	"fmt"
	"math/rand"

	"galaxy-server/internal/shared/random"

	"github.com/google/uuid"
)

var nameSuffixes = []string{
	"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X",
	"Prime", "Alpha", "Beta", "Gamma", "Major", "Minor", "Core", "Outer",
}

// Generator rolls planet records. It holds no state and is safe for
// concurrent use as long as each caller passes its own rng.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate creates the planet anchored to a sector. The danger rating picks
// the type table.
func (g *Generator) Generate(rng *rand.Rand, id uuid.UUID, sectorID, danger int) Planet {
	planetType := g.chooseType(rng, BandFor(danger))
	hab := habitability[planetType]
	h := random.Between(rng, hab[0], hab[1])

	return Planet{
		ID:            id,
		SectorID:      sectorID,
		Name:          fmt.Sprintf("Sector %d %s", sectorID, nameSuffixes[rng.Intn(len(nameSuffixes))]),
		Type:          planetType,
		Habitability:  h,
		MaxPopulation: maxPopulation(rng, planetType, h),
	}
}

func (g *Generator) chooseType(rng *rand.Rand, band Band) PlanetType {
	table := typeWeights[band]
	weights := make([]int, len(table))
	for i, wt := range table {
		weights[i] = wt.Weight
	}

	idx := random.Pick(rng, weights)
	if idx < 0 {
		return PlanetTypeBarren
	}
	return table[idx].Type
}

// maxPopulation scales the type capacity by habitability with a +/-20% spread.
func maxPopulation(rng *rand.Rand, planetType PlanetType, habitability int) int64 {
	capacity := float64(baseCapacity[planetType]) * float64(habitability) / 100
	variation := capacity * 0.2
	return int64(capacity + random.Uniform(rng, -variation, variation))
}
