package attribute

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"galaxy-server/internal/planet"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/random"

	"github.com/google/uuid"
)

type Result struct {
	Ports   []Port
	Planets []planet.Planet
}

type Distributor struct {
	density Density
	planets *planet.Generator
	logger  *slog.Logger
}

func NewDistributor(density Density, planets *planet.Generator, logger *slog.Logger) *Distributor {
	return &Distributor{
		density: density,
		planets: planets,
		logger:  logger.With("component", "attribute_distributor"),
	}
}

func (d *Distributor) Density() Density {
	return d.density
}

// PortProbability is the per-sector Bernoulli rate after bias, clamped to [0,1].
func (d *Distributor) PortProbability(b Bias) float64 {
	return clamp01(d.density.PortRate * b.normalized().Port)
}

func (d *Distributor) PlanetProbability(b Bias) float64 {
	return clamp01(d.density.PlanetRate * b.normalized().Planet)
}

// Distribute rolls ports, planets, resources and nav hazard for each sector
// independently. There is no rebalancing pass, so realised totals fluctuate
// around the configured rates. Ids are derived from the namespace so a fixed
// seed reproduces them.
func (d *Distributor) Distribute(rng *rand.Rand, namespace uuid.UUID, sectors []SectorContext) Result {
	var res Result

	for _, sc := range sectors {
		s := sc.Sector
		bias := sc.Bias.normalized()

		s.NavHazard = navHazard(rng, s.Type, sc.NebulaDensity)
		s.Resources = d.resources(rng, sc, bias)

		if rng.Float64() < d.PortProbability(bias) {
			class := portClass(rng, sc.DangerRating)
			id := uuid.NewSHA1(namespace, []byte(fmt.Sprintf("port/%d", s.ID)))
			res.Ports = append(res.Ports, Port{
				ID:       id,
				SectorID: s.ID,
				Class:    class,
				Name:     fmt.Sprintf("%s Station %d", portNames[rng.Intn(len(portNames))], s.ID),
			})
			s.PortID = &id
		}

		if rng.Float64() < d.PlanetProbability(bias) {
			id := uuid.NewSHA1(namespace, []byte(fmt.Sprintf("planet/%d", s.ID)))
			res.Planets = append(res.Planets, d.planets.Generate(rng, id, s.ID, sc.DangerRating))
			s.PlanetID = &id
		}
	}

	d.logger.Debug("Attributes distributed",
		"operation", "distribute",
		"sectors", len(sectors),
		"ports", len(res.Ports),
		"planets", len(res.Planets),
	)
	return res
}

// Richness rises with danger: safe space is poor, the frontier is rich.
func Richness(danger int) float64 {
	return 0.8 + 0.1*float64(danger)
}

// resources picks 2-4 kinds weighted by affinity and rolls 100-1000 units of
// each, scaled by richness, bias and nebula density.
func (d *Distributor) resources(rng *rand.Rand, sc SectorContext, bias Bias) sector.ResourceYield {
	var y sector.ResourceYield

	type candidate struct {
		kind sector.ResourceKind
		key  float64
	}
	// Weighted sampling without replacement (exponential keys).
	candidates := make([]candidate, 0, sector.NumResourceKinds)
	for k := sector.ResourceKind(0); k < sector.NumResourceKinds; k++ {
		w := 1 + sc.Affinity[k]
		if k == sector.ResourceExoticMatter && sc.NebulaDensity == 0 && sc.DangerRating < 7 {
			w *= 0.25
		}
		candidates = append(candidates, candidate{kind: k, key: -math.Log(1-rng.Float64()) / w})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].key == candidates[j].key {
			return candidates[i].kind < candidates[j].kind
		}
		return candidates[i].key < candidates[j].key
	})

	count := random.Between(rng, 2, 4)
	richness := Richness(sc.DangerRating) * bias.Resource * (1 + float64(sc.NebulaDensity)/200)
	for _, c := range candidates[:count] {
		base := random.Between(rng, 100, 1000)
		y[c.kind] = int(math.Round(float64(base) * richness * (1 + sc.Affinity[c.kind])))
	}
	return y
}

func navHazard(rng *rand.Rand, t sector.SectorType, nebulaDensity int) int {
	lo, hi := sector.HazardRange(t)
	h := random.Between(rng, lo, hi) + nebulaDensity/25
	if h > 10 {
		h = 10
	}
	return h
}

// port class weights per danger band, index is class number 1-11.
var portClassWeights = map[planet.Band][]int{
	planet.BandSafe:      {0, 5, 5, 15, 20, 10, 15, 15, 0, 0, 10, 5},
	planet.BandMixed:     {0, 15, 15, 20, 10, 15, 15, 10, 0, 0, 0, 0},
	planet.BandDangerous: {0, 20, 20, 15, 0, 20, 15, 0, 5, 5, 0, 0},
}

func portClass(rng *rand.Rand, danger int) int {
	idx := random.Pick(rng, portClassWeights[planet.BandFor(danger)])
	if idx < 1 {
		return 1
	}
	return idx
}

var portNames = []string{
	"Altair", "Vega", "Sirius", "Arcturus", "Capella", "Rigel", "Procyon",
	"Deneb", "Spica", "Antares", "Pollux", "Regulus", "Castor", "Mira",
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
