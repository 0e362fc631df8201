package nebula

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"galaxy-server/internal/shared/random"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// noiseFrequency scales sector coordinates into the noise domain.
const noiseFrequency = 0.15

type Generator struct {
	policy Policy
	logger *slog.Logger

	// pickCenter chooses a candidate center index into members.
	pickCenter func(rng *rand.Rand, attempt int, members []Member) int
}

func NewGenerator(policy Policy, logger *slog.Logger) *Generator {
	return &Generator{
		policy:     policy,
		logger:     logger.With("component", "nebula_generator"),
		pickCenter: uniformCenter,
	}
}

func (g *Generator) Policy() Policy {
	return g.policy
}

func uniformCenter(rng *rand.Rand, _ int, members []Member) int {
	return rng.Intn(len(members))
}

// Generate decides whether the cluster carries a nebula and, if so, lays
// out its density field. A nil field means the cluster is nebula-free.
// Entry points never end up in the core: the center is re-sampled, then the
// core is shrunk, and if neither helps the cluster gets no nebula.
func (g *Generator) Generate(rng *rand.Rand, in Input) *Field {
	logger := g.logger.With("operation", "generate", "cluster_id", in.ClusterID)

	if len(in.Members) == 0 || rng.Float64() >= g.policy.SelectionProbability {
		return nil
	}

	types := Types()
	nebulaType := types[rng.Intn(len(types))]
	qMin, qMax := nebulaType.QuantumRange()
	quantum := math.Round(random.Uniform(rng, qMin, qMax)*10) / 10
	coverage := random.Uniform(rng, g.policy.MinCoverage, g.policy.MaxCoverage)
	noiseSeed := rng.Int63()

	covered := int(math.Round(coverage / 100 * float64(len(in.Members))))
	if covered < 1 {
		covered = 1
	}

	entries := make(map[int]bool, len(in.EntryPoints))
	for _, id := range in.EntryPoints {
		entries[id] = true
	}

	var (
		ring       []ranked
		center     Member
		coreRadius float64
		placed     bool
	)
	for attempt := 0; attempt <= g.policy.MaxCenterRetries; attempt++ {
		center = in.Members[g.pickCenter(rng, attempt, in.Members)]
		ring = rankByDistance(center, in.Members)[:covered]
		coreRadius = ring[covered-1].distance * g.policy.CoreFraction
		if !coreHasEntry(ring, coreRadius, entries) {
			placed = true
			break
		}
		logger.Debug("Nebula core captured an entry point, resampling center",
			"attempt", attempt, "center_sector", center.ID)
	}

	for step := 0; !placed && step < g.policy.MaxShrinkSteps; step++ {
		coreRadius *= g.policy.ShrinkFactor
		placed = !coreHasEntry(ring, coreRadius, entries)
	}

	if !placed {
		logger.Debug("Nebula placement exhausted, cluster left nebula-free")
		return nil
	}

	radius := ring[covered-1].distance
	field := &Field{
		ID:                   uuid.NewSHA1(in.ClusterID, []byte("nebula")),
		ClusterID:            in.ClusterID,
		Name:                 profiles[nebulaType].Name,
		Type:                 nebulaType,
		QuantumFieldStrength: quantum,
		CoveragePercent:      math.Round(float64(covered)/float64(len(in.Members))*1000) / 10,
		CenterSector:         center.ID,
		Center:               center.Coordinates,
		Radius:               radius,
		CoreRadius:           coreRadius,
		EdgeDensity:          make(map[int]int),
	}

	noise := opensimplex.NewNormalized(noiseSeed)
	for _, r := range ring {
		if r.distance <= coreRadius {
			field.CoreSectors = append(field.CoreSectors, r.member.ID)
			continue
		}
		field.EdgeSectors = append(field.EdgeSectors, r.member.ID)
		field.EdgeDensity[r.member.ID] = g.edgeDensity(noise, r, coreRadius, radius)
	}
	sort.Ints(field.CoreSectors)
	sort.Ints(field.EdgeSectors)

	logger.Debug("Nebula generated",
		"type", nebulaType,
		"core", len(field.CoreSectors),
		"edge", len(field.EdgeSectors),
		"coverage", field.CoveragePercent,
	)
	return field
}

// edgeDensity fades from the max edge density at the core boundary to the
// min at the rim, perturbed by simplex noise and clamped to the edge band.
func (g *Generator) edgeDensity(noise opensimplex.Noise, r ranked, coreRadius, radius float64) int {
	lo, hi := float64(g.policy.MinEdgeDensity), float64(g.policy.MaxEdgeDensity)

	t := 1.0
	if span := radius - coreRadius; span > 0 {
		t = (r.distance - coreRadius) / span
	}
	base := hi - (hi-lo)*t

	c := r.member.Coordinates
	n := noise.Eval3(c.X*noiseFrequency, c.Y*noiseFrequency, c.Z*noiseFrequency)
	d := base + (n-0.5)*(hi-lo)*0.5

	return int(math.Round(math.Max(lo, math.Min(hi, d))))
}

type ranked struct {
	member   Member
	distance float64
}

func rankByDistance(center Member, members []Member) []ranked {
	out := make([]ranked, len(members))
	for i, m := range members {
		out[i] = ranked{member: m, distance: center.Coordinates.DistanceTo(m.Coordinates)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].distance == out[j].distance {
			return out[i].member.ID < out[j].member.ID
		}
		return out[i].distance < out[j].distance
	})
	return out
}

func coreHasEntry(ring []ranked, coreRadius float64, entries map[int]bool) bool {
	for _, r := range ring {
		if r.distance > coreRadius {
			break
		}
		if entries[r.member.ID] {
			return true
		}
	}
	return false
}
