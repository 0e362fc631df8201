package planet

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func TestGenerate_RespectsHabitabilityBand(t *testing.T) {
	g := NewGenerator()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		p := g.Generate(rng, uuid.New(), i+1, i%11)
		hab, ok := habitability[p.Type]
		if !ok {
			t.Fatalf("unknown planet type %q", p.Type)
		}
		if p.Habitability < hab[0] || p.Habitability > hab[1] {
			t.Fatalf("planet %d: habitability %d outside %v for %s", i, p.Habitability, hab, p.Type)
		}
		if p.Type == PlanetTypeGasGiant && p.MaxPopulation != 0 {
			t.Fatalf("gas giant should be uninhabitable, got max population %d", p.MaxPopulation)
		}
		if p.SectorID != i+1 {
			t.Fatalf("sector id: got %d want %d", p.SectorID, i+1)
		}
	}
}

func TestGenerate_DangerousBandHasNoTropicalWorlds(t *testing.T) {
	g := NewGenerator()
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 1000; i++ {
		p := g.Generate(rng, uuid.New(), 1, 9)
		if p.Type == PlanetTypeTropical || p.Type == PlanetTypeArtificial {
			t.Fatalf("dangerous band produced %s", p.Type)
		}
	}
}

func TestBandFor(t *testing.T) {
	cases := map[int]Band{0: BandSafe, 3: BandSafe, 4: BandMixed, 6: BandMixed, 7: BandDangerous, 10: BandDangerous}
	for danger, want := range cases {
		if got := BandFor(danger); got != want {
			t.Fatalf("BandFor(%d) = %v, want %v", danger, got, want)
		}
	}
}
