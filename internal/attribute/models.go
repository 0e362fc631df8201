package attribute

import (
	"fmt"

	"galaxy-server/internal/sector"

	"github.com/google/uuid"
)

// Density holds the baseline per-sector presence rates before any bias.
type Density struct {
	PortRate   float64 `json:"port_rate" yaml:"port_rate"`
	PlanetRate float64 `json:"planet_rate" yaml:"planet_rate"`
}

const (
	MinPortRate   = 0.05
	MaxPortRate   = 0.15
	MinPlanetRate = 0.02
	MaxPlanetRate = 0.05
)

func DefaultDensity() Density {
	return Density{PortRate: 0.10, PlanetRate: 0.03}
}

func (d Density) Validate() error {
	if d.PortRate < MinPortRate || d.PortRate > MaxPortRate {
		return fmt.Errorf("port rate %.3f outside [%.2f, %.2f]", d.PortRate, MinPortRate, MaxPortRate)
	}
	if d.PlanetRate < MinPlanetRate || d.PlanetRate > MaxPlanetRate {
		return fmt.Errorf("planet rate %.3f outside [%.2f, %.2f]", d.PlanetRate, MinPlanetRate, MaxPlanetRate)
	}
	return nil
}

// Bias multiplies the baseline rates and resource amounts. A zero field is
// treated as 1.
type Bias struct {
	Port     float64 `json:"port" yaml:"port"`
	Planet   float64 `json:"planet" yaml:"planet"`
	Resource float64 `json:"resource" yaml:"resource"`
}

func (b Bias) normalized() Bias {
	if b.Port == 0 {
		b.Port = 1
	}
	if b.Planet == 0 {
		b.Planet = 1
	}
	if b.Resource == 0 {
		b.Resource = 1
	}
	return b
}

// Combine multiplies two biases field by field.
func (b Bias) Combine(o Bias) Bias {
	b, o = b.normalized(), o.normalized()
	return Bias{Port: b.Port * o.Port, Planet: b.Planet * o.Planet, Resource: b.Resource * o.Resource}
}

type Port struct {
	ID       uuid.UUID `json:"id"`
	SectorID int       `json:"sector_id"`
	Class    int       `json:"class"`
	Name     string    `json:"name"`
}

// SectorContext is everything the distributor needs to roll one sector.
// The sector is mutated in place.
type SectorContext struct {
	Sector        *sector.Sector
	Bias          Bias
	DangerRating  int
	Affinity      sector.ResourceWeights
	NebulaDensity int
}

// Affinity builds resource weights favouring the given kinds.
func Affinity(weight float64, kinds ...sector.ResourceKind) sector.ResourceWeights {
	var w sector.ResourceWeights
	for _, k := range kinds {
		w[k] = weight
	}
	return w
}
