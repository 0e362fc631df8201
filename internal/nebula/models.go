package nebula

import (
	"fmt"
	"sort"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/sector"

	"github.com/google/uuid"
)

type NebulaType string

const (
	TypeCrimson  NebulaType = "crimson"
	TypeAzure    NebulaType = "azure"
	TypeEmerald  NebulaType = "emerald"
	TypeViolet   NebulaType = "violet"
	TypeAmber    NebulaType = "amber"
	TypeObsidian NebulaType = "obsidian"
)

type profile struct {
	Name       string
	QuantumMin float64
	QuantumMax float64
	Affinity   sector.ResourceWeights
}

var profiles = map[NebulaType]profile{
	TypeCrimson:  {"Crimson Veil", 20, 45, attribute.Affinity(0.5, sector.ResourceFuel, sector.ResourceOre)},
	TypeAzure:    {"Azure Drift", 35, 60, attribute.Affinity(0.5, sector.ResourceOrganics, sector.ResourceFuel)},
	TypeEmerald:  {"Emerald Shroud", 10, 30, attribute.Affinity(0.6, sector.ResourceOrganics, sector.ResourceLuxuryGoods)},
	TypeViolet:   {"Violet Storm", 50, 80, attribute.Affinity(0.8, sector.ResourceExoticMatter, sector.ResourceEquipment)},
	TypeAmber:    {"Amber Haze", 25, 50, attribute.Affinity(0.5, sector.ResourceEquipment, sector.ResourceOre)},
	TypeObsidian: {"Obsidian Deep", 70, 100, attribute.Affinity(1.0, sector.ResourceExoticMatter)},
}

// Types lists every nebula variant in a fixed order.
func Types() []NebulaType {
	return []NebulaType{TypeCrimson, TypeAzure, TypeEmerald, TypeViolet, TypeAmber, TypeObsidian}
}

func (t NebulaType) Valid() bool {
	_, ok := profiles[t]
	return ok
}

func (t NebulaType) Affinity() sector.ResourceWeights {
	return profiles[t].Affinity
}

// QuantumRange is the inclusive quantum field strength band of the variant.
func (t NebulaType) QuantumRange() (float64, float64) {
	p := profiles[t]
	return p.QuantumMin, p.QuantumMax
}

const (
	CoreDensity = 100
)

// Policy holds the sampling parameters. Selection and coverage are drawn
// uniformly by default.
type Policy struct {
	SelectionProbability float64 `json:"selection_probability" yaml:"selection_probability"`
	MinCoverage          float64 `json:"min_coverage" yaml:"min_coverage"`
	MaxCoverage          float64 `json:"max_coverage" yaml:"max_coverage"`
	CoreFraction         float64 `json:"core_fraction" yaml:"core_fraction"`
	MinEdgeDensity       int     `json:"min_edge_density" yaml:"min_edge_density"`
	MaxEdgeDensity       int     `json:"max_edge_density" yaml:"max_edge_density"`
	MaxCenterRetries     int     `json:"max_center_retries" yaml:"max_center_retries"`
	MaxShrinkSteps       int     `json:"max_shrink_steps" yaml:"max_shrink_steps"`
	ShrinkFactor         float64 `json:"shrink_factor" yaml:"shrink_factor"`
}

func DefaultPolicy() Policy {
	return Policy{
		SelectionProbability: 0.20,
		MinCoverage:          30,
		MaxCoverage:          70,
		CoreFraction:         0.5,
		MinEdgeDensity:       30,
		MaxEdgeDensity:       70,
		MaxCenterRetries:     8,
		MaxShrinkSteps:       4,
		ShrinkFactor:         0.5,
	}
}

func (p Policy) Validate() error {
	if p.SelectionProbability < 0 || p.SelectionProbability > 1 {
		return fmt.Errorf("selection probability %.2f outside [0,1]", p.SelectionProbability)
	}
	if p.MinCoverage <= 0 || p.MaxCoverage > 100 || p.MinCoverage > p.MaxCoverage {
		return fmt.Errorf("coverage range [%.0f,%.0f] invalid", p.MinCoverage, p.MaxCoverage)
	}
	if p.CoreFraction <= 0 || p.CoreFraction > 1 {
		return fmt.Errorf("core fraction %.2f outside (0,1]", p.CoreFraction)
	}
	if p.MinEdgeDensity < 1 || p.MaxEdgeDensity >= CoreDensity || p.MinEdgeDensity > p.MaxEdgeDensity {
		return fmt.Errorf("edge density range [%d,%d] invalid", p.MinEdgeDensity, p.MaxEdgeDensity)
	}
	if p.MaxCenterRetries < 0 || p.MaxShrinkSteps < 0 {
		return fmt.Errorf("retry and shrink limits must not be negative")
	}
	if p.ShrinkFactor <= 0 || p.ShrinkFactor >= 1 {
		return fmt.Errorf("shrink factor %.2f outside (0,1)", p.ShrinkFactor)
	}
	return nil
}

type Field struct {
	ID                   uuid.UUID          `json:"id"`
	ClusterID            uuid.UUID          `json:"cluster_id"`
	Name                 string             `json:"name"`
	Type                 NebulaType         `json:"type"`
	QuantumFieldStrength float64            `json:"quantum_field_strength"`
	CoveragePercent      float64            `json:"coverage_percent"`
	CenterSector         int                `json:"center_sector"`
	Center               sector.Coordinates `json:"center"`
	Radius               float64            `json:"radius"`
	CoreRadius           float64            `json:"core_radius"`
	CoreSectors          []int              `json:"core_sectors"`
	EdgeSectors          []int              `json:"edge_sectors"`
	EdgeDensity          map[int]int        `json:"edge_density"`
}

// DensityOf returns 100 for core sectors, the edge density for edge
// sectors and 0 for everything else.
func (f *Field) DensityOf(id int) int {
	if f == nil {
		return 0
	}
	if f.InCore(id) {
		return CoreDensity
	}
	return f.EdgeDensity[id]
}

func (f *Field) InCore(id int) bool {
	if f == nil {
		return false
	}
	i := sort.SearchInts(f.CoreSectors, id)
	return i < len(f.CoreSectors) && f.CoreSectors[i] == id
}

type Member struct {
	ID          int
	Coordinates sector.Coordinates
}

type Input struct {
	ClusterID   uuid.UUID
	Members     []Member
	EntryPoints []int
}
