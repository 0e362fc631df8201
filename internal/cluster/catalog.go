package cluster

import (
	"fmt"
	"sort"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
)

type WeightedSectorType struct {
	Type   sector.SectorType `json:"type" yaml:"type"`
	Weight int               `json:"weight" yaml:"weight"`
}

// TypeProfile is the per-type generation rule set.
type TypeProfile struct {
	Type          ClusterType          `json:"type" yaml:"type"`
	Label         string               `json:"label" yaml:"label"`
	MinSize       int                  `json:"min_size" yaml:"min_size"`
	MaxSize       int                  `json:"max_size" yaml:"max_size"`
	Bias          attribute.Bias       `json:"bias" yaml:"bias"`
	SpecialShare  float64              `json:"special_share" yaml:"special_share"`
	SectorTypes   []WeightedSectorType `json:"sector_types" yaml:"sector_types"`
	WarpStability float64              `json:"warp_stability" yaml:"warp_stability"`
}

func (p TypeProfile) Validate() error {
	if p.MinSize < 1 || p.MaxSize < p.MinSize {
		return fmt.Errorf("%s: size range [%d,%d] invalid", p.Type, p.MinSize, p.MaxSize)
	}
	if p.SpecialShare < 0 || p.SpecialShare > 1 {
		return fmt.Errorf("%s: special share %.2f outside [0,1]", p.Type, p.SpecialShare)
	}
	for _, st := range p.SectorTypes {
		if !st.Type.Valid() {
			return fmt.Errorf("%s: unknown sector type %q", p.Type, st.Type)
		}
	}
	if p.WarpStability <= 0 || p.WarpStability > 1 {
		return fmt.Errorf("%s: warp stability %.2f outside (0,1]", p.Type, p.WarpStability)
	}
	return nil
}

func defaultProfiles() []TypeProfile {
	return []TypeProfile{
		{
			Type: TypeStandard, Label: "Expanse", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 1, Planet: 1, Resource: 1},
			SpecialShare: 0.15,
			SectorTypes: []WeightedSectorType{
				{sector.TypeAsteroidField, 30}, {sector.TypeStarCluster, 20}, {sector.TypeVoid, 20},
				{sector.TypeIndustrial, 10}, {sector.TypeAgricultural, 10}, {sector.TypeBlackHole, 5}, {sector.TypeWormhole, 5},
			},
			WarpStability: 0.9,
		},
		{
			Type: TypeResourceRich, Label: "Lode", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 0.9, Planet: 1.2, Resource: 1.5},
			SpecialShare: 0.2,
			SectorTypes: []WeightedSectorType{
				{sector.TypeAsteroidField, 50}, {sector.TypeIndustrial, 25}, {sector.TypeStarCluster, 15}, {sector.TypeVoid, 10},
			},
			WarpStability: 0.85,
		},
		{
			Type: TypePopulationCenter, Label: "Cradle", MinSize: 20, MaxSize: 25,
			Bias:         attribute.Bias{Port: 1.2, Planet: 1.6, Resource: 0.9},
			SpecialShare: 0.1,
			SectorTypes: []WeightedSectorType{
				{sector.TypeAgricultural, 50}, {sector.TypeIndustrial, 30}, {sector.TypeStarCluster, 20},
			},
			WarpStability: 0.95,
		},
		{
			Type: TypeTradeHub, Label: "Exchange", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 1.5, Planet: 1, Resource: 1},
			SpecialShare: 0.1,
			SectorTypes: []WeightedSectorType{
				{sector.TypeIndustrial, 50}, {sector.TypeAgricultural, 30}, {sector.TypeStarCluster, 20},
			},
			WarpStability: 0.95,
		},
		{
			Type: TypeMilitaryZone, Label: "Bastion", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 0.6, Planet: 0.8, Resource: 1},
			SpecialShare: 0.15,
			SectorTypes: []WeightedSectorType{
				{sector.TypeForbidden, 40}, {sector.TypeIndustrial, 40}, {sector.TypeVoid, 20},
			},
			WarpStability: 0.9,
		},
		{
			Type: TypeFrontierOutpost, Label: "Outpost", MinSize: 5, MaxSize: 10,
			Bias:         attribute.Bias{Port: 0.7, Planet: 0.8, Resource: 1.3},
			SpecialShare: 0.25,
			SectorTypes: []WeightedSectorType{
				{sector.TypeVoid, 35}, {sector.TypeAsteroidField, 30}, {sector.TypeBlackHole, 15}, {sector.TypeWormhole, 20},
			},
			WarpStability: 0.6,
		},
		{
			Type: TypeContested, Label: "Marches", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 0.8, Planet: 0.9, Resource: 1.2},
			SpecialShare: 0.2,
			SectorTypes: []WeightedSectorType{
				{sector.TypeAsteroidField, 40}, {sector.TypeVoid, 30}, {sector.TypeForbidden, 15}, {sector.TypeBlackHole, 15},
			},
			WarpStability: 0.7,
		},
		{
			Type: TypeSpecialInterest, Label: "Anomaly", MinSize: 10, MaxSize: 25,
			Bias:         attribute.Bias{Port: 1, Planet: 1, Resource: 1.2},
			SpecialShare: 0.35,
			SectorTypes: []WeightedSectorType{
				{sector.TypeWormhole, 30}, {sector.TypeBlackHole, 25}, {sector.TypeStarCluster, 25}, {sector.TypeForbidden, 20},
			},
			WarpStability: 0.75,
		},
	}
}

// Catalog is the immutable set of cluster type profiles used for a run.
type Catalog struct {
	profiles map[ClusterType]TypeProfile
	order    []ClusterType
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("default cluster catalog invalid: %v", err))
	}
	return c
}

func NewCatalog(profiles []TypeProfile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[ClusterType]TypeProfile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.profiles[p.Type]; dup {
			return nil, fmt.Errorf("duplicate cluster type %q", p.Type)
		}
		c.profiles[p.Type] = p
		c.order = append(c.order, p.Type)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("cluster catalog is empty")
	}
	return c, nil
}

// WithOverrides returns a copy with the given profiles replaced or added.
func (c *Catalog) WithOverrides(overrides []TypeProfile) (*Catalog, error) {
	merged := make([]TypeProfile, 0, len(c.order)+len(overrides))
	replaced := map[ClusterType]TypeProfile{}
	for _, o := range overrides {
		replaced[o.Type] = o
	}
	for _, t := range c.order {
		if o, ok := replaced[t]; ok {
			merged = append(merged, o)
			delete(replaced, t)
			continue
		}
		merged = append(merged, c.profiles[t])
	}
	var extra []TypeProfile
	for _, o := range replaced {
		extra = append(extra, o)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Type < extra[j].Type })
	return NewCatalog(append(merged, extra...))
}

func (c *Catalog) Profile(t ClusterType) (TypeProfile, bool) {
	p, ok := c.profiles[t]
	return p, ok
}

func (c *Catalog) Types() []ClusterType {
	return append([]ClusterType(nil), c.order...)
}

// MinSize is the smallest legal cluster size across the given types.
func (c *Catalog) MinSize(d Distribution) int {
	min := 0
	for _, w := range d {
		if w.Weight <= 0 {
			continue
		}
		if p, ok := c.profiles[w.Type]; ok && (min == 0 || p.MinSize < min) {
			min = p.MinSize
		}
	}
	return min
}

type Weighted struct {
	Type   ClusterType `json:"type" yaml:"type"`
	Weight int         `json:"weight" yaml:"weight"`
}

// Distribution is the weighted table cluster types are drawn from.
type Distribution []Weighted

func (d Distribution) Validate(c *Catalog) error {
	total := 0
	for _, w := range d {
		if _, ok := c.profiles[w.Type]; !ok {
			return errors.InvalidClusterType(string(w.Type))
		}
		if w.Weight < 0 {
			return errors.Validationf("cluster type %s has negative weight %d", w.Type, w.Weight)
		}
		total += w.Weight
	}
	if total == 0 {
		return errors.Validation("cluster distribution has no positive weights")
	}
	return nil
}

// Default distributions by the kind of space a scope covers.
var (
	DistributionFederation = Distribution{
		{TypeStandard, 30}, {TypePopulationCenter, 20}, {TypeTradeHub, 20},
		{TypeMilitaryZone, 15}, {TypeResourceRich, 10}, {TypeSpecialInterest, 5},
	}
	DistributionBorder = Distribution{
		{TypeStandard, 30}, {TypeResourceRich, 20}, {TypeTradeHub, 15}, {TypeContested, 15},
		{TypeMilitaryZone, 10}, {TypeFrontierOutpost, 5}, {TypeSpecialInterest, 5},
	}
	DistributionFrontier = Distribution{
		{TypeStandard, 20}, {TypeResourceRich, 25}, {TypeFrontierOutpost, 25},
		{TypeContested, 15}, {TypeSpecialInterest, 15},
	}
	DistributionMixed = Distribution{
		{TypeStandard, 30}, {TypeResourceRich, 15}, {TypePopulationCenter, 10}, {TypeTradeHub, 10},
		{TypeMilitaryZone, 10}, {TypeFrontierOutpost, 10}, {TypeContested, 10}, {TypeSpecialInterest, 5},
	}
)
