package district

import (
	"strings"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

type Key string

const (
	KeyCommerce          Key = "commerce"
	KeyDiplomatic        Key = "diplomatic"
	KeyTransit           Key = "transit"
	KeyExplorerGuild     Key = "explorer_guild"
	KeyRefugeeAssistance Key = "refugee_assistance"
	KeyNeutralSpace      Key = "neutral_space"
)

type FeatureKind string

const (
	FeatureTradingPosts   FeatureKind = "trading_posts"
	FeatureEmbassies      FeatureKind = "embassies"
	FeatureWarpGates      FeatureKind = "warp_gates"
	FeatureSurveyStations FeatureKind = "survey_stations"
	FeatureReliefStations FeatureKind = "relief_stations"
	FeatureNeutralGround  FeatureKind = "neutral_ground"
	FeatureExpressLanes   FeatureKind = "express_lanes"
)

func (f FeatureKind) Valid() bool {
	switch f {
	case FeatureTradingPosts, FeatureEmbassies, FeatureWarpGates, FeatureSurveyStations,
		FeatureReliefStations, FeatureNeutralGround, FeatureExpressLanes:
		return true
	}
	return false
}

type TrafficLevel string

const (
	TrafficLow     TrafficLevel = "low"
	TrafficMedium  TrafficLevel = "medium"
	TrafficHigh    TrafficLevel = "high"
	TrafficExtreme TrafficLevel = "extreme"
)

// SecurityPosture becomes the policing and danger of the district's zone.
type SecurityPosture struct {
	PolicingLevel int `json:"policing_level" yaml:"policing_level"`
	DangerRating  int `json:"danger_rating" yaml:"danger_rating"`
}

type Profile struct {
	Key              Key                  `json:"key" yaml:"key"`
	Name             string               `json:"name" yaml:"name"`
	Percent          int                  `json:"percent" yaml:"percent"`
	PortRate         float64              `json:"port_rate" yaml:"port_rate"`
	PlanetRate       float64              `json:"planet_rate" yaml:"planet_rate"`
	Security         SecurityPosture      `json:"security" yaml:"security"`
	Features         []FeatureKind        `json:"features" yaml:"features"`
	Distribution     cluster.Distribution `json:"distribution" yaml:"distribution"`
	DevelopmentLevel int                  `json:"development_level" yaml:"development_level"`
	TrafficLevel     TrafficLevel         `json:"traffic_level" yaml:"traffic_level"`
}

// Bias expresses the profile's rates relative to the baseline density.
func (p Profile) Bias(d attribute.Density) attribute.Bias {
	return attribute.Bias{Port: p.PortRate / d.PortRate, Planet: p.PlanetRate / d.PlanetRate}
}

// ZoneSplit is the single zone a district carries.
func (p Profile) ZoneSplit() []zone.Split {
	return []zone.Split{{
		Name:          p.Name + " Expanse",
		Type:          zone.TypeExpanse,
		Percent:       100,
		PolicingLevel: p.Security.PolicingLevel,
		DangerRating:  p.Security.DangerRating,
	}}
}

func (p Profile) HasFeature(f FeatureKind) bool {
	for _, have := range p.Features {
		if have == f {
			return true
		}
	}
	return false
}

func (p Profile) Validate(c *cluster.Catalog) error {
	if p.Key == "" || p.Name == "" {
		return errors.Validation("district profile needs a key and a name")
	}
	if p.Percent <= 0 {
		return errors.Validationf("district %s must have a positive share", p.Key)
	}
	if p.PortRate <= 0 || p.PortRate > 1 || p.PlanetRate <= 0 || p.PlanetRate > 1 {
		return errors.Validationf("district %s rates must be within (0,1]", p.Key)
	}
	if p.Security.PolicingLevel < zone.MinLevel || p.Security.PolicingLevel > zone.MaxLevel ||
		p.Security.DangerRating < zone.MinLevel || p.Security.DangerRating > zone.MaxLevel {
		return errors.Validationf("district %s security posture outside [0,10]", p.Key)
	}
	for _, f := range p.Features {
		if !f.Valid() {
			return errors.Validationf("district %s has unknown feature %q", p.Key, f)
		}
	}
	return p.Distribution.Validate(c)
}

// DefaultProfiles is the fixed district table, in allocation order.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Key: KeyCommerce, Name: "Commerce Central", Percent: 30,
			PortRate: 0.15, PlanetRate: 0.03,
			Security: SecurityPosture{PolicingLevel: 8, DangerRating: 2},
			Features: []FeatureKind{FeatureTradingPosts},
			Distribution: cluster.Distribution{
				{Type: cluster.TypeTradeHub, Weight: 40}, {Type: cluster.TypePopulationCenter, Weight: 25},
				{Type: cluster.TypeStandard, Weight: 25}, {Type: cluster.TypeResourceRich, Weight: 10},
			},
			DevelopmentLevel: 9, TrafficLevel: TrafficExtreme,
		},
		{
			Key: KeyDiplomatic, Name: "Diplomatic Quarter", Percent: 15,
			PortRate: 0.07, PlanetRate: 0.05,
			Security: SecurityPosture{PolicingLevel: 10, DangerRating: 0},
			Features: []FeatureKind{FeatureEmbassies, FeatureNeutralGround},
			Distribution: cluster.Distribution{
				{Type: cluster.TypePopulationCenter, Weight: 40}, {Type: cluster.TypeStandard, Weight: 35},
				{Type: cluster.TypeMilitaryZone, Weight: 15}, {Type: cluster.TypeSpecialInterest, Weight: 10},
			},
			DevelopmentLevel: 10, TrafficLevel: TrafficHigh,
		},
		{
			Key: KeyTransit, Name: "Transit Hub", Percent: 20,
			PortRate: 0.12, PlanetRate: 0.02,
			Security: SecurityPosture{PolicingLevel: 8, DangerRating: 2},
			Features: []FeatureKind{FeatureWarpGates, FeatureExpressLanes},
			Distribution: cluster.Distribution{
				{Type: cluster.TypeStandard, Weight: 45}, {Type: cluster.TypeTradeHub, Weight: 35},
				{Type: cluster.TypeMilitaryZone, Weight: 20},
			},
			DevelopmentLevel: 9, TrafficLevel: TrafficExtreme,
		},
		{
			Key: KeyExplorerGuild, Name: "Explorer Guild", Percent: 10,
			PortRate: 0.06, PlanetRate: 0.04,
			Security: SecurityPosture{PolicingLevel: 5, DangerRating: 5},
			Features: []FeatureKind{FeatureSurveyStations},
			Distribution: cluster.Distribution{
				{Type: cluster.TypeSpecialInterest, Weight: 30}, {Type: cluster.TypeFrontierOutpost, Weight: 30},
				{Type: cluster.TypeResourceRich, Weight: 25}, {Type: cluster.TypeStandard, Weight: 15},
			},
			DevelopmentLevel: 6, TrafficLevel: TrafficLow,
		},
		{
			Key: KeyRefugeeAssistance, Name: "Refugee Assistance", Percent: 5,
			PortRate: 0.08, PlanetRate: 0.05,
			Security: SecurityPosture{PolicingLevel: 9, DangerRating: 1},
			Features: []FeatureKind{FeatureReliefStations},
			Distribution: cluster.Distribution{
				{Type: cluster.TypePopulationCenter, Weight: 50}, {Type: cluster.TypeStandard, Weight: 50},
			},
			DevelopmentLevel: 7, TrafficLevel: TrafficMedium,
		},
		{
			Key: KeyNeutralSpace, Name: "Neutral Space", Percent: 20,
			PortRate: 0.10, PlanetRate: 0.03,
			Security: SecurityPosture{PolicingLevel: 6, DangerRating: 3},
			Features: []FeatureKind{FeatureNeutralGround},
			Distribution: cluster.DistributionMixed,
			DevelopmentLevel: 8, TrafficLevel: TrafficHigh,
		},
	}
}

type District struct {
	ID       uuid.UUID    `json:"id"`
	RegionID uuid.UUID    `json:"region_id"`
	Key      Key          `json:"key"`
	Name     string       `json:"name"`
	Range    sector.Range `json:"range"`
	Profile  Profile      `json:"profile"`
}

// Plan is the zone and cluster layout of one district before sectors exist.
type Plan struct {
	District District
	Zones    []zone.Zone
	Clusters []*cluster.Cluster
}

func (k Key) String() string {
	return string(k)
}

func keyNames(profiles []Profile) string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = string(p.Key)
	}
	return strings.Join(names, ", ")
}
