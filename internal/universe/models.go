package universe

import (
	"galaxy-server/internal/shared/errors"
)

type RegionKind string

const (
	KindPlayerOwned  RegionKind = "player_owned"
	KindTerranSpace  RegionKind = "terran_space"
	KindCentralNexus RegionKind = "central_nexus"
)

var budgets = map[RegionKind][2]int{
	KindPlayerOwned:  {300, 1000},
	KindTerranSpace:  {300, 5000},
	KindCentralNexus: {2000, 5000},
}

// Budget returns the inclusive sector budget of a region kind.
func Budget(kind RegionKind) (min, max int, ok bool) {
	b, ok := budgets[kind]
	return b[0], b[1], ok
}

func (k RegionKind) Valid() bool {
	_, ok := budgets[k]
	return ok
}

type Governance string

const (
	GovernanceAutocracy Governance = "autocracy"
	GovernanceDemocracy Governance = "democracy"
	GovernanceCouncil   Governance = "council"
)

func (g Governance) Valid() bool {
	switch g {
	case GovernanceAutocracy, GovernanceDemocracy, GovernanceCouncil:
		return true
	}
	return false
}

const (
	MinTaxRate     = 0.05
	MaxTaxRate     = 0.25
	MinTradeBonus  = 1.0
	MaxTradeBonus  = 2.0
	defaultTaxRate = 0.10
)

// TradeBonuses multiplies trade yields per commodity.
type TradeBonuses struct {
	Ore       float64 `json:"ore"`
	Organics  float64 `json:"organics"`
	Equipment float64 `json:"equipment"`
}

type RegionSettings struct {
	Governance   Governance   `json:"governance"`
	TaxRate      float64      `json:"tax_rate"`
	TradeBonuses TradeBonuses `json:"trade_bonuses"`
}

// PlatformSettings are the fixed settings of the central nexus.
func PlatformSettings() RegionSettings {
	return RegionSettings{
		Governance:   GovernanceCouncil,
		TaxRate:      0,
		TradeBonuses: TradeBonuses{Ore: 1, Organics: 1, Equipment: 1},
	}
}

// NewRegionSettings validates the settings of a region. Empty fields take
// defaults; the central nexus always gets platform settings.
func NewRegionSettings(kind RegionKind, governance Governance, taxRate float64, bonuses TradeBonuses) (RegionSettings, error) {
	if kind == KindCentralNexus {
		return PlatformSettings(), nil
	}

	if governance == "" {
		governance = GovernanceDemocracy
	}
	if !governance.Valid() {
		return RegionSettings{}, errors.InvalidRequestf(errors.Details{"governance": governance}, "unknown governance type %q", governance)
	}
	if taxRate == 0 {
		taxRate = defaultTaxRate
	}
	if taxRate < MinTaxRate || taxRate > MaxTaxRate {
		return RegionSettings{}, errors.InvalidRequestf(
			errors.Details{"tax_rate": taxRate, "min": MinTaxRate, "max": MaxTaxRate},
			"tax rate %.2f outside [%.2f, %.2f]", taxRate, MinTaxRate, MaxTaxRate,
		)
	}

	for _, b := range []struct {
		name  string
		value *float64
	}{{"ore", &bonuses.Ore}, {"organics", &bonuses.Organics}, {"equipment", &bonuses.Equipment}} {
		if *b.value == 0 {
			*b.value = MinTradeBonus
		}
		if *b.value < MinTradeBonus || *b.value > MaxTradeBonus {
			return RegionSettings{}, errors.InvalidRequestf(
				errors.Details{"trade_bonus": b.name, "value": *b.value},
				"%s trade bonus %.2f outside [%.1f, %.1f]", b.name, *b.value, MinTradeBonus, MaxTradeBonus,
			)
		}
	}

	return RegionSettings{Governance: governance, TaxRate: taxRate, TradeBonuses: bonuses}, nil
}

// Summary is the content report of a committed region.
type Summary struct {
	Sectors           int     `json:"sectors"`
	Ports             int     `json:"ports"`
	Planets           int     `json:"planets"`
	Connections       int     `json:"connections"`
	OneWayConnections int     `json:"one_way_connections"`
	Tunnels           int     `json:"tunnels"`
	Clusters          int     `json:"clusters"`
	Zones             int     `json:"zones"`
	Districts         int     `json:"districts"`
	Nebulae           int     `json:"nebulae"`
	ClaimedSectors    int     `json:"claimed_sectors"`
	PortPercent       float64 `json:"port_percent"`
	PlanetPercent     float64 `json:"planet_percent"`
}
