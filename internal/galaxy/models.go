package galaxy

import (
	"fmt"
	"regexp"
	"time"

	"galaxy-server/internal/universe"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

// State is a step of a generation run.
type State string

const (
	StateRequested  State = "requested"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Observer receives every state transition of a run, in order.
type Observer func(State)

type SettingsRequest struct {
	Governance   universe.Governance   `json:"governance"`
	TaxRate      float64               `json:"tax_rate"`
	TradeBonuses universe.TradeBonuses `json:"trade_bonuses"`
}

type Request struct {
	RegionKind            universe.RegionKind `json:"region_kind"`
	RegionName            string              `json:"region_name"`
	TotalSectors          int                 `json:"total_sectors"`
	ForceRegenerate       bool                `json:"force_regenerate"`
	PreservePlayerData    bool                `json:"preserve_player_data"`
	DistrictsToRegenerate []string            `json:"districts_to_regenerate,omitempty"`
	Seed                  int64               `json:"seed,omitempty"`
	ZoneSplits            []zone.Split        `json:"zone_splits,omitempty"`
	Settings              SettingsRequest     `json:"settings"`
}

var regionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// DefaultRegionName is used when a request leaves the name empty.
func DefaultRegionName(kind universe.RegionKind) string {
	switch kind {
	case universe.KindCentralNexus:
		return "central-nexus"
	case universe.KindTerranSpace:
		return "terran-space"
	}
	return "player-owned"
}

// RegionID is stable per region name so regenerations keep the same id.
func RegionID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("galaxy-server/region/"+name))
}

func runNamespace(regionID uuid.UUID, seed int64) uuid.UUID {
	return uuid.NewSHA1(regionID, []byte(fmt.Sprintf("run/%d", seed)))
}

// Result is the outcome of a run. It is returned for rolled back runs too.
type Result struct {
	State             State               `json:"state"`
	RegionID          uuid.UUID           `json:"region_id"`
	RegionName        string              `json:"region_name"`
	Kind              universe.RegionKind `json:"kind"`
	Version           int64               `json:"version,omitempty"`
	Seed              int64               `json:"seed,omitempty"`
	Regenerated       []string            `json:"regenerated_districts,omitempty"`
	Preserved         int                 `json:"preserved_sectors"`
	EstimatedDuration time.Duration       `json:"estimated_duration"`
	ActualDuration    time.Duration       `json:"actual_duration"`
	Summary           *universe.Summary   `json:"summary,omitempty"`
}

const (
	baseEstimate      = 250 * time.Millisecond
	perSectorEstimate = 400 * time.Microsecond
)

// EstimateDuration is a rough wall-clock estimate of a run, for the
// trigger API response.
func EstimateDuration(kind universe.RegionKind, totalSectors int) time.Duration {
	d := baseEstimate + time.Duration(totalSectors)*perSectorEstimate
	if kind == universe.KindCentralNexus {
		d = d * 3 / 2
	}
	return d.Round(time.Millisecond)
}
