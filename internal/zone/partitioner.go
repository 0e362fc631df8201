package zone

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"

	"github.com/google/uuid"
)

const percentTolerance = 1e-6

type Partitioner struct {
	logger *slog.Logger
}

func NewPartitioner(logger *slog.Logger) *Partitioner {
	return &Partitioner{logger: logger.With("component", "zone_partitioner")}
}

// ValidateSplits checks a requested split without partitioning anything.
func ValidateSplits(splits []Split) error {
	if len(splits) == 0 {
		return errors.InvalidZoneBounds("at least one zone is required", nil)
	}
	total := 0.0
	for i, s := range splits {
		if !s.Type.Valid() {
			return errors.InvalidZoneBounds(fmt.Sprintf("zone %d has unknown type %q", i, s.Type), errors.Details{"split": i, "type": s.Type})
		}
		if s.Percent <= 0 {
			return errors.InvalidZoneBounds(fmt.Sprintf("zone %q must cover a positive share", s.Name), errors.Details{"split": i, "percent": s.Percent})
		}
		if s.PolicingLevel < MinLevel || s.PolicingLevel > MaxLevel {
			return errors.InvalidZoneBounds(fmt.Sprintf("zone %q policing level %d outside [0,10]", s.Name, s.PolicingLevel), errors.Details{"split": i, "policing_level": s.PolicingLevel})
		}
		if s.DangerRating < MinLevel || s.DangerRating > MaxLevel {
			return errors.InvalidZoneBounds(fmt.Sprintf("zone %q danger rating %d outside [0,10]", s.Name, s.DangerRating), errors.Details{"split": i, "danger_rating": s.DangerRating})
		}
		total += s.Percent
	}
	if math.Abs(total-100) > percentTolerance {
		return errors.InvalidZoneBounds(fmt.Sprintf("zone percentages sum to %.2f, must be exactly 100", total), errors.Details{"sum": total})
	}
	return nil
}

// Partition splits r into contiguous zones. Boundaries are placed by
// cumulative rounding so the zones always cover r exactly.
func (p *Partitioner) Partition(regionID, namespace uuid.UUID, districtID *uuid.UUID, r sector.Range, splits []Split) ([]Zone, error) {
	logger := p.logger.With("operation", "partition", "range", r.String(), "zones", len(splits))

	if err := ValidateSplits(splits); err != nil {
		return nil, err
	}

	zones := make([]Zone, 0, len(splits))
	cumulative := 0.0
	start := r.Start
	for i, s := range splits {
		cumulative += s.Percent
		end := r.Start - 1 + int(math.Round(float64(r.Len())*cumulative/100))
		if i == len(splits)-1 {
			end = r.End
		}
		if end < start {
			return nil, errors.InvalidZoneBounds(
				fmt.Sprintf("zone %q would contain no sectors", s.Name),
				errors.Details{"split": i, "percent": s.Percent, "range": sector.Range{Start: start, End: end}.String(), "total_sectors": r.Len()},
			)
		}

		zr := sector.Range{Start: start, End: end}
		zones = append(zones, Zone{
			ID:            uuid.NewSHA1(namespace, []byte(fmt.Sprintf("zone/%d", zr.Start))),
			RegionID:      regionID,
			DistrictID:    districtID,
			Name:          s.Name,
			Type:          s.Type,
			Range:         zr,
			PolicingLevel: s.PolicingLevel,
			DangerRating:  s.DangerRating,
		})
		start = end + 1
	}

	logger.Debug("Zones partitioned")
	return zones, nil
}

// Lookup resolves sector ids to zones by binary search.
type Lookup struct {
	zones []Zone
}

func NewLookup(zones []Zone) *Lookup {
	sorted := append([]Zone(nil), zones...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })
	return &Lookup{zones: sorted}
}

func (l *Lookup) Find(sectorID int) (*Zone, bool) {
	i := sort.Search(len(l.zones), func(i int) bool { return l.zones[i].Range.End >= sectorID })
	if i < len(l.zones) && l.zones[i].Range.Contains(sectorID) {
		return &l.zones[i], true
	}
	return nil, false
}

// Danger returns the zone danger rating for a sector, or 0 outside every zone.
func (l *Lookup) Danger(sectorID int) int {
	if z, ok := l.Find(sectorID); ok {
		return z.DangerRating
	}
	return 0
}

func (l *Lookup) Zones() []Zone {
	return l.zones
}

// VerifyCoverage reports the first gap or overlap between zones and r.
func VerifyCoverage(zones []Zone, r sector.Range) error {
	sorted := NewLookup(zones).zones
	next := r.Start
	for _, z := range sorted {
		if z.Range.Start != next {
			return errors.InvalidZoneBounds(
				fmt.Sprintf("zone %q starts at %d, expected %d", z.Name, z.Range.Start, next),
				errors.Details{"range": z.Range.String(), "expected_start": next},
			)
		}
		if z.Range.Len() == 0 {
			return errors.InvalidZoneBounds(fmt.Sprintf("zone %q is empty", z.Name), errors.Details{"range": z.Range.String()})
		}
		next = z.Range.End + 1
	}
	if next != r.End+1 {
		return errors.InvalidZoneBounds(
			fmt.Sprintf("zones end at %d, expected %d", next-1, r.End),
			errors.Details{"covered_end": next - 1, "total_sectors": r.Len()},
		)
	}
	return nil
}
