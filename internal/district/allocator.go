package district

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/random"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Allocator struct {
	profiles    []Profile
	density     attribute.Density
	partitioner *zone.Partitioner
	assembler   *cluster.Assembler
	workers     int
	logger      *slog.Logger
}

func NewAllocator(profiles []Profile, density attribute.Density, partitioner *zone.Partitioner, assembler *cluster.Assembler, workers int, logger *slog.Logger) (*Allocator, error) {
	seen := map[Key]bool{}
	total := 0
	for _, p := range profiles {
		if seen[p.Key] {
			return nil, errors.Validationf("duplicate district %s", p.Key)
		}
		seen[p.Key] = true
		if err := p.Validate(assembler.Catalog()); err != nil {
			return nil, err
		}
		total += p.Percent
	}
	if total != 100 {
		return nil, errors.Validationf("district percentages sum to %d, must be 100", total)
	}
	if workers < 1 {
		workers = 1
	}
	return &Allocator{
		profiles:    profiles,
		density:     density,
		partitioner: partitioner,
		assembler:   assembler,
		workers:     workers,
		logger:      logger.With("component", "district_allocator"),
	}, nil
}

func (a *Allocator) Profiles() []Profile {
	return a.profiles
}

// ParseKeys resolves district names, rejecting unknown ones.
func (a *Allocator) ParseKeys(names []string) (map[Key]bool, error) {
	out := make(map[Key]bool, len(names))
	for _, n := range names {
		found := false
		for _, p := range a.profiles {
			if string(p.Key) == n {
				out[p.Key] = true
				found = true
				break
			}
		}
		if !found {
			return nil, errors.InvalidRequestf(
				errors.Details{"district": n, "known": keyNames(a.profiles)},
				"unknown district %q", n,
			)
		}
	}
	return out, nil
}

// Allocate assigns contiguous ranges over [1,total] in table order using
// cumulative rounding.
func (a *Allocator) Allocate(regionID uuid.UUID, total int) ([]District, error) {
	if total < len(a.profiles) {
		return nil, errors.InsufficientSectors(total, len(a.profiles))
	}

	districts := make([]District, 0, len(a.profiles))
	cumulative := 0
	start := 1
	for i, p := range a.profiles {
		cumulative += p.Percent
		end := int(math.Round(float64(total) * float64(cumulative) / 100))
		if i == len(a.profiles)-1 {
			end = total
		}
		if end < start {
			return nil, errors.InsufficientSectors(total, len(a.profiles))
		}
		districts = append(districts, District{
			ID:       uuid.NewSHA1(regionID, []byte(fmt.Sprintf("district/%s", p.Key))),
			RegionID: regionID,
			Key:      p.Key,
			Name:     p.Name,
			Range:    sector.Range{Start: start, End: end},
			Profile:  p,
		})
		start = end + 1
	}

	a.logger.Debug("Districts allocated", "operation", "allocate", "total_sectors", total, "districts", len(districts))
	return districts, nil
}

// Plan partitions zones and clusters for each district in parallel. Only
// districts in the filter are planned; a nil filter plans all of them.
func (a *Allocator) Plan(ctx context.Context, seed int64, namespace uuid.UUID, districts []District, filter map[Key]bool) ([]Plan, error) {
	logger := a.logger.With("operation", "plan", "districts", len(districts))

	plans := make([]Plan, len(districts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, d := range districts {
		if filter != nil && !filter[d.Key] {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.WrapInternal(fmt.Sprintf("district worker panicked on %s", d.Key), fmt.Errorf("%v", r))
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := a.planDistrict(seed, namespace, d)
			if err != nil {
				return fmt.Errorf("failed to plan district %s: %w", d.Key, err)
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Plan, 0, len(plans))
	for i, p := range plans {
		if filter != nil && !filter[districts[i].Key] {
			continue
		}
		out = append(out, p)
	}
	logger.Debug("Districts planned", "planned", len(out))
	return out, nil
}

func (a *Allocator) planDistrict(seed int64, namespace uuid.UUID, d District) (Plan, error) {
	id := d.ID
	zones, err := a.partitioner.Partition(d.RegionID, namespace, &id, d.Range, d.Profile.ZoneSplit())
	if err != nil {
		return Plan{}, err
	}

	rng := random.New(seed, "district", string(d.Key))
	clusters, err := a.assembler.Partition(rng, cluster.Scope{
		RegionID:     d.RegionID,
		Namespace:    namespace,
		DistrictID:   &id,
		Range:        d.Range,
		Distribution: d.Profile.Distribution,
		Bias:         d.Profile.Bias(a.density),
		Salt:         string(d.Key),
	})
	if err != nil {
		return Plan{}, err
	}
	return Plan{District: d, Zones: zones, Clusters: clusters}, nil
}
