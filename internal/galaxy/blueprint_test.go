package galaxy

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"galaxy-server/internal/district"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/universe"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

type harness struct {
	bp      *Blueprint
	store   *universe.Store
	repo    *universe.MemoryRepository
	archive *universe.Archive
	locker  *MemoryLocker
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()
	h := &harness{
		store:   universe.NewStore(),
		repo:    universe.NewMemoryRepository(),
		archive: universe.NewArchive(t.TempDir(), logger),
		locker:  NewMemoryLocker(),
	}
	bp, err := NewBlueprint(tables.Default(), h.store, h.repo, h.archive, h.locker, Options{Workers: 4, LockTTL: time.Minute}, logger)
	if err != nil {
		t.Fatalf("failed to build blueprint: %v", err)
	}
	h.bp = bp
	return h
}

// recorder collects the states a run passes through.
type recorder struct {
	states []State
}

func (r *recorder) observe(s State) {
	r.states = append(r.states, s)
}

func (h *harness) generate(t *testing.T, req Request) *universe.Snapshot {
	t.Helper()
	res, err := h.bp.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("generation of %s failed: %v", req.RegionName, err)
	}
	if res.State != StateCommitted {
		t.Fatalf("state = %s, want committed", res.State)
	}
	snap := h.store.Get(res.RegionName)
	if snap == nil || snap.Version != res.Version {
		t.Fatalf("store does not hold version %d of %s", res.Version, res.RegionName)
	}
	return snap
}

func playerRequest(name string, total int, seed int64) Request {
	return Request{RegionKind: universe.KindPlayerOwned, RegionName: name, TotalSectors: total, Seed: seed}
}

func TestGenerate_MinimalRegion(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}

	res, err := h.bp.Generate(context.Background(), playerRequest("alpha", 300, 42), rec.observe)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	want := []State{StateRequested, StateValidating, StateGenerating, StateCommitting, StateCommitted}
	if !reflect.DeepEqual(rec.states, want) {
		t.Fatalf("states = %v, want %v", rec.states, want)
	}
	if res.Version != 1 || res.RegionID != RegionID("alpha") || res.Summary == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.EstimatedDuration <= 0 || res.ActualDuration <= 0 {
		t.Fatalf("durations not reported: %+v", res)
	}

	snap := h.store.Get("alpha")
	if len(snap.Zones) != 3 {
		t.Fatalf("zones = %d, want 3", len(snap.Zones))
	}
	levels := [][2]int{{9, 1}, {5, 4}, {2, 8}}
	for i, z := range snap.Zones {
		if z.Range.Len() != 100 {
			t.Fatalf("zone %s covers %d sectors, want 100", z.Name, z.Range.Len())
		}
		if z.PolicingLevel != levels[i][0] || z.DangerRating != levels[i][1] {
			t.Fatalf("zone %s policing/danger = %d/%d, want %v", z.Name, z.PolicingLevel, z.DangerRating, levels[i])
		}
	}
	if !snap.Graph.IsStronglyConnected() {
		t.Fatalf("region is not fully connected: %v unreachable", snap.Graph.Unreachable())
	}
	if ratio := snap.Graph.OneWayRatio(); ratio < 0.02 || ratio > 0.08 {
		t.Fatalf("one-way ratio %.3f outside [0.02, 0.08]", ratio)
	}
	for _, c := range snap.Clusters {
		if c.Nebula == nil {
			continue
		}
		for _, e := range c.EntryPoints {
			if c.Nebula.InCore(e) {
				t.Fatalf("entry point %d of %s inside nebula core", e, c.Name)
			}
		}
	}

	if _, err := h.repo.LoadRegion(context.Background(), "alpha"); err != nil {
		t.Fatalf("region not persisted: %v", err)
	}
	archived, err := h.archive.Latest("alpha")
	if err != nil || archived.Version != 1 {
		t.Fatalf("archive latest = %v, %v", archived, err)
	}
}

func TestGenerate_UnnamedPlayerRegion(t *testing.T) {
	h := newHarness(t)

	res, err := h.bp.Generate(context.Background(), Request{RegionKind: universe.KindPlayerOwned, TotalSectors: 300}, nil)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	name := DefaultRegionName(universe.KindPlayerOwned)
	if res.State != StateCommitted || res.RegionName != name || res.RegionID != RegionID(name) {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.store.Get(name) == nil {
		t.Fatalf("region %q not published", name)
	}

	_, err = h.bp.Generate(context.Background(), Request{RegionKind: universe.KindPlayerOwned, TotalSectors: 300}, nil)
	if errors.KindOf(err) != errors.KindAlreadyExists {
		t.Fatalf("second unnamed run kind = %s, want already_exists", errors.KindOf(err))
	}
}

func TestGenerate_AlreadyExists(t *testing.T) {
	h := newHarness(t)
	first := h.generate(t, playerRequest("alpha", 300, 1))

	rec := &recorder{}
	res, err := h.bp.Generate(context.Background(), playerRequest("alpha", 300, 2), rec.observe)
	if errors.KindOf(err) != errors.KindAlreadyExists {
		t.Fatalf("error = %v, want already_exists", err)
	}
	if res.State != StateRolledBack || rec.states[len(rec.states)-1] != StateRolledBack {
		t.Fatalf("state = %s, want rolled back", res.State)
	}
	if h.store.Get("alpha") != first {
		t.Fatalf("committed snapshot was replaced")
	}

	req := playerRequest("alpha", 300, 2)
	req.ForceRegenerate = true
	second := h.generate(t, req)
	if second.Version != 2 {
		t.Fatalf("forced regeneration version = %d, want 2", second.Version)
	}
}

func TestGenerate_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want errors.Kind
	}{
		{"below player budget", playerRequest("alpha", 299, 1), errors.KindInsufficientSectors},
		{"above player budget", playerRequest("alpha", 1001, 1), errors.KindInvalidRequest},
		{"below nexus budget", Request{RegionKind: universe.KindCentralNexus, TotalSectors: 1999}, errors.KindInsufficientSectors},
		{"unknown kind", Request{RegionKind: "pocket_dimension", TotalSectors: 400}, errors.KindInvalidRequest},
		{"bad name", playerRequest("Alpha Prime", 300, 1), errors.KindInvalidRequest},
		{"splits outside player space", Request{
			RegionKind: universe.KindTerranSpace, TotalSectors: 300,
			ZoneSplits: []zone.Split{{Name: "All", Type: zone.TypeCustom, Percent: 100}},
		}, errors.KindInvalidRequest},
		{"splits not summing to 100", Request{
			RegionKind: universe.KindPlayerOwned, RegionName: "alpha", TotalSectors: 300,
			ZoneSplits: []zone.Split{{Name: "Half", Type: zone.TypeCustom, Percent: 50, PolicingLevel: 5, DangerRating: 5}},
		}, errors.KindInvalidZoneBounds},
		{"level out of range", Request{
			RegionKind: universe.KindPlayerOwned, RegionName: "alpha", TotalSectors: 300,
			ZoneSplits: []zone.Split{{Name: "All", Type: zone.TypeCustom, Percent: 100, PolicingLevel: 11}},
		}, errors.KindInvalidZoneBounds},
		{"bad governance", Request{
			RegionKind: universe.KindPlayerOwned, RegionName: "alpha", TotalSectors: 300,
			Settings: SettingsRequest{Governance: "anarchy"},
		}, errors.KindInvalidRequest},
		{"districts outside nexus", Request{
			RegionKind: universe.KindPlayerOwned, RegionName: "alpha", TotalSectors: 300,
			DistrictsToRegenerate: []string{"commerce"},
		}, errors.KindInvalidRequest},
		{"unknown district", Request{
			RegionKind: universe.KindCentralNexus, DistrictsToRegenerate: []string{"casino"},
		}, errors.KindInvalidRequest},
		{"partial without region", Request{
			RegionKind: universe.KindCentralNexus, DistrictsToRegenerate: []string{"commerce"},
		}, errors.KindNotFound},
	}

	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			res, err := h.bp.Generate(context.Background(), tt.req, rec.observe)
			if got := errors.KindOf(err); got != tt.want {
				t.Fatalf("kind = %s (%v), want %s", got, err, tt.want)
			}
			if res.State != StateRolledBack {
				t.Fatalf("state = %s, want rolled back", res.State)
			}
			for _, s := range rec.states {
				if s == StateGenerating {
					t.Fatalf("invalid request reached generation")
				}
			}
		})
	}
	if len(h.store.List()) != 0 {
		t.Fatalf("rejected requests left regions behind")
	}
}

func TestGenerate_BudgetErrorCarriesDetails(t *testing.T) {
	h := newHarness(t)
	_, err := h.bp.Generate(context.Background(), playerRequest("alpha", 120, 1), nil)
	details := errors.DetailsOf(err)
	if details["requested"] != 120 || details["minimum"] != 300 {
		t.Fatalf("details = %v", details)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := newHarness(t).generate(t, playerRequest("alpha", 400, 77))
	b := newHarness(t).generate(t, playerRequest("alpha", 400, 77))

	if !reflect.DeepEqual(a.Summary, b.Summary) {
		t.Fatalf("summaries differ: %+v vs %+v", a.Summary, b.Summary)
	}
	if !reflect.DeepEqual(a.Graph.Connections, b.Graph.Connections) || !reflect.DeepEqual(a.Graph.Tunnels, b.Graph.Tunnels) {
		t.Fatalf("warp graphs differ for the same seed")
	}
	if !reflect.DeepEqual(a.Ports, b.Ports) || !reflect.DeepEqual(a.Planets, b.Planets) {
		t.Fatalf("ports or planets differ for the same seed")
	}
	for id, s := range a.Sectors {
		if !reflect.DeepEqual(s, b.Sectors[id]) {
			t.Fatalf("sector %d differs: %+v vs %+v", id, s, b.Sectors[id])
		}
	}

	c := newHarness(t).generate(t, playerRequest("alpha", 400, 78))
	if reflect.DeepEqual(a.Graph.Connections, c.Graph.Connections) {
		t.Fatalf("different seeds produced identical graphs")
	}
}

// claim attaches ownership with a claimed planet, a ship and a constructed
// tunnel to a planet-bearing sector of the committed region.
func claim(t *testing.T, h *harness, region string) (int, *sector.Ownership, uuid.UUID) {
	t.Helper()
	snap := h.store.Get(region)

	target := 0
	for id := 1; id <= snap.TotalSectors; id++ {
		if snap.Sectors[id].PlanetID != nil {
			target = id
			break
		}
	}
	if target == 0 {
		t.Fatalf("no planet-bearing sector in %s", region)
	}
	other := target%snap.TotalSectors + 1
	if other == target {
		other++
	}

	tunnelID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("test/tunnel"))
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tunnel := warp.NewConstructedTunnel(tunnelID,
		warp.Node{ID: target, Coordinates: snap.Sectors[target].Coordinates},
		warp.Node{ID: other, Coordinates: snap.Sectors[other].Coordinates},
		warp.Construction{BuilderID: 7, StartedAt: started, CompletedAt: started.Add(48 * time.Hour), ExpectedLifetimeDays: 90},
	)
	if !snap.Graph.AddTunnel(tunnel) {
		t.Fatalf("failed to add constructed tunnel")
	}
	snap.Graph.Index()

	ownership := &sector.Ownership{
		OwnerID:   7,
		ClaimedAt: started,
		Assets: []sector.Asset{
			{Kind: sector.AssetClaimedPlanet, ID: *snap.Sectors[target].PlanetID},
			{Kind: sector.AssetShip, ID: uuid.NewSHA1(uuid.NameSpaceURL, []byte("test/ship"))},
			{Kind: sector.AssetConstructedTunnel, ID: tunnelID},
		},
	}
	if _, err := h.store.Update(region, func(cur *universe.Snapshot) (*universe.Snapshot, error) {
		return cur.WithOwnership(target, ownership)
	}); err != nil {
		t.Fatalf("failed to claim sector %d: %v", target, err)
	}
	return target, ownership, tunnelID
}

func TestGenerate_PreservationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.generate(t, playerRequest("alpha", 300, 5))
	target, ownership, tunnelID := claim(t, h, "alpha")

	before := *h.store.Get("alpha").Sectors[target]
	planetID := *before.PlanetID

	for i, seed := range []int64{6, 6, 9} {
		req := playerRequest("alpha", 300, seed)
		req.ForceRegenerate = true
		req.PreservePlayerData = true

		res, err := h.bp.Generate(context.Background(), req, nil)
		if err != nil {
			t.Fatalf("regeneration %d failed: %v", i, err)
		}
		if res.Preserved != 1 {
			t.Fatalf("preserved = %d, want 1", res.Preserved)
		}

		after := h.store.Get("alpha")
		s := after.Sectors[target]
		if s.ID != before.ID || s.Coordinates != before.Coordinates {
			t.Fatalf("run %d moved claimed sector: %+v -> %+v", i, before.Coordinates, s.Coordinates)
		}
		if !reflect.DeepEqual(s.Ownership, ownership) {
			t.Fatalf("run %d changed ownership: %+v", i, s.Ownership)
		}
		if s.PlanetID == nil || *s.PlanetID != planetID {
			t.Fatalf("run %d dropped the claimed planet", i)
		}
		if _, ok := after.Planet(planetID); !ok {
			t.Fatalf("run %d lost planet record %s", i, planetID)
		}

		found := false
		for _, tn := range after.Graph.Tunnels {
			if tn.ID == tunnelID {
				found = tn.IsConstructed()
			}
		}
		if !found {
			t.Fatalf("run %d lost constructed tunnel", i)
		}
	}
}

func TestGenerate_WithoutPreserveDropsClaims(t *testing.T) {
	h := newHarness(t)
	h.generate(t, playerRequest("alpha", 300, 5))
	target, _, _ := claim(t, h, "alpha")

	req := playerRequest("alpha", 300, 6)
	req.ForceRegenerate = true
	snap := h.generate(t, req)
	if snap.Sectors[target].IsClaimed() || snap.Summary.ClaimedSectors != 0 {
		t.Fatalf("claims survived a regeneration without preservation")
	}
}

func TestGenerate_PreservationConflicts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"claimed sector outside new range", func(r *Request) { r.TotalSectors = 300 }},
		{"zone type removed", func(r *Request) {
			r.ZoneSplits = []zone.Split{{Name: "Open Space", Type: zone.TypeCustom, Percent: 100, PolicingLevel: 3, DangerRating: 6}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.generate(t, playerRequest("alpha", 500, 3))
			snap := h.store.Get("alpha")
			claimed, err := snap.WithOwnership(450, &sector.Ownership{OwnerID: 1, ClaimedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
			if err != nil {
				t.Fatalf("claim failed: %v", err)
			}
			h.store.Publish(claimed)

			req := playerRequest("alpha", 500, 4)
			req.ForceRegenerate = true
			req.PreservePlayerData = true
			tt.mutate(&req)

			rec := &recorder{}
			_, err = h.bp.Generate(context.Background(), req, rec.observe)
			if errors.KindOf(err) != errors.KindPreservationConflict {
				t.Fatalf("error = %v, want preservation conflict", err)
			}
			if errors.DetailsOf(err)["sector_id"] != 450 {
				t.Fatalf("details = %v", errors.DetailsOf(err))
			}
			if rec.states[len(rec.states)-2] != StateCommitting {
				t.Fatalf("conflict should surface while committing, states %v", rec.states)
			}
			if h.store.Get("alpha") != claimed {
				t.Fatalf("failed run replaced the committed snapshot")
			}
			if stored, _ := h.repo.LoadRegion(context.Background(), "alpha"); stored.Version != 1 {
				t.Fatalf("failed run reached the repository")
			}
		})
	}
}

func TestGenerate_CancellationRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	res, err := h.bp.Generate(ctx, playerRequest("alpha", 600, 1), func(s State) {
		rec.observe(s)
		if s == StateGenerating {
			cancel()
		}
	})
	if err == nil {
		t.Fatalf("cancelled run committed")
	}
	if res.State != StateRolledBack {
		t.Fatalf("state = %s, want rolled back", res.State)
	}
	if h.store.Get("alpha") != nil {
		t.Fatalf("cancelled run published a snapshot")
	}
	if _, err := h.repo.LoadRegion(context.Background(), "alpha"); errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Fatalf("cancelled run persisted rows: %v", err)
	}

	// The lock is released, so the region can be generated afterwards.
	h.generate(t, playerRequest("alpha", 300, 1))
}

func TestGenerate_PanicBecomesInternalRollback(t *testing.T) {
	h := newHarness(t)
	res, err := h.bp.Generate(context.Background(), playerRequest("alpha", 300, 1), func(s State) {
		if s == StateCommitting {
			panic("observer exploded")
		}
	})
	if errors.KindOf(err) != errors.KindInternal {
		t.Fatalf("error = %v, want internal", err)
	}
	if res.State != StateRolledBack || h.store.Get("alpha") != nil {
		t.Fatalf("panicking run was not rolled back")
	}
	h.generate(t, playerRequest("alpha", 300, 1))
}

func TestGenerate_LockedRegion(t *testing.T) {
	h := newHarness(t)
	_, unlock, err := h.locker.Lock(context.Background(), "alpha", time.Minute)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	_, err = h.bp.Generate(context.Background(), playerRequest("alpha", 300, 1), nil)
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Fatalf("error = %v, want conflict", err)
	}
	unlock()
	h.generate(t, playerRequest("alpha", 300, 1))
}

func TestGenerate_NexusDistrictStitching(t *testing.T) {
	if testing.Short() {
		t.Skip("5000-sector nexus")
	}
	h := newHarness(t)
	snap := h.generate(t, Request{RegionKind: universe.KindCentralNexus, TotalSectors: 5000, Seed: 11})

	if snap.RegionName != "central-nexus" || snap.Settings != universe.PlatformSettings() {
		t.Fatalf("unexpected nexus %s with settings %+v", snap.RegionName, snap.Settings)
	}
	if len(snap.Districts) != 6 || len(snap.Zones) != 6 {
		t.Fatalf("districts/zones = %d/%d, want 6/6", len(snap.Districts), len(snap.Zones))
	}
	if !snap.Graph.IsStronglyConnected() {
		t.Fatalf("nexus not connected across districts: %v unreachable", snap.Graph.Unreachable())
	}

	// Every district must reach every other one, not only its own sectors.
	reach := snap.Graph.Reachable(snap.Districts[0].Range.Start)
	for _, d := range snap.Districts {
		if !reach[d.Range.End] {
			t.Fatalf("district %s unreachable from %s", d.Key, snap.Districts[0].Key)
		}
	}
	for _, c := range snap.Clusters {
		dist, ok := snap.DistrictOf(c.Range.Start)
		if !ok || c.DistrictID == nil || *c.DistrictID != dist.ID || !dist.Range.Contains(c.Range.End) {
			t.Fatalf("cluster %s crosses or lacks its district", c.Name)
		}
	}
}

func TestGenerate_PartialDistrictRegeneration(t *testing.T) {
	if testing.Short() {
		t.Skip("nexus regeneration")
	}
	h := newHarness(t)
	before := h.generate(t, Request{RegionKind: universe.KindCentralNexus, TotalSectors: 2000, Seed: 21})

	res, err := h.bp.Generate(context.Background(), Request{
		RegionKind:            universe.KindCentralNexus,
		DistrictsToRegenerate: []string{string(district.KeyCommerce)},
		Seed:                  22,
	}, nil)
	if err != nil {
		t.Fatalf("partial regeneration failed: %v", err)
	}
	if !reflect.DeepEqual(res.Regenerated, []string{"commerce"}) || res.Version != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	after := h.store.Get("central-nexus")
	if !after.Graph.IsStronglyConnected() {
		t.Fatalf("nexus not connected after partial regeneration")
	}

	commerce, _ := before.District(district.KeyCommerce)
	changed := false
	for _, d := range before.Districts {
		for id := d.Range.Start; id <= d.Range.End; id++ {
			same := reflect.DeepEqual(before.Sectors[id].Coordinates, after.Sectors[id].Coordinates) &&
				before.Sectors[id].Type == after.Sectors[id].Type
			if d.Key == commerce.Key {
				changed = changed || !same
				continue
			}
			if !same {
				t.Fatalf("sector %d of untouched district %s changed", id, d.Key)
			}
		}
	}
	if !changed {
		t.Fatalf("regenerated district is identical to the committed one")
	}

	for _, c := range before.Clusters {
		if commerce.Range.Contains(c.Range.Start) {
			continue
		}
		got, ok := after.ClusterOf(c.Range.Start)
		if !ok || got.ID != c.ID || !reflect.DeepEqual(got.EntryPoints, c.EntryPoints) {
			t.Fatalf("cluster %s of an untouched district changed", c.Name)
		}
	}
}

func TestGenerate_PartialRejectsSizeChange(t *testing.T) {
	if testing.Short() {
		t.Skip("nexus generation")
	}
	h := newHarness(t)
	h.generate(t, Request{RegionKind: universe.KindCentralNexus, TotalSectors: 2000, Seed: 21})
	_, err := h.bp.Generate(context.Background(), Request{
		RegionKind:            universe.KindCentralNexus,
		TotalSectors:          2500,
		DistrictsToRegenerate: []string{"transit"},
	}, nil)
	if errors.KindOf(err) != errors.KindInvalidRequest {
		t.Fatalf("error = %v, want invalid request", err)
	}
}

func TestEstimateDuration(t *testing.T) {
	small := EstimateDuration(universe.KindPlayerOwned, 300)
	large := EstimateDuration(universe.KindPlayerOwned, 1000)
	nexus := EstimateDuration(universe.KindCentralNexus, 1000)
	if small <= 0 || large <= small || nexus <= large {
		t.Fatalf("estimates not monotonic: %v %v %v", small, large, nexus)
	}
}
