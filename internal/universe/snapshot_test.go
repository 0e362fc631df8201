package universe

import (
	"testing"
	"time"

	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/warp"

	"github.com/google/uuid"
)

func TestFinalize_BuildsMembershipAndSummary(t *testing.T) {
	snap := testSnapshot(t)

	if err := snap.Validate(); err != nil {
		t.Fatalf("fixture should validate: %v", err)
	}
	if snap.Clusters[0].Range.Start != 1 {
		t.Fatalf("clusters not sorted: first starts at %d", snap.Clusters[0].Range.Start)
	}
	for id := 1; id <= 30; id++ {
		if _, ok := snap.SectorZone[id]; !ok {
			t.Fatalf("sector %d has no zone", id)
		}
		if _, ok := snap.SectorCluster[id]; !ok {
			t.Fatalf("sector %d has no cluster", id)
		}
	}
	if snap.SectorDistrict != nil {
		t.Fatalf("region without districts should have no district map")
	}

	sum := snap.Summary
	if sum.Sectors != 30 || sum.Ports != 1 || sum.Planets != 1 || sum.Nebulae != 1 || sum.Tunnels != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.ClaimedSectors != 1 {
		t.Fatalf("claimed sectors = %d, want 1", sum.ClaimedSectors)
	}
	if sum.PortPercent != 3.33 {
		t.Fatalf("port percent = %v, want 3.33", sum.PortPercent)
	}
}

func TestAccessors(t *testing.T) {
	snap := testSnapshot(t)

	z, ok := snap.ZoneOf(12)
	if !ok || z.Name != "Border Regions" {
		t.Fatalf("sector 12 zone = %+v, %v", z, ok)
	}
	c, ok := snap.ClusterOf(16)
	if !ok || c.Name != "Beta Lode" {
		t.Fatalf("sector 16 cluster = %v, %v", c, ok)
	}
	if _, ok := snap.ClusterOf(31); ok {
		t.Fatalf("sector 31 should not resolve to a cluster")
	}
	if len(snap.Neighbors(1)) == 0 {
		t.Fatalf("sector 1 has no neighbours")
	}
	if got := snap.ClaimedSectors(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("claimed sectors = %v, want [4]", got)
	}
}

func TestWithOwnership_CopiesOnWrite(t *testing.T) {
	snap := testSnapshot(t)
	before := snap.Sectors[10]

	next, err := snap.WithOwnership(10, &sector.Ownership{OwnerID: 3, ClaimedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("WithOwnership failed: %v", err)
	}
	if next.Version != snap.Version+1 {
		t.Fatalf("version = %d, want %d", next.Version, snap.Version+1)
	}
	if snap.Sectors[10] != before || before.Ownership != nil {
		t.Fatalf("original snapshot was modified")
	}
	if next.Sectors[10].Ownership == nil || next.Sectors[10].Ownership.OwnerID != 3 {
		t.Fatalf("ownership not applied")
	}
	if next.Summary.ClaimedSectors != 2 {
		t.Fatalf("claimed sectors = %d, want 2", next.Summary.ClaimedSectors)
	}
	if next.Sectors[11] != snap.Sectors[11] {
		t.Fatalf("untouched sectors should be shared")
	}
}

func TestWithOwnership_RejectsForeignAssets(t *testing.T) {
	snap := testSnapshot(t)

	_, err := snap.WithOwnership(9, &sector.Ownership{
		OwnerID: 1,
		Assets:  []sector.Asset{{Kind: sector.AssetClaimedPlanet, ID: uuid.New()}},
	})
	if errors.KindOf(err) != errors.KindInvalidRequest {
		t.Fatalf("claiming a planet elsewhere: kind %s, err %v", errors.KindOf(err), err)
	}

	tunnel := snap.Graph.Tunnels[0]
	if _, err := snap.WithOwnership(tunnel.A, &sector.Ownership{
		OwnerID: 1,
		Assets:  []sector.Asset{{Kind: sector.AssetConstructedTunnel, ID: tunnel.ID}},
	}); err != nil {
		t.Fatalf("tunnel endpoint claim rejected: %v", err)
	}
	if _, err := snap.WithOwnership(9, &sector.Ownership{
		OwnerID: 1,
		Assets:  []sector.Asset{{Kind: sector.AssetConstructedTunnel, ID: tunnel.ID}},
	}); errors.KindOf(err) != errors.KindInvalidRequest {
		t.Fatalf("tunnel away from sector accepted: %v", err)
	}

	if _, err := snap.WithOwnership(99, &sector.Ownership{}); errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("missing sector: %v", err)
	}
}

func TestValidate_DetectsBrokenInvariants(t *testing.T) {
	snap := testSnapshot(t)
	snap.Clusters[0].EntryPoints = []int{5}
	if err := snap.Validate(); err == nil {
		t.Fatalf("entry point inside nebula core should fail validation")
	}

	snap = testSnapshot(t)
	delete(snap.Sectors, 30)
	if err := snap.Validate(); err == nil {
		t.Fatalf("missing sector should fail validation")
	}

	snap = testSnapshot(t)
	snap.Zones = snap.Zones[:2]
	if err := snap.Validate(); errors.KindOf(err) != errors.KindInvalidZoneBounds {
		t.Fatalf("zone gap: kind %s, err %v", errors.KindOf(err), err)
	}
}

func TestWithConstructedTunnel(t *testing.T) {
	snap := testSnapshot(t)
	cons := warp.Construction{BuilderID: 7, ExpectedLifetimeDays: 30}

	next, tunnel, err := snap.WithConstructedTunnel(5, 12, cons)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if next.Version != 2 || len(next.Graph.Tunnels) != 2 || next.Summary.Tunnels != 2 {
		t.Fatalf("next version %d tunnels %d", next.Version, len(next.Graph.Tunnels))
	}
	if len(snap.Graph.Tunnels) != 1 {
		t.Fatalf("construction mutated the committed snapshot")
	}
	if !tunnel.IsConstructed() || tunnel.A != 5 || tunnel.B != 12 || tunnel.Construction.BuilderID != 7 {
		t.Fatalf("tunnel %+v", tunnel)
	}

	tests := []struct {
		name string
		a, b int
		want errors.Kind
	}{
		{"existing pair", 20, 2, errors.KindAlreadyExists},
		{"missing sector", 5, 99, errors.KindNotFound},
		{"same sector", 5, 5, errors.KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := snap.WithConstructedTunnel(tt.a, tt.b, cons); errors.KindOf(err) != tt.want {
				t.Fatalf("kind = %s (%v), want %s", errors.KindOf(err), err, tt.want)
			}
		})
	}
}
