package warp

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"

	"github.com/google/uuid"
)

func testBuilder() *Builder {
	return NewBuilder(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func scatter(rng *rand.Rand, n int) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = Node{ID: i + 1, Coordinates: sector.Coordinates{
			X: rng.Float64() * 200, Y: rng.Float64() * 200, Z: rng.Float64() * 40,
		}}
	}
	return nodes
}

func TestBuild_RejectsTooFewSectors(t *testing.T) {
	b := testBuilder()
	_, err := b.Build(rand.New(rand.NewSource(1)), []Node{{ID: 1}})
	if err == nil {
		t.Fatalf("expected an error for a single sector")
	}
	if errors.KindOf(err) != errors.KindInsufficientSectors {
		t.Fatalf("kind: got %s want %s", errors.KindOf(err), errors.KindInsufficientSectors)
	}
}

func TestBuild_TwoSectors(t *testing.T) {
	b := testBuilder()
	g, err := b.Build(rand.New(rand.NewSource(1)), []Node{{ID: 4}, {ID: 9, Coordinates: sector.Coordinates{X: 3}}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(g.Connections) != 1 || g.OneWayCount() != 0 {
		t.Fatalf("expected one bidirectional edge, got %+v", g.Connections)
	}
	if !g.IsStronglyConnected() {
		t.Fatalf("two-sector graph not connected")
	}
}

func TestBuild_ConnectedWithBoundedDegree(t *testing.T) {
	b := testBuilder()
	for seed := int64(1); seed <= 6; seed++ {
		rng := rand.New(rand.NewSource(seed))
		nodes := scatter(rng, 300+int(seed)*50)
		g, err := b.Build(rng, nodes)
		if err != nil {
			t.Fatalf("seed %d: build: %v", seed, err)
		}
		if !g.IsStronglyConnected() {
			t.Fatalf("seed %d: graph not strongly connected, unreachable %v", seed, g.Unreachable())
		}
		for _, n := range nodes {
			d := g.Degree(n.ID)
			if d < 1 || d > b.Config().MaxDegree {
				t.Fatalf("seed %d: sector %d degree %d outside [1,%d]", seed, n.ID, d, b.Config().MaxDegree)
			}
		}
		ratio := g.OneWayRatio()
		if ratio < 0.02 || ratio > 0.08 {
			t.Fatalf("seed %d: one-way ratio %.3f outside [0.02,0.08]", seed, ratio)
		}
		if avg := g.AverageDegree(); avg < 2.5 {
			t.Fatalf("seed %d: average degree %.2f too low", seed, avg)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := testBuilder()
	nodes := scatter(rand.New(rand.NewSource(42)), 400)
	g1, err := b.Build(rand.New(rand.NewSource(7)), nodes)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	g2, err := b.Build(rand.New(rand.NewSource(7)), nodes)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(g1.Connections) != len(g2.Connections) {
		t.Fatalf("edge counts differ: %d vs %d", len(g1.Connections), len(g2.Connections))
	}
	for i := range g1.Connections {
		if g1.Connections[i] != g2.Connections[i] {
			t.Fatalf("edge %d differs: %+v vs %+v", i, g1.Connections[i], g2.Connections[i])
		}
	}
}

func TestBuild_ClusteredLayoutStaysConnected(t *testing.T) {
	// Tight clumps far apart: nearest-neighbour edges alone would leave islands.
	rng := rand.New(rand.NewSource(5))
	var nodes []Node
	id := 1
	for c := 0; c < 30; c++ {
		cx, cy := float64(c%6)*500, float64(c/6)*500
		for i := 0; i < 15; i++ {
			nodes = append(nodes, Node{ID: id, Coordinates: sector.Coordinates{X: cx + rng.Float64()*10, Y: cy + rng.Float64()*10}})
			id++
		}
	}
	g, err := testBuilder().Build(rng, nodes)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !g.IsStronglyConnected() {
		t.Fatalf("clustered graph split into islands")
	}
}

func TestAddTunnels_CrossClusterOnly(t *testing.T) {
	b := testBuilder()
	rng := rand.New(rand.NewSource(3))
	nodes := scatter(rng, 500)
	g, err := b.Build(rng, nodes)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	clusterA, clusterB := uuid.New(), uuid.New()
	var endpoints []Endpoint
	cluster := map[int]uuid.UUID{}
	for i, n := range nodes[:40] {
		cid := clusterA
		if i%2 == 1 {
			cid = clusterB
		}
		cluster[n.ID] = cid
		endpoints = append(endpoints, Endpoint{SectorID: n.ID, ClusterID: cid, Coordinates: n.Coordinates})
	}

	added := b.AddTunnels(rng, g, uuid.New(), endpoints)
	if added == 0 {
		t.Fatalf("expected at least one tunnel")
	}
	if added > 500/b.Config().SectorsPerTunnel {
		t.Fatalf("added %d tunnels, more than requested", added)
	}
	for _, tn := range g.Tunnels {
		if cluster[tn.A] == cluster[tn.B] {
			t.Fatalf("tunnel %d-%d joins a cluster to itself", tn.A, tn.B)
		}
		if tn.Stability <= 0 || tn.Stability > 1 {
			t.Fatalf("tunnel stability %.3f", tn.Stability)
		}
		if tn.Type == TunnelArtificial {
			t.Fatalf("generation must not create artificial tunnels")
		}
	}
	if !g.IsStronglyConnected() {
		t.Fatalf("tunnels broke connectivity")
	}
}

func TestGraph_Neighbors_RespectOneWay(t *testing.T) {
	g := NewGraph([]int{1, 2, 3})
	g.addConnection(Connection{A: 1, B: 2, OneWay: true})
	g.addConnection(Connection{A: 2, B: 3})
	g.addConnection(Connection{A: 3, B: 1})

	if got := g.Neighbors(2); len(got) != 1 || got[0] != 3 {
		t.Fatalf("neighbors of 2: got %v want [3]", got)
	}
	if got := g.Neighbors(1); len(got) != 2 {
		t.Fatalf("neighbors of 1: got %v", got)
	}
	if !g.IsStronglyConnected() {
		t.Fatalf("1->2->3->1 should be strongly connected")
	}
	g.Connections[2].OneWay = true // 3 -> 1 only
	g.Connections[1].A, g.Connections[1].B = 3, 2
	g.Connections[1].OneWay = true // 3 -> 2 only
	g.index()
	if g.IsStronglyConnected() {
		t.Fatalf("sector 3 is now unreachable, graph should not be strongly connected")
	}
}
