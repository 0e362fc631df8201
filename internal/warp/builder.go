package warp

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/random"

	"github.com/google/uuid"
)

const MinSectors = 2

type Builder struct {
	config Config
	logger *slog.Logger
}

func NewBuilder(config Config, logger *slog.Logger) *Builder {
	return &Builder{
		config: config,
		logger: logger.With("component", "warp_builder"),
	}
}

func (b *Builder) Config() Config {
	return b.config
}

// Build connects the nodes: a jittered minimum spanning tree for
// reachability, redundant near-neighbour edges up to the target average
// degree, then a sample of one-way flips that never break strong
// connectivity.
func (b *Builder) Build(rng *rand.Rand, nodes []Node) (*Graph, error) {
	logger := b.logger.With("operation", "build", "nodes", len(nodes))

	if len(nodes) < MinSectors {
		return nil, errors.InsufficientSectors(len(nodes), MinSectors)
	}

	sorted := append([]Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, errors.Validationf("duplicate sector %d in warp input", sorted[i].ID)
		}
	}

	ids := make([]int, len(sorted))
	for i, n := range sorted {
		ids[i] = n.ID
	}
	g := NewGraph(ids)
	jitterSeed := rng.Int63()

	b.spanningTree(g, sorted, jitterSeed)
	treeEdges := len(g.Connections)
	b.addRedundantEdges(g, sorted, jitterSeed)
	oneWay := b.flipOneWay(rng, g)

	logger.Debug("Warp graph built",
		"tree_edges", treeEdges,
		"edges", len(g.Connections),
		"one_way", oneWay,
		"average_degree", g.AverageDegree(),
	)
	return g, nil
}

func (b *Builder) weight(seed int64, a, c Node) float64 {
	lo, hi := a.ID, c.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	return a.Coordinates.DistanceTo(c.Coordinates) * (1 + b.config.Jitter*pairNoise(seed, lo, hi))
}

// spanningTree runs Prim's algorithm over the complete graph with jittered
// euclidean weights. Parents at the degree cap are skipped; ties resolve by
// lower sector id so output is reproducible.
func (b *Builder) spanningTree(g *Graph, nodes []Node, seed int64) {
	n := len(nodes)
	inTree := make([]bool, n)
	best := make([]float64, n)
	parent := make([]int, n)
	degree := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		parent[i] = -1
	}

	attach := func(u int) {
		inTree[u] = true
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			if w := b.weight(seed, nodes[u], nodes[v]); w < best[v] {
				best[v], parent[v] = w, u
			}
		}
	}

	// reparent finds a new tree parent for v once its parent is saturated.
	reparent := func(v int) {
		best[v], parent[v] = math.Inf(1), -1
		for u := 0; u < n; u++ {
			if !inTree[u] || degree[u] >= b.config.MaxDegree {
				continue
			}
			if w := b.weight(seed, nodes[u], nodes[v]); w < best[v] {
				best[v], parent[v] = w, u
			}
		}
	}

	attach(0)
	for added := 1; added < n; added++ {
		v := -1
		for i := 0; i < n; i++ {
			if !inTree[i] && (v < 0 || best[i] < best[v]) {
				v = i
			}
		}
		u := parent[v]
		if u < 0 {
			u = nearestInTree(nodes, inTree, v)
		}
		g.addConnection(b.connection(nodes[u], nodes[v], true))
		degree[u]++
		degree[v]++

		if degree[u] >= b.config.MaxDegree {
			for w := 0; w < n; w++ {
				if !inTree[w] && w != v && parent[w] == u {
					reparent(w)
				}
			}
		}
		attach(v)
	}
}

// nearestInTree ignores the degree cap; it only runs when every tree node
// is saturated.
func nearestInTree(nodes []Node, inTree []bool, v int) int {
	best, bestD := -1, math.Inf(1)
	for u := range nodes {
		if !inTree[u] {
			continue
		}
		if d := nodes[u].Coordinates.DistanceTo(nodes[v].Coordinates); d < bestD {
			best, bestD = u, d
		}
	}
	return best
}

type candidate struct {
	a, b   int
	weight float64
}

// addRedundantEdges adds near-neighbour edges, lightest first, until the
// target average degree is reached. Both endpoints must stay under the cap.
func (b *Builder) addRedundantEdges(g *Graph, nodes []Node, seed int64) {
	target := int(math.Ceil(b.config.TargetAverageDegree * float64(len(nodes)) / 2))
	if len(g.Connections) >= target {
		return
	}

	k := b.config.Neighbors
	if k > len(nodes)-1 {
		k = len(nodes) - 1
	}

	seen := make(map[[2]int]bool)
	var candidates []candidate
	for i := range nodes {
		for _, j := range nearest(nodes, i, k) {
			lo, hi := i, j
			if lo > hi {
				lo, hi = hi, lo
			}
			key := [2]int{lo, hi}
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{a: lo, b: hi, weight: b.weight(seed, nodes[lo], nodes[hi])})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.weight != cj.weight {
			return ci.weight < cj.weight
		}
		if ci.a != cj.a {
			return ci.a < cj.a
		}
		return ci.b < cj.b
	})

	for _, c := range candidates {
		if len(g.Connections) >= target {
			break
		}
		na, nb := nodes[c.a], nodes[c.b]
		if g.HasConnection(na.ID, nb.ID) {
			continue
		}
		if g.Degree(na.ID) >= b.config.MaxDegree || g.Degree(nb.ID) >= b.config.MaxDegree {
			continue
		}
		g.addConnection(b.connection(na, nb, true))
	}
}

// nearest returns the indices of the k nearest nodes to nodes[i], ties by index.
func nearest(nodes []Node, i, k int) []int {
	type hit struct {
		j int
		d float64
	}
	top := make([]hit, 0, k+1)
	for j := range nodes {
		if j == i {
			continue
		}
		d := nodes[i].Coordinates.DistanceTo(nodes[j].Coordinates)
		if len(top) == k && d >= top[k-1].d {
			continue
		}
		pos := sort.Search(len(top), func(x int) bool { return top[x].d > d })
		top = append(top, hit{})
		copy(top[pos+1:], top[pos:])
		top[pos] = hit{j: j, d: d}
		if len(top) > k {
			top = top[:k]
		}
	}
	out := make([]int, len(top))
	for x, h := range top {
		out[x] = h.j
	}
	return out
}

// flipOneWay marks a uniformly drawn share of edges one-way. A flip A->B is
// kept only if B can still reach A without it.
func (b *Builder) flipOneWay(rng *rand.Rand, g *Graph) int {
	total := len(g.Connections)
	ratio := random.Uniform(rng, b.config.OneWayMin, b.config.OneWayMax)
	target := int(math.Round(ratio * float64(total)))
	if lo := int(math.Ceil(b.config.OneWayMin * float64(total))); target < lo {
		target = lo
	}
	if hi := int(math.Floor(b.config.OneWayMax * float64(total))); target > hi {
		target = hi
	}

	flipped := 0
	for _, i := range rng.Perm(total) {
		if flipped >= target {
			break
		}
		c := &g.Connections[i]
		swapped := rng.Intn(2) == 1
		if swapped {
			c.A, c.B = c.B, c.A
		}
		c.OneWay = true
		if g.reachesWithout(c.B, c.A) {
			flipped++
			continue
		}
		c.OneWay = false
		if swapped {
			c.A, c.B = c.B, c.A
		}
	}
	return flipped
}

// reachesWithout walks directed edges from start looking for goal. The
// flipped edge itself can only be followed A to B, so it never helps.
func (g *Graph) reachesWithout(start, goal int) bool {
	g.ensureIndex()
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			return true
		}
		for _, i := range g.incident[cur] {
			c := g.Connections[i]
			if !c.Traversable(cur) {
				continue
			}
			next := c.Other(cur)
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func (b *Builder) connection(a, c Node, natural bool) Connection {
	lo, hi := a, c
	if lo.ID > hi.ID {
		lo, hi = hi, lo
	}
	d := lo.Coordinates.DistanceTo(hi.Coordinates)
	return Connection{
		A:        lo.ID,
		B:        hi.ID,
		Natural:  natural,
		Distance: math.Round(d*100) / 100,
		TurnCost: turnCost(d, 0, 0),
	}
}

// AddTunnels overlays long-distance tunnels between hub and entry sectors
// of different clusters. Tunnels are bidirectional, so reachability and
// the one-way share of adjacency edges are unaffected.
func (b *Builder) AddTunnels(rng *rand.Rand, g *Graph, namespace uuid.UUID, endpoints []Endpoint) int {
	logger := b.logger.With("operation", "add_tunnels", "endpoints", len(endpoints))

	want := len(g.Nodes) / b.config.SectorsPerTunnel
	if want == 0 || len(endpoints) < 2 {
		return 0
	}

	var pairs [][2]int
	for i := range endpoints {
		for j := i + 1; j < len(endpoints); j++ {
			ei, ej := endpoints[i], endpoints[j]
			if ei.ClusterID == ej.ClusterID || ei.SectorID == ej.SectorID {
				continue
			}
			if ei.Coordinates.DistanceTo(ej.Coordinates) < b.config.MinTunnelDistance {
				continue
			}
			pairs = append(pairs, [2]int{i, j})
		}
	}
	rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })

	linked := make(map[[2]int]bool)
	for _, t := range g.Tunnels {
		linked[tunnelKey(t.A, t.B)] = true
	}

	added := 0
	for _, p := range pairs {
		if added >= want {
			break
		}
		a, c := endpoints[p[0]], endpoints[p[1]]
		key := tunnelKey(a.SectorID, c.SectorID)
		if linked[key] || g.HasConnection(a.SectorID, c.SectorID) {
			continue
		}
		if g.Degree(a.SectorID)+g.TunnelDegree(a.SectorID) >= b.config.HubMaxDegree ||
			g.Degree(c.SectorID)+g.TunnelDegree(c.SectorID) >= b.config.HubMaxDegree {
			continue
		}
		t := b.rollTunnel(rng, namespace, a, c)
		if g.AddTunnel(t) {
			linked[key] = true
			added++
		}
	}

	logger.Debug("Warp tunnels added", "requested", want, "added", added)
	return added
}

func (b *Builder) rollTunnel(rng *rand.Rand, namespace uuid.UUID, a, c Endpoint) Tunnel {
	weights := make([]int, len(tunnelOrder))
	for i, t := range tunnelOrder {
		weights[i] = tunnelProfiles[t].Weight
	}
	tt := tunnelOrder[random.Pick(rng, weights)]
	prof := tunnelProfiles[tt]

	lo, hi := a.SectorID, c.SectorID
	if lo > hi {
		lo, hi = hi, lo
	}
	stability := math.Round(random.Uniform(rng, prof.StabilityMin, prof.StabilityMax)*1000) / 1000
	d := a.Coordinates.DistanceTo(c.Coordinates)

	return Tunnel{
		ID:          uuid.NewSHA1(namespace, []byte(fmt.Sprintf("tunnel/%d-%d", lo, hi))),
		A:           lo,
		B:           hi,
		Type:        tt,
		Status:      statusFor(stability),
		Stability:   stability,
		Distance:    math.Round(d*100) / 100,
		TurnCost:    tunnelTurnCost(tt, d),
		Discovered:  tt == TunnelStandard && rng.Float64() < 0.5,
		DecayPerDay: prof.DecayPerDay,
	}
}

// NewConstructedTunnel builds a player tunnel record between two sectors.
// Gameplay construction goes through universe.Snapshot.WithConstructedTunnel.
func NewConstructedTunnel(id uuid.UUID, a, c Node, cons Construction) Tunnel {
	lo, hi := a, c
	if lo.ID > hi.ID {
		lo, hi = hi, lo
	}
	d := lo.Coordinates.DistanceTo(hi.Coordinates)
	prof := tunnelProfiles[TunnelArtificial]
	return Tunnel{
		ID:           id,
		A:            lo.ID,
		B:            hi.ID,
		Type:         TunnelArtificial,
		Status:       StatusActive,
		Stability:    prof.StabilityMax,
		Distance:     math.Round(d*100) / 100,
		TurnCost:     tunnelTurnCost(TunnelArtificial, d),
		Discovered:   true,
		DecayPerDay:  prof.DecayPerDay,
		Construction: &cons,
	}
}

func statusFor(stability float64) TunnelStatus {
	switch {
	case stability < 0.2:
		return StatusCollapsed
	case stability < 0.5:
		return StatusDegrading
	default:
		return StatusActive
	}
}

func tunnelKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// turnCost is 1 plus a distance term capped at 5, plus 1 for a hazardous endpoint.
func turnCost(distance float64, hazardA, hazardB int) float64 {
	cost := 1 + math.Min(distance/25, 5)
	if hazardA > 5 || hazardB > 5 {
		cost++
	}
	return math.Round(cost*100) / 100
}

func tunnelTurnCost(t TunnelType, distance float64) float64 {
	base := 1 + math.Min(distance/100, 4)
	return math.Round(base*tunnelProfiles[t].CostFactor*100) / 100
}

// pairNoise is a stable pseudo-random value in [0,1) for an unordered pair.
func pairNoise(seed int64, a, b int) float64 {
	x := uint64(seed) ^ (uint64(a) * 0x9E3779B97F4A7C15) ^ (uint64(b) * 0xC2B2AE3D27D4EB4F)
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return float64(x>>11) / float64(1<<53)
}
