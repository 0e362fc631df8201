package warp

import (
	"sort"
)

// Graph is the warp topology of a region. Tunnels are always bidirectional.
type Graph struct {
	Nodes       []int        `json:"nodes"`
	Connections []Connection `json:"connections"`
	Tunnels     []Tunnel     `json:"tunnels"`

	incident map[int][]int
}

func NewGraph(nodes []int) *Graph {
	sorted := append([]int(nil), nodes...)
	sort.Ints(sorted)
	return &Graph{Nodes: sorted, incident: make(map[int][]int, len(sorted))}
}

// index rebuilds the incidence lists, e.g. after decoding.
func (g *Graph) index() {
	g.incident = make(map[int][]int, len(g.Nodes))
	for i, c := range g.Connections {
		g.incident[c.A] = append(g.incident[c.A], i)
		g.incident[c.B] = append(g.incident[c.B], i)
	}
}

// Index rebuilds the incidence lists. A graph must be indexed before it is
// shared between goroutines.
func (g *Graph) Index() {
	g.index()
}

func (g *Graph) ensureIndex() {
	if g.incident == nil {
		g.index()
	}
}

func (g *Graph) addConnection(c Connection) {
	g.ensureIndex()
	g.Connections = append(g.Connections, c)
	i := len(g.Connections) - 1
	g.incident[c.A] = append(g.incident[c.A], i)
	g.incident[c.B] = append(g.incident[c.B], i)
}

// Degree counts adjacency edges (not tunnels) touching the sector.
func (g *Graph) Degree(id int) int {
	g.ensureIndex()
	return len(g.incident[id])
}

// TunnelDegree counts tunnels touching the sector.
func (g *Graph) TunnelDegree(id int) int {
	n := 0
	for _, t := range g.Tunnels {
		if t.A == id || t.B == id {
			n++
		}
	}
	return n
}

func (g *Graph) HasConnection(a, b int) bool {
	g.ensureIndex()
	for _, i := range g.incident[a] {
		if g.Connections[i].Other(a) == b {
			return true
		}
	}
	return false
}

// Neighbors lists every sector reachable in one jump from id, through
// adjacency edges or tunnels, sorted by id.
func (g *Graph) Neighbors(id int) []int {
	g.ensureIndex()
	seen := map[int]bool{}
	for _, i := range g.incident[id] {
		c := g.Connections[i]
		if c.Traversable(id) {
			seen[c.Other(id)] = true
		}
	}
	for _, t := range g.Tunnels {
		switch id {
		case t.A:
			seen[t.B] = true
		case t.B:
			seen[t.A] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Adjacency returns the directed out-neighbour lists.
func (g *Graph) Adjacency() map[int][]int {
	adj := make(map[int][]int, len(g.Nodes))
	for _, id := range g.Nodes {
		adj[id] = nil
	}
	for _, c := range g.Connections {
		adj[c.A] = append(adj[c.A], c.B)
		if !c.OneWay {
			adj[c.B] = append(adj[c.B], c.A)
		}
	}
	for _, t := range g.Tunnels {
		adj[t.A] = append(adj[t.A], t.B)
		adj[t.B] = append(adj[t.B], t.A)
	}
	return adj
}

func (g *Graph) reverse(adj map[int][]int) map[int][]int {
	rev := make(map[int][]int, len(adj))
	for from, tos := range adj {
		if _, ok := rev[from]; !ok {
			rev[from] = nil
		}
		for _, to := range tos {
			rev[to] = append(rev[to], from)
		}
	}
	return rev
}

func reach(adj map[int][]int, start int) map[int]bool {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range adj[cur] {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return seen
}

// Reachable returns every sector reachable from start following directions.
func (g *Graph) Reachable(start int) map[int]bool {
	return reach(g.Adjacency(), start)
}

// IsStronglyConnected reports whether every sector can reach every other
// sector with one-way edges respected.
func (g *Graph) IsStronglyConnected() bool {
	if len(g.Nodes) < 2 {
		return true
	}
	adj := g.Adjacency()
	start := g.Nodes[0]
	if len(reach(adj, start)) != len(g.Nodes) {
		return false
	}
	return len(reach(g.reverse(adj), start)) == len(g.Nodes)
}

// Unreachable lists sectors that cannot be reached from the first sector.
func (g *Graph) Unreachable() []int {
	if len(g.Nodes) == 0 {
		return nil
	}
	seen := g.Reachable(g.Nodes[0])
	var out []int
	for _, id := range g.Nodes {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) OneWayCount() int {
	n := 0
	for _, c := range g.Connections {
		if c.OneWay {
			n++
		}
	}
	return n
}

func (g *Graph) OneWayRatio() float64 {
	if len(g.Connections) == 0 {
		return 0
	}
	return float64(g.OneWayCount()) / float64(len(g.Connections))
}

func (g *Graph) AverageDegree() float64 {
	if len(g.Nodes) == 0 {
		return 0
	}
	return 2 * float64(len(g.Connections)) / float64(len(g.Nodes))
}

// InternalDegree counts adjacency edges from id to members of the set.
func (g *Graph) InternalDegree(id int, members map[int]bool) (internal, external int) {
	g.ensureIndex()
	for _, i := range g.incident[id] {
		if members[g.Connections[i].Other(id)] {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// PriceTurns recomputes turn costs once nav hazards are known.
func (g *Graph) PriceTurns(hazard func(id int) int) {
	for i := range g.Connections {
		c := &g.Connections[i]
		c.TurnCost = turnCost(c.Distance, hazard(c.A), hazard(c.B))
	}
	for i := range g.Tunnels {
		t := &g.Tunnels[i]
		t.TurnCost = tunnelTurnCost(t.Type, t.Distance)
	}
}

// Clone returns a deep copy safe to mutate.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:       append([]int(nil), g.Nodes...),
		Connections: append([]Connection(nil), g.Connections...),
		Tunnels:     make([]Tunnel, len(g.Tunnels)),
	}
	for i, t := range g.Tunnels {
		if t.Construction != nil {
			cons := *t.Construction
			t.Construction = &cons
		}
		c.Tunnels[i] = t
	}
	c.index()
	return c
}

// AddTunnel appends a tunnel after checking both endpoints exist.
func (g *Graph) AddTunnel(t Tunnel) bool {
	if !g.hasNode(t.A) || !g.hasNode(t.B) || t.A == t.B {
		return false
	}
	g.Tunnels = append(g.Tunnels, t)
	return true
}

func (g *Graph) hasNode(id int) bool {
	i := sort.SearchInts(g.Nodes, id)
	return i < len(g.Nodes) && g.Nodes[i] == id
}

func (g *Graph) HasNode(id int) bool {
	return g.hasNode(id)
}
