package spatial

import (
	"math"
	"math/rand"

	"galaxy-server/internal/sector"
)

// Lattice places clusters in square cells laid out on an outward spiral.
// A cluster's cell is derived from its first sector id, so clusters keep
// their cell across regenerations and never share one.
type Lattice struct {
	CellSize      float64 `json:"cell_size" yaml:"cell_size"`
	Spacing       float64 `json:"spacing" yaml:"spacing"`
	Jitter        float64 `json:"jitter" yaml:"jitter"`
	Depth         float64 `json:"depth" yaml:"depth"`
	MinSeparation float64 `json:"min_separation" yaml:"min_separation"`
	CellStride    int     `json:"cell_stride" yaml:"cell_stride"`
}

func DefaultLattice() Lattice {
	return Lattice{
		CellSize:      60,
		Spacing:       8,
		Jitter:        0.35,
		Depth:         12,
		MinSeparation: 1,
		CellStride:    5,
	}
}

// Cell returns the spiral cell for a cluster starting at firstID.
func (l Lattice) Cell(firstID int) (int, int) {
	stride := l.CellStride
	if stride < 1 {
		stride = 1
	}
	return spiral((firstID - 1) / stride)
}

// Place lays the members out on a jittered grid inside the cluster's cell.
// Pinned coordinates are kept as-is and fresh positions are nudged away
// from them.
func (l Lattice) Place(rng *rand.Rand, firstID int, members []int, pinned map[int]sector.Coordinates) map[int]sector.Coordinates {
	out := make(map[int]sector.Coordinates, len(members))
	if len(members) == 0 {
		return out
	}

	cx, cy := l.Cell(firstID)
	side := int(math.Ceil(math.Sqrt(float64(len(members)))))
	spacing := l.Spacing
	if need := float64(side+1) * spacing; need > l.CellSize {
		spacing = l.CellSize / float64(side+1)
	}
	originX := float64(cx)*l.CellSize - float64(side-1)*spacing/2
	originY := float64(cy)*l.CellSize - float64(side-1)*spacing/2

	var taken []sector.Coordinates
	for _, id := range members {
		if c, ok := pinned[id]; ok {
			out[id] = c
			taken = append(taken, c)
		}
	}

	slot := 0
	for _, id := range members {
		gx, gy := slot%side, slot/side
		slot++
		if _, ok := pinned[id]; ok {
			continue
		}
		c := sector.Coordinates{
			X: round2(originX + float64(gx)*spacing + (rng.Float64()*2-1)*spacing*l.Jitter),
			Y: round2(originY + float64(gy)*spacing + (rng.Float64()*2-1)*spacing*l.Jitter),
			Z: round2(rng.Float64() * l.Depth),
		}
		c = l.nudge(c, taken)
		out[id] = c
		taken = append(taken, c)
	}
	return out
}

func (l Lattice) nudge(c sector.Coordinates, taken []sector.Coordinates) sector.Coordinates {
	for tries := 0; tries < 32; tries++ {
		clash := false
		for _, t := range taken {
			if c.DistanceTo(t) < l.MinSeparation {
				clash = true
				break
			}
		}
		if !clash {
			return c
		}
		c.Z = round2(c.Z + l.MinSeparation)
	}
	return c
}

// Collides reports whether c is closer than the minimum separation to any
// of the given coordinates.
func (l Lattice) Collides(c sector.Coordinates, others []sector.Coordinates) bool {
	for _, o := range others {
		if c.DistanceTo(o) < l.MinSeparation {
			return true
		}
	}
	return false
}

// spiral maps an index onto a square spiral around the origin.
func spiral(i int) (int, int) {
	if i == 0 {
		return 0, 0
	}
	// ring k holds indices ((2k-1)^2, (2k+1)^2]
	k := int(math.Ceil((math.Sqrt(float64(i+1)) - 1) / 2))
	side := 2 * k
	maxIdx := (2*k + 1) * (2*k + 1) - 1
	offset := maxIdx - i

	switch {
	case offset < side:
		return k - offset, -k
	case offset < 2*side:
		return -k, -k + (offset - side)
	case offset < 3*side:
		return -k + (offset - 2*side), k
	default:
		return k, k - (offset - 3*side)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
