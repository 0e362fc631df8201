package spatial

import (
	"math/rand"
	"testing"

	"galaxy-server/internal/sector"
)

func TestSpiral_UniqueCells(t *testing.T) {
	seen := map[[2]int]int{}
	for i := 0; i < 2000; i++ {
		x, y := spiral(i)
		if prev, ok := seen[[2]int{x, y}]; ok {
			t.Fatalf("index %d and %d share cell (%d,%d)", prev, i, x, y)
		}
		seen[[2]int{x, y}] = i
	}
	if x, y := spiral(0); x != 0 || y != 0 {
		t.Fatalf("index 0 should be the origin, got (%d,%d)", x, y)
	}
}

func TestPlace_NoCollisionsAcrossClusters(t *testing.T) {
	l := DefaultLattice()
	rng := rand.New(rand.NewSource(1))

	var all []sector.Coordinates
	first := 1
	for c := 0; c < 60; c++ {
		size := 5 + rng.Intn(25)
		members := make([]int, size)
		for i := range members {
			members[i] = first + i
		}
		placed := l.Place(rng, first, members, nil)
		if len(placed) != size {
			t.Fatalf("cluster %d: placed %d of %d", c, len(placed), size)
		}
		for _, id := range members {
			all = append(all, placed[id])
		}
		first += size
	}

	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].DistanceTo(all[j]) < l.MinSeparation {
				t.Fatalf("coordinates %v and %v collide", all[i], all[j])
			}
		}
	}
}

func TestPlace_PinnedCoordinatesKept(t *testing.T) {
	l := DefaultLattice()
	members := []int{11, 12, 13, 14, 15, 16}
	cx, cy := l.Cell(11)
	pin := sector.Coordinates{X: float64(cx) * l.CellSize, Y: float64(cy) * l.CellSize, Z: 3}
	placed := l.Place(rand.New(rand.NewSource(2)), 11, members, map[int]sector.Coordinates{13: pin})

	if placed[13] != pin {
		t.Fatalf("pinned sector moved: got %v want %v", placed[13], pin)
	}
	for _, id := range members {
		if id == 13 {
			continue
		}
		if placed[id].DistanceTo(pin) < l.MinSeparation {
			t.Fatalf("sector %d collides with the pinned sector", id)
		}
	}
}

func TestPlace_Deterministic(t *testing.T) {
	l := DefaultLattice()
	members := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	a := l.Place(rand.New(rand.NewSource(9)), 1, members, nil)
	b := l.Place(rand.New(rand.NewSource(9)), 1, members, nil)
	for _, id := range members {
		if a[id] != b[id] {
			t.Fatalf("sector %d: %v vs %v", id, a[id], b[id])
		}
	}
}
