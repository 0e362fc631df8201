package random

import "testing"

func TestDerive_SaltsSeparateStreams(t *testing.T) {
	if Derive(42, "warp") == Derive(42, "clusters") {
		t.Fatalf("different salts produced the same seed")
	}
	if Derive(42, "a", "bc") == Derive(42, "ab", "c") {
		t.Fatalf("salt boundaries are not separated")
	}
	a, b := New(7, "nebula", "3"), New(7, "nebula", "3")
	for i := 0; i < 10; i++ {
		if a.Int63() != b.Int63() {
			t.Fatalf("same seed and salt diverged at draw %d", i)
		}
	}
}

func TestPick(t *testing.T) {
	rng := New(1)
	if got := Pick(rng, []int{0, 0}); got != -1 {
		t.Fatalf("all-zero weights picked %d", got)
	}
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[Pick(rng, []int{1, 0, 3})]++
	}
	if counts[1] != 0 {
		t.Fatalf("zero weight picked %d times", counts[1])
	}
	if counts[2] < 2*counts[0] {
		t.Fatalf("weights not respected: %v", counts)
	}
}

func TestBetweenAndUniform(t *testing.T) {
	rng := New(3)
	for i := 0; i < 200; i++ {
		if v := Between(rng, 2, 5); v < 2 || v > 5 {
			t.Fatalf("Between out of range: %d", v)
		}
		if v := Uniform(rng, 0.5, 0.7); v < 0.5 || v >= 0.7 {
			t.Fatalf("Uniform out of range: %f", v)
		}
	}
	if Between(rng, 4, 4) != 4 || Uniform(rng, 1, 1) != 1 {
		t.Fatalf("degenerate ranges should return min")
	}
}
