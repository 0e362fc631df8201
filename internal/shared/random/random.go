package random

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// Seed returns a run seed; zero means time-based.
func Seed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

// Derive mixes a stable salt into the run seed so every component and
// every cluster gets its own stream regardless of scheduling order.
func Derive(seed int64, salt ...string) int64 {
	h := fnv.New64a()
	for _, s := range salt {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	return seed ^ int64(h.Sum64())
}

func New(seed int64, salt ...string) *rand.Rand {
	return rand.New(rand.NewSource(Derive(seed, salt...)))
}

// Pick returns an index chosen with probability proportional to its weight.
// It returns -1 when every weight is zero.
func Pick(rng *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return -1
	}

	roll := rng.Intn(total)
	current := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		current += w
		if roll < current {
			return i
		}
	}
	return len(weights) - 1
}

// Between returns a uniform integer in [min, max].
func Between(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// Uniform returns a uniform float in [min, max).
func Uniform(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}
