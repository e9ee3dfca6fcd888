package dataset

import (
	"math/rand/v2"
	"sort"

	"github.com/airsift/airsift/pkg/errors"
)

// StratifiedSample draws up to perClass row indices for every distinct
// label, without replacement, and returns the combined indices in shuffled
// order. Classes with fewer than perClass rows contribute all of their
// rows. The draw is deterministic for a given seed.
func StratifiedSample(labels []int, perClass int, seed uint64) ([]int, error) {
	if len(labels) == 0 {
		return nil, errors.NewModelError("StratifiedSample", "empty labels", errors.ErrEmptyData)
	}
	if perClass <= 0 {
		return nil, errors.NewValueError("StratifiedSample", "perClass must be positive")
	}

	byClass := map[int][]int{}
	for i, c := range labels {
		byClass[c] = append(byClass[c], i)
	}

	// Iterate classes in sorted order so the draw depends only on the seed.
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewPCG(seed, seed))

	var out []int
	for _, c := range classes {
		rows := byClass[c]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		take := perClass
		if take > len(rows) {
			take = len(rows)
		}
		out = append(out, rows[:take]...)
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// ClassCounts tallies rows per label value.
func ClassCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, c := range labels {
		counts[c]++
	}
	return counts
}
