/*
Copyright © 2026 the Ozone authors.
This file is part of Ozone.

Ozone is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Ozone is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Ozone.  If not, see <http://www.gnu.org/licenses/>.
*/

package ozone

import (
	"fmt"
	"math/rand"
)

// AssignFolds deterministically partitions station identifiers into k folds.
// Stations are cut into k consecutive rank intervals with sizes
// ceil(n/k) for the first n mod k intervals and floor(n/k) thereafter, and
// the resulting label multiset is dealt out to the stations through a
// shuffle driven by rng. The partition is at the station level so every
// observation from a station lands in the same fold.
//
// rng is the only source of randomness; re-running with an identically
// seeded generator and the same station ordering reproduces the mapping.
func AssignFolds(stations []string, k int, rng *rand.Rand) (map[string]int, error) {
	n := len(stations)
	if k < 2 {
		return nil, fmt.Errorf("ozone: fold count %d must be at least 2", k)
	}
	if k > n {
		return nil, fmt.Errorf("ozone: fold count %d exceeds station count %d", k, n)
	}
	seen := make(map[string]struct{}, n)
	for _, s := range stations {
		if _, ok := seen[s]; ok {
			return nil, fmt.Errorf("ozone: duplicate station identifier %q", s)
		}
		seen[s] = struct{}{}
	}

	// Equal-interval cut of the station ranks.
	labels := make([]int, 0, n)
	big, rem := n/k+1, n%k
	for g := 1; g <= k; g++ {
		size := big
		if g > rem {
			size = n / k
		}
		for i := 0; i < size; i++ {
			labels = append(labels, g)
		}
	}

	rng.Shuffle(n, func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})

	folds := make(map[string]int, n)
	for i, s := range stations {
		folds[s] = labels[i]
	}
	return folds, nil
}

// FoldLabels assigns each observation in d the fold of its station, using a
// generator seeded with seed. It returns the per-observation labels in the
// same order as d.Obs along with the station → fold mapping.
func FoldLabels(d *Dataset, k int, seed int64) ([]int, map[string]int, error) {
	folds, err := AssignFolds(d.StationIDs(), k, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, nil, err
	}
	labels := make([]int, len(d.Obs))
	for i := range d.Obs {
		labels[i] = folds[d.Obs[i].StationID]
	}
	return labels, folds, nil
}
