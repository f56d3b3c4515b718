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
	"reflect"
	"sort"
	"testing"
)

func stationNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("s%02d", i+1)
	}
	return out
}

func TestAssignFoldsDeterminism(t *testing.T) {
	stations := stationNames(28)
	a, err := AssignFolds(stations, 5, rand.New(rand.NewSource(23)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := AssignFolds(stations, 5, rand.New(rand.NewSource(23)))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different assignments:\n%v\n%v", a, b)
	}
	c, err := AssignFolds(stations, 5, rand.New(rand.NewSource(24)))
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical assignments")
	}
}

func TestAssignFoldsSizes(t *testing.T) {
	// 28 stations in 5 folds must split {6, 6, 6, 5, 5} in some order.
	stations := stationNames(28)
	folds, err := AssignFolds(stations, 5, rand.New(rand.NewSource(23)))
	if err != nil {
		t.Fatal(err)
	}
	if len(folds) != 28 {
		t.Fatalf("expected 28 assigned stations, got %d", len(folds))
	}
	count := make(map[int]int)
	for s, f := range folds {
		if f < 1 || f > 5 {
			t.Errorf("station %s assigned to invalid fold %d", s, f)
		}
		count[f]++
	}
	sizes := make([]int, 0, 5)
	for f := 1; f <= 5; f++ {
		sizes = append(sizes, count[f])
	}
	sort.Ints(sizes)
	want := []int{5, 5, 6, 6, 6}
	if !reflect.DeepEqual(sizes, want) {
		t.Errorf("fold sizes: got %v, want %v", sizes, want)
	}
}

func TestAssignFoldsErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := AssignFolds(stationNames(4), 1, rng); err == nil {
		t.Error("expected error for k=1")
	}
	if _, err := AssignFolds(stationNames(4), 5, rng); err == nil {
		t.Error("expected error for k greater than station count")
	}
	if _, err := AssignFolds([]string{"a", "b", "a"}, 2, rng); err == nil {
		t.Error("expected error for duplicate station identifier")
	}
}

func TestFoldLabelsPartition(t *testing.T) {
	d := testDataset(t, 10, 4)
	labels, folds, err := FoldLabels(d, 3, 23)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != len(d.Obs) {
		t.Fatalf("got %d labels for %d observations", len(labels), len(d.Obs))
	}
	// Station integrity: every observation of a station carries the
	// station's fold, so the union of validation subsets over all folds
	// partitions the observations exactly.
	total := 0
	for fold := 1; fold <= 3; fold++ {
		for i, o := range d.Obs {
			if labels[i] == fold {
				total++
				if folds[o.StationID] != fold {
					t.Errorf("observation %d of station %s labeled %d, station assigned %d",
						i, o.StationID, fold, folds[o.StationID])
				}
			}
		}
	}
	if total != len(d.Obs) {
		t.Errorf("validation subsets cover %d of %d observations", total, len(d.Obs))
	}
}
