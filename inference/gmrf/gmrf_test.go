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

package gmrf

import (
	"context"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/ozone/inference"
	"github.com/spatialmodel/ozone/spde"
)

func testPrior() spde.FieldPrior {
	return spde.FieldPrior{
		Range: spde.PCPrior{Threshold: 1, Prob: 0.5},
		Sigma: spde.PCPrior{Threshold: 1, Prob: 0.005},
		Cor:   spde.PCPrior{Threshold: 0.8, Prob: 0.9},
	}
}

// testBundle builds a small stacked input: 4 stations observed over 3 time
// groups with a constant response, plus prediction rows at the first station.
// A coarse mesh keeps the state dimension small.
func testBundle(t *testing.T) *inference.Bundle {
	t.Helper()
	stations := []geom.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0.1},
		{X: 0.2, Y: 1},
		{X: 1.1, Y: 1.2},
	}
	m, err := spde.NewMesh(stations, spde.Options{
		MaxEdgeInterior: 5,
		MaxEdgeExterior: 5,
		Cutoff:          0.01,
		Offset:          0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	const nGroups = 3
	ix := spde.NewIndex(m.NVert(), nGroups)

	var pts []geom.Point
	var groups []int
	var y []float64
	for g := 1; g <= nGroups; g++ {
		for _, s := range stations {
			pts = append(pts, s)
			groups = append(groups, g)
			y = append(y, 5)
		}
	}
	nEst := len(y)
	// Prediction rows: station 1 in groups 2 and 3.
	for _, g := range []int{2, 3} {
		pts = append(pts, stations[0])
		groups = append(groups, g)
		y = append(y, math.NaN())
	}

	d, err := m.Projection(pts, groups, ix)
	if err != nil {
		t.Fatal(err)
	}
	n := len(y)
	x := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	return &inference.Bundle{
		Y:      y,
		NEst:   nEst,
		X:      x,
		Names:  []string{"(Intercept)"},
		Field:  d.Rows,
		FEM:    m.FEM(),
		Index:  ix,
		Prior:  testPrior(),
		Family: inference.FamilyGaussian,
	}
}

func TestFitConstantResponse(t *testing.T) {
	b := testBundle(t)
	post, err := New().Fit(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Predictor) != b.Len() {
		t.Fatalf("got %d predictor summaries, want %d", len(post.Predictor), b.Len())
	}
	for i, s := range post.Predictor {
		if math.Abs(s.Mean-5) > 0.3 {
			t.Errorf("row %d predictor mean: got %g, want ≈ 5", i, s.Mean)
		}
		if math.IsNaN(s.SD) || s.SD < 0 {
			t.Errorf("row %d predictor sd: got %g", i, s.SD)
		}
	}
	block := post.PredictionBlock(b)
	if len(block) != 2 {
		t.Fatalf("prediction block has %d rows, want 2", len(block))
	}

	if len(post.Fixed) != 1 || post.Fixed[0].Name != "(Intercept)" {
		t.Fatalf("fixed effects: got %+v", post.Fixed)
	}
	fe := post.Fixed[0]
	if fe.SD <= 0 || fe.Lower >= fe.Mean || fe.Upper <= fe.Mean {
		t.Errorf("intercept interval inconsistent: %+v", fe)
	}

	wantHyper := []string{
		"Precision for the Gaussian observations",
		"Range for field",
		"Stdev for field",
		"GroupRho for field",
	}
	if len(post.Hyper) != len(wantHyper) {
		t.Fatalf("got %d hyperparameters, want %d", len(post.Hyper), len(wantHyper))
	}
	for k, h := range post.Hyper {
		if h.Name != wantHyper[k] {
			t.Errorf("hyperparameter %d: got %q, want %q", k, h.Name, wantHyper[k])
		}
		var total float64
		for _, p := range h.Density {
			if p.Density < 0 {
				t.Errorf("%s: negative density mass at %g", h.Name, p.X)
			}
			total += p.Density
		}
		if math.Abs(total-1) > 1e-9 {
			t.Errorf("%s: density mass sums to %g, want 1", h.Name, total)
		}
		if h.Lower > h.Mean+1e-9 || h.Upper < h.Mean-1e-9 {
			t.Errorf("%s: interval [%g, %g] excludes mean %g", h.Name, h.Lower, h.Upper, h.Mean)
		}
	}
}

func TestFitMissingCovariate(t *testing.T) {
	b := testBundle(t)
	last := b.Len() - 1
	b.X.Set(last, 0, math.NaN())

	post, err := New().Fit(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	s := post.Predictor[last]
	if !math.IsNaN(s.Mean) || !math.IsNaN(s.SD) {
		t.Errorf("row with missing covariate: got %+v, want NaN summary", s)
	}
	// The other rows are unaffected.
	if s := post.Predictor[0]; math.IsNaN(s.Mean) {
		t.Error("row 0 summary is NaN")
	}
}

func TestFitCanceledContext(t *testing.T) {
	b := testBundle(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Fit(ctx, b); err == nil {
		t.Error("fit with canceled context succeeded")
	}
}

func TestObservedSD(t *testing.T) {
	b := &inference.Bundle{Y: []float64{1, 2, 3, 4, math.NaN()}, NEst: 5}
	want := math.Sqrt(5.0 / 3.0)
	if got := observedSD(b); math.Abs(got-want) > 1e-12 {
		t.Errorf("got %g, want %g", got, want)
	}
	// Degenerate inputs fall back to 1.
	if got := observedSD(&inference.Bundle{Y: []float64{7}, NEst: 1}); got != 1 {
		t.Errorf("single observation: got %g, want 1", got)
	}
}

func TestCandidates(t *testing.T) {
	cands := candidates(testPrior(), 2)
	want := len(rangeFactors) * len(sigmaFactors) * len(rhoSteps) * len(noiseFactors)
	if len(cands) != want {
		t.Fatalf("got %d candidates, want %d", len(cands), want)
	}
	for i, c := range cands {
		if c.rng <= 0 || c.sigma <= 0 || c.noiseSD <= 0 {
			t.Errorf("candidate %d has non-positive parameters: %+v", i, c)
		}
		if c.rho < 0.8 || c.rho >= 1 {
			t.Errorf("candidate %d: ρ = %g outside [threshold, 1)", i, c.rho)
		}
		if math.IsNaN(c.logPrior) || math.IsInf(c.logPrior, 0) {
			t.Errorf("candidate %d: log prior %g", i, c.logPrior)
		}
	}
	// The noise grid scales with the observed response stdev.
	minNoise := math.Inf(1)
	for _, c := range cands {
		minNoise = math.Min(minNoise, c.noiseSD)
	}
	if want := 2 * noiseFactors[0]; math.Abs(minNoise-want) > 1e-12 {
		t.Errorf("smallest noise candidate: got %g, want %g", minNoise, want)
	}
}

func TestCorLambda(t *testing.T) {
	p := spde.PCPrior{Threshold: 0.8, Prob: 0.9}
	lam := corLambda(p)
	d0 := math.Sqrt(1 - p.Threshold)
	got := (1 - math.Exp(-lam*d0)) / (1 - math.Exp(-lam*math.Sqrt2))
	if math.Abs(got-p.Prob) > 1e-6 {
		t.Errorf("CDF at solved λ=%g: got %g, want %g", lam, got, p.Prob)
	}
}

func TestHyperSummariesWeights(t *testing.T) {
	cands := []candidate{
		{rng: 1, sigma: 1, rho: 0.5, noiseSD: 1, score: math.Log(1)},
		{rng: 2, sigma: 1, rho: 0.5, noiseSD: 1, score: math.Log(3)},
		{rng: 9, sigma: 9, rho: 0.9, noiseSD: 9, score: math.Inf(-1)}, // failed fit
	}
	out := hyperSummaries(cands)

	var rng inference.Hyperparameter
	for _, h := range out {
		if h.Name == "Range for field" {
			rng = h
		}
	}
	// Weights 0.25 and 0.75; the failed candidate carries no mass.
	if math.Abs(rng.Mean-1.75) > 1e-9 {
		t.Errorf("range posterior mean: got %g, want 1.75", rng.Mean)
	}
	for _, p := range rng.Density {
		if p.X == 9 {
			t.Error("failed candidate contributes density mass")
		}
	}

	for _, h := range out {
		if h.Name == "Stdev for field" {
			if math.Abs(h.Mean-1) > 1e-9 || h.SD > 1e-9 {
				t.Errorf("degenerate stdev marginal: got mean %g sd %g", h.Mean, h.SD)
			}
		}
	}
}
