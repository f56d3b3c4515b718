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
	"math"
	"testing"
)

const metricTol = 1e-9

func TestCompare(t *testing.T) {
	pred := []float64{2, 3, 4}
	obs := []float64{1, 3, 6}
	m, err := Compare(pred, obs)
	if err != nil {
		t.Fatal(err)
	}
	// RMSE = sqrt((1+0+4)/3), MAE = (1+0+2)/3, bias = (1+0-2)/3.
	if want := math.Sqrt(5.0 / 3.0); math.Abs(m.RMSE-want) > metricTol {
		t.Errorf("RMSE: got %g, want %g", m.RMSE, want)
	}
	if math.Abs(m.MAE-1) > metricTol {
		t.Errorf("MAE: got %g, want 1", m.MAE)
	}
	if want := -1.0 / 3.0; math.Abs(m.Bias-want) > metricTol {
		t.Errorf("bias: got %g, want %g", m.Bias, want)
	}
	// Pearson correlation of (2,3,4) with (1,3,6): covariance 2.5,
	// stdevs 1 and sqrt(19/3).
	wantR := 2.5 / math.Sqrt(19.0/3.0)
	if math.Abs(m.R-wantR) > 1e-12 {
		t.Errorf("R: got %g, want %g", m.R, wantR)
	}
	if math.Abs(m.R2-wantR*wantR) > 1e-12 {
		t.Errorf("R²: got %g, want %g", m.R2, wantR*wantR)
	}
	if m.N != 3 {
		t.Errorf("N: got %d, want 3", m.N)
	}
}

func TestCompareMissing(t *testing.T) {
	pred := []float64{2, 3, 4}
	obs := []float64{1, math.NaN(), 6}
	m, err := Compare(pred, obs)
	if err != nil {
		t.Fatal(err)
	}
	// Only pairs {0, 2} count; the middle pair is excluded, not zero.
	if m.N != 2 {
		t.Fatalf("N: got %d, want 2", m.N)
	}
	if want := math.Sqrt(2.5); math.Abs(m.RMSE-want) > metricTol {
		t.Errorf("RMSE: got %g, want %g", m.RMSE, want)
	}
	if math.Abs(m.MAE-1.5) > metricTol {
		t.Errorf("MAE: got %g, want 1.5", m.MAE)
	}
	if math.Abs(m.Bias+0.5) > metricTol {
		t.Errorf("bias: got %g, want -0.5", m.Bias)
	}
}

func TestCompareNoPairs(t *testing.T) {
	m, err := Compare([]float64{1, 2}, []float64{math.NaN(), math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	if m.N != 0 {
		t.Fatalf("N: got %d, want 0", m.N)
	}
	for name, v := range map[string]float64{
		"RMSE": m.RMSE, "MAE": m.MAE, "bias": m.Bias, "R": m.R, "R²": m.R2,
	} {
		if !math.IsNaN(v) {
			t.Errorf("%s: got %g, want NaN", name, v)
		}
	}
}

func TestCompareZeroVariance(t *testing.T) {
	// Constant observations make the correlation undefined; the other
	// metrics stay finite.
	m, err := Compare([]float64{1, 2, 3}, []float64{2, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(m.R) || !math.IsNaN(m.R2) {
		t.Errorf("R, R²: got %g, %g, want NaN, NaN", m.R, m.R2)
	}
	if math.IsNaN(m.RMSE) || math.IsNaN(m.MAE) || math.IsNaN(m.Bias) {
		t.Errorf("RMSE/MAE/bias should be finite, got %+v", m)
	}
}

func TestCompareLengthMismatch(t *testing.T) {
	if _, err := Compare([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestMeanMetrics(t *testing.T) {
	var ms []Metrics
	for _, v := range []float64{1, 2, 3, 4, 5} {
		ms = append(ms, Metrics{RMSE: v, MAE: v, Bias: v, R: v, R2: v, N: 2})
	}
	m := MeanMetrics(ms)
	if m.RMSE != 3.0 {
		t.Errorf("mean RMSE: got %g, want exactly 3", m.RMSE)
	}
	if m.N != 10 {
		t.Errorf("total N: got %d, want 10", m.N)
	}
}

func TestMeanMetricsNaNPropagates(t *testing.T) {
	ms := []Metrics{
		{RMSE: 1, R: math.NaN(), R2: math.NaN()},
		{RMSE: 3, R: 0.5, R2: 0.25},
	}
	m := MeanMetrics(ms)
	if m.RMSE != 2.0 {
		t.Errorf("mean RMSE: got %g, want 2", m.RMSE)
	}
	if !math.IsNaN(m.R) || !math.IsNaN(m.R2) {
		t.Errorf("mean R, R²: got %g, %g, want NaN (propagated, not dropped)", m.R, m.R2)
	}
}
