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
	"math"

	"gonum.org/v1/gonum/stat"
)

var nan = math.NaN()

// Metrics are validation scores comparing predicted means against held-out
// observations. N is the number of complete (both non-missing) pairs used.
// R and R2 are NaN when the correlation is undefined (no complete pairs, or
// zero variance in either side); the NaN is reported as-is, never coerced
// to zero.
type Metrics struct {
	RMSE float64
	MAE  float64
	Bias float64
	R    float64
	R2   float64
	N    int
}

// Compare computes validation metrics over the pairwise-complete subset of
// (pred, obs): pairs where either value is NaN are excluded, not treated as
// zero error.
func Compare(pred, obs []float64) (Metrics, error) {
	if len(pred) != len(obs) {
		return Metrics{}, fmt.Errorf("ozone: prediction length %d does not match observation length %d",
			len(pred), len(obs))
	}
	var p, o []float64
	for i, v := range pred {
		if math.IsNaN(v) || math.IsNaN(obs[i]) {
			continue
		}
		p = append(p, v)
		o = append(o, obs[i])
	}
	m := Metrics{RMSE: nan, MAE: nan, Bias: nan, R: nan, R2: nan, N: len(p)}
	if len(p) == 0 {
		return m, nil
	}
	var sse, sae, sb float64
	for i, v := range p {
		d := v - o[i]
		sse += d * d
		sae += math.Abs(d)
		sb += d
	}
	n := float64(len(p))
	m.RMSE = math.Sqrt(sse / n)
	m.MAE = sae / n
	m.Bias = sb / n
	m.R = stat.Correlation(p, o, nil)
	m.R2 = m.R * m.R
	return m, nil
}

// MeanMetrics aggregates per-fold metrics by arithmetic mean. NaN entries
// (undefined correlations) propagate into the aggregate. N is summed.
func MeanMetrics(ms []Metrics) Metrics {
	var out Metrics
	if len(ms) == 0 {
		return Metrics{RMSE: nan, MAE: nan, Bias: nan, R: nan, R2: nan}
	}
	for _, m := range ms {
		out.RMSE += m.RMSE
		out.MAE += m.MAE
		out.Bias += m.Bias
		out.R += m.R
		out.R2 += m.R2
		out.N += m.N
	}
	n := float64(len(ms))
	out.RMSE /= n
	out.MAE /= n
	out.Bias /= n
	out.R /= n
	out.R2 /= n
	return out
}
