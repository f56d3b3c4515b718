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
	"math"
	"sort"

	"github.com/spatialmodel/ozone/inference"
	"github.com/spatialmodel/ozone/spde"
)

// candidate is one point of the hyperparameter grid.
type candidate struct {
	rng     float64 // spatial range
	sigma   float64 // field marginal stdev
	rho     float64 // AR(1) correlation across time groups
	noiseSD float64 // Gaussian observation noise stdev

	logPrior float64
	score    float64 // log likelihood + log prior; -Inf if the fit failed
}

func (c *candidate) kappa() float64 { return spde.KappaFromRange(c.rng) }
func (c *candidate) tau() float64   { return spde.TauFromSigma(c.kappa(), c.sigma) }

// Multiplicative grid factors around the prior anchors.
var (
	rangeFactors = []float64{0.5, 1, 2, 4}
	sigmaFactors = []float64{0.5, 1, 2}
	noiseFactors = []float64{0.25, 0.5, 1}
	// rhoSteps interpolate between the prior threshold and 1.
	rhoSteps = []float64{0, 0.5, 0.8, 0.95}
)

// candidates builds the hyperparameter grid anchored at the
// penalized-complexity prior thresholds, with the noise grid scaled by the
// observed response stdev.
func candidates(prior spde.FieldPrior, ySD float64) []candidate {
	if ySD <= 0 || math.IsNaN(ySD) {
		ySD = 1
	}
	lamRange := -prior.Range.Threshold * math.Log(prior.Range.Prob)
	lamSigma := -math.Log(prior.Sigma.Prob) / prior.Sigma.Threshold
	lamRho := corLambda(prior.Cor)

	var out []candidate
	for _, fr := range rangeFactors {
		r := prior.Range.Threshold * fr
		lpR := math.Log(lamRange) - 2*math.Log(r) - lamRange/r
		for _, fs := range sigmaFactors {
			s := prior.Sigma.Threshold * fs
			lpS := math.Log(lamSigma) - lamSigma*s
			for _, step := range rhoSteps {
				rho := prior.Cor.Threshold + step*(1-prior.Cor.Threshold)
				if rho >= 1 {
					rho = 1 - 1e-6
				}
				lpRho := corLogDensity(rho, lamRho)
				for _, fn := range noiseFactors {
					ns := ySD * fn
					// Log-uniform working prior on the noise stdev.
					lpN := -math.Log(ns)
					out = append(out, candidate{
						rng:      r,
						sigma:    s,
						rho:      rho,
						noiseSD:  ns,
						logPrior: lpR + lpS + lpRho + lpN,
					})
				}
			}
		}
	}
	return out
}

// corLambda solves for the rate of the penalized-complexity AR(1) prior
// (base model ρ = 1, distance d = sqrt(1-ρ)) such that
// P(ρ > threshold) = prob. The distance CDF is
// (1-exp(-λd)) / (1-exp(-λ√2)); the sign of λ selects which way the prior
// shrinks.
func corLambda(p spde.PCPrior) float64 {
	d0 := math.Sqrt(1 - p.Threshold)
	cdf := func(lam float64) float64 {
		if math.Abs(lam) < 1e-9 {
			return d0 / math.Sqrt2
		}
		return (1 - math.Exp(-lam*d0)) / (1 - math.Exp(-lam*math.Sqrt2))
	}
	lo, hi := -200.0, 200.0
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if cdf(mid) < p.Prob {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func corLogDensity(rho, lam float64) float64 {
	d := math.Sqrt(1 - rho)
	if d <= 0 {
		d = 1e-9
	}
	if math.Abs(lam) < 1e-9 {
		return -math.Log(math.Sqrt2) - math.Log(2*d)
	}
	norm := 1 - math.Exp(-lam*math.Sqrt2)
	return math.Log(math.Abs(lam)) - lam*d - math.Log(math.Abs(norm)) - math.Log(2*d)
}

// hyperSummaries converts the scored candidate grid into posterior
// summaries of each hyperparameter on its natural scale, reporting the
// likelihood precision alongside the field parameters.
func hyperSummaries(cands []candidate) []inference.Hyperparameter {
	// Normalized posterior weights.
	best := math.Inf(-1)
	for i := range cands {
		if cands[i].score > best {
			best = cands[i].score
		}
	}
	w := make([]float64, len(cands))
	var tot float64
	for i := range cands {
		if math.IsInf(cands[i].score, -1) {
			continue
		}
		w[i] = math.Exp(cands[i].score - best)
		tot += w[i]
	}
	for i := range w {
		w[i] /= tot
	}

	value := []func(*candidate) float64{
		func(c *candidate) float64 { return 1 / (c.noiseSD * c.noiseSD) },
		func(c *candidate) float64 { return c.rng },
		func(c *candidate) float64 { return c.sigma },
		func(c *candidate) float64 { return c.rho },
	}
	names := []string{
		"Precision for the Gaussian observations",
		"Range for field",
		"Stdev for field",
		"GroupRho for field",
	}

	out := make([]inference.Hyperparameter, len(names))
	for k := range names {
		out[k] = marginal(names[k], cands, w, value[k])
	}
	return out
}

// marginal collapses the weighted grid onto one hyperparameter dimension.
func marginal(name string, cands []candidate, w []float64, value func(*candidate) float64) inference.Hyperparameter {
	mass := make(map[float64]float64)
	for i := range cands {
		if w[i] == 0 {
			continue
		}
		mass[value(&cands[i])] += w[i]
	}
	xs := make([]float64, 0, len(mass))
	for x := range mass {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	h := inference.Hyperparameter{Name: name}
	for _, x := range xs {
		h.Mean += x * mass[x]
		h.Density = append(h.Density, inference.DensityPoint{X: x, Density: mass[x]})
	}
	var v float64
	for _, x := range xs {
		d := x - h.Mean
		v += d * d * mass[x]
	}
	h.SD = math.Sqrt(v)

	cum := 0.0
	h.Lower, h.Upper = xs[0], xs[len(xs)-1]
	lowerSet := false
	for _, x := range xs {
		cum += mass[x]
		if !lowerSet && cum >= 0.025 {
			h.Lower = x
			lowerSet = true
		}
		if cum >= 0.975 {
			h.Upper = x
			break
		}
	}
	return h
}
