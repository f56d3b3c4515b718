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

// Package gmrf is the Gaussian inference backend. It represents the
// AR(1)-coupled spatial field as a linear-Gaussian state-space model over
// time groups, with the fixed-effect coefficients carried as static state
// components, and computes exact posteriors for fixed hyperparameters by
// Kalman filtering and Rauch-Tung-Striebel smoothing. Hyperparameters
// (spatial range, field stdev, AR(1) correlation, observation noise) are
// selected by maximum a posteriori over a candidate grid anchored at the
// penalized-complexity priors, with the grid posterior weights supplying
// the hyperparameter marginals.
package gmrf

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/ozone/inference"
)

// defaultBetaVariance is the prior variance of each fixed-effect
// coefficient (prior precision 0.001).
const defaultBetaVariance = 1000.0

// Engine is the state-space Gaussian inference backend.
type Engine struct {
	// BetaVariance is the prior variance of the fixed-effect coefficients.
	// Zero means the default of 1000.
	BetaVariance float64
}

// New returns an Engine with default settings.
func New() *Engine { return &Engine{} }

func (e *Engine) betaVariance() float64 {
	if e.BetaVariance > 0 {
		return e.BetaVariance
	}
	return defaultBetaVariance
}

// Fit implements inference.Engine.
func (e *Engine) Fit(ctx context.Context, b *inference.Bundle) (*inference.Posterior, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	mdl := newModel(b, e.betaVariance())
	cands := candidates(b.Prior, observedSD(b))

	// Score every candidate by log marginal likelihood + log prior.
	best, nOK := -1, 0
	for i := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ll, err := mdl.logLik(ctx, &cands[i])
		if err != nil {
			cands[i].score = math.Inf(-1)
			continue
		}
		cands[i].score = ll + cands[i].logPrior
		nOK++
		if best < 0 || cands[i].score > cands[best].score {
			best = i
		}
	}
	if nOK == 0 {
		return nil, fmt.Errorf("gmrf: inference failed for all %d hyperparameter candidates", len(cands))
	}

	// Full pass with smoothing at the MAP candidate.
	sm, err := mdl.smooth(ctx, &cands[best])
	if err != nil {
		return nil, fmt.Errorf("gmrf: smoothing at selected hyperparameters: %v", err)
	}

	post := &inference.Posterior{
		Predictor: mdl.predictorSummaries(sm),
		Fixed:     mdl.fixedEffects(sm),
		Hyper:     hyperSummaries(cands),
	}
	return post, nil
}

// observedSD is the standard deviation of the non-missing responses, used
// to scale the noise candidate grid.
func observedSD(b *inference.Bundle) float64 {
	var n int
	var sum, ss float64
	for i := 0; i < b.NEst; i++ {
		if math.IsNaN(b.Y[i]) {
			continue
		}
		n++
		sum += b.Y[i]
	}
	if n < 2 {
		return 1
	}
	mean := sum / float64(n)
	for i := 0; i < b.NEst; i++ {
		if math.IsNaN(b.Y[i]) {
			continue
		}
		d := b.Y[i] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// model precomputes the bundle's state-space structure: state dimension,
// and the estimation rows grouped by time.
type model struct {
	b       *inference.Bundle
	nVert   int // latent field vertices
	nBeta   int // fixed-effect coefficients
	nState  int
	nGroups int
	betaVar float64

	// obsByGroup[g-1] lists estimation-row indices with observed responses
	// in time group g.
	obsByGroup [][]int
}

func newModel(b *inference.Bundle, betaVar float64) *model {
	_, p := b.X.Dims()
	m := &model{
		b:          b,
		nVert:      b.Index.NVert,
		nBeta:      p,
		nState:     b.Index.NVert + p,
		nGroups:    b.Index.NGroups,
		betaVar:    betaVar,
		obsByGroup: make([][]int, b.Index.NGroups),
	}
	for i := 0; i < b.NEst; i++ {
		if math.IsNaN(b.Y[i]) {
			continue
		}
		g := b.Field[i].Group
		m.obsByGroup[g-1] = append(m.obsByGroup[g-1], i)
	}
	return m
}

// obsRow fills h with the observation vector of bundle row r: barycentric
// field weights in the state's field block and covariates in the static
// block.
func (m *model) obsRow(h []float64, r int) {
	for i := range h {
		h[i] = 0
	}
	fr := m.b.Field[r]
	for j := 0; j < 3; j++ {
		if fr.Weights[j] != 0 {
			h[fr.Verts[j]] += fr.Weights[j]
		}
	}
	for j := 0; j < m.nBeta; j++ {
		h[m.nVert+j] = m.b.X.At(r, j)
	}
}

// stationary builds the stationary covariance of the latent field for a
// candidate: the inverse of the SPDE precision matrix.
func (m *model) stationary(c *candidate) (*mat.SymDense, error) {
	q, err := m.b.FEM.Precision(c.kappa(), c.tau())
	if err != nil {
		return nil, err
	}
	var ch mat.Cholesky
	if !ch.Factorize(q) {
		return nil, fmt.Errorf("gmrf: field precision matrix is not positive definite")
	}
	sigma := mat.NewSymDense(m.nVert, nil)
	if err := ch.InverseTo(sigma); err != nil {
		return nil, fmt.Errorf("gmrf: inverting field precision: %v", err)
	}
	return sigma, nil
}

// initialCov is the time-1 prior covariance: stationary field block plus
// the diffuse fixed-effect block.
func (m *model) initialCov(sigma *mat.SymDense) *mat.Dense {
	p := mat.NewDense(m.nState, m.nState, nil)
	for i := 0; i < m.nVert; i++ {
		for j := 0; j < m.nVert; j++ {
			p.Set(i, j, sigma.At(i, j))
		}
	}
	for j := 0; j < m.nBeta; j++ {
		p.Set(m.nVert+j, m.nVert+j, m.betaVar)
	}
	return p
}

// predictCov computes the one-step-ahead covariance in place:
// Ppred = F Pfilt Fᵀ + Qproc with diagonal F (ρ on the field block, 1 on
// the static block) and Qproc = (1-ρ²)Σ on the field block.
func (m *model) predictCov(dst, pf *mat.Dense, sigma *mat.SymDense, rho float64) {
	q := 1 - rho*rho
	for i := 0; i < m.nState; i++ {
		fi := 1.0
		if i < m.nVert {
			fi = rho
		}
		for j := 0; j < m.nState; j++ {
			fj := 1.0
			if j < m.nVert {
				fj = rho
			}
			v := fi * fj * pf.At(i, j)
			if i < m.nVert && j < m.nVert {
				v += q * sigma.At(i, j)
			}
			dst.Set(i, j, v)
		}
	}
}

func (m *model) predictMean(dst, mf []float64, rho float64) {
	for i := range dst {
		if i < m.nVert {
			dst[i] = rho * mf[i]
		} else {
			dst[i] = mf[i]
		}
	}
}

// kalman holds the per-group filter results retained for smoothing.
type kalman struct {
	mPred, mFilt [][]float64
	pPred, pFilt []*mat.Dense
	logLik       float64
}

// filter runs the Kalman filter across time groups for candidate c,
// accumulating the prediction-error-decomposition log likelihood. The
// returned structure feeds the smoother.
func (m *model) filter(ctx context.Context, c *candidate) (*kalman, error) {
	sigma, err := m.stationary(c)
	if err != nil {
		return nil, err
	}
	noiseVar := c.noiseSD * c.noiseSD
	n := m.nState

	k := &kalman{
		mPred: make([][]float64, m.nGroups),
		mFilt: make([][]float64, m.nGroups),
		pPred: make([]*mat.Dense, m.nGroups),
		pFilt: make([]*mat.Dense, m.nGroups),
	}

	h := make([]float64, n)
	for g := 0; g < m.nGroups; g++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mp := make([]float64, n)
		var pp *mat.Dense
		if g == 0 {
			pp = m.initialCov(sigma)
		} else {
			pp = mat.NewDense(n, n, nil)
			m.predictMean(mp, k.mFilt[g-1], c.rho)
			m.predictCov(pp, k.pFilt[g-1], sigma, c.rho)
		}
		k.mPred[g], k.pPred[g] = mp, pp

		rows := m.obsByGroup[g]
		if len(rows) == 0 {
			k.mFilt[g], k.pFilt[g] = mp, pp
			continue
		}

		nObs := len(rows)
		hMat := mat.NewDense(nObs, n, nil)
		e := make([]float64, nObs)
		for i, r := range rows {
			m.obsRow(h, r)
			hMat.SetRow(i, h)
			e[i] = m.b.Y[r] - dot(h, mp)
		}

		// S = H Ppred Hᵀ + σ²I.
		var hp mat.Dense
		hp.Mul(hMat, pp)
		s := mat.NewSymDense(nObs, nil)
		for i := 0; i < nObs; i++ {
			for j := i; j < nObs; j++ {
				v := 0.0
				for l := 0; l < n; l++ {
					v += hp.At(i, l) * hMat.At(j, l)
				}
				if i == j {
					v += noiseVar
				}
				s.SetSym(i, j, v)
			}
		}
		var ch mat.Cholesky
		if !ch.Factorize(s) {
			return nil, fmt.Errorf("gmrf: innovation covariance not positive definite in time group %d", g+1)
		}

		// Log likelihood contribution.
		eVec := mat.NewVecDense(nObs, e)
		var se mat.VecDense
		if err := ch.SolveVecTo(&se, eVec); err != nil {
			return nil, fmt.Errorf("gmrf: time group %d: %v", g+1, err)
		}
		k.logLik -= 0.5 * (float64(nObs)*math.Log(2*math.Pi) + ch.LogDet() + mat.Dot(eVec, &se))

		// Gain K = Ppred Hᵀ S⁻¹, computed as (S⁻¹ (H Ppred))ᵀ.
		var skp mat.Dense
		if err := ch.SolveTo(&skp, &hp); err != nil {
			return nil, fmt.Errorf("gmrf: time group %d: %v", g+1, err)
		}

		mf := make([]float64, n)
		for i := 0; i < n; i++ {
			v := mp[i]
			for j := 0; j < nObs; j++ {
				v += skp.At(j, i) * e[j]
			}
			mf[i] = v
		}
		pf := mat.NewDense(n, n, nil)
		var khp mat.Dense
		khp.Mul(skp.T(), &hp)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				pf.Set(i, j, pp.At(i, j)-(khp.At(i, j)+khp.At(j, i))/2)
			}
		}
		k.mFilt[g], k.pFilt[g] = mf, pf
	}
	return k, nil
}

// logLik returns the log marginal likelihood of candidate c.
func (m *model) logLik(ctx context.Context, c *candidate) (float64, error) {
	k, err := m.filter(ctx, c)
	if err != nil {
		return 0, err
	}
	return k.logLik, nil
}

// smoothed holds the posterior (smoothed) state moments per time group.
type smoothed struct {
	mean []([]float64)
	cov  []*mat.Dense
}

// smooth runs the filter and the backward Rauch-Tung-Striebel recursion for
// candidate c.
func (m *model) smooth(ctx context.Context, c *candidate) (*smoothed, error) {
	k, err := m.filter(ctx, c)
	if err != nil {
		return nil, err
	}
	n := m.nState
	sm := &smoothed{
		mean: make([][]float64, m.nGroups),
		cov:  make([]*mat.Dense, m.nGroups),
	}
	last := m.nGroups - 1
	sm.mean[last] = k.mFilt[last]
	sm.cov[last] = k.pFilt[last]

	for g := last - 1; g >= 0; g-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// J = Pfilt Fᵀ Ppred⁻¹, with diagonal F.
		pfF := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				fj := 1.0
				if j < m.nVert {
					fj = c.rho
				}
				pfF.Set(i, j, k.pFilt[g].At(i, j)*fj)
			}
		}
		ppSym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				ppSym.SetSym(i, j, (k.pPred[g+1].At(i, j)+k.pPred[g+1].At(j, i))/2)
			}
		}
		var ch mat.Cholesky
		if !ch.Factorize(ppSym) {
			return nil, fmt.Errorf("gmrf: predicted covariance not positive definite in time group %d", g+2)
		}
		var jt mat.Dense
		if err := ch.SolveTo(&jt, pfF.T()); err != nil {
			return nil, fmt.Errorf("gmrf: time group %d: %v", g+2, err)
		}
		// jt = Ppred⁻¹ F Pfiltᵀ, so J = jtᵀ.

		mean := make([]float64, n)
		diffM := make([]float64, n)
		for i := 0; i < n; i++ {
			diffM[i] = sm.mean[g+1][i] - k.mPred[g+1][i]
		}
		for i := 0; i < n; i++ {
			v := k.mFilt[g][i]
			for j := 0; j < n; j++ {
				v += jt.At(j, i) * diffM[j]
			}
			mean[i] = v
		}

		diffP := mat.NewDense(n, n, nil)
		diffP.Sub(sm.cov[g+1], k.pPred[g+1])
		var jd, jdj mat.Dense
		jd.Mul(jt.T(), diffP)
		jdj.Mul(&jd, &jt)
		cov := mat.NewDense(n, n, nil)
		cov.Add(k.pFilt[g], &jdj)
		sm.mean[g], sm.cov[g] = mean, cov
	}
	return sm, nil
}

// predictorSummaries computes the linear-predictor posterior for every
// bundle row from the smoothed state of the row's time group.
func (m *model) predictorSummaries(sm *smoothed) []inference.Summary {
	out := make([]inference.Summary, m.b.Len())
	h := make([]float64, m.nState)
	for r := range out {
		if undefinedRow(m.b, r) {
			out[r] = inference.Summary{Mean: math.NaN(), SD: math.NaN()}
			continue
		}
		g := m.b.Field[r].Group - 1
		m.obsRow(h, r)
		mean := dot(h, sm.mean[g])
		v := quadForm(h, sm.cov[g])
		out[r] = inference.Summary{Mean: mean, SD: math.Sqrt(math.Max(v, 0))}
	}
	return out
}

// undefinedRow reports whether row r's prediction is undefined: a missing
// covariate makes the linear predictor incomputable without making the
// whole fit a failure.
func undefinedRow(b *inference.Bundle, r int) bool {
	_, p := b.X.Dims()
	for j := 0; j < p; j++ {
		if math.IsNaN(b.X.At(r, j)) {
			return true
		}
	}
	return false
}

const z975 = 1.959963984540054

func (m *model) fixedEffects(sm *smoothed) []inference.FixedEffect {
	out := make([]inference.FixedEffect, m.nBeta)
	for j := 0; j < m.nBeta; j++ {
		i := m.nVert + j
		mean := sm.mean[0][i]
		sd := math.Sqrt(math.Max(sm.cov[0].At(i, i), 0))
		out[j] = inference.FixedEffect{
			Name:  m.b.Names[j],
			Mean:  mean,
			SD:    sd,
			Lower: mean - z975*sd,
			Upper: mean + z975*sd,
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	v := 0.0
	for i := range a {
		v += a[i] * b[i]
	}
	return v
}

// quadForm computes hᵀ P h.
func quadForm(h []float64, p *mat.Dense) float64 {
	v := 0.0
	for i := range h {
		if h[i] == 0 {
			continue
		}
		for j := range h {
			if h[j] == 0 {
				continue
			}
			v += h[i] * p.At(i, j) * h[j]
		}
	}
	return v
}
