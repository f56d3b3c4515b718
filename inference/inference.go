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

// Package inference defines the contract between the model assembly code
// and a Bayesian inference backend: the stacked model input submitted for
// fitting and the posterior summaries returned. Backends implement Engine;
// package gmrf provides the Gaussian state-space backend used in
// production, and tests substitute deterministic stand-ins.
package inference

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/ozone/spde"
)

// Family is the observation likelihood family.
type Family int

const (
	// FamilyGaussian is a Gaussian observation likelihood.
	FamilyGaussian Family = iota
)

func (f Family) String() string {
	if f == FamilyGaussian {
		return "gaussian"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Bundle is a stacked model input: an estimation block of rows with
// observed responses followed by a prediction block of rows whose response
// is NaN. Both blocks are submitted jointly so that posterior predictive
// quantities are computed consistently with the fitted latent field.
type Bundle struct {
	// Y is the response vector; NaN marks a prediction row. The first NEst
	// rows are the estimation block.
	Y    []float64
	NEst int

	// X is the fixed-effect design (including the intercept column), one
	// row per bundle row; Names labels its columns.
	X     *mat.Dense
	Names []string

	// Field holds each row's projection onto the latent field basis, and
	// FEM and Index describe the basis itself.
	Field []spde.DesignRow
	FEM   *spde.FEM
	Index spde.Index

	Prior  spde.FieldPrior
	Family Family
}

// Len returns the total number of rows in the bundle.
func (b *Bundle) Len() int { return len(b.Y) }

// Validate checks the bundle's internal consistency.
func (b *Bundle) Validate() error {
	n := b.Len()
	if n == 0 {
		return fmt.Errorf("inference: empty bundle")
	}
	if b.NEst <= 0 || b.NEst > n {
		return fmt.Errorf("inference: estimation block size %d outside 1..%d", b.NEst, n)
	}
	for i := 0; i < b.NEst; i++ {
		// Estimation rows may still have missing responses (they carry no
		// likelihood contribution) but the block must not be all-missing.
		if !math.IsNaN(b.Y[i]) {
			break
		}
		if i == b.NEst-1 {
			return fmt.Errorf("inference: estimation block has no observed responses")
		}
	}
	if r, c := b.X.Dims(); r != n {
		return fmt.Errorf("inference: covariate matrix has %d rows for %d bundle rows", r, n)
	} else if len(b.Names) != c {
		return fmt.Errorf("inference: %d covariate names for %d columns", len(b.Names), c)
	}
	if len(b.Field) != n {
		return fmt.Errorf("inference: %d field design rows for %d bundle rows", len(b.Field), n)
	}
	if b.FEM == nil || b.FEM.NVert != b.Index.NVert {
		return fmt.Errorf("inference: field structure does not match index")
	}
	if b.Family != FamilyGaussian {
		return fmt.Errorf("inference: unsupported likelihood family %v", b.Family)
	}
	if err := b.Prior.Validate(); err != nil {
		return err
	}
	return nil
}

// Summary is a posterior mean and standard deviation for one quantity.
// Both are NaN when the quantity is undefined for its row.
type Summary struct {
	Mean, SD float64
}

// FixedEffect is the posterior summary of one regression coefficient.
type FixedEffect struct {
	Name     string
	Mean, SD float64
	// Lower and Upper bound the central 95% credible interval.
	Lower, Upper float64
}

// DensityPoint is one support point of a marginal posterior density curve.
type DensityPoint struct {
	X, Density float64
}

// Hyperparameter is the posterior summary of one hyperparameter on its
// natural scale.
type Hyperparameter struct {
	Name         string
	Mean, SD     float64
	Lower, Upper float64
	Density      []DensityPoint
}

// Posterior holds the results of a fit. Predictor is indexed by row
// position in the bundle, including prediction-block rows.
type Posterior struct {
	Predictor []Summary
	Fixed     []FixedEffect
	Hyper     []Hyperparameter
}

// PredictionBlock returns the linear-predictor summaries of the bundle's
// prediction rows, in the order they were stacked.
func (p *Posterior) PredictionBlock(b *Bundle) []Summary {
	return p.Predictor[b.NEst:]
}

// Engine is an inference backend: it fits the stacked model input and
// returns posterior summaries for fixed effects, hyperparameters, and the
// linear predictor at every bundle row. A failed fit is reported through
// the error return; rows whose prediction is undefined carry NaN summaries
// in an otherwise successful fit.
type Engine interface {
	Fit(ctx context.Context, b *Bundle) (*Posterior, error)
}
