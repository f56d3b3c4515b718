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

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/ozone/inference"
	"github.com/spatialmodel/ozone/spde"
)

// CovariateNames are the fixed-effect columns of the model, in design
// order.
var CovariateNames = []string{"(Intercept)", "xmaxtemp", "xwdsp", "xrh"}

// ModelConfig collects the model-structure settings shared by
// cross-validation and grid prediction.
type ModelConfig struct {
	Mesh   spde.Options
	Prior  spde.FieldPrior
	Family inference.Family
}

// PredictorRow is one row of a prediction block: a location, its time
// index, and its covariates. Validation observations and grid points both
// reduce to this.
type PredictorRow struct {
	Point      geom.Point
	TimeIndex  int
	Covariates []float64
}

// PredictorRowsFromObservations converts held-out observations to
// prediction rows, preserving order.
func PredictorRowsFromObservations(obs []Observation) []PredictorRow {
	rows := make([]PredictorRow, len(obs))
	for i := range obs {
		rows[i] = PredictorRow{
			Point:      geom.Point{X: obs[i].Longitude, Y: obs[i].Latitude},
			TimeIndex:  obs[i].TimeIndex,
			Covariates: obs[i].Covariates(),
		}
	}
	return rows
}

// PredictorRowsFromGrid converts grid points to prediction rows,
// preserving order.
func PredictorRowsFromGrid(pts []GridPoint) []PredictorRow {
	rows := make([]PredictorRow, len(pts))
	for i := range pts {
		rows[i] = PredictorRow{
			Point:      geom.Point{X: pts[i].Longitude, Y: pts[i].Latitude},
			TimeIndex:  pts[i].TimeIndex,
			Covariates: pts[i].Covariates(),
		}
	}
	return rows
}

// ModelSpec bundles everything the inference engine needs for one fit: the
// mesh (built from the training coordinates only), the basis index, the
// projection matrices of the estimation and prediction blocks, and the
// stacked model input.
type ModelSpec struct {
	Mesh   *spde.Mesh
	Index  spde.Index
	Est    *spde.Design
	Pred   *spde.Design
	Bundle *inference.Bundle
}

// BuildModelSpec assembles the model input for a training subset and a
// prediction block. The mesh is constructed solely from the training
// station coordinates; the same mesh and index serve both projection
// matrices. nGroups is the number of time groups (T). Inputs are not
// modified.
func BuildModelSpec(train []Observation, pred []PredictorRow, nGroups int, cfg ModelConfig) (*ModelSpec, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("ozone: empty training subset")
	}
	if nGroups < 1 {
		return nil, fmt.Errorf("ozone: number of time groups %d must be at least 1", nGroups)
	}

	// Unique training station coordinates, in first-appearance order.
	var coords []geom.Point
	seen := make(map[geom.Point]struct{})
	for i := range train {
		p := geom.Point{X: train[i].Longitude, Y: train[i].Latitude}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		coords = append(coords, p)
	}

	mesh, err := spde.NewMesh(coords, cfg.Mesh)
	if err != nil {
		return nil, err
	}
	ix := spde.NewIndex(mesh.NVert(), nGroups)

	trainPts := make([]geom.Point, len(train))
	trainGroups := make([]int, len(train))
	for i := range train {
		trainPts[i] = geom.Point{X: train[i].Longitude, Y: train[i].Latitude}
		trainGroups[i] = train[i].TimeIndex
	}
	est, err := mesh.Projection(trainPts, trainGroups, ix)
	if err != nil {
		return nil, fmt.Errorf("ozone: building estimation projection: %v", err)
	}

	predPts := make([]geom.Point, len(pred))
	predGroups := make([]int, len(pred))
	for i := range pred {
		predPts[i] = pred[i].Point
		predGroups[i] = pred[i].TimeIndex
	}
	prd, err := mesh.Projection(predPts, predGroups, ix)
	if err != nil {
		return nil, fmt.Errorf("ozone: building prediction projection: %v", err)
	}

	n := len(train) + len(pred)
	p := len(CovariateNames)
	y := make([]float64, n)
	x := mat.NewDense(n, p, nil)
	field := make([]spde.DesignRow, n)
	for i := range train {
		y[i] = train[i].Response
		x.Set(i, 0, 1)
		for j, v := range train[i].Covariates() {
			x.Set(i, j+1, v)
		}
		field[i] = est.Rows[i]
	}
	for i := range pred {
		r := len(train) + i
		y[r] = math.NaN()
		x.Set(r, 0, 1)
		for j, v := range pred[i].Covariates {
			x.Set(r, j+1, v)
		}
		field[r] = prd.Rows[i]
	}

	bundle := &inference.Bundle{
		Y:      y,
		NEst:   len(train),
		X:      x,
		Names:  CovariateNames,
		Field:  field,
		FEM:    mesh.FEM(),
		Index:  ix,
		Prior:  cfg.Prior,
		Family: cfg.Family,
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &ModelSpec{Mesh: mesh, Index: ix, Est: est, Pred: prd, Bundle: bundle}, nil
}
