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
	"context"
	"fmt"

	"github.com/spatialmodel/ozone/inference"
)

// GridPrediction is the posterior linear-predictor surface at one time
// slice of the prediction grid: Mean and SD are indexed like Points.
type GridPrediction struct {
	TimeIndex int
	Points    []GridPoint
	Mean      []float64
	SD        []float64

	// Fixed and Hyper are the posterior summaries of the underlying
	// full-data fit.
	Fixed []inference.FixedEffect
	Hyper []inference.Hyperparameter
}

// PredictGrid fits the model to the entire dataset and predicts the linear
// predictor at the grid points whose TimeIndex equals day. This is the
// single-pass analogue of the cross-validation loop: no fold splitting, the
// full dataset is the estimation block, and the prediction block is one
// time slice of the spatial grid.
func PredictGrid(ctx context.Context, d *Dataset, grid []GridPoint, day int, e inference.Engine, cfg ModelConfig) (*GridPrediction, error) {
	if day < 1 || day > d.T {
		return nil, fmt.Errorf("ozone: prediction day %d outside 1..%d", day, d.T)
	}
	var slice []GridPoint
	for _, g := range grid {
		if g.TimeIndex == day {
			slice = append(slice, g)
		}
	}
	if len(slice) == 0 {
		return nil, fmt.Errorf("ozone: prediction grid has no points for day %d", day)
	}

	spec, err := BuildModelSpec(d.Obs, PredictorRowsFromGrid(slice), d.T, cfg)
	if err != nil {
		return nil, err
	}
	post, err := e.Fit(ctx, spec.Bundle)
	if err != nil {
		return nil, err
	}

	block := post.PredictionBlock(spec.Bundle)
	out := &GridPrediction{
		TimeIndex: day,
		Points:    slice,
		Mean:      make([]float64, len(slice)),
		SD:        make([]float64, len(slice)),
		Fixed:     post.Fixed,
		Hyper:     post.Hyper,
	}
	for i := range slice {
		out.Mean[i] = block[i].Mean
		out.SD[i] = block[i].SD
	}
	return out, nil
}
