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
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spatialmodel/ozone/inference"
)

// Config holds the cross-validation settings.
type Config struct {
	// Folds is the number of folds k.
	Folds int
	// Seed drives the fold assignment.
	Seed int64
	// Workers is the number of folds fit concurrently; values below 1 mean
	// serial execution.
	Workers int
	// Timeout bounds each fold's model build and fit; zero means no limit.
	Timeout time.Duration

	Model ModelConfig
}

// DefaultConfig returns the reference configuration: 5 folds, seed 23,
// serial execution.
func DefaultConfig() Config {
	return Config{Folds: 5, Seed: 23, Workers: 1}
}

// FoldResult is the outcome of one fold. Err is non-nil if the fold's mesh
// construction or fit failed; its metrics are then undefined and the fold
// is excluded from the aggregate.
type FoldResult struct {
	Fold    int
	NTrain  int
	NValid  int
	Metrics Metrics
	Err     error

	// Pred and Obs are the per-row predicted means and held-out observed
	// values of the fold's validation block, in validation order.
	Pred, Obs []float64
}

// Report is the full cross-validation outcome: the per-fold results in
// fold order and the arithmetic mean of each metric over the folds that
// succeeded. NaN metrics in a succeeded fold (undefined correlation)
// propagate into the mean.
type Report struct {
	Folds     []FoldResult
	Mean      Metrics
	Succeeded int
	Failed    int
}

// CrossValidate runs k-fold cross-validation of the spatio-temporal model
// on d using engine e. The fold assignment is computed once up front and is
// read-only thereafter; each fold's mesh and model input are built from its
// training subset only and invoked independently, so folds may run
// concurrently when cfg.Workers > 1. Metric aggregation is a deterministic
// reduction in fold order regardless of completion order.
func CrossValidate(ctx context.Context, d *Dataset, e inference.Engine, cfg Config) (*Report, error) {
	labels, _, err := FoldLabels(d, cfg.Folds, cfg.Seed)
	if err != nil {
		return nil, err
	}

	report := &Report{Folds: make([]FoldResult, cfg.Folds)}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Folds {
		workers = cfg.Folds
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fold := range jobs {
				report.Folds[fold-1] = runFold(ctx, d, labels, fold, e, cfg)
			}
		}()
	}
	for fold := 1; fold <= cfg.Folds; fold++ {
		jobs <- fold
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ok []Metrics
	for _, fr := range report.Folds {
		if fr.Err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
		ok = append(ok, fr.Metrics)
	}
	report.Mean = MeanMetrics(ok)
	return report, nil
}

// runFold executes the build → fit → extract → score sequence for one fold.
func runFold(ctx context.Context, d *Dataset, labels []int, fold int, e inference.Engine, cfg Config) FoldResult {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var train, valid []Observation
	for i := range d.Obs {
		if labels[i] == fold {
			valid = append(valid, d.Obs[i])
		} else {
			train = append(train, d.Obs[i])
		}
	}
	fr := FoldResult{Fold: fold, NTrain: len(train), NValid: len(valid)}

	spec, err := BuildModelSpec(train, PredictorRowsFromObservations(valid), d.T, cfg.Model)
	if err != nil {
		fr.Err = fmt.Errorf("fold %d: %v", fold, err)
		return fr
	}

	post, err := e.Fit(ctx, spec.Bundle)
	if err != nil {
		fr.Err = fmt.Errorf("fold %d: %v", fold, err)
		return fr
	}

	block := post.PredictionBlock(spec.Bundle)
	pred := make([]float64, len(valid))
	obs := make([]float64, len(valid))
	for i := range valid {
		pred[i] = block[i].Mean
		obs[i] = valid[i].Response
	}
	fr.Pred, fr.Obs = pred, obs
	fr.Metrics, err = Compare(pred, obs)
	if err != nil {
		fr.Err = fmt.Errorf("fold %d: %v", fold, err)
	}
	return fr
}

// Write prints the per-fold and mean metrics with 3-decimal rounding.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "fold\tn\tRMSE\tMAE\tbias\tR\tR²\t")
	for _, fr := range r.Folds {
		if fr.Err != nil {
			fmt.Fprintf(tw, "%d\t-\tfailed: %v\t\t\t\t\t\n", fr.Fold, fr.Err)
			continue
		}
		m := fr.Metrics
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
			fr.Fold, m.N, m.RMSE, m.MAE, m.Bias, m.R, m.R2)
	}
	m := r.Mean
	fmt.Fprintf(tw, "mean\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
		m.N, m.RMSE, m.MAE, m.Bias, m.R, m.R2)
	if r.Failed > 0 {
		fmt.Fprintf(tw, "\t\t%d of %d folds failed and are excluded from the mean\t\t\t\t\t\n",
			r.Failed, r.Failed+r.Succeeded)
	}
	return tw.Flush()
}
