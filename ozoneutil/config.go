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

package ozoneutil

import (
	"context"
	"time"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"

	"github.com/spatialmodel/ozone"
	"github.com/spatialmodel/ozone/inference"
	"github.com/spatialmodel/ozone/spde"
)

// loadData reads and indexes the observation table named by the
// configuration, applying the response transform and day subset.
func loadData(ctx context.Context, cfg *viper.Viper) (*ozone.Dataset, error) {
	transform, err := ozone.ParseTransform(cfg.GetString("Transform"))
	if err != nil {
		return nil, err
	}
	d, err := ozone.LoadDataset(ctx, cfg.GetString("DataFile"), transform)
	if err != nil {
		return nil, err
	}
	return d.KeepDays(cfg.GetInt("NumDays")), nil
}

// modelConfig assembles the model-structure settings from the
// configuration.
func modelConfig(cfg *viper.Viper) (ozone.ModelConfig, error) {
	mc := ozone.ModelConfig{
		Mesh: spde.Options{
			MaxEdgeInterior: cast.ToFloat64(cfg.Get("Mesh.MaxEdgeInterior")),
			MaxEdgeExterior: cast.ToFloat64(cfg.Get("Mesh.MaxEdgeExterior")),
			Cutoff:          cast.ToFloat64(cfg.Get("Mesh.Cutoff")),
			Offset:          cast.ToFloat64(cfg.Get("Mesh.Offset")),
		},
		Prior: spde.FieldPrior{
			Range: spde.PCPrior{
				Threshold: cast.ToFloat64(cfg.Get("Prior.RangeThreshold")),
				Prob:      cast.ToFloat64(cfg.Get("Prior.RangeProb")),
			},
			Sigma: spde.PCPrior{
				Threshold: cast.ToFloat64(cfg.Get("Prior.SigmaThreshold")),
				Prob:      cast.ToFloat64(cfg.Get("Prior.SigmaProb")),
			},
			Cor: spde.PCPrior{
				Threshold: cast.ToFloat64(cfg.Get("Prior.RhoThreshold")),
				Prob:      cast.ToFloat64(cfg.Get("Prior.RhoProb")),
			},
		},
		Family: inference.FamilyGaussian,
	}
	return mc, mc.Prior.Validate()
}

// crossValConfig assembles the cross-validation settings from the
// configuration.
func crossValConfig(cfg *viper.Viper) (ozone.Config, error) {
	mc, err := modelConfig(cfg)
	if err != nil {
		return ozone.Config{}, err
	}
	return ozone.Config{
		Folds:   cfg.GetInt("Folds"),
		Seed:    cast.ToInt64(cfg.Get("Seed")),
		Workers: cfg.GetInt("Workers"),
		Timeout: time.Duration(cfg.GetInt("FoldTimeoutSeconds")) * time.Second,
		Model:   mc,
	}, nil
}
