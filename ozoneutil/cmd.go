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

// Package ozoneutil holds the configuration surface and command-line
// interface of the ozone model.
package ozoneutil

import (
	"context"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/ozone"
	"github.com/spatialmodel/ozone/inference/gmrf"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the model.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DataFile",
			usage: `
              DataFile is the path or URL of the station-day observation table
              (CSV with columns s.index, Longitude, Latitude, Year, Month, Day,
              y8hrmax, xmaxtemp, xwdsp, xrh).`,
			shorthand:  "d",
			defaultVal: "nydata.csv",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "GridFile",
			usage: `
              GridFile is the path or URL of the prediction grid table
              (same temporal and covariate columns, no response).`,
			defaultVal: "gridnysptime.csv",
			flagsets:   []*pflag.FlagSet{predictCmd.Flags()},
		},
		{
			name: "Transform",
			usage: `
              Transform is the response transformation applied before
              modeling: sqrt, log, or none.`,
			defaultVal: "sqrt",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NumDays",
			usage: `
              NumDays restricts the dataset to the first NumDays time points.
              Zero keeps all days.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Folds",
			usage: `
              Folds is the number of cross-validation folds k.`,
			shorthand:  "k",
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{cvCmd.Flags()},
		},
		{
			name: "Seed",
			usage: `
              Seed drives the random assignment of stations to folds.`,
			defaultVal: 23,
			flagsets:   []*pflag.FlagSet{cvCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of folds fit concurrently.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{cvCmd.Flags()},
		},
		{
			name: "FoldTimeoutSeconds",
			usage: `
              FoldTimeoutSeconds bounds each fold's model build and fit.
              Zero means no limit.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cvCmd.Flags()},
		},
		{
			name: "Mesh.MaxEdgeInterior",
			usage: `
              Mesh.MaxEdgeInterior is the target triangle edge length inside
              the data extent [degrees].`,
			defaultVal: 0.4,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mesh.MaxEdgeExterior",
			usage: `
              Mesh.MaxEdgeExterior is the target triangle edge length in the
              mesh extension [degrees].`,
			defaultVal: 1.2,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mesh.Cutoff",
			usage: `
              Mesh.Cutoff is the minimum separation between mesh vertices
              [degrees].`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mesh.Offset",
			usage: `
              Mesh.Offset is the distance the mesh extends beyond the data
              [degrees].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Prior.RangeThreshold",
			usage: `
              Prior.RangeThreshold and Prior.RangeProb specify the penalized
              complexity prior P(spatial range < threshold) = prob.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "Prior.RangeProb",
			usage:      ``,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Prior.SigmaThreshold",
			usage: `
              Prior.SigmaThreshold and Prior.SigmaProb specify the penalized
              complexity prior P(field stdev > threshold) = prob.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "Prior.SigmaProb",
			usage:      ``,
			defaultVal: 0.005,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Prior.RhoThreshold",
			usage: `
              Prior.RhoThreshold and Prior.RhoProb specify the penalized
              complexity prior P(AR(1) correlation > threshold) = prob.`,
			defaultVal: 0.8,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "Prior.RhoProb",
			usage:      ``,
			defaultVal: 0.9,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "PredictDay",
			usage: `
              PredictDay is the 1-based time index of the grid prediction
              slice.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{predictCmd.Flags()},
		},
		{
			name: "OutputPrefix",
			usage: `
              OutputPrefix is prepended to the output map and table file
              names.`,
			shorthand:  "o",
			defaultVal: "ozone_",
			flagsets:   []*pflag.FlagSet{predictCmd.Flags(), cvCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OZONE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(cvCmd)
	Root.AddCommand(predictCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ozone: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "ozone",
	Short: "A Bayesian spatio-temporal ground-level ozone model.",
	Long: `Ozone fits a Bayesian spatio-temporal model to station observations of
ground-level ozone concentration and evaluates it by k-fold
cross-validation. Use the subcommands specified below to access the model
functionality.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'OZONE_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Ozone.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Ozone v%s\n", ozone.Version)
	},
	DisableAutoGenTag: true,
}

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Cross-validate the model.",
	Long: `cv runs k-fold cross-validation of the spatio-temporal model: stations
are partitioned into folds, each fold is held out in turn, and the
predictions at the held-out stations are scored against their observed
values. The per-fold and averaged RMSE, MAE, bias, and correlation are
printed, and an observed-versus-predicted scatter plot is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := loadData(ctx, Cfg)
		if err != nil {
			return err
		}
		cfg, err := crossValConfig(Cfg)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"stations": len(d.Stations),
			"days":     d.T,
			"folds":    cfg.Folds,
			"seed":     cfg.Seed,
		}).Info("starting cross-validation")

		report, err := ozone.CrossValidate(ctx, d, gmrf.New(), cfg)
		if err != nil {
			return err
		}
		if err := report.Write(os.Stdout); err != nil {
			return err
		}
		return writeScatter(d, report, Cfg.GetString("OutputPrefix")+"scatter.png")
	},
	DisableAutoGenTag: true,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the ozone surface on the grid.",
	Long: `predict fits the model to the entire dataset and produces the posterior
mean and standard deviation of the ozone linear predictor at every grid
point for the configured day, written as maps and a CSV table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := loadData(ctx, Cfg)
		if err != nil {
			return err
		}
		grid, err := ozone.LoadGrid(ctx, Cfg.GetString("GridFile"), d)
		if err != nil {
			return err
		}
		mc, err := modelConfig(Cfg)
		if err != nil {
			return err
		}
		day := Cfg.GetInt("PredictDay")
		logrus.WithFields(logrus.Fields{
			"stations": len(d.Stations),
			"days":     d.T,
			"day":      day,
			"grid":     len(grid),
		}).Info("starting grid prediction")

		pred, err := ozone.PredictGrid(ctx, d, grid, day, gmrf.New(), mc)
		if err != nil {
			return err
		}
		for _, fe := range pred.Fixed {
			logrus.WithFields(logrus.Fields{
				"mean": fmt.Sprintf("%.3f", fe.Mean),
				"sd":   fmt.Sprintf("%.3f", fe.SD),
			}).Info(fe.Name)
		}
		prefix := Cfg.GetString("OutputPrefix")
		if err := writeSurfaceTable(pred, prefix+"surface.csv"); err != nil {
			return err
		}
		return writeSurfaceMaps(d, pred, prefix)
	},
	DisableAutoGenTag: true,
}
