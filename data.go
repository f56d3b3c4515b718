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

// Package ozone implements a Bayesian spatio-temporal model for ground-level
// ozone concentration and its k-fold cross-validation evaluator. The latent
// spatial field is discretized on a triangulated mesh (package spde) and
// coupled across days by first-order autoregression; posterior inference is
// delegated to an inference.Engine.
package ozone

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Transform is the response transformation applied before modeling.
type Transform int

const (
	TransformNone Transform = iota
	TransformSqrt
	TransformLog
)

// ParseTransform converts a configuration string to a Transform.
func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TransformNone, nil
	case "sqrt":
		return TransformSqrt, nil
	case "log":
		return TransformLog, nil
	}
	return TransformNone, fmt.Errorf("ozone: invalid response transform %q", s)
}

func (t Transform) String() string {
	switch t {
	case TransformSqrt:
		return "sqrt"
	case TransformLog:
		return "log"
	}
	return "none"
}

// Apply transforms a raw response value. NaN (missing) stays NaN.
func (t Transform) Apply(v float64) float64 {
	switch t {
	case TransformSqrt:
		return math.Sqrt(v)
	case TransformLog:
		return math.Log(v)
	}
	return v
}

// Observation is one station-day record. Y8hrMax is NaN when the response
// is missing; Response holds the transformed value actually modeled.
type Observation struct {
	StationID string
	Longitude float64
	Latitude  float64

	Year, Month, Day int

	// TimeIndex is the dense day index 1..T shared across all stations.
	// It is derived by NewDataset from the sorted distinct dates.
	TimeIndex int

	Y8hrMax  float64 // 8-hour maximum ozone concentration [ppb]
	Response float64 // transformed response used for modeling

	MaxTemp     float64 // maximum temperature [°C]
	WindSpeed   float64 // wind speed [nautical miles per hour]
	RelHumidity float64 // relative humidity
}

// Covariates returns the meteorological covariates in model order.
func (o *Observation) Covariates() []float64 {
	return []float64{o.MaxTemp, o.WindSpeed, o.RelHumidity}
}

// GridPoint is one prediction-grid location-day record. It carries the same
// covariates as an Observation but no response.
type GridPoint struct {
	Longitude float64
	Latitude  float64

	Year, Month, Day int
	TimeIndex        int

	MaxTemp     float64
	WindSpeed   float64
	RelHumidity float64
}

// Covariates returns the meteorological covariates in model order.
func (g *GridPoint) Covariates() []float64 {
	return []float64{g.MaxTemp, g.WindSpeed, g.RelHumidity}
}

// Station is a monitoring site with its fixed location.
type Station struct {
	ID        string
	Longitude float64
	Latitude  float64
}

// Dataset holds the observation records together with the derived station
// table (in first-appearance order) and the number of time points T.
type Dataset struct {
	Obs      []Observation
	Stations []Station
	T        int
}

func dateKey(y, m, d int) int { return y*10000 + m*100 + d }

// NewDataset validates raw observation records, derives the dense 1..T time
// index from the sorted distinct dates, and applies the response transform.
// It returns an error if any station appears with more than one coordinate
// pair.
func NewDataset(obs []Observation, transform Transform) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("ozone: empty dataset")
	}

	// Dense time index from sorted distinct dates.
	dateSet := make(map[int]struct{})
	for i := range obs {
		dateSet[dateKey(obs[i].Year, obs[i].Month, obs[i].Day)] = struct{}{}
	}
	dates := make([]int, 0, len(dateSet))
	for k := range dateSet {
		dates = append(dates, k)
	}
	sort.Ints(dates)
	dateIndex := make(map[int]int, len(dates))
	for i, k := range dates {
		dateIndex[k] = i + 1
	}

	d := &Dataset{
		Obs: make([]Observation, len(obs)),
		T:   len(dates),
	}
	seen := make(map[string]int)
	for i := range obs {
		o := obs[i]
		o.TimeIndex = dateIndex[dateKey(o.Year, o.Month, o.Day)]
		o.Response = transform.Apply(o.Y8hrMax)
		if j, ok := seen[o.StationID]; ok {
			s := d.Stations[j]
			if s.Longitude != o.Longitude || s.Latitude != o.Latitude {
				return nil, fmt.Errorf("ozone: station %s has conflicting coordinates (%g,%g) and (%g,%g)",
					o.StationID, s.Longitude, s.Latitude, o.Longitude, o.Latitude)
			}
		} else {
			seen[o.StationID] = len(d.Stations)
			d.Stations = append(d.Stations, Station{
				ID:        o.StationID,
				Longitude: o.Longitude,
				Latitude:  o.Latitude,
			})
		}
		d.Obs[i] = o
	}
	return d, nil
}

// StationIDs returns the station identifiers in first-appearance order.
func (d *Dataset) StationIDs() []string {
	ids := make([]string, len(d.Stations))
	for i, s := range d.Stations {
		ids[i] = s.ID
	}
	return ids
}

// KeepDays returns a dataset restricted to the first n time indices.
// If n <= 0 or n >= T the dataset is returned unchanged.
func (d *Dataset) KeepDays(n int) *Dataset {
	if n <= 0 || n >= d.T {
		return d
	}
	out := &Dataset{Stations: d.Stations, T: n}
	for _, o := range d.Obs {
		if o.TimeIndex <= n {
			out.Obs = append(out.Obs, o)
		}
	}
	return out
}
