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
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// Column names expected in the input tables.
const (
	colStation   = "s.index"
	colLongitude = "Longitude"
	colLatitude  = "Latitude"
	colYear      = "Year"
	colMonth     = "Month"
	colDay       = "Day"
	colResponse  = "y8hrmax"
	colMaxTemp   = "xmaxtemp"
	colWindSpeed = "xwdsp"
	colRH        = "xrh"
)

// Open opens the file at path for reading. If path is an http(s) URL the
// resource is downloaded first, retrying with exponential backoff on
// transient failures.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return os.Open(path)
	}
	var body []byte
	get := func() error {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ozone: downloading %s: %s", path, resp.Status)
		}
		body, err = ioutil.ReadAll(resp.Body)
		return err
	}
	err := backoff.RetryNotify(get,
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		func(err error, d time.Duration) {
			log.Printf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return nil, err
	}
	return ioutil.NopCloser(strings.NewReader(string(body))), nil
}

type columnIndex map[string]int

func indexHeader(header []string, required []string) (columnIndex, error) {
	ci := make(columnIndex, len(header))
	for i, name := range header {
		ci[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := ci[name]; !ok {
			return nil, fmt.Errorf("ozone: input table is missing required column %q", name)
		}
	}
	return ci, nil
}

func (ci columnIndex) str(rec []string, name string) string {
	return strings.TrimSpace(rec[ci[name]])
}

func (ci columnIndex) float(rec []string, name string) (float64, error) {
	s := ci.str(rec, name)
	if s == "" || s == "NA" {
		return nan, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (ci columnIndex) int(rec []string, name string) (int, error) {
	return strconv.Atoi(ci.str(rec, name))
}

// ReadObservations parses a station-day observation table in CSV format.
// Missing responses ("NA" or empty) become NaN; TimeIndex and Response are
// left for NewDataset to fill in.
func ReadObservations(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ozone: reading observation header: %v", err)
	}
	ci, err := indexHeader(header, []string{colStation, colLongitude, colLatitude,
		colYear, colMonth, colDay, colResponse, colMaxTemp, colWindSpeed, colRH})
	if err != nil {
		return nil, err
	}
	var obs []Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("ozone: reading observation line %d: %v", line, err)
		}
		var o Observation
		o.StationID = ci.str(rec, colStation)
		if o.StationID == "" {
			return nil, fmt.Errorf("ozone: observation line %d: empty station identifier", line)
		}
		if o.Year, err = ci.int(rec, colYear); err == nil {
			if o.Month, err = ci.int(rec, colMonth); err == nil {
				o.Day, err = ci.int(rec, colDay)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("ozone: observation line %d: %v", line, err)
		}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{colLongitude, &o.Longitude},
			{colLatitude, &o.Latitude},
			{colResponse, &o.Y8hrMax},
			{colMaxTemp, &o.MaxTemp},
			{colWindSpeed, &o.WindSpeed},
			{colRH, &o.RelHumidity},
		} {
			if *f.dst, err = ci.float(rec, f.col); err != nil {
				return nil, fmt.Errorf("ozone: observation line %d, column %s: %v", line, f.col, err)
			}
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// ReadGridPoints parses a prediction-grid table in CSV format. The table has
// the same temporal and covariate columns as the observation table but no
// response.
func ReadGridPoints(r io.Reader) ([]GridPoint, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ozone: reading grid header: %v", err)
	}
	ci, err := indexHeader(header, []string{colLongitude, colLatitude,
		colYear, colMonth, colDay, colMaxTemp, colWindSpeed, colRH})
	if err != nil {
		return nil, err
	}
	var pts []GridPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("ozone: reading grid line %d: %v", line, err)
		}
		var g GridPoint
		if g.Year, err = ci.int(rec, colYear); err == nil {
			if g.Month, err = ci.int(rec, colMonth); err == nil {
				g.Day, err = ci.int(rec, colDay)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("ozone: grid line %d: %v", line, err)
		}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{colLongitude, &g.Longitude},
			{colLatitude, &g.Latitude},
			{colMaxTemp, &g.MaxTemp},
			{colWindSpeed, &g.WindSpeed},
			{colRH, &g.RelHumidity},
		} {
			if *f.dst, err = ci.float(rec, f.col); err != nil {
				return nil, fmt.Errorf("ozone: grid line %d, column %s: %v", line, f.col, err)
			}
		}
		pts = append(pts, g)
	}
	return pts, nil
}

// LoadDataset reads and indexes the observation table at path, which may be
// a local file or an http(s) URL.
func LoadDataset(ctx context.Context, path string, transform Transform) (*Dataset, error) {
	r, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	obs, err := ReadObservations(r)
	if err != nil {
		return nil, err
	}
	return NewDataset(obs, transform)
}

// LoadGrid reads the prediction-grid table at path and assigns each row the
// time index its date has in d.
func LoadGrid(ctx context.Context, path string, d *Dataset) ([]GridPoint, error) {
	r, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	pts, err := ReadGridPoints(r)
	if err != nil {
		return nil, err
	}
	dateIndex := make(map[int]int)
	for _, o := range d.Obs {
		dateIndex[dateKey(o.Year, o.Month, o.Day)] = o.TimeIndex
	}
	for i := range pts {
		ti, ok := dateIndex[dateKey(pts[i].Year, pts[i].Month, pts[i].Day)]
		if !ok {
			return nil, fmt.Errorf("ozone: grid row %d: date %04d-%02d-%02d not present in observation table",
				i, pts[i].Year, pts[i].Month, pts[i].Day)
		}
		pts[i].TimeIndex = ti
	}
	return pts, nil
}
