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
	"encoding/csv"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/spatialmodel/ozone"
)

const (
	figWidth  = 4 * vg.Inch
	figHeight = 4 * vg.Inch
)

// writeScatter draws an observed-versus-predicted scatter over all
// succeeded folds, with a 1:1 line and the least-squares fit.
func writeScatter(d *ozone.Dataset, report *ozone.Report, fname string) error {
	var x, y []float64
	for _, fr := range report.Folds {
		if fr.Err != nil {
			continue
		}
		for i := range fr.Obs {
			if math.IsNaN(fr.Obs[i]) || math.IsNaN(fr.Pred[i]) {
				continue
			}
			x = append(x, fr.Obs[i])
			y = append(y, fr.Pred[i])
		}
	}
	if len(x) == 0 {
		return fmt.Errorf("ozone: no complete observation-prediction pairs to plot")
	}

	slope, intercept, rsquared, _, _, _ := stats.LinearRegression(x, y)
	max := stats.StatsMax(append(append([]float64{}, x...), y...))
	min := stats.StatsMin(append(append([]float64{}, x...), y...))

	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X, xy[i].Y = x[i], y[i]
	}
	p := plot.New()
	p.X.Label.Text = "Observed"
	p.Y.Label.Text = "Predicted"
	p.Legend.Top = true
	p.Legend.Left = true

	s, err := plotter.NewScatter(xy)
	if err != nil {
		return err
	}
	s.Color = color.NRGBA{0, 0, 0, 255}
	s.Radius = 1
	s.Shape = draw.CircleGlyph{}
	l1, err := plotter.NewLine(plotter.XYs{{X: min, Y: min}, {X: max, Y: max}})
	if err != nil {
		return err
	}
	l1.Color = color.NRGBA{255, 0, 0, 255}
	l2, err := plotter.NewLine(plotter.XYs{{X: min, Y: min*slope + intercept},
		{X: max, Y: max*slope + intercept}})
	if err != nil {
		return err
	}
	l2.Color = color.NRGBA{127, 127, 127, 255}
	p.Add(s, l1, l2)
	p.X.Min, p.X.Max = min, max
	p.Y.Min, p.Y.Max = min, max
	p.Legend.Add("held-out", s)
	p.Legend.Add("1:1", l1)
	p.Legend.Add(fmt.Sprintf("fit (R²=%.3f)", rsquared), l2)

	return savePNG(p, fname)
}

func savePNG(p *plot.Plot, fname string) error {
	img := vgimg.NewWith(vgimg.UseWH(figWidth, figHeight), vgimg.UseDPI(96))
	p.Draw(draw.New(img))
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(f)
	return err
}

// writeSurfaceTable writes the grid prediction as a CSV table of
// longitude, latitude, posterior mean, and posterior sd.
func writeSurfaceTable(pred *ozone.GridPrediction, fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Longitude", "Latitude", "mean", "sd"}); err != nil {
		return err
	}
	for i, g := range pred.Points {
		rec := []string{
			strconv.FormatFloat(g.Longitude, 'g', -1, 64),
			strconv.FormatFloat(g.Latitude, 'g', -1, 64),
			strconv.FormatFloat(pred.Mean[i], 'f', 3, 64),
			strconv.FormatFloat(pred.SD[i], 'f', 3, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeSurfaceMaps renders the posterior mean and sd surfaces as maps with
// the station locations overlaid.
func writeSurfaceMaps(d *ozone.Dataset, pred *ozone.GridPrediction, prefix string) error {
	for _, surf := range []struct {
		name string
		vals []float64
	}{
		{"mean", pred.Mean},
		{"sd", pred.SD},
	} {
		if err := drawSurface(d, pred.Points, surf.vals, prefix+surf.name+".png"); err != nil {
			return err
		}
	}
	return nil
}

func drawSurface(d *ozone.Dataset, pts []ozone.GridPoint, vals []float64, fname string) error {
	b := geom.NewBounds()
	for _, g := range pts {
		b.Extend(geom.Point{X: g.Longitude, Y: g.Latitude}.Bounds())
	}

	img := vgimg.NewWith(vgimg.UseWH(figWidth, figHeight+0.7*vg.Inch), vgimg.UseDPI(96))
	dc := draw.New(img)
	legendC := draw.Crop(dc, 0, 0, 0, 0.7*vg.Inch-figHeight)
	mapC := draw.Crop(dc, 0, 0, 0.7*vg.Inch, 0)

	m := carto.NewCanvas(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, mapC)
	cmap := carto.NewColorMap(carto.Linear)
	cmap.AddArray(vals)
	cmap.Set()

	lineStyle := draw.LineStyle{Width: vg.Points(0.25)}
	glyph := draw.GlyphStyle{Radius: vg.Points(2), Shape: draw.BoxGlyph{}}
	for i, g := range pts {
		c := cmap.GetColor(vals[i])
		glyph.Color = c
		lineStyle.Color = c
		if err := m.DrawVector(geom.Point{X: g.Longitude, Y: g.Latitude}, c, lineStyle, glyph); err != nil {
			return err
		}
	}
	// Station locations.
	stationGlyph := draw.GlyphStyle{Radius: vg.Points(1.5), Shape: draw.RingGlyph{}, Color: color.Black}
	for _, s := range d.Stations {
		if err := m.DrawVector(geom.Point{X: s.Longitude, Y: s.Latitude},
			color.Black, lineStyle, stationGlyph); err != nil {
			return err
		}
	}
	if err := cmap.Legend(&legendC, "Ozone linear predictor"); err != nil {
		return err
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(f)
	return err
}
