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

package spde

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/geom"
)

func testPoints() []geom.Point {
	return []geom.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0.1},
		{X: 2, Y: 0},
		{X: 0.2, Y: 1},
		{X: 1.1, Y: 1.2},
		{X: 1.9, Y: 0.9},
		{X: 0.5, Y: 2},
	}
}

func testOptions() Options {
	return Options{
		MaxEdgeInterior: 0.6,
		MaxEdgeExterior: 1.5,
		Cutoff:          0.05,
		Offset:          1,
	}
}

func TestNewMesh(t *testing.T) {
	pts := testPoints()
	m, err := NewMesh(pts, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	// The input locations survive as the leading vertices.
	for i, p := range pts {
		if m.Vert[i] != p {
			t.Errorf("vertex %d: got %v, want input point %v", i, m.Vert[i], p)
		}
	}
	if m.NVert() <= len(pts) {
		t.Errorf("expected refinement vertices beyond the %d inputs, got %d total",
			len(pts), m.NVert())
	}
	if len(m.Tri) == 0 {
		t.Fatal("no triangles")
	}
	for ti, tr := range m.Tri {
		for _, v := range tr {
			if v < 0 || v >= m.NVert() {
				t.Fatalf("triangle %d references vertex %d of %d", ti, v, m.NVert())
			}
		}
		a, b, c := m.Vert[tr[0]], m.Vert[tr[1]], m.Vert[tr[2]]
		if cross(a, b, c) <= 0 {
			t.Errorf("triangle %d is not counter-clockwise or is degenerate", ti)
		}
	}
}

// TestNewMeshDelaunayProperty checks the empty-circumcircle property: no mesh
// vertex lies strictly inside the circumcircle of any triangle.
func TestNewMeshDelaunayProperty(t *testing.T) {
	m, err := NewMesh(testPoints(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	for ti, tr := range m.Tri {
		a, b, c := m.Vert[tr[0]], m.Vert[tr[1]], m.Vert[tr[2]]
		for vi, p := range m.Vert {
			if vi == tr[0] || vi == tr[1] || vi == tr[2] {
				continue
			}
			if inCircumcircle(a, b, c, p) {
				t.Fatalf("vertex %d inside circumcircle of triangle %d", vi, ti)
			}
		}
	}
}

func TestNewMeshCutoff(t *testing.T) {
	pts := []geom.Point{
		{X: 0, Y: 0},
		{X: 0.01, Y: 0.01}, // within cutoff of the first point; merged
		{X: 1, Y: 0},
		{X: 0.5, Y: 1},
	}
	o := testOptions()
	m, err := NewMesh(pts, o)
	if err != nil {
		t.Fatal(err)
	}
	want := []geom.Point{pts[0], pts[2], pts[3]}
	for i, p := range want {
		if m.Vert[i] != p {
			t.Errorf("vertex %d: got %v, want %v", i, m.Vert[i], p)
		}
	}
	for _, v := range m.Vert {
		if v == pts[1] {
			t.Errorf("merged point %v still present as a vertex", pts[1])
		}
	}
}

func TestNewMeshInsufficientSupport(t *testing.T) {
	o := testOptions()
	cases := [][]geom.Point{
		{},
		{{X: 0, Y: 0}},
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
		{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}, // collinear
		{{X: 0, Y: 0}, {X: 0.01, Y: 0}, {X: 0, Y: 0.01}},        // collapses under cutoff
	}
	for i, pts := range cases {
		if _, err := NewMesh(pts, o); !errors.Is(err, ErrInsufficientSpatialSupport) {
			t.Errorf("case %d: got %v, want ErrInsufficientSpatialSupport", i, err)
		}
	}
}

func TestNewMeshBadOptions(t *testing.T) {
	pts := testPoints()
	bad := []Options{
		{MaxEdgeInterior: 0, MaxEdgeExterior: 1},
		{MaxEdgeInterior: 1, MaxEdgeExterior: -1},
		{MaxEdgeInterior: 1, MaxEdgeExterior: 1, Cutoff: -0.1},
		{MaxEdgeInterior: 1, MaxEdgeExterior: 1, Offset: -1},
	}
	for i, o := range bad {
		if _, err := NewMesh(pts, o); err == nil {
			t.Errorf("case %d: options %+v accepted", i, o)
		}
	}
}

func TestThin(t *testing.T) {
	pts := []geom.Point{
		{X: 0, Y: 0},
		{X: 0.04, Y: 0},
		{X: 0.1, Y: 0},
		{X: 0.1, Y: 0}, // exact duplicate
	}
	kept := thin(pts, 0.05)
	if len(kept) != 2 {
		t.Fatalf("kept %d points, want 2", len(kept))
	}
	if kept[0] != pts[0] || kept[1] != pts[2] {
		t.Errorf("kept %v, want first of each cluster", kept)
	}
	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			if d := dist(kept[i], kept[j]); d < 0.05 {
				t.Errorf("kept points %d and %d are %g apart, want ≥ cutoff", i, j, d)
			}
		}
	}
}

func TestSpans2D(t *testing.T) {
	if spans2D([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}) {
		t.Error("two points reported as spanning the plane")
	}
	if spans2D([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 5, Y: 5}}) {
		t.Error("collinear points reported as spanning the plane")
	}
	if !spans2D([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}) {
		t.Error("proper triangle not recognized")
	}
}

func TestMeshOffsetExtent(t *testing.T) {
	pts := testPoints()
	o := testOptions()
	m, err := NewMesh(pts, o)
	if err != nil {
		t.Fatal(err)
	}
	db := bounds(pts)
	mb := bounds(m.Vert)
	for _, got := range []struct {
		name       string
		have, want float64
	}{
		{"min x", db.Min.X - mb.Min.X, o.Offset},
		{"min y", db.Min.Y - mb.Min.Y, o.Offset},
		{"max x", mb.Max.X - db.Max.X, o.Offset},
		{"max y", mb.Max.Y - db.Max.Y, o.Offset},
	} {
		if math.Abs(got.have-got.want) > 1e-9 {
			t.Errorf("%s extension: got %g, want %g", got.name, got.have, got.want)
		}
	}
}
