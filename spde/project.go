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
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// DesignRow is one row of a projection matrix: the (up to three) mesh
// vertices whose basis functions support the row's location, their
// barycentric weights, and the row's time group.
type DesignRow struct {
	Verts   [3]int
	Weights [3]float64
	Group   int
}

// Design is a sparse projection matrix from (vertex, time group) basis
// functions to a set of (location, time) rows, with per-row vertex weights
// retained for consumers that exploit the time-group structure.
type Design struct {
	A    *sparse.SparseArray
	Rows []DesignRow
}

// Projection builds the design matrix mapping the mesh's basis functions,
// indexed by ix, to the given points and 1-based time groups. Points inside
// the triangulation get barycentric weights over their triangle's vertices;
// points outside fall back to the nearest mesh vertex with unit weight.
func (m *Mesh) Projection(pts []geom.Point, groups []int, ix Index) (*Design, error) {
	if len(pts) != len(groups) {
		return nil, fmt.Errorf("spde: %d points but %d time groups", len(pts), len(groups))
	}
	if ix.NVert != m.NVert() {
		return nil, fmt.Errorf("spde: index has %d vertices but mesh has %d", ix.NVert, m.NVert())
	}
	d := &Design{
		A:    sparse.ZerosSparse(len(pts), ix.Len()),
		Rows: make([]DesignRow, len(pts)),
	}
	for i, p := range pts {
		g := groups[i]
		if g < 1 || g > ix.NGroups {
			return nil, fmt.Errorf("spde: row %d time group %d outside 1..%d", i, g, ix.NGroups)
		}
		row := DesignRow{Group: g}
		if ti, w, ok := m.locate(p); ok {
			t := m.Tri[ti]
			row.Verts = t
			row.Weights = w
		} else {
			v := m.nearestVertex(p)
			row.Verts = [3]int{v, v, v}
			row.Weights = [3]float64{1, 0, 0}
		}
		for j := 0; j < 3; j++ {
			if row.Weights[j] == 0 {
				continue
			}
			d.A.AddVal(row.Weights[j], i, ix.Col(row.Verts[j], g))
		}
		d.Rows[i] = row
	}
	return d, nil
}

// locate finds the triangle containing p and p's barycentric coordinates in
// it. ok is false if p is outside the triangulation.
func (m *Mesh) locate(p geom.Point) (tri int, w [3]float64, ok bool) {
	const eps = -1e-9
	for _, ti := range m.tree.SearchIntersect(p.Bounds()) {
		t := ti.(*meshTriangle)
		v := m.Tri[t.index]
		a, b, c := m.Vert[v[0]], m.Vert[v[1]], m.Vert[v[2]]
		den := cross(a, b, c)
		if den == 0 {
			continue
		}
		w0 := cross(p, b, c) / den
		w1 := cross(a, p, c) / den
		w2 := 1 - w0 - w1
		if w0 >= eps && w1 >= eps && w2 >= eps {
			return t.index, [3]float64{w0, w1, w2}, true
		}
	}
	return 0, w, false
}

// nearestVertex returns the index of the mesh vertex closest to p.
func (m *Mesh) nearestVertex(p geom.Point) int {
	best, bestD := 0, dist(p, m.Vert[0])
	for i := 1; i < len(m.Vert); i++ {
		if d := dist(p, m.Vert[i]); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
