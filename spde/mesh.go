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

// Package spde discretizes a continuous Matérn spatial field on a
// triangulated mesh: mesh construction from point locations, finite-element
// mass and stiffness matrices, penalized-complexity prior specifications,
// and sparse projection matrices mapping (vertex, time group) basis
// functions to arbitrary observation or prediction locations.
package spde

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// ErrInsufficientSpatialSupport indicates that the input locations cannot
// form a valid triangulation (fewer than 3 distinct non-collinear points
// after cutoff thinning).
var ErrInsufficientSpatialSupport = errors.New("spde: insufficient spatial support for mesh construction")

// Options control mesh construction.
type Options struct {
	// MaxEdgeInterior and MaxEdgeExterior are the target triangle edge
	// lengths inside the data extent and in the outer extension,
	// respectively.
	MaxEdgeInterior float64
	MaxEdgeExterior float64

	// Cutoff is the minimum separation between mesh vertices: input points
	// closer than Cutoff to an already-kept point are merged into it.
	Cutoff float64

	// Offset is the distance the mesh extends beyond the bounding region of
	// the input points.
	Offset float64
}

func (o Options) validate() error {
	if o.MaxEdgeInterior <= 0 || o.MaxEdgeExterior <= 0 {
		return fmt.Errorf("spde: mesh max edge lengths must be positive, got (%g, %g)",
			o.MaxEdgeInterior, o.MaxEdgeExterior)
	}
	if o.Cutoff < 0 || o.Offset < 0 {
		return fmt.Errorf("spde: mesh cutoff and offset must be non-negative, got (%g, %g)",
			o.Cutoff, o.Offset)
	}
	return nil
}

// Mesh is a triangulated discretization of the spatial domain. The first
// vertices are the (thinned) input locations, followed by boundary and
// interior refinement vertices.
type Mesh struct {
	Vert []geom.Point
	Tri  [][3]int

	tree *rtree.Rtree
	opts Options
}

type meshTriangle struct {
	geom.Polygon
	index int
}

// NewMesh triangulates the given point locations. The mesh covers the
// bounding region of the points extended by o.Offset; triangle size is
// controlled by o.MaxEdgeInterior within the data extent and
// o.MaxEdgeExterior in the extension. Points closer together than o.Cutoff
// are merged before triangulation.
func NewMesh(pts []geom.Point, o Options) (*Mesh, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	kept := thin(pts, o.Cutoff)
	if !spans2D(kept) {
		return nil, ErrInsufficientSpatialSupport
	}

	vert := append([]geom.Point{}, kept...)
	vert = append(vert, steinerPoints(kept, o)...)

	tri, err := delaunay(vert)
	if err != nil {
		return nil, err
	}

	m := &Mesh{Vert: vert, Tri: tri, opts: o, tree: rtree.NewTree(25, 50)}
	for i, t := range tri {
		m.tree.Insert(&meshTriangle{
			Polygon: geom.Polygon{{vert[t[0]], vert[t[1]], vert[t[2]]}},
			index:   i,
		})
	}
	return m, nil
}

// NVert returns the number of mesh vertices.
func (m *Mesh) NVert() int { return len(m.Vert) }

// thin greedily merges points closer together than cutoff, keeping the
// first point of each cluster in input order.
func thin(pts []geom.Point, cutoff float64) []geom.Point {
	var kept []geom.Point
	for _, p := range pts {
		ok := true
		for _, q := range kept {
			if dist(p, q) < cutoff || (p.X == q.X && p.Y == q.Y) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return kept
}

// spans2D reports whether the points contain 3 non-collinear members.
func spans2D(pts []geom.Point) bool {
	if len(pts) < 3 {
		return false
	}
	a := pts[0]
	for i := 1; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if math.Abs(cross(a, pts[i], pts[j])) > 1e-12 {
				return true
			}
		}
	}
	return false
}

// steinerPoints generates the refinement vertices: a triangular lattice at
// MaxEdgeInterior spacing over the data extent, and coarser rings extending
// the mesh Offset beyond it.
func steinerPoints(data []geom.Point, o Options) []geom.Point {
	b := bounds(data)
	var out []geom.Point

	add := func(p geom.Point, minSep float64) {
		for _, q := range data {
			if dist(p, q) < minSep {
				return
			}
		}
		for _, q := range out {
			if dist(p, q) < minSep {
				return
			}
		}
		out = append(out, p)
	}

	// Interior triangular lattice.
	h := o.MaxEdgeInterior
	dy := h * math.Sqrt(3) / 2
	row := 0
	for y := b.Min.Y; y <= b.Max.Y+h/4; y += dy {
		x0 := b.Min.X
		if row%2 == 1 {
			x0 += h / 2
		}
		for x := x0; x <= b.Max.X+h/4; x += h {
			add(geom.Point{X: x, Y: y}, math.Max(o.Cutoff, h/2))
		}
		row++
	}

	// Extension rings out to Offset, spaced by MaxEdgeExterior. The outer
	// ring goes in first so it is never crowded out by the inner one, and
	// the rejection radius is capped below the ring separation.
	if o.Offset > 0 {
		for _, frac := range []float64{1, 0.5} {
			d := o.Offset * frac
			spacing := o.MaxEdgeInterior + (o.MaxEdgeExterior-o.MaxEdgeInterior)*frac
			for _, p := range ringPoints(b, d, spacing) {
				add(p, math.Min(spacing/2, o.Offset/4))
			}
		}
	}
	return out
}

// ringPoints samples the perimeter of bounds b expanded by d at
// approximately the given spacing.
func ringPoints(b *geom.Bounds, d, spacing float64) []geom.Point {
	minX, minY := b.Min.X-d, b.Min.Y-d
	maxX, maxY := b.Max.X+d, b.Max.Y+d
	var out []geom.Point
	perim := 2 * ((maxX - minX) + (maxY - minY))
	n := int(math.Ceil(perim / spacing))
	if n < 8 {
		n = 8
	}
	step := perim / float64(n)
	pos := 0.0
	for i := 0; i < n; i++ {
		p := pos
		pos += step
		switch {
		case p < maxX-minX:
			out = append(out, geom.Point{X: minX + p, Y: minY})
		case p < (maxX-minX)+(maxY-minY):
			out = append(out, geom.Point{X: maxX, Y: minY + (p - (maxX - minX))})
		case p < 2*(maxX-minX)+(maxY-minY):
			out = append(out, geom.Point{X: maxX - (p - (maxX - minX) - (maxY - minY)), Y: maxY})
		default:
			out = append(out, geom.Point{X: minX, Y: maxY - (p - 2*(maxX-minX) - (maxY - minY))})
		}
	}
	return out
}

func bounds(pts []geom.Point) *geom.Bounds {
	b := geom.NewBounds()
	for _, p := range pts {
		b.Extend(p.Bounds())
	}
	return b
}

func dist(a, b geom.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func cross(o, a, b geom.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// delaunay computes the Delaunay triangulation of pts using the
// Bowyer-Watson incremental algorithm.
func delaunay(pts []geom.Point) ([][3]int, error) {
	n := len(pts)
	if n < 3 {
		return nil, ErrInsufficientSpatialSupport
	}

	// Super-triangle enclosing all points.
	b := bounds(pts)
	cx := (b.Min.X + b.Max.X) / 2
	cy := (b.Min.Y + b.Max.Y) / 2
	r := math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	if r == 0 {
		return nil, ErrInsufficientSpatialSupport
	}
	r *= 20
	work := append([]geom.Point{}, pts...)
	work = append(work,
		geom.Point{X: cx - r, Y: cy - r},
		geom.Point{X: cx + r, Y: cy - r},
		geom.Point{X: cx, Y: cy + r},
	)

	type edge struct{ a, b int }
	tris := [][3]int{{n, n + 1, n + 2}}

	for i := 0; i < n; i++ {
		p := work[i]

		// Triangles whose circumcircle contains p.
		var bad []int
		for ti, t := range tris {
			if inCircumcircle(work[t[0]], work[t[1]], work[t[2]], p) {
				bad = append(bad, ti)
			}
		}

		// Boundary of the cavity: edges belonging to exactly one bad triangle.
		edgeCount := make(map[edge]int)
		norm := func(a, b int) edge {
			if a > b {
				a, b = b, a
			}
			return edge{a, b}
		}
		for _, ti := range bad {
			t := tris[ti]
			edgeCount[norm(t[0], t[1])]++
			edgeCount[norm(t[1], t[2])]++
			edgeCount[norm(t[2], t[0])]++
		}

		// Remove bad triangles (iterate in reverse so indices stay valid).
		for j := len(bad) - 1; j >= 0; j-- {
			ti := bad[j]
			tris[ti] = tris[len(tris)-1]
			tris = tris[:len(tris)-1]
		}

		for e, count := range edgeCount {
			if count != 1 {
				continue
			}
			// Keep counter-clockwise orientation.
			t := [3]int{e.a, e.b, i}
			if cross(work[t[0]], work[t[1]], work[t[2]]) < 0 {
				t[0], t[1] = t[1], t[0]
			}
			tris = append(tris, t)
		}
	}

	// Drop triangles touching the super-triangle.
	var out [][3]int
	for _, t := range tris {
		if t[0] >= n || t[1] >= n || t[2] >= n {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, ErrInsufficientSpatialSupport
	}
	return out, nil
}

// inCircumcircle reports whether p lies strictly inside the circumcircle of
// counter-clockwise triangle (a, b, c).
func inCircumcircle(a, b, c, p geom.Point) bool {
	// Ensure counter-clockwise orientation for the sign convention.
	if cross(a, b, c) < 0 {
		b, c = c, b
	}
	ax, ay := a.X-p.X, a.Y-p.Y
	bx, by := b.X-p.X, b.Y-p.Y
	cx, cy := c.X-p.X, c.Y-p.Y
	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)
	return det > 0
}
