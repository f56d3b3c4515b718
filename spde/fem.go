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
	"math"

	"gonum.org/v1/gonum/mat"
)

// FEM holds the finite-element matrices of a mesh: the lumped mass matrix C
// (diagonal, stored as a vector) and the stiffness matrix G, assembled over
// the triangles with piecewise-linear basis functions.
type FEM struct {
	NVert int
	C     []float64
	G     *mat.SymDense
}

// FEM assembles the mass and stiffness matrices for the mesh.
func (m *Mesh) FEM() *FEM {
	n := m.NVert()
	f := &FEM{
		NVert: n,
		C:     make([]float64, n),
		G:     mat.NewSymDense(n, nil),
	}
	for _, t := range m.Tri {
		p0, p1, p2 := m.Vert[t[0]], m.Vert[t[1]], m.Vert[t[2]]
		area := math.Abs(cross(p0, p1, p2)) / 2
		if area == 0 {
			continue
		}
		// Lumped mass: a third of the triangle area per vertex.
		for _, v := range t {
			f.C[v] += area / 3
		}
		// Gradient coefficients of the linear basis functions.
		b := [3]float64{p1.Y - p2.Y, p2.Y - p0.Y, p0.Y - p1.Y}
		c := [3]float64{p2.X - p1.X, p0.X - p2.X, p1.X - p0.X}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				g := (b[i]*b[j] + c[i]*c[j]) / (4 * area)
				vi, vj := t[i], t[j]
				if vi > vj {
					vi, vj = vj, vi
				}
				f.G.SetSym(vi, vj, f.G.At(vi, vj)+g)
			}
		}
	}
	return f
}

// KappaFromRange converts a spatial range to the SPDE scale parameter κ for
// a Matérn field with smoothness ν = 1 in two dimensions.
func KappaFromRange(r float64) float64 {
	return math.Sqrt(8) / r
}

// TauFromSigma converts a marginal standard deviation σ to the SPDE
// precision scaling τ, given κ (ν = 1, d = 2).
func TauFromSigma(kappa, sigma float64) float64 {
	return 1 / (2 * math.SqrtPi * kappa * sigma)
}

// Precision builds the GMRF precision matrix of the discretized field,
// Q = τ² (κ²C + G) C⁻¹ (κ²C + G), the α = 2 SPDE discretization.
func (f *FEM) Precision(kappa, tau float64) (*mat.SymDense, error) {
	n := f.NVert
	if kappa <= 0 || tau <= 0 {
		return nil, fmt.Errorf("spde: precision parameters must be positive, got κ=%g τ=%g", kappa, tau)
	}
	// K = κ²C + G.
	k := mat.NewDense(n, n, nil)
	k2 := kappa * kappa
	for i := 0; i < n; i++ {
		if f.C[i] <= 0 {
			return nil, fmt.Errorf("spde: vertex %d has zero mass; mesh is degenerate", i)
		}
		for j := 0; j < n; j++ {
			v := f.G.At(i, j)
			if i == j {
				v += k2 * f.C[i]
			}
			k.Set(i, j, v)
		}
	}
	// Q = τ² K C⁻¹ K with C diagonal.
	ck := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		ci := 1 / f.C[i]
		for j := 0; j < n; j++ {
			ck.Set(i, j, ci*k.At(i, j))
		}
	}
	var q mat.Dense
	q.Mul(k.T(), ck)
	t2 := tau * tau
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, t2*(q.At(i, j)+q.At(j, i))/2)
		}
	}
	return out, nil
}
