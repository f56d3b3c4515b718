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

import "fmt"

// PCPrior is a penalized-complexity prior: a probability statement about a
// parameter crossing a threshold. Which tail the probability refers to
// depends on the parameter (see FieldPrior).
type PCPrior struct {
	Threshold float64
	Prob      float64
}

func (p PCPrior) validate(name string) error {
	if p.Threshold <= 0 {
		return fmt.Errorf("spde: %s prior threshold must be positive, got %g", name, p.Threshold)
	}
	if p.Prob <= 0 || p.Prob >= 1 {
		return fmt.Errorf("spde: %s prior probability must be in (0, 1), got %g", name, p.Prob)
	}
	return nil
}

// FieldPrior collects the hyperparameter priors of the latent field:
//   - Range:  P(spatial range < Threshold) = Prob
//   - Sigma:  P(marginal stdev > Threshold) = Prob
//   - Cor:    P(AR(1) correlation > Threshold) = Prob
type FieldPrior struct {
	Range PCPrior
	Sigma PCPrior
	Cor   PCPrior
}

// Validate checks that all three prior specifications are well formed.
func (f FieldPrior) Validate() error {
	if err := f.Range.validate("range"); err != nil {
		return err
	}
	if err := f.Sigma.validate("stdev"); err != nil {
		return err
	}
	if f.Cor.Threshold <= -1 || f.Cor.Threshold >= 1 {
		return fmt.Errorf("spde: correlation prior threshold must be in (-1, 1), got %g", f.Cor.Threshold)
	}
	if f.Cor.Prob <= 0 || f.Cor.Prob >= 1 {
		return fmt.Errorf("spde: correlation prior probability must be in (0, 1), got %g", f.Cor.Prob)
	}
	return nil
}

// Index enumerates the (vertex, time group) basis function identities of a
// space-time field. Columns are laid out group-major: all vertices of group
// 1, then all vertices of group 2, and so on.
type Index struct {
	NVert   int
	NGroups int
}

// NewIndex builds an index structure for a field with nVert mesh vertices
// replicated over nGroups time groups.
func NewIndex(nVert, nGroups int) Index {
	return Index{NVert: nVert, NGroups: nGroups}
}

// Len returns the total number of basis functions.
func (ix Index) Len() int { return ix.NVert * ix.NGroups }

// Col returns the design-matrix column of vertex vert (zero-based) in time
// group group (1-based).
func (ix Index) Col(vert, group int) int {
	return (group-1)*ix.NVert + vert
}
