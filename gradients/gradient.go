/*
 *	Copyright 2024 The caffe2 Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package gradients derives backward operator definitions from forward ones.
//
// Given a forward operator definition (ops.OpDef) and the gradients already
// known for its outputs, the package resolves a per-operator-type recipe (a
// Maker, found through a Registry) that emits the operator definitions
// computing the gradients of the forward inputs, together with a Gradient
// value describing each input gradient's carrier: dense tensor, sparse
// indices/values pair, or none.
//
// The graph differentiation pass drives this one operator at a time:
//
//	result, err := gradients.GradientForOp(def, gradOutputs)
//
// where gradOutputs is index-aligned with def.Outputs. On success
// result.InputGradients is index-aligned with def.Inputs and result.Ops holds
// the backward definitions, each tagged with IsGradientOp.
//
// Per-operator recipes are registered during package initialization, see
// Register and the stdops package for the standard set.
package gradients

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/StevenLOL/caffe2/ops"
)

// Failure kinds of a derivation. All errors returned by this package wrap one
// of these sentinels, test with errors.Is. There is no partial success: a
// derivation either produces a complete Result or fails with one of them.
var (
	// ErrConfiguration signals a missing registration: no maker for the
	// operator type, or a maker without a concrete derivation.
	ErrConfiguration = errors.New("gradient configuration error")

	// ErrConsistency signals conflicting dense/sparse use of a gradient slot,
	// or an accessor index out of range.
	ErrConsistency = errors.New("gradient consistency error")

	// ErrPolicy signals a gradient request for an operator designed to block
	// gradient flow.
	ErrPolicy = errors.New("gradient policy violation")

	// ErrSchema signals a forward definition that failed schema verification.
	ErrSchema = errors.New("operator schema violation")
)

// Gradient describes the carrier of one tensor slot's gradient: nothing (the
// zero value), a dense tensor, or a sparse indices/values tensor pair. A
// Gradient is never both dense and sparse, the maker helpers enforce that at
// the point of mutation.
type Gradient struct {
	dense   string
	indices string
	values  string
}

// Dense returns a Gradient carried by the single named tensor.
func Dense(name string) Gradient {
	return Gradient{dense: name}
}

// Sparse returns a Gradient carried by an indices tensor and a values tensor.
func Sparse(indices, values string) Gradient {
	return Gradient{indices: indices, values: values}
}

// IsDense reports whether the gradient is carried by a dense tensor.
func (g Gradient) IsDense() bool { return g.dense != "" }

// IsSparse reports whether the gradient is carried by a sparse
// indices/values pair.
func (g Gradient) IsSparse() bool { return g.indices != "" || g.values != "" }

// IsEmpty reports whether no gradient is known or needed for the slot.
func (g Gradient) IsEmpty() bool { return !g.IsDense() && !g.IsSparse() }

// DenseName returns the dense tensor name, or "" if the gradient is not dense.
func (g Gradient) DenseName() string { return g.dense }

// IndicesName returns the sparse indices tensor name, or "" if not sparse.
func (g Gradient) IndicesName() string { return g.indices }

// ValuesName returns the sparse values tensor name, or "" if not sparse.
func (g Gradient) ValuesName() string { return g.values }

// String implements fmt.Stringer.
func (g Gradient) String() string {
	switch {
	case g.IsDense():
		return fmt.Sprintf("dense(%s)", g.dense)
	case g.IsSparse():
		return fmt.Sprintf("sparse(%s, %s)", g.indices, g.values)
	}
	return "<no gradient>"
}

// Result is the complete backward contribution of one forward operator: the
// derived backward operator definitions and, index-aligned with the forward
// inputs, the Gradient assigned to each of them.
type Result struct {
	Ops            []*ops.OpDef
	InputGradients []Gradient
}
