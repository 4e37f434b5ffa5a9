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

package gradients

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/StevenLOL/caffe2/ops"
)

// Maker derives the backward contribution of one forward operator. A Maker is
// built by a Factory for a single derivation call and discarded afterward.
type Maker interface {
	// Get returns the derived backward definitions and input gradients, or
	// the first error encountered. Failures wrap one of the package error
	// sentinels and abort the derivation, there is no partial Result.
	Get() (*Result, error)
}

// Factory builds a Maker for one derivation call. Both the forward definition
// and the output gradients are borrowed from the caller and must not be
// retained past the call.
type Factory func(fwd *ops.OpDef, gradOutputs []Gradient) Maker

// DefsFunc is the per-operator-type derivation recipe: it returns the
// backward operator definitions, naming tensors and recording input gradients
// through the Base helpers. Helpers panic with wrapped errors on any
// violation, Base.Run converts those into the error returned by Get.
type DefsFunc func(b *Base) []*ops.OpDef

// FromFunc adapts a derivation recipe into a Factory. A nil recipe yields
// makers that fail with ErrConfiguration: an operator type registered without
// a concrete recipe is a configuration error, not a silent no-op.
func FromFunc(fn DefsFunc) Factory {
	return func(fwd *ops.OpDef, gradOutputs []Gradient) Maker {
		return &funcMaker{base: NewBase(fwd, gradOutputs), fn: fn}
	}
}

type funcMaker struct {
	base *Base
	fn   DefsFunc
}

func (m *funcMaker) Get() (*Result, error) {
	return m.base.Run(m.fn)
}

// Base carries the state of one derivation call: the borrowed forward
// definition, the borrowed gradients of its outputs, and the gradients being
// assigned to its inputs. Recipes use its accessor helpers to name tensors
// and record input gradients; custom Maker implementations may embed it and
// call Run with their own recipe.
type Base struct {
	fwd         *ops.OpDef
	gradOutputs []Gradient
	gradInputs  []Gradient

	// Whether generated definitions inherit the forward operator's device
	// placement, engine and arguments. All default to true. They are applied
	// by GradientDef and SingleGradientDef only, never enforced by Run;
	// recipes that build definitions by hand decide for themselves.
	CopyDeviceOption bool
	CopyEngine       bool
	CopyArguments    bool
}

// NewBase creates the maker state for one derivation call. Every input
// gradient starts empty; fwd and gradOutputs are borrowed and must outlive
// the Base.
func NewBase(fwd *ops.OpDef, gradOutputs []Gradient) *Base {
	return &Base{
		fwd:              fwd,
		gradOutputs:      gradOutputs,
		gradInputs:       make([]Gradient, len(fwd.Inputs)),
		CopyDeviceOption: true,
		CopyEngine:       true,
		CopyArguments:    true,
	}
}

// Def returns the forward operator definition being differentiated.
func (b *Base) Def() *ops.OpDef { return b.fwd }

// Run executes the standard derivation sequence: verify the forward
// definition against its schema (if one is registered), invoke the recipe,
// tag every returned definition as a gradient operator and assemble the
// Result. Panics raised by the recipe or the accessor helpers are caught and
// returned as errors.
func (b *Base) Run(fn DefsFunc) (result *Result, err error) {
	err = exceptions.TryCatch[error](func() {
		b.verify()
		if fn == nil {
			panic(errors.Wrapf(ErrConfiguration,
				"no gradient derivation implemented for operator type %q", b.fwd.Type))
		}
		defs := fn(b)
		for _, def := range defs {
			def.IsGradientOp = true
		}
		result = &Result{Ops: defs, InputGradients: b.gradInputs}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Base) verify() {
	schema := ops.SchemaFor(b.fwd.Type)
	if schema == nil {
		return
	}
	if err := schema.Verify(b.fwd); err != nil {
		panic(errors.Wrapf(ErrSchema,
			"operator definition did not pass schema checking: %v -- %s", err, b.fwd.DebugString()))
	}
}

// I returns the i-th forward input name.
func (b *Base) I(i int) string {
	if i < 0 || i >= len(b.fwd.Inputs) {
		panic(errors.Wrapf(ErrConsistency,
			"input index %d out of range [0, %d) for operator %q", i, len(b.fwd.Inputs), b.fwd.Type))
	}
	return b.fwd.Inputs[i]
}

// O returns the i-th forward output name.
func (b *Base) O(i int) string {
	if i < 0 || i >= len(b.fwd.Outputs) {
		panic(errors.Wrapf(ErrConsistency,
			"output index %d out of range [0, %d) for operator %q", i, len(b.fwd.Outputs), b.fwd.Type))
	}
	return b.fwd.Outputs[i]
}

// GradOut returns the gradient supplied for the i-th forward output, for
// recipes that branch on its dense/sparse shape.
func (b *Base) GradOut(i int) Gradient {
	if i < 0 || i >= len(b.gradOutputs) {
		panic(errors.Wrapf(ErrConsistency,
			"output gradient index %d out of range [0, %d) for operator %q", i, len(b.gradOutputs), b.fwd.Type))
	}
	return b.gradOutputs[i]
}

// GO returns the dense gradient name of the i-th forward output.
func (b *Base) GO(i int) string {
	g := b.GradOut(i)
	if !g.IsDense() {
		if g.IsSparse() {
			panic(errors.Wrapf(ErrConsistency,
				"gradient of output %q (#%d) of operator %q is sparse, expected dense", b.O(i), i, b.fwd.Type))
		}
		panic(errors.Wrapf(ErrConsistency,
			"gradient of output %q (#%d) of operator %q is not provided", b.O(i), i, b.fwd.Type))
	}
	return g.dense
}

// GOIndices returns the sparse indices name of the i-th forward output's
// gradient.
func (b *Base) GOIndices(i int) string {
	return b.sparseOut(i).indices
}

// GOValues returns the sparse values name of the i-th forward output's
// gradient.
func (b *Base) GOValues(i int) string {
	return b.sparseOut(i).values
}

func (b *Base) sparseOut(i int) Gradient {
	g := b.GradOut(i)
	if !g.IsSparse() {
		if g.IsDense() {
			panic(errors.Wrapf(ErrConsistency,
				"gradient of output %q (#%d) of operator %q is dense, expected sparse", b.O(i), i, b.fwd.Type))
		}
		panic(errors.Wrapf(ErrConsistency,
			"gradient of output %q (#%d) of operator %q is not provided", b.O(i), i, b.fwd.Type))
	}
	return g
}

// GI derives the dense gradient name for the i-th forward input by the fixed
// naming convention and records it as that input's gradient.
func (b *Base) GI(i int) string {
	name := gradientName(b.I(i))
	b.SetDense(i, name)
	return name
}

// GIIndices derives and records the sparse indices gradient name for the i-th
// forward input.
func (b *Base) GIIndices(i int) string {
	b.checkNotDense(i)
	name := gradientSliceIndices(b.I(i))
	b.gradInputs[i].indices = name
	return name
}

// GIValues derives and records the sparse values gradient name for the i-th
// forward input.
func (b *Base) GIValues(i int) string {
	b.checkNotDense(i)
	name := gradientSliceValues(b.I(i))
	b.gradInputs[i].values = name
	return name
}

// SetDense records an explicit dense gradient name for the i-th forward
// input.
func (b *Base) SetDense(i int, name string) {
	in := b.I(i)
	if b.gradInputs[i].IsSparse() {
		panic(errors.Wrapf(ErrConsistency,
			"input %q (#%d) of operator %q already set to sparse", in, i, b.fwd.Type))
	}
	b.gradInputs[i].dense = name
}

// SetSparse records explicit sparse indices/values gradient names for the
// i-th forward input.
func (b *Base) SetSparse(i int, indices, values string) {
	b.checkNotDense(i)
	b.gradInputs[i].indices = indices
	b.gradInputs[i].values = values
}

func (b *Base) checkNotDense(i int) {
	in := b.I(i)
	if b.gradInputs[i].IsDense() {
		panic(errors.Wrapf(ErrConsistency,
			"input %q (#%d) of operator %q already set to dense", in, i, b.fwd.Type))
	}
}

// GradientDef builds one backward operator definition, inheriting the forward
// operator's device, engine and arguments according to the copy policies.
func (b *Base) GradientDef(opType string, inputs, outputs []string, args ...*ops.Arg) *ops.OpDef {
	def := ops.NewOpDef(opType, "", inputs, outputs, args...)
	if b.CopyDeviceOption {
		def.Device = b.fwd.Device
	}
	if b.CopyEngine {
		def.Engine = b.fwd.Engine
	}
	if b.CopyArguments {
		def.Args = append(b.fwd.CloneArgs(), def.Args...)
	}
	return def
}

// SingleGradientDef is GradientDef for the common case of recipes that emit
// exactly one backward operator.
func (b *Base) SingleGradientDef(opType string, inputs, outputs []string, args ...*ops.Arg) []*ops.OpDef {
	return []*ops.OpDef{b.GradientDef(opType, inputs, outputs, args...)}
}

// MatchGradsToParams maps each output of a generated backward definition that
// looks like a gradient name back to the parameter it is the gradient of, by
// stripping the fixed name suffix. Outputs not matching the convention are
// ignored. This is purely a naming heuristic: two distinct tensors sharing a
// prefix after stripping cannot be told apart.
func MatchGradsToParams(def *ops.OpDef) map[string]string {
	m := make(map[string]string)
	for _, out := range def.Outputs {
		if isGradientName(out) {
			m[out] = strings.TrimSuffix(out, gradientSuffix)
		}
	}
	return m
}

// Gradient tensor naming convention. Kept unexported to discourage building
// such names outside the accessor helpers.
const gradientSuffix = "_grad"

func gradientName(name string) string { return name + gradientSuffix }

func gradientSliceIndices(name string) string { return name + gradientSuffix + "_indices" }

func gradientSliceValues(name string) string { return name + gradientSuffix + "_values" }

func isGradientName(name string) bool {
	return len(name) > len(gradientSuffix) && strings.HasSuffix(name, gradientSuffix)
}
