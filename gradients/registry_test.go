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

package gradients_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StevenLOL/caffe2/gradients"
	"github.com/StevenLOL/caffe2/ops"
)

func TestRegistryRegistration(t *testing.T) {
	r := gradients.NewRegistry()
	require.NoError(t, r.Register("Relu", gradients.NoGradient))
	require.Equal(t, []string{"Relu"}, r.Types())

	err := r.Register("Relu", gradients.NoGradient)
	require.ErrorIs(t, err, gradients.ErrConfiguration)
	require.ErrorContains(t, err, "already registered")

	err = r.Register("Gelu", nil)
	require.ErrorIs(t, err, gradients.ErrConfiguration)

	require.Panics(t, func() { r.MustRegister("Relu", gradients.NoGradient) })
}

func TestGradientForOpUnregisteredType(t *testing.T) {
	def := ops.NewOpDef("NoSuchOp", "", []string{"x"}, []string{"y"})
	_, err := gradients.GradientForOp(def, []gradients.Gradient{gradients.Dense("y_grad")})
	require.ErrorIs(t, err, gradients.ErrConfiguration)
	require.ErrorContains(t, err, `"NoSuchOp"`)
}

func TestGradientForOpMisalignedOutputs(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("Relu", gradients.NoGradient)
	def := ops.NewOpDef("Relu", "", []string{"x"}, []string{"y"})
	_, err := r.GradientForOp(def, nil)
	require.ErrorIs(t, err, gradients.ErrConsistency)
	require.ErrorContains(t, err, "1 outputs but 0 output gradients")
}

func TestNoGradientMaker(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("DataInput", gradients.NoGradient)

	// Empty result regardless of input/output counts.
	for _, def := range []*ops.OpDef{
		ops.NewOpDef("DataInput", "", nil, []string{"batch"}),
		ops.NewOpDef("DataInput", "", []string{"db", "cursor"}, []string{"batch", "labels", "weights"}),
	} {
		gradOutputs := make([]gradients.Gradient, def.OutputCount())
		result, err := r.GradientForOp(def, gradOutputs)
		require.NoError(t, err)
		require.Empty(t, result.Ops)
		require.Len(t, result.InputGradients, def.InputCount())
		for _, g := range result.InputGradients {
			require.True(t, g.IsEmpty())
		}
	}
}

func TestRejectGradientMaker(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("Accuracy", gradients.RejectGradient)
	def := ops.NewOpDef("Accuracy", "", []string{"pred", "label"}, []string{"acc"})

	for _, gradOutputs := range [][]gradients.Gradient{
		{gradients.Dense("acc_grad")},
		{{}},
	} {
		_, err := r.GradientForOp(def, gradOutputs)
		require.ErrorIs(t, err, gradients.ErrPolicy)
		require.ErrorContains(t, err, `"Accuracy"`)
	}
}

func TestGradientNotImplementedYetMaker(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("Median", gradients.GradientNotImplementedYet)
	def := ops.NewOpDef("Median", "", []string{"x"}, []string{"m"})

	for _, gradOutputs := range [][]gradients.Gradient{
		{gradients.Dense("m_grad")},
		{{}},
	} {
		_, err := r.GradientForOp(def, gradOutputs)
		require.ErrorIs(t, err, gradients.ErrConfiguration)
		require.ErrorContains(t, err, "not implemented yet")
	}
}

func TestEndToEndDense(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("Add", gradients.FromFunc(func(b *gradients.Base) []*ops.OpDef {
		return b.SingleGradientDef("AddGradient",
			[]string{b.GO(0)},
			[]string{b.GI(0), b.GI(1)})
	}))

	def := ops.NewOpDef("Add", "", []string{"x", "y"}, []string{"z"})
	result, err := r.GradientForOp(def, []gradients.Gradient{gradients.Dense("z_grad")})
	require.NoError(t, err)

	require.Equal(t, []gradients.Gradient{
		gradients.Dense("x_grad"),
		gradients.Dense("y_grad"),
	}, result.InputGradients)

	require.Len(t, result.Ops, 1)
	grad := result.Ops[0]
	require.Equal(t, "AddGradient", grad.Type)
	require.Equal(t, []string{"z_grad"}, grad.Inputs)
	require.Equal(t, []string{"x_grad", "y_grad"}, grad.Outputs)
	require.True(t, grad.IsGradientOp)
}

func TestEndToEndSparse(t *testing.T) {
	r := gradients.NewRegistry()
	r.MustRegister("Gather", gradients.FromFunc(func(b *gradients.Base) []*ops.OpDef {
		return []*ops.OpDef{
			b.GradientDef("FlattenToVec", []string{b.I(1)}, []string{b.GIIndices(0)}),
			b.GradientDef("Copy", []string{b.GO(0)}, []string{b.GIValues(0)}),
		}
	}))

	def := ops.NewOpDef("Gather", "", []string{"table", "idx"}, []string{"rows"})
	result, err := r.GradientForOp(def, []gradients.Gradient{gradients.Dense("rows_grad")})
	require.NoError(t, err)

	require.Equal(t, []gradients.Gradient{
		gradients.Sparse("table_grad_indices", "table_grad_values"),
		{},
	}, result.InputGradients)
	require.Len(t, result.Ops, 2)
	for _, grad := range result.Ops {
		require.True(t, grad.IsGradientOp)
	}
}
