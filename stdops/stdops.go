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

// Package stdops registers schemas and gradient recipes for the standard
// operator set. Importing it (usually for side effects) populates the ops
// schema registry and the default gradients registry:
//
//	import _ "github.com/StevenLOL/caffe2/stdops"
package stdops

import (
	"math"

	"github.com/StevenLOL/caffe2/gradients"
	"github.com/StevenLOL/caffe2/ops"
)

func init() {
	registerSchemas()
	registerGradients()
}

func registerSchemas() {
	for _, s := range []*ops.Schema{
		ops.NewSchema("Add").NumInputs(2).NumOutputs(1),
		ops.NewSchema("Sub").NumInputs(2).NumOutputs(1),
		ops.NewSchema("Mul").NumInputs(2).NumOutputs(1),
		ops.NewSchema("MatMul").NumInputs(2).NumOutputs(1),
		ops.NewSchema("Neg").NumInputs(1).NumOutputs(1),
		ops.NewSchema("Exp").NumInputs(1).NumOutputs(1),
		ops.NewSchema("Tanh").NumInputs(1).NumOutputs(1),
		ops.NewSchema("Sigmoid").NumInputs(1).NumOutputs(1),
		ops.NewSchema("Sum").NumInputsRange(1, math.MaxInt).NumOutputs(1),
		ops.NewSchema("Gather").NumInputs(2).NumOutputs(1),
		ops.NewSchema("Shape").NumInputs(1).NumOutputs(1),
		ops.NewSchema("StopGradient").NumInputs(1).NumOutputs(1),
		ops.NewSchema("Accuracy").NumInputs(2).NumOutputs(1),
		ops.NewSchema("TopK").NumInputs(1).NumOutputs(2),
	} {
		ops.MustRegisterSchema(s)
	}
}

func registerGradients() {
	gradients.MustRegister("Add", gradients.FromFunc(addGradient))
	gradients.MustRegister("Sub", gradients.FromFunc(subGradient))
	gradients.MustRegister("Mul", gradients.FromFunc(mulGradient))
	gradients.MustRegister("MatMul", gradients.FromFunc(matMulGradient))
	gradients.MustRegister("Neg", gradients.FromFunc(negGradient))
	gradients.MustRegister("Exp", gradients.FromFunc(expGradient))
	gradients.MustRegister("Tanh", gradients.FromFunc(tanhGradient))
	gradients.MustRegister("Sigmoid", gradients.FromFunc(sigmoidGradient))
	gradients.MustRegister("Sum", gradients.FromFunc(sumGradient))
	gradients.MustRegister("Gather", gradients.FromFunc(gatherGradient))

	// Operators with no differentiable inputs.
	gradients.MustRegister("Shape", gradients.NoGradient)
	gradients.MustRegister("StopGradient", gradients.NoGradient)

	// Metrics block gradient flow on purpose.
	gradients.MustRegister("Accuracy", gradients.RejectGradient)

	// TODO: TopK gradient needs a ScatterAssign-style backward operator.
	gradients.MustRegister("TopK", gradients.GradientNotImplementedYet)
}

// dZ flows unchanged to both summands.
func addGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("AddGradient",
		[]string{b.GO(0)},
		[]string{b.GI(0), b.GI(1)})
}

// d(x-y)/dx = 1, d(x-y)/dy = -1: the minuend reuses the output gradient
// directly, only the subtrahend needs an operator.
func subGradient(b *gradients.Base) []*ops.OpDef {
	b.SetDense(0, b.GO(0))
	return b.SingleGradientDef("Neg",
		[]string{b.GO(0)},
		[]string{b.GI(1)})
}

func mulGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("MulGradient",
		[]string{b.GO(0), b.I(0), b.I(1)},
		[]string{b.GI(0), b.GI(1)})
}

// dA = dY.B^T and dB = A^T.dY, expressed as two transposed MatMuls. The
// forward transpose arguments must not leak into the backward definitions.
func matMulGradient(b *gradients.Base) []*ops.OpDef {
	b.CopyArguments = false
	return []*ops.OpDef{
		b.GradientDef("MatMul",
			[]string{b.GO(0), b.I(1)},
			[]string{b.GI(0)},
			ops.NewArg("trans_b", 1)),
		b.GradientDef("MatMul",
			[]string{b.I(0), b.GO(0)},
			[]string{b.GI(1)},
			ops.NewArg("trans_a", 1)),
	}
}

func negGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("Neg",
		[]string{b.GO(0)},
		[]string{b.GI(0)})
}

// d(e^x)/dx = e^x, which the forward pass already computed.
func expGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("Mul",
		[]string{b.GO(0), b.O(0)},
		[]string{b.GI(0)})
}

func tanhGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("TanhGradient",
		[]string{b.O(0), b.GO(0)},
		[]string{b.GI(0)})
}

func sigmoidGradient(b *gradients.Base) []*ops.OpDef {
	return b.SingleGradientDef("SigmoidGradient",
		[]string{b.O(0), b.GO(0)},
		[]string{b.GI(0)})
}

// Every summand receives the output gradient as is: no backward operators at
// all.
func sumGradient(b *gradients.Base) []*ops.OpDef {
	for ii := range b.Def().Inputs {
		b.SetDense(ii, b.GO(0))
	}
	return nil
}

// The gradient with respect to the table is sparse: the gathered indices
// select the rows that receive the output gradient values. The indices input
// itself gets no gradient.
func gatherGradient(b *gradients.Base) []*ops.OpDef {
	return []*ops.OpDef{
		b.GradientDef("FlattenToVec",
			[]string{b.I(1)},
			[]string{b.GIIndices(0)}),
		b.GradientDef("Copy",
			[]string{b.GO(0)},
			[]string{b.GIValues(0)}),
	}
}
