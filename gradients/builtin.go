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
	"github.com/pkg/errors"

	"github.com/StevenLOL/caffe2/ops"
)

// NoGradient is a Factory for operators that need no gradient computation,
// like pure data loading: it emits no backward definitions and leaves every
// input gradient empty.
func NoGradient(fwd *ops.OpDef, gradOutputs []Gradient) Maker {
	return &funcMaker{
		base: NewBase(fwd, gradOutputs),
		fn:   func(*Base) []*ops.OpDef { return nil },
	}
}

// RejectGradient is a Factory for operators explicitly designed to block
// gradient flow: Get always fails with ErrPolicy, regardless of the output
// gradients supplied.
func RejectGradient(fwd *ops.OpDef, _ []Gradient) Maker {
	return failingMaker{errors.Wrapf(ErrPolicy,
		"one should not call gradient for operator %q", fwd.Type)}
}

// GradientNotImplementedYet is a Factory placeholder for operators whose
// gradient is expected to exist but has not been written: Get always fails
// with ErrConfiguration. Distinct from RejectGradient, which marks gradients
// that must never exist.
func GradientNotImplementedYet(fwd *ops.OpDef, _ []Gradient) Maker {
	return failingMaker{errors.Wrapf(ErrConfiguration,
		"operator %q should have a gradient but it is not implemented yet", fwd.Type)}
}

// failingMaker fails Get unconditionally, before any schema verification.
type failingMaker struct {
	err error
}

func (m failingMaker) Get() (*Result, error) {
	return nil, m.err
}
