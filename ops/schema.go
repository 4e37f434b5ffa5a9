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

package ops

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Schema is the structural contract operator definitions of one type must
// satisfy: how many inputs and outputs are allowed, plus optional custom
// checks. Build one with NewSchema and the chained setters:
//
//	ops.MustRegisterSchema(ops.NewSchema("Add").NumInputs(2).NumOutputs(1))
type Schema struct {
	opType                 string
	minInputs, maxInputs   int
	minOutputs, maxOutputs int
	checks                 []func(*OpDef) error
}

// NewSchema creates a schema for the given operator type that accepts any
// number of inputs and outputs.
func NewSchema(opType string) *Schema {
	return &Schema{
		opType:     opType,
		maxInputs:  math.MaxInt,
		maxOutputs: math.MaxInt,
	}
}

// OpType returns the operator type this schema constrains.
func (s *Schema) OpType() string { return s.opType }

// NumInputs requires exactly n inputs.
func (s *Schema) NumInputs(n int) *Schema {
	s.minInputs, s.maxInputs = n, n
	return s
}

// NumInputsRange requires between min and max inputs, inclusive.
func (s *Schema) NumInputsRange(min, max int) *Schema {
	s.minInputs, s.maxInputs = min, max
	return s
}

// NumOutputs requires exactly n outputs.
func (s *Schema) NumOutputs(n int) *Schema {
	s.minOutputs, s.maxOutputs = n, n
	return s
}

// NumOutputsRange requires between min and max outputs, inclusive.
func (s *Schema) NumOutputsRange(min, max int) *Schema {
	s.minOutputs, s.maxOutputs = min, max
	return s
}

// Check adds a custom constraint run by Verify after the arity checks.
func (s *Schema) Check(fn func(*OpDef) error) *Schema {
	s.checks = append(s.checks, fn)
	return s
}

// Verify checks def against the schema and returns the first violation found.
func (s *Schema) Verify(def *OpDef) error {
	if def.Type != s.opType {
		return errors.Errorf("schema for operator type %q cannot verify a %q definition", s.opType, def.Type)
	}
	if n := len(def.Inputs); n < s.minInputs || n > s.maxInputs {
		return errors.Errorf("operator %q takes %s inputs, definition has %d",
			s.opType, rangeString(s.minInputs, s.maxInputs), n)
	}
	if n := len(def.Outputs); n < s.minOutputs || n > s.maxOutputs {
		return errors.Errorf("operator %q produces %s outputs, definition has %d",
			s.opType, rangeString(s.minOutputs, s.maxOutputs), n)
	}
	for _, check := range s.checks {
		if err := check(def); err != nil {
			return err
		}
	}
	return nil
}

func rangeString(min, max int) string {
	if min == max {
		return fmt.Sprintf("%d", min)
	}
	if max == math.MaxInt {
		return fmt.Sprintf("at least %d", min)
	}
	return fmt.Sprintf("between %d and %d", min, max)
}

var registeredSchemas = make(map[string]*Schema)

// RegisterSchema adds a schema to the process-wide schema registry. It fails
// if one is already registered for the same operator type.
//
// To be safe, call RegisterSchema during initialization of a package.
func RegisterSchema(s *Schema) error {
	if _, found := registeredSchemas[s.opType]; found {
		return errors.Errorf("schema already registered for operator type %q", s.opType)
	}
	registeredSchemas[s.opType] = s
	klog.V(2).Infof("registered schema for operator type %q", s.opType)
	return nil
}

// MustRegisterSchema is RegisterSchema that panics on error, for use in
// package init functions.
func MustRegisterSchema(s *Schema) {
	if err := RegisterSchema(s); err != nil {
		panic(err)
	}
}

// SchemaFor returns the schema registered for the operator type, or nil if
// there is none.
func SchemaFor(opType string) *Schema {
	return registeredSchemas[opType]
}
