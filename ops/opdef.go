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

// Package ops defines operator definitions (OpDef) and their schemas.
//
// An OpDef names one operation of a computation graph: its type, the tensors
// it reads and writes, free-form arguments, and where it should run. It
// carries no tensor data -- execution is the job of an engine elsewhere.
//
// A Schema is the structural contract an OpDef of a given type must satisfy
// (arity ranges plus optional custom checks). Schemas are registered per
// operator type during package initialization and looked up with SchemaFor.
package ops

import (
	"fmt"
	"strings"
)

// DeviceType enumerates where an operator runs.
type DeviceType int

const (
	CPU DeviceType = iota
	CUDA
)

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	}
	return fmt.Sprintf("DeviceType(%d)", int(t))
}

// DeviceOption selects the device an operator is placed on.
type DeviceOption struct {
	Type    DeviceType
	Ordinal int
}

// String implements fmt.Stringer.
func (o DeviceOption) String() string {
	return fmt.Sprintf("%s:%d", o.Type, o.Ordinal)
}

// Arg is a named free-form argument of an operator: an axis, a scale, a
// kernel size. Value is typically an int, float64, string or a slice of one
// of those.
type Arg struct {
	Name  string
	Value any
}

// NewArg returns a new operator argument.
func NewArg(name string, value any) *Arg {
	return &Arg{Name: name, Value: value}
}

// OpDef is the definition of one operator in a computation graph.
//
// Inputs and Outputs are ordered tensor names. IsGradientOp marks definitions
// that were derived by the gradient subsystem rather than written by hand.
type OpDef struct {
	Type    string
	Name    string
	Inputs  []string
	Outputs []string
	Args    []*Arg
	Device  DeviceOption
	Engine  string

	IsGradientOp bool
}

// NewOpDef creates an operator definition. The name may be empty, it is only
// used for diagnostics.
func NewOpDef(opType, name string, inputs, outputs []string, args ...*Arg) *OpDef {
	return &OpDef{
		Type:    opType,
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		Args:    args,
	}
}

// AddArg appends an argument and returns the OpDef for chaining.
func (d *OpDef) AddArg(name string, value any) *OpDef {
	d.Args = append(d.Args, &Arg{Name: name, Value: value})
	return d
}

// ArgByName returns the first argument with the given name, or nil.
func (d *OpDef) ArgByName(name string) *Arg {
	for _, arg := range d.Args {
		if arg.Name == name {
			return arg
		}
	}
	return nil
}

// InputCount returns the number of inputs.
func (d *OpDef) InputCount() int { return len(d.Inputs) }

// OutputCount returns the number of outputs.
func (d *OpDef) OutputCount() int { return len(d.Outputs) }

// CloneArgs returns a copy of the arguments, safe to attach to another OpDef.
func (d *OpDef) CloneArgs() []*Arg {
	if len(d.Args) == 0 {
		return nil
	}
	args := make([]*Arg, len(d.Args))
	for ii, arg := range d.Args {
		clone := *arg
		args[ii] = &clone
	}
	return args
}

// DebugString renders the definition on one line, for error messages and
// logging.
func (d *OpDef) DebugString() string {
	var sb strings.Builder
	sb.WriteString(d.Type)
	if d.Name != "" {
		fmt.Fprintf(&sb, ":%s", d.Name)
	}
	fmt.Fprintf(&sb, "(%s) -> (%s)", strings.Join(d.Inputs, ", "), strings.Join(d.Outputs, ", "))
	for _, arg := range d.Args {
		fmt.Fprintf(&sb, " %s=%v", arg.Name, arg.Value)
	}
	if d.Engine != "" {
		fmt.Fprintf(&sb, " engine=%s", d.Engine)
	}
	if d.Device != (DeviceOption{}) {
		fmt.Fprintf(&sb, " device=%s", d.Device)
	}
	if d.IsGradientOp {
		sb.WriteString(" gradient-op")
	}
	return sb.String()
}
