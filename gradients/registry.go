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
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"

	"github.com/StevenLOL/caffe2/ops"
)

// Registry maps operator type names to the Factory that builds their
// gradient maker. Populate it before the first derivation; lookups are
// read-only and need no synchronization afterward.
//
// The package keeps a default Registry that operator packages fill during
// initialization (see Register); a differentiation pass may equally own its
// own instance.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty gradient maker registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds the Factory for an operator type. Registering the same type
// twice, or a nil factory, is a configuration error.
func (r *Registry) Register(opType string, factory Factory) error {
	if factory == nil {
		return errors.Wrapf(ErrConfiguration, "nil gradient maker factory for operator type %q", opType)
	}
	if _, found := r.factories[opType]; found {
		return errors.Wrapf(ErrConfiguration, "gradient maker already registered for operator type %q", opType)
	}
	r.factories[opType] = factory
	klog.V(2).Infof("registered gradient maker for operator type %q", opType)
	return nil
}

// MustRegister is Register that panics on error, for use in package init
// functions.
func (r *Registry) MustRegister(opType string, factory Factory) {
	if err := r.Register(opType, factory); err != nil {
		panic(err)
	}
}

// Types returns the registered operator type names, sorted.
func (r *Registry) Types() []string {
	types := maps.Keys(r.factories)
	sort.Strings(types)
	return types
}

// GradientForOp derives the gradient of one forward operator: it resolves
// the Factory for def.Type, builds the maker with the output gradients
// (index-aligned with def.Outputs) and returns its Get result.
//
// It fails with ErrConfiguration for an unregistered type and with
// ErrConsistency when gradOutputs is not aligned with the outputs; any
// failure of the maker itself is returned as is.
func (r *Registry) GradientForOp(def *ops.OpDef, gradOutputs []Gradient) (*Result, error) {
	if len(gradOutputs) != len(def.Outputs) {
		return nil, errors.Wrapf(ErrConsistency,
			"operator %q has %d outputs but %d output gradients were supplied",
			def.Type, len(def.Outputs), len(gradOutputs))
	}
	factory, found := r.factories[def.Type]
	if !found {
		return nil, errors.Wrapf(ErrConfiguration,
			"no gradient maker registered for operator type %q (registered types: %s)",
			def.Type, strings.Join(r.Types(), ", "))
	}
	if klog.V(2).Enabled() {
		klog.Infof("deriving gradient for operator %s", def.DebugString())
	}
	return factory(def, gradOutputs).Get()
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by Register and
// GradientForOp.
func Default() *Registry { return defaultRegistry }

// Register adds a Factory to the default registry.
//
// To be safe, call Register during initialization of a package.
func Register(opType string, factory Factory) error {
	return defaultRegistry.Register(opType, factory)
}

// MustRegister is Register that panics on error.
func MustRegister(opType string, factory Factory) {
	defaultRegistry.MustRegister(opType, factory)
}

// GradientForOp derives the gradient of one forward operator using the
// default registry.
func GradientForOp(def *ops.OpDef, gradOutputs []Gradient) (*Result, error) {
	return defaultRegistry.GradientForOp(def, gradOutputs)
}
