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
)

func TestGradientStates(t *testing.T) {
	tests := []struct {
		name                     string
		g                        gradients.Gradient
		dense, sparse, empty     bool
		denseName, indices, vals string
	}{
		{"zero value", gradients.Gradient{}, false, false, true, "", "", ""},
		{"dense", gradients.Dense("w_grad"), true, false, false, "w_grad", "", ""},
		{"sparse", gradients.Sparse("w_grad_indices", "w_grad_values"), false, true, false, "", "w_grad_indices", "w_grad_values"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.dense, test.g.IsDense())
			require.Equal(t, test.sparse, test.g.IsSparse())
			require.Equal(t, test.empty, test.g.IsEmpty())
			require.Equal(t, test.denseName, test.g.DenseName())
			require.Equal(t, test.indices, test.g.IndicesName())
			require.Equal(t, test.vals, test.g.ValuesName())
		})
	}
}

func TestGradientString(t *testing.T) {
	require.Equal(t, "<no gradient>", gradients.Gradient{}.String())
	require.Equal(t, "dense(w_grad)", gradients.Dense("w_grad").String())
	require.Equal(t, "sparse(i, v)", gradients.Sparse("i", "v").String())
}
