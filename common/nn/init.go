// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorse-io/fm/base"
)

// fans returns (fanIn, fanOut) of a weight. Dimension 1 is the input side,
// dimension 0 the output side, and trailing dimensions form the receptive field.
func fans(shape []int) (int, int) {
	if len(shape) < 2 {
		panic(fmt.Sprintf("fan in and fan out can not be computed for shape %v", shape))
	}
	receptive := numElements(shape[2:])
	return shape[1] * receptive, shape[0] * receptive
}

// XavierUniform fills t in place with U(-a, a) where a = gain * sqrt(6 / (fanIn + fanOut)).
func XavierUniform(t *Tensor, gain float32, rng base.RandomGenerator) {
	fanIn, fanOut := fans(t.shape)
	a := gain * math32.Sqrt(6/float32(fanIn+fanOut))
	copy(t.data, rng.UniformVector(len(t.data), -a, a))
}

// XavierNormal fills t in place with N(0, std^2) where std = gain * sqrt(2 / (fanIn + fanOut)).
func XavierNormal(t *Tensor, gain float32, rng base.RandomGenerator) {
	fanIn, fanOut := fans(t.shape)
	std := gain * math32.Sqrt(2/float32(fanIn+fanOut))
	copy(t.data, rng.NormalVector(len(t.data), 0, std))
}
