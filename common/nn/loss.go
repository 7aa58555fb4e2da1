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
	"slices"

	"github.com/chewxy/math32"
)

// MeanSquareError returns mean((prediction - target)^2).
func MeanSquareError(target, prediction *Tensor) *Tensor {
	return Mean(Square(Sub(prediction, target)))
}

type bceWithLogits struct {
	base
}

func (b *bceWithLogits) String() string {
	return "BCEWithLogits"
}

func (b *bceWithLogits) forward(inputs ...*Tensor) *Tensor {
	target, logits := inputs[0], inputs[1]
	y := NewScalar(0)
	for i, x := range logits.data {
		// max(x, 0) - x * t + log(1 + exp(-|x|))
		y.data[0] += math32.Max(x, 0) - x*target.data[i] + math32.Log1p(math32.Exp(-math32.Abs(x)))
	}
	y.data[0] /= float32(len(logits.data))
	return y
}

func (b *bceWithLogits) backward(dy *Tensor) []*Tensor {
	target, logits := b.inputs[0], b.inputs[1]
	n := float32(len(logits.data))
	dt := Zeros(target.shape...)
	dx := Zeros(logits.shape...)
	for i, x := range logits.data {
		dx.data[i] = dy.data[0] * (sigmoidf(x) - target.data[i]) / n
		dt.data[i] = -dy.data[0] * x / n
	}
	return []*Tensor{dt, dx}
}

// BCEWithLogits returns the mean binary cross entropy between targets in {0, 1} and raw scores.
func BCEWithLogits(target, logits *Tensor) *Tensor {
	if !slices.Equal(target.shape, logits.shape) {
		panic(fmt.Sprintf("target shape %v does not match logits shape %v", target.shape, logits.shape))
	}
	return apply(&bceWithLogits{}, target, logits)
}
