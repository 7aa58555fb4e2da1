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

import "github.com/gorse-io/fm/base"

type Layer interface {
	Parameters() []*Tensor
}

// EmbeddingLayer maps integer indices to rows of a learned table.
type EmbeddingLayer struct {
	W *Tensor
}

// NewEmbedding creates a table of n rows, each of the given shape, drawn from N(0, 1).
func NewEmbedding(n int, rng base.RandomGenerator, shape ...int) *EmbeddingLayer {
	wShape := append([]int{n}, shape...)
	return &EmbeddingLayer{
		W: Normal(0, 1, rng, wShape...),
	}
}

func (e *EmbeddingLayer) Parameters() []*Tensor {
	return []*Tensor{e.W}
}

// Forward looks up indices laid out in shape.
func (e *EmbeddingLayer) Forward(indices []int32, shape ...int) *Tensor {
	return Embedding(e.W, indices, shape...)
}
