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

package fm

import (
	"fmt"

	"github.com/gorse-io/fm/base"
	"github.com/gorse-io/fm/common/nn"
	"github.com/samber/lo"
)

// fieldOffsets returns the exclusive prefix sum of field dimensions. Adding
// offsets[i] to a local index of field i gives its row in the shared table.
func fieldOffsets(fieldDims []int) []int32 {
	offsets := make([]int32, len(fieldDims))
	for i := 1; i < len(fieldDims); i++ {
		offsets[i] = offsets[i-1] + int32(fieldDims[i-1])
	}
	return offsets
}

// globalIndices maps a row-major (batch, numFields) block of local indices
// into the shared index space. It returns the indices and the batch size.
func globalIndices(x []int32, offsets []int32) ([]int32, int) {
	if len(x)%len(offsets) != 0 {
		panic(fmt.Sprintf("%d indices can not be split into rows of %d fields", len(x), len(offsets)))
	}
	global := make([]int32, len(x))
	for i := range x {
		global[i] = x[i] + offsets[i%len(offsets)]
	}
	return global, len(x) / len(offsets)
}

// FeaturesLinear is the first-order term: one learned weight vector per
// feature value, summed over fields, plus a global bias.
type FeaturesLinear struct {
	fc      *nn.EmbeddingLayer
	bias    *nn.Tensor
	offsets []int32
}

func NewFeaturesLinear(fieldDims []int, outputDim int, rng base.RandomGenerator) *FeaturesLinear {
	return &FeaturesLinear{
		fc:      nn.NewEmbedding(lo.Sum(fieldDims), rng, outputDim),
		bias:    nn.Zeros(outputDim),
		offsets: fieldOffsets(fieldDims),
	}
}

// Forward maps (batch, numFields) indices to (batch, outputDim).
func (l *FeaturesLinear) Forward(x []int32) *nn.Tensor {
	indices, batchSize := globalIndices(x, l.offsets)
	weights := l.fc.Forward(indices, batchSize, len(l.offsets))
	return nn.Add(nn.ReduceSum(weights, 1, false), l.bias)
}

func (l *FeaturesLinear) Parameters() []*nn.Tensor {
	return []*nn.Tensor{l.fc.W, l.bias}
}

// FeaturesEmbedding looks up a dense vector for every field of every example.
type FeaturesEmbedding struct {
	embedding *nn.EmbeddingLayer
	offsets   []int32
}

func NewFeaturesEmbedding(fieldDims []int, nFactors int, rng base.RandomGenerator) *FeaturesEmbedding {
	embedding := nn.NewEmbedding(lo.Sum(fieldDims), rng, nFactors)
	nn.XavierUniform(embedding.W, 1, rng)
	return &FeaturesEmbedding{
		embedding: embedding,
		offsets:   fieldOffsets(fieldDims),
	}
}

// Forward maps (batch, numFields) indices to (batch, numFields, nFactors).
func (e *FeaturesEmbedding) Forward(x []int32) *nn.Tensor {
	indices, batchSize := globalIndices(x, e.offsets)
	return e.embedding.Forward(indices, batchSize, len(e.offsets))
}

func (e *FeaturesEmbedding) Parameters() []*nn.Tensor {
	return e.embedding.Parameters()
}

// FactorizationMachine computes the second-order term
//
//	0.5 * ((Σ_f x_f)² - Σ_f x_f²) = Σ_{i<j} x_i ⊙ x_j
//
// in O(numFields * nFactors). With reduceSum the factors are summed as well.
type FactorizationMachine struct {
	reduceSum bool
}

func NewFactorizationMachine(reduceSum bool) *FactorizationMachine {
	return &FactorizationMachine{reduceSum: reduceSum}
}

// Forward maps (batch, numFields, nFactors) to (batch, 1) if reduceSum,
// otherwise to (batch, nFactors).
func (m *FactorizationMachine) Forward(x *nn.Tensor) *nn.Tensor {
	squareOfSum := nn.Square(nn.ReduceSum(x, 1, false))
	sumOfSquare := nn.ReduceSum(nn.Square(x), 1, false)
	ix := nn.Sub(squareOfSum, sumOfSquare)
	if m.reduceSum {
		ix = nn.ReduceSum(ix, 1, true)
	}
	return nn.Mul(ix, nn.NewScalar(0.5))
}

func (m *FactorizationMachine) Parameters() []*nn.Tensor {
	return nil
}
