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
	"context"
	"fmt"

	"github.com/gorse-io/fm/common/floats"
	"github.com/gorse-io/fm/common/log"
	"github.com/gorse-io/fm/common/nn"
	"github.com/gorse-io/fm/common/parallel"
	"github.com/gorse-io/fm/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// WeightKind tags the weight tables owned by FM.
type WeightKind int

const (
	// EmbeddingWeight is a lookup table indexed by feature value.
	EmbeddingWeight WeightKind = iota
	// BiasWeight is added to every output.
	BiasWeight
)

func (k WeightKind) String() string {
	switch k {
	case EmbeddingWeight:
		return "embedding"
	case BiasWeight:
		return "bias"
	default:
		return fmt.Sprintf("WeightKind(%d)", int(k))
	}
}

// Weight is a named weight table of the model.
type Weight struct {
	Name   string
	Kind   WeightKind
	Tensor *nn.Tensor
}

// FM scores a (user, item) pair by a global bias, one weight per user and
// item, and the inner product of their factor vectors. Users and items are
// the two fields of the input; item k is row n_users + k of each table.
type FM struct {
	model.BaseModel
	embedding *FeaturesEmbedding
	linear    *FeaturesLinear
	fm        *FactorizationMachine
	// hyper parameters
	nFactors int
	nUsers   int
	nItems   int
}

// NewFM creates a model from hyper-parameters. NFactors, NUsers and NItems
// are required and must be positive. RandomState seeds the initialization.
func NewFM(params model.Params) (*FM, error) {
	fm := new(FM)
	fm.SetParams(params)
	for _, name := range []model.ParamName{model.NFactors, model.NUsers, model.NItems} {
		if _, exist := params[name]; !exist {
			return nil, errors.NotValidf("missing %s", name)
		}
		if value := params.GetInt(name, 0); value <= 0 {
			return nil, errors.NotValidf("%s = %v", name, params[name])
		}
	}
	fm.nFactors = params.GetInt(model.NFactors, 0)
	fm.nUsers = params.GetInt(model.NUsers, 0)
	fm.nItems = params.GetInt(model.NItems, 0)

	rng := fm.GetRandomGenerator()
	fieldDims := []int{fm.nUsers, fm.nItems}
	fm.embedding = NewFeaturesEmbedding(fieldDims, fm.nFactors, rng)
	fm.linear = NewFeaturesLinear(fieldDims, 1, rng)
	fm.fm = NewFactorizationMachine(true)
	fm.initWeights()
	log.Logger().Debug("create factorization machine",
		zap.Int("n_factors", fm.nFactors),
		zap.Int("n_users", fm.nUsers),
		zap.Int("n_items", fm.nItems),
		zap.Int64("random_state", params.GetInt64(model.RandomState, 0)))
	return fm, nil
}

// initWeights draws every embedding table from Xavier-normal. The factor
// table was already drawn from Xavier-uniform by its constructor and is
// redrawn here.
func (fm *FM) initWeights() {
	rng := fm.GetRandomGenerator()
	for _, w := range fm.Weights() {
		if w.Kind == EmbeddingWeight {
			nn.XavierNormal(w.Tensor, 1, rng)
		}
	}
}

// Weights lists the weight tables in initialization order.
func (fm *FM) Weights() []Weight {
	return []Weight{
		{Name: "embedding.embedding.weight", Kind: EmbeddingWeight, Tensor: fm.embedding.embedding.W},
		{Name: "linear.fc.weight", Kind: EmbeddingWeight, Tensor: fm.linear.fc.W},
		{Name: "linear.bias", Kind: BiasWeight, Tensor: fm.linear.bias},
	}
}

// Parameters returns the tensors an optimizer should update.
func (fm *FM) Parameters() []*nn.Tensor {
	return lo.Map(fm.Weights(), func(w Weight, _ int) *nn.Tensor {
		return w.Tensor
	})
}

func (fm *FM) NumFactors() int {
	return fm.nFactors
}

func (fm *FM) NumUsers() int {
	return fm.nUsers
}

func (fm *FM) NumItems() int {
	return fm.nItems
}

// Forward scores users[i] against items[i] and returns a tensor of shape
// (batch,) attached to the computation graph. Indices must lie in
// [0, n_users) and [0, n_items); they are not checked.
func (fm *FM) Forward(users, items []int32) *nn.Tensor {
	if len(users) != len(items) {
		panic(fmt.Sprintf("%d users do not match %d items", len(users), len(items)))
	}
	x := make([]int32, 0, 2*len(users))
	for i := range users {
		x = append(x, users[i], items[i])
	}
	y := nn.Add(fm.linear.Forward(x), fm.fm.Forward(fm.embedding.Forward(x)))
	return nn.Reshape(y, len(users))
}

// Predict returns one raw score per (user, item) pair.
func (fm *FM) Predict(users, items []int32) []float32 {
	return fm.Forward(users, items).NoGrad().Data()
}

// BatchPredict splits the batch into contiguous chunks and scores them on
// jobs goroutines. The result is identical to Predict.
func (fm *FM) BatchPredict(ctx context.Context, users, items []int32, jobs int) ([]float32, error) {
	if len(users) != len(items) {
		return nil, errors.NotValidf("%d users and %d items", len(users), len(items))
	}
	scores := make([]float32, len(users))
	chunks := parallel.Split(lo.Range(len(users)), jobs)
	err := parallel.Parallel(ctx, len(chunks), jobs, func(_, jobId int) error {
		begin := chunks[jobId][0]
		end := begin + len(chunks[jobId])
		copy(scores[begin:end], fm.Predict(users[begin:end], items[begin:end]))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scores, nil
}

// Explanation breaks the score of a single pair into its terms.
type Explanation struct {
	Bias        float32
	UserWeight  float32
	ItemWeight  float32
	Interaction float32
}

// Score sums the terms. It matches Predict up to rounding.
func (e Explanation) Score() float32 {
	return e.Bias + e.UserWeight + e.ItemWeight + e.Interaction
}

// Explain computes the terms of one pair directly from the weight tables.
func (fm *FM) Explain(user, item int32) Explanation {
	row := fm.nUsers + int(item)
	w := fm.linear.fc.W.Data()
	v := fm.embedding.embedding.W.Data()
	return Explanation{
		Bias:        fm.linear.bias.Data()[0],
		UserWeight:  w[user],
		ItemWeight:  w[row],
		Interaction: floats.Dot(v[int(user)*fm.nFactors:(int(user)+1)*fm.nFactors], v[row*fm.nFactors:(row+1)*fm.nFactors]),
	}
}

// PairwiseInteraction returns Σ_{i<j} <x_i, x_j> by enumerating every pair.
func PairwiseInteraction(x [][]float32) float32 {
	var sum float32
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			sum += floats.Dot(x[i], x[j])
		}
	}
	return sum
}
