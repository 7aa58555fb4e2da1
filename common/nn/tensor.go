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
	"strings"

	"github.com/gorse-io/fm/base"
	"github.com/gorse-io/fm/common/floats"
	"github.com/samber/lo"
)

// Tensor is a dense float32 array in row-major order. Tensors produced by
// operators remember the operator so that gradients can be propagated back to
// the leaves by Backward.
type Tensor struct {
	data  []float32
	shape []int
	grad  *Tensor
	op    op
}

func NewTensor(data []float32, shape ...int) *Tensor {
	if size := numElements(shape); size != len(data) {
		panic(fmt.Sprintf("tensor of shape %v needs %d elements, got %d", shape, size, len(data)))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{
		data:  []float32{data},
		shape: []int{},
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, numElements(shape)),
		shape: shape,
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	return Full(1, shape...)
}

// Full creates a tensor filled with a constant.
func Full(value float32, shape ...int) *Tensor {
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = value
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Normal creates a tensor filled with normal random values.
func Normal(mean, std float32, rng base.RandomGenerator, shape ...int) *Tensor {
	return &Tensor{
		data:  rng.NormalVector(numElements(shape), mean, std),
		shape: shape,
	}
}

// Uniform creates a tensor filled with uniform random values in [low, high).
func Uniform(low, high float32, rng base.RandomGenerator, shape ...int) *Tensor {
	return &Tensor{
		data:  rng.UniformVector(numElements(shape), low, high),
		shape: shape,
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Data returns the underlying data. Writes through the returned slice modify the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Size() int {
	return len(t.data)
}

// Fill overwrites every element with value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// NoGrad detaches the tensor from the graph that produced it.
func (t *Tensor) NoGrad() *Tensor {
	if t.op != nil {
		t.op = nil
	}
	return t
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		builder.WriteString(strings.Join(lo.Map(t.data, func(v float32, _ int) string {
			return fmt.Sprint(v)
		}), ", "))
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of the tensor with respect to every tensor in
// its graph. Gradients accumulate into leaves until ZeroGrad is called.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	if t.op == nil {
		return
	}
	// sort operators so that each one runs after all of its consumers
	var (
		order   []op
		visited = make(map[op]struct{})
		visit   func(o op)
	)
	visit = func(o op) {
		if _, ok := visited[o]; ok {
			return
		}
		visited[o] = struct{}{}
		inputs, _ := o.inputsAndOutput()
		for _, input := range inputs {
			if input.op != nil {
				visit(input.op)
			}
		}
		order = append(order, o)
	}
	visit(t.op)
	// propagate from the output back to the leaves
	for i := len(order) - 1; i >= 0; i-- {
		inputs, output := order[i].inputsAndOutput()
		if output.grad == nil {
			continue
		}
		grads := order[i].backward(output.grad)
		for j := range grads {
			if inputs[j].grad == nil {
				inputs[j].grad = grads[j]
			} else {
				inputs[j].grad.add(grads[j])
			}
		}
	}
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: append([]int(nil), t.shape...),
	}
}

func (t *Tensor) add(other *Tensor) *Tensor {
	if len(other.data) == len(t.data) {
		floats.Add(t.data, other.data)
		return t
	}
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	if len(other.data) == len(t.data) {
		floats.Sub(t.data, other.data)
		return t
	}
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) mul(other *Tensor) *Tensor {
	if len(other.data) == len(t.data) {
		floats.MulTo(t.data, other.data, t.data)
		return t
	}
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] *= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) square() *Tensor {
	floats.MulTo(t.data, t.data, t.data)
	return t
}
