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

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

// reduceBroadcast folds a gradient of the full shape back onto a suffix-shaped operand.
func reduceBroadcast(dy *Tensor, shape []int, scale func(i int) float32) *Tensor {
	gx := Zeros(shape...)
	wSize := len(gx.data)
	for i := range dy.data {
		gx.data[i%wSize] += dy.data[i] * scale(i)
	}
	return gx
}

type add struct {
	base
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := reduceBroadcast(dy, a.inputs[1].shape, func(int) float32 { return 1 })
	return []*Tensor{gx0, gx1}
}

type sub struct {
	base
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := reduceBroadcast(dy, s.inputs[1].shape, func(int) float32 { return -1 })
	return []*Tensor{gx0, gx1}
}

type mul struct {
	base
}

func (m *mul) String() string {
	return "Mul"
}

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.mul(inputs[1])
	return y
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx0.mul(m.inputs[1])
	gx1 := reduceBroadcast(dy, m.inputs[1].shape, func(i int) float32 { return m.inputs[0].data[i] })
	return []*Tensor{gx0, gx1}
}

type square struct {
	base
}

func (s *square) String() string {
	return "Square"
}

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.square()
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	dx.mul(dy)
	for i := range dx.data {
		dx.data[i] *= 2
	}
	return []*Tensor{dx}
}

type sum struct {
	base
}

func (s *sum) String() string {
	return "Sum"
}

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	y := NewScalar(0)
	for i := range x.data {
		y.data[0] += x.data[i]
	}
	return y
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	return []*Tensor{Full(dy.data[0], s.inputs[0].shape...)}
}

type mean struct {
	base
}

func (m *mean) String() string {
	return "Mean"
}

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	y := NewScalar(0)
	for i := range x.data {
		y.data[0] += x.data[i]
	}
	y.data[0] /= float32(len(x.data))
	return y
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	return []*Tensor{Full(dy.data[0]/float32(len(m.inputs[0].data)), m.inputs[0].shape...)}
}

// reduceSum sums over one axis. The tensor is viewed as (outer, n, inner).
type reduceSum struct {
	base
	axis    int
	keepDim bool
}

func (r *reduceSum) String() string {
	return "ReduceSum"
}

func (r *reduceSum) dims(shape []int) (outer, n, inner int) {
	return numElements(shape[:r.axis]), shape[r.axis], numElements(shape[r.axis+1:])
}

func (r *reduceSum) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	outer, n, inner := r.dims(x.shape)
	shape := slices.Clone(x.shape)
	if r.keepDim {
		shape[r.axis] = 1
	} else {
		shape = slices.Delete(shape, r.axis, r.axis+1)
	}
	y := Zeros(shape...)
	for o := 0; o < outer; o++ {
		for j := 0; j < n; j++ {
			src := x.data[(o*n+j)*inner : (o*n+j+1)*inner]
			dst := y.data[o*inner : (o+1)*inner]
			for k := range src {
				dst[k] += src[k]
			}
		}
	}
	return y
}

func (r *reduceSum) backward(dy *Tensor) []*Tensor {
	x := r.inputs[0]
	outer, n, inner := r.dims(x.shape)
	dx := Zeros(x.shape...)
	for o := 0; o < outer; o++ {
		for j := 0; j < n; j++ {
			copy(dx.data[(o*n+j)*inner:(o*n+j+1)*inner], dy.data[o*inner:(o+1)*inner])
		}
	}
	return []*Tensor{dx}
}

type reshape struct {
	base
	shape []int
}

func (r *reshape) String() string {
	return "Reshape"
}

func (r *reshape) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.shape = slices.Clone(r.shape)
	return y
}

func (r *reshape) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.shape = slices.Clone(r.inputs[0].shape)
	return []*Tensor{dx}
}

// embedding gathers rows of the weight table. Indices are not part of the graph.
type embedding struct {
	base
	indices []int32
	shape   []int
}

func (e *embedding) String() string {
	return "Embedding"
}

func (e *embedding) forward(inputs ...*Tensor) *Tensor {
	w := inputs[0]
	dim := numElements(w.shape[1:])
	y := Zeros(append(slices.Clone(e.shape), w.shape[1:]...)...)
	for i, index := range e.indices {
		if index < 0 || int(index) >= w.shape[0] {
			panic(fmt.Sprintf("embedding index %d out of range [0, %d)", index, w.shape[0]))
		}
		copy(y.data[i*dim:(i+1)*dim], w.data[int(index)*dim:(int(index)+1)*dim])
	}
	return y
}

func (e *embedding) backward(dy *Tensor) []*Tensor {
	w := e.inputs[0]
	dim := numElements(w.shape[1:])
	dw := Zeros(w.shape...)
	for i, index := range e.indices {
		dst := dw.data[int(index)*dim : (int(index)+1)*dim]
		src := dy.data[i*dim : (i+1)*dim]
		for k := range dst {
			dst[k] += src[k]
		}
	}
	return []*Tensor{dw}
}

type sigmoid struct {
	base
}

func (s *sigmoid) String() string {
	return "Sigmoid"
}

func (s *sigmoid) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		y.data[i] = sigmoidf(y.data[i])
	}
	return y
}

func (s *sigmoid) backward(dy *Tensor) []*Tensor {
	// dx = dy * y * (1 - y)
	dx := dy.clone()
	for i := range dx.data {
		y := s.output.data[i]
		dx.data[i] *= y * (1 - y)
	}
	return []*Tensor{dx}
}

func sigmoidf(x float32) float32 {
	// y = tanh(x * 0.5) * 0.5 + 0.5
	return math32.Tanh(x*0.5)*0.5 + 0.5
}

func checkSuffix(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic(fmt.Sprintf("shape %v is not a suffix of shape %v", x1.shape, x0.shape))
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic(fmt.Sprintf("shape %v is not a suffix of shape %v", x1.shape, x0.shape))
		}
	}
}

// Add returns the element-wise sum of two tensors. The shape of one tensor must be a suffix sequence of the shape of the other.
func Add(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&add{}, x0, x1)
}

// Sub returns the element-wise difference of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffix(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Mul returns the element-wise product of two tensors. The shape of one tensor must be a suffix sequence of the shape of the other.
func Mul(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&mul{}, x0, x1)
}

// Square returns the element-wise square of a tensor.
func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

// Sum returns the sum of all elements in a tensor.
func Sum(x *Tensor) *Tensor {
	return apply(&sum{}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

// ReduceSum sums a tensor along an axis. The axis is removed unless keepDim is set.
func ReduceSum(x *Tensor, axis int, keepDim bool) *Tensor {
	if axis < 0 || axis >= len(x.shape) {
		panic(fmt.Sprintf("axis %d out of range for shape %v", axis, x.shape))
	}
	return apply(&reduceSum{axis: axis, keepDim: keepDim}, x)
}

// Reshape returns a tensor with the same data and a new shape.
func Reshape(x *Tensor, shape ...int) *Tensor {
	if numElements(shape) != len(x.data) {
		panic(fmt.Sprintf("cannot reshape %v to %v", x.shape, shape))
	}
	return apply(&reshape{shape: shape}, x)
}

// Embedding looks up rows of w for each index. The result has shape shape + w.shape[1:].
func Embedding(w *Tensor, indices []int32, shape ...int) *Tensor {
	if len(w.shape) < 2 {
		panic(fmt.Sprintf("embedding table must have rank >= 2, got %v", w.shape))
	}
	if numElements(shape) != len(indices) {
		panic(fmt.Sprintf("%d indices do not fit shape %v", len(indices), shape))
	}
	return apply(&embedding{indices: indices, shape: shape}, w)
}

func Sigmoid(x *Tensor) *Tensor {
	return apply(&sigmoid{}, x)
}
