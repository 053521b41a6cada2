// Copyright 2026 cellanno Project Authors
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

// Package nn is a minimal float32 autograd engine. It provides just the
// tensors, operators, layers and optimizers needed by the variational models
// in this repository.
package nn

import (
	"fmt"
	"math/rand"
	"strings"
)

var rng = rand.New(rand.NewSource(0))

// Seed resets the package random source. Training is deterministic for a
// fixed seed and a fixed call order.
func Seed(seed int64) {
	rng = rand.New(rand.NewSource(seed))
}

type Tensor struct {
	data        []float32
	shape       []int
	grad        *Tensor
	op          op
	requireGrad bool
}

func NewTensor(data []float32, shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(data) != n {
		panic(fmt.Sprintf("shape %v does not match data length %d", shape, len(data)))
	}
	return &Tensor{data: data, shape: shape}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{data: []float32{data}, shape: []int{}}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return &Tensor{data: make([]float32, n), shape: shape}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// Normal creates a tensor filled with normally distributed values.
func Normal(mean, std float32, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = mean + std*float32(rng.NormFloat64())
	}
	return t
}

// Rand creates a tensor filled with uniform values in [0,1).
func Rand(shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = rng.Float32()
	}
	return t
}

// NormalInit refills an existing tensor with normally distributed values.
func NormalInit(t *Tensor, mean, std float32) {
	for i := range t.data {
		t.data[i] = mean + std*float32(rng.NormFloat64())
	}
}

// RequireGrad marks the tensor as a learnable leaf.
func (t *Tensor) RequireGrad() *Tensor {
	t.requireGrad = true
	return t
}

// NoGrad detaches the tensor from the computation graph.
func (t *Tensor) NoGrad() *Tensor {
	t.op = nil
	return t
}

func (t *Tensor) Shape() []int {
	return t.shape
}

// Data returns the backing slice. Mutating it mutates the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Get returns the element at a flat offset.
func (t *Tensor) Get(i int) float32 {
	return t.data[i]
}

// At returns the element of a matrix.
func (t *Tensor) At(i, j int) float32 {
	if len(t.shape) != 2 {
		panic("At expects a matrix")
	}
	return t.data[i*t.shape[1]+j]
}

func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return &Tensor{data: data, shape: shape}
}

// SliceRows copies rows [begin,end) of a matrix into a new leaf tensor.
func (t *Tensor) SliceRows(begin, end int) *Tensor {
	if len(t.shape) < 1 {
		panic("SliceRows expects at least one dimension")
	}
	width := 1
	for _, s := range t.shape[1:] {
		width *= s
	}
	data := make([]float32, (end-begin)*width)
	copy(data, t.data[begin*width:end*width])
	shape := append([]int{end - begin}, t.shape[1:]...)
	return &Tensor{data: data, shape: shape}
}

func (t *Tensor) String() string {
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}
	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := range t.data {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
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

// Backward computes gradients of t with respect to every tensor in its
// graph. Gradients accumulate where a tensor feeds several operators.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	// topological order over operators
	var ordered []op
	visited := make(map[op]bool)
	var visit func(o op)
	visit = func(o op) {
		if o == nil || visited[o] {
			return
		}
		visited[o] = true
		inputs, _ := o.inputsAndOutput()
		for _, input := range inputs {
			visit(input.op)
		}
		ordered = append(ordered, o)
	}
	visit(t.op)
	for i := len(ordered) - 1; i >= 0; i-- {
		o := ordered[i]
		inputs, output := o.inputsAndOutput()
		grads := o.backward(output.grad)
		for j, input := range inputs {
			if grads[j] == nil {
				continue
			}
			if input.grad == nil {
				input.grad = grads[j]
			} else {
				input.grad.add(grads[j])
			}
		}
	}
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

func (t *Tensor) numel() int {
	n := 1
	for _, s := range t.shape {
		n *= s
	}
	return n
}

// cyclic in-place arithmetic: the second operand repeats over the first.

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := other.numel()
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	wSize := other.numel()
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) mul(other *Tensor) *Tensor {
	wSize := other.numel()
	for i := range t.data {
		t.data[i] *= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) div(other *Tensor) *Tensor {
	wSize := other.numel()
	for i := range t.data {
		t.data[i] /= other.data[i%wSize]
	}
	return t
}

// reduceTo folds src cyclically onto a tensor of the given shape. It is the
// adjoint of the cyclic broadcast used by binary operators.
func reduceTo(src *Tensor, shape []int) *Tensor {
	out := Zeros(shape...)
	wSize := out.numel()
	for i := range src.data {
		out.data[i%wSize] += src.data[i]
	}
	return out
}

func checkBroadcast(x0, x1 *Tensor) {
	if x1.numel() == 0 || x0.numel()%x1.numel() != 0 {
		panic(fmt.Sprintf("cannot broadcast %v over %v", x1.shape, x0.shape))
	}
}
