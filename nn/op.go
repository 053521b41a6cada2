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

package nn

import (
	"github.com/chewxy/math32"
)

type op interface {
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	setInputsAndOutput(inputs []*Tensor, output *Tensor)
	inputsAndOutput() ([]*Tensor, *Tensor)
}

type baseOp struct {
	inputs []*Tensor
	output *Tensor
}

func (b *baseOp) setInputsAndOutput(inputs []*Tensor, output *Tensor) {
	b.inputs = inputs
	b.output = output
}

func (b *baseOp) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func apply(o op, inputs ...*Tensor) *Tensor {
	y := o.forward(inputs...)
	o.setInputsAndOutput(inputs, y)
	y.op = o
	return y
}

type add struct{ baseOp }

func (a *add) forward(inputs ...*Tensor) *Tensor {
	checkBroadcast(inputs[0], inputs[1])
	return inputs[0].Clone().add(inputs[1])
}

func (a *add) backward(dy *Tensor) []*Tensor {
	return []*Tensor{dy.Clone(), reduceTo(dy, a.inputs[1].shape)}
}

// Add broadcasts the second operand cyclically over the first.
func Add(x0, x1 *Tensor) *Tensor {
	return apply(&add{}, x0, x1)
}

type sub struct{ baseOp }

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	checkBroadcast(inputs[0], inputs[1])
	return inputs[0].Clone().sub(inputs[1])
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	neg := reduceTo(dy, s.inputs[1].shape)
	for i := range neg.data {
		neg.data[i] = -neg.data[i]
	}
	return []*Tensor{dy.Clone(), neg}
}

func Sub(x0, x1 *Tensor) *Tensor {
	return apply(&sub{}, x0, x1)
}

type mul struct{ baseOp }

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	checkBroadcast(inputs[0], inputs[1])
	return inputs[0].Clone().mul(inputs[1])
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	dx0 := dy.Clone().mul(m.inputs[1])
	dx1 := reduceTo(dy.Clone().mul(m.inputs[0]), m.inputs[1].shape)
	return []*Tensor{dx0, dx1}
}

func Mul(x0, x1 *Tensor) *Tensor {
	return apply(&mul{}, x0, x1)
}

type div struct{ baseOp }

func (d *div) forward(inputs ...*Tensor) *Tensor {
	checkBroadcast(inputs[0], inputs[1])
	return inputs[0].Clone().div(inputs[1])
}

func (d *div) backward(dy *Tensor) []*Tensor {
	dx0 := dy.Clone().div(d.inputs[1])
	tmp := dy.Clone().mul(d.inputs[0]).div(d.inputs[1]).div(d.inputs[1])
	dx1 := reduceTo(tmp, d.inputs[1].shape)
	for i := range dx1.data {
		dx1.data[i] = -dx1.data[i]
	}
	return []*Tensor{dx0, dx1}
}

func Div(x0, x1 *Tensor) *Tensor {
	return apply(&div{}, x0, x1)
}

type square struct{ baseOp }

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		y.data[i] *= y.data[i]
	}
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= 2 * s.inputs[0].data[i]
	}
	return []*Tensor{dx}
}

func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

type exp struct{ baseOp }

func (e *exp) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		y.data[i] = math32.Exp(y.data[i])
	}
	return y
}

func (e *exp) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= e.output.data[i]
	}
	return []*Tensor{dx}
}

func Exp(x *Tensor) *Tensor {
	return apply(&exp{}, x)
}

type logOp struct{ baseOp }

func (l *logOp) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		y.data[i] = math32.Log(y.data[i])
	}
	return y
}

func (l *logOp) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] /= l.inputs[0].data[i]
	}
	return []*Tensor{dx}
}

func Log(x *Tensor) *Tensor {
	return apply(&logOp{}, x)
}

type softplus struct{ baseOp }

func (s *softplus) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		// numerically stable log(1+e^x)
		if y.data[i] > 20 {
			continue
		}
		y.data[i] = math32.Log1p(math32.Exp(y.data[i]))
	}
	return y
}

func (s *softplus) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= 1 / (1 + math32.Exp(-s.inputs[0].data[i]))
	}
	return []*Tensor{dx}
}

func Softplus(x *Tensor) *Tensor {
	return apply(&softplus{}, x)
}

type sigmoid struct{ baseOp }

func (s *sigmoid) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		y.data[i] = 1 / (1 + math32.Exp(-y.data[i]))
	}
	return y
}

func (s *sigmoid) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= s.output.data[i] * (1 - s.output.data[i])
	}
	return []*Tensor{dx}
}

func Sigmoid(x *Tensor) *Tensor {
	return apply(&sigmoid{}, x)
}

type relu struct{ baseOp }

func (r *relu) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		if y.data[i] < 0 {
			y.data[i] = 0
		}
	}
	return y
}

func (r *relu) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		if r.inputs[0].data[i] <= 0 {
			dx.data[i] = 0
		}
	}
	return []*Tensor{dx}
}

func ReLu(x *Tensor) *Tensor {
	return apply(&relu{}, x)
}

type lgamma struct{ baseOp }

func (l *lgamma) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	for i := range y.data {
		v, _ := math32.Lgamma(y.data[i])
		y.data[i] = v
	}
	return y
}

func (l *lgamma) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= digamma(l.inputs[0].data[i])
	}
	return []*Tensor{dx}
}

// Lgamma computes the log-gamma function elementwise.
func Lgamma(x *Tensor) *Tensor {
	return apply(&lgamma{}, x)
}

type softmax struct{ baseOp }

func (s *softmax) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if len(x.shape) != 2 {
		panic("Softmax expects a matrix")
	}
	rows, cols := x.shape[0], x.shape[1]
	y := x.Clone()
	for i := 0; i < rows; i++ {
		row := y.data[i*cols : (i+1)*cols]
		maxVal := row[0]
		for _, v := range row {
			maxVal = math32.Max(maxVal, v)
		}
		var sum float32
		for j := range row {
			row[j] = math32.Exp(row[j] - maxVal)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
	return y
}

func (s *softmax) backward(dy *Tensor) []*Tensor {
	rows, cols := s.output.shape[0], s.output.shape[1]
	dx := dy.Clone()
	for i := 0; i < rows; i++ {
		var dot float32
		for j := 0; j < cols; j++ {
			dot += dy.data[i*cols+j] * s.output.data[i*cols+j]
		}
		for j := 0; j < cols; j++ {
			dx.data[i*cols+j] = s.output.data[i*cols+j] * (dy.data[i*cols+j] - dot)
		}
	}
	return []*Tensor{dx}
}

// Softmax normalizes each row of a matrix into a probability distribution.
func Softmax(x *Tensor) *Tensor {
	return apply(&softmax{}, x)
}

type sum struct{ baseOp }

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	var total float32
	for _, v := range inputs[0].data {
		total += v
	}
	return NewScalar(total)
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	dx := Zeros(s.inputs[0].shape...)
	for i := range dx.data {
		dx.data[i] = dy.data[0]
	}
	return []*Tensor{dx}
}

func Sum(x *Tensor) *Tensor {
	return apply(&sum{}, x)
}

type mean struct{ baseOp }

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	var total float32
	for _, v := range inputs[0].data {
		total += v
	}
	return NewScalar(total / float32(len(inputs[0].data)))
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	dx := Zeros(m.inputs[0].shape...)
	g := dy.data[0] / float32(len(dx.data))
	for i := range dx.data {
		dx.data[i] = g
	}
	return []*Tensor{dx}
}

func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

type matMul struct{ baseOp }

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	x, y := inputs[0], inputs[1]
	if len(x.shape) != 2 || len(y.shape) != 2 || x.shape[1] != y.shape[0] {
		panic("MatMul expects compatible matrices")
	}
	return matmul(x, y, false, false)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	dx := matmul(dy, m.inputs[1], false, true)
	dw := matmul(m.inputs[0], dy, true, false)
	return []*Tensor{dx, dw}
}

func MatMul(x, y *Tensor) *Tensor {
	return apply(&matMul{}, x, y)
}

func matmul(a, b *Tensor, transA, transB bool) *Tensor {
	ar, ac := a.shape[0], a.shape[1]
	if transA {
		ar, ac = ac, ar
	}
	br, bc := b.shape[0], b.shape[1]
	if transB {
		br, bc = bc, br
	}
	if ac != br {
		panic("matmul shape mismatch")
	}
	out := Zeros(ar, bc)
	at := func(i, k int) float32 {
		if transA {
			return a.data[k*a.shape[1]+i]
		}
		return a.data[i*a.shape[1]+k]
	}
	bt := func(k, j int) float32 {
		if transB {
			return b.data[j*b.shape[1]+k]
		}
		return b.data[k*b.shape[1]+j]
	}
	for i := 0; i < ar; i++ {
		for k := 0; k < ac; k++ {
			v := at(i, k)
			if v == 0 {
				continue
			}
			for j := 0; j < bc; j++ {
				out.data[i*bc+j] += v * bt(k, j)
			}
		}
	}
	return out
}

type embedding struct{ baseOp }

func (e *embedding) forward(inputs ...*Tensor) *Tensor {
	w, x := inputs[0], inputs[1]
	cols := w.shape[1]
	out := Zeros(len(x.data), cols)
	for i, v := range x.data {
		row := int(v)
		copy(out.data[i*cols:(i+1)*cols], w.data[row*cols:(row+1)*cols])
	}
	return out
}

func (e *embedding) backward(dy *Tensor) []*Tensor {
	w, x := e.inputs[0], e.inputs[1]
	cols := w.shape[1]
	dw := Zeros(w.shape...)
	for i, v := range x.data {
		row := int(v)
		for j := 0; j < cols; j++ {
			dw.data[row*cols+j] += dy.data[i*cols+j]
		}
	}
	return []*Tensor{dw, nil}
}

// Embedding gathers rows of w by the integer codes stored in x.
func Embedding(w, x *Tensor) *Tensor {
	return apply(&embedding{}, w, x)
}

type dropout struct {
	baseOp
	rate float32
	mask []float32
}

func (d *dropout) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	d.mask = make([]float32, len(y.data))
	scale := 1 / (1 - d.rate)
	for i := range y.data {
		if rng.Float32() < d.rate {
			y.data[i] = 0
		} else {
			d.mask[i] = scale
			y.data[i] *= scale
		}
	}
	return y
}

func (d *dropout) backward(dy *Tensor) []*Tensor {
	dx := dy.Clone()
	for i := range dx.data {
		dx.data[i] *= d.mask[i]
	}
	return []*Tensor{dx}
}

// Dropout zeroes elements with the given rate and rescales the survivors.
func Dropout(x *Tensor, rate float32) *Tensor {
	if rate <= 0 {
		return x
	}
	return apply(&dropout{rate: rate}, x)
}

type concatCols struct{ baseOp }

func (c *concatCols) forward(inputs ...*Tensor) *Tensor {
	x0, x1 := inputs[0], inputs[1]
	if len(x0.shape) != 2 || len(x1.shape) != 2 || x0.shape[0] != x1.shape[0] {
		panic("ConcatCols expects matrices with equal row counts")
	}
	rows, c0, c1 := x0.shape[0], x0.shape[1], x1.shape[1]
	out := Zeros(rows, c0+c1)
	for i := 0; i < rows; i++ {
		copy(out.data[i*(c0+c1):], x0.data[i*c0:(i+1)*c0])
		copy(out.data[i*(c0+c1)+c0:], x1.data[i*c1:(i+1)*c1])
	}
	return out
}

func (c *concatCols) backward(dy *Tensor) []*Tensor {
	x0, x1 := c.inputs[0], c.inputs[1]
	rows, c0, c1 := x0.shape[0], x0.shape[1], x1.shape[1]
	dx0 := Zeros(rows, c0)
	dx1 := Zeros(rows, c1)
	for i := 0; i < rows; i++ {
		copy(dx0.data[i*c0:], dy.data[i*(c0+c1):i*(c0+c1)+c0])
		copy(dx1.data[i*c1:], dy.data[i*(c0+c1)+c0:(i+1)*(c0+c1)])
	}
	return []*Tensor{dx0, dx1}
}

// ConcatCols joins two matrices side by side.
func ConcatCols(x0, x1 *Tensor) *Tensor {
	return apply(&concatCols{}, x0, x1)
}

type softmaxCrossEntropy struct {
	baseOp
	proba *Tensor
}

func (s *softmaxCrossEntropy) forward(inputs ...*Tensor) *Tensor {
	logits, target := inputs[0], inputs[1]
	s.proba = Softmax(logits.Clone().NoGrad()).NoGrad()
	rows, cols := logits.shape[0], logits.shape[1]
	var loss float32
	for i := 0; i < rows; i++ {
		j := int(target.data[i])
		loss -= math32.Log(s.proba.data[i*cols+j] + 1e-8)
	}
	return NewScalar(loss / float32(rows))
}

func (s *softmaxCrossEntropy) backward(dy *Tensor) []*Tensor {
	rows, cols := s.proba.shape[0], s.proba.shape[1]
	dx := s.proba.Clone()
	for i := 0; i < rows; i++ {
		dx.data[i*cols+int(s.inputs[1].data[i])] -= 1
	}
	g := dy.data[0] / float32(rows)
	for i := range dx.data {
		dx.data[i] *= g
	}
	return []*Tensor{dx, nil}
}

// SoftmaxCrossEntropy computes the mean cross entropy between row logits and
// integer target codes.
func SoftmaxCrossEntropy(logits, target *Tensor) *Tensor {
	return apply(&softmaxCrossEntropy{}, logits, target)
}
