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

import "github.com/chewxy/math32"

type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

type LinearLayer struct {
	W *Tensor
	B *Tensor
}

func NewLinear(in, out int) *LinearLayer {
	return &LinearLayer{
		W: Normal(0, 1.0/math32.Sqrt(float32(in)), in, out).RequireGrad(),
		B: Zeros(out).RequireGrad(),
	}
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.W), l.B)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W, l.B}
}

// DropoutLayer applies dropout while training and passes through in eval
// mode.
type DropoutLayer struct {
	Rate     float32
	training bool
}

func NewDropout(rate float32) *DropoutLayer {
	return &DropoutLayer{Rate: rate, training: true}
}

func (d *DropoutLayer) SetTraining(training bool) {
	d.training = training
}

func (d *DropoutLayer) Parameters() []*Tensor {
	return nil
}

func (d *DropoutLayer) Forward(x *Tensor) *Tensor {
	if !d.training || d.Rate <= 0 {
		return x
	}
	return Dropout(x, d.Rate)
}

type reluLayer struct{}

func NewReLU() Layer {
	return &reluLayer{}
}

func (r *reluLayer) Parameters() []*Tensor {
	return nil
}

func (r *reluLayer) Forward(x *Tensor) *Tensor {
	return ReLu(x)
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) Forward(x *Tensor) *Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x)
	}
	return x
}

// SetTraining toggles train/eval mode on every layer that distinguishes the
// two.
func (s *Sequential) SetTraining(training bool) {
	for _, l := range s.Layers {
		if d, ok := l.(*DropoutLayer); ok {
			d.SetTraining(training)
		}
	}
}
