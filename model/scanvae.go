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

package model

import (
	"github.com/cellanno-io/cellanno/nn"
	"github.com/juju/errors"
)

// SCANVAE extends the generative model with a label classifier over the
// latent space. It shares the encoder/decoder parameter names with VAE so
// that a pretrained state dict transplants onto it.
type SCANVAE struct {
	*VAE
	classifier *nn.Sequential
}

// NewSCANVAE builds the semi-supervised model for nLabels categories,
// sentinel included.
func NewSCANVAE(nInput, nBatch, nLabels int, hyper Hyperparameters) (*SCANVAE, error) {
	if nLabels <= 0 {
		return nil, errors.NotValidf("n_labels %d must be positive", nLabels)
	}
	vae, err := newVAE(nInput, nBatch, nLabels, hyper)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m := &SCANVAE{VAE: vae}
	m.classifier = nn.NewSequential(
		nn.NewLinear(hyper.NLatent, hyper.NHidden),
		nn.NewReLU(),
		nn.NewDropout(hyper.DropoutRate),
		nn.NewLinear(hyper.NHidden, nLabels),
	)
	m.resolveLabels = m.classifyCodes
	return m, nil
}

// classifyCodes returns the argmax label code of every cell as a constant
// tensor. Gene-label dispersion resolves through it when a minibatch carries
// no label codes, so unlabeled cells use their predicted label.
func (m *SCANVAE) classifyCodes(b *Minibatch) *nn.Tensor {
	logits := m.Classify(b)
	codes := make([]float32, b.Rows())
	for i := range codes {
		best := 0
		for j := 1; j < m.nLabels; j++ {
			if logits.At(i, j) > logits.At(i, best) {
				best = j
			}
		}
		codes[i] = float32(best)
	}
	return nn.NewTensor(codes, b.Rows())
}

func (m *SCANVAE) NumLabels() int {
	return m.nLabels
}

func (m *SCANVAE) SetTraining(training bool) {
	m.VAE.SetTraining(training)
	m.classifier.SetTraining(training)
}

// Classify returns unnormalized label logits from the posterior mean.
func (m *SCANVAE) Classify(b *Minibatch) *nn.Tensor {
	return m.classifier.Forward(m.Latent(b))
}

// ClassificationLoss is the cross entropy of the classifier on a labeled
// minibatch.
func (m *SCANVAE) ClassificationLoss(b *Minibatch) *nn.Tensor {
	if b.LabelCodes == nil {
		panic("classification loss requires label codes")
	}
	logits := m.classifier.Forward(m.Latent(b))
	return nn.SoftmaxCrossEntropy(logits, b.LabelCodes)
}

// Predict returns the argmax label code and its probability for every cell
// of a minibatch. The model must be in eval mode.
func (m *SCANVAE) Predict(b *Minibatch) ([]int, []float32) {
	proba := m.PredictProba(b)
	n := b.Rows()
	codes := make([]int, n)
	confidence := make([]float32, n)
	for i := 0; i < n; i++ {
		for j := 0; j < m.nLabels; j++ {
			if p := proba.At(i, j); p > confidence[i] {
				codes[i] = j
				confidence[i] = p
			}
		}
	}
	return codes, confidence
}

// PredictProba returns the softmax label distribution [n, n_labels].
func (m *SCANVAE) PredictProba(b *Minibatch) *nn.Tensor {
	return nn.Softmax(m.Classify(b))
}

// Parameters returns every learnable tensor, classifier included.
func (m *SCANVAE) Parameters() []*nn.Tensor {
	return parametersOf(m)
}

// StateDict exports named parameters. Generative keys match VAE; classifier
// keys are unique to SCANVAE and skipped by a transplant from a VAE.
func (m *SCANVAE) StateDict() StateDict {
	sd := m.VAE.StateDict()
	addSequential(sd, "classifier", m.classifier)
	return sd
}
