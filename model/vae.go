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

// VAE is the unsupervised generative model over expression counts. The
// encoder maps counts (conditioned on batch) to a latent gaussian; the
// decoder maps latent samples back to per-gene rates scaled by the cell
// library size.
type VAE struct {
	hyper   Hyperparameters
	nInput  int
	nBatch  int
	nLabels int

	encoder    *nn.Sequential
	meanHead   *nn.LinearLayer
	logvarHead *nn.LinearLayer
	decoder    *nn.Sequential
	scaleHead  *nn.LinearLayer
	gateHead   *nn.LinearLayer // zinb zero-inflation logits
	thetaHead  *nn.LinearLayer // gene-cell dispersion
	thetaGene  *nn.Tensor      // [genes]
	thetaBatch *nn.Tensor      // [n_batch, genes]
	thetaLabel *nn.Tensor      // [n_labels, genes]

	// resolveLabels supplies label codes for minibatches that carry none.
	// The semi-supervised model installs its classifier argmax here so that
	// gene-label dispersion works on unlabeled cells.
	resolveLabels func(b *Minibatch) *nn.Tensor

	trained bool
}

// Output carries the tensors of one generative forward pass.
type Output struct {
	Mu     *nn.Tensor
	Logvar *nn.Tensor
	Z      *nn.Tensor
	Rate   *nn.Tensor
	Gate   *nn.Tensor
	Theta  *nn.Tensor
	Hidden *nn.Tensor
}

// NewVAE validates the hyperparameters and builds an untrained model.
func NewVAE(nInput, nBatch int, hyper Hyperparameters) (*VAE, error) {
	return newVAE(nInput, nBatch, 0, hyper)
}

func newVAE(nInput, nBatch, nLabels int, hyper Hyperparameters) (*VAE, error) {
	if err := hyper.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if nInput <= 0 || nBatch <= 0 {
		return nil, errors.NotValidf("n_input %d and n_batch %d must be positive", nInput, nBatch)
	}
	v := &VAE{
		hyper:   hyper,
		nInput:  nInput,
		nBatch:  nBatch,
		nLabels: nLabels,
	}
	v.encoder = buildMLP(nInput+nBatch, hyper.NHidden, hyper.NLayers, hyper.DropoutRate)
	v.meanHead = nn.NewLinear(hyper.NHidden, hyper.NLatent)
	v.logvarHead = nn.NewLinear(hyper.NHidden, hyper.NLatent)
	v.decoder = buildMLP(hyper.NLatent+nBatch, hyper.NHidden, hyper.NLayers, hyper.DropoutRate)
	v.scaleHead = nn.NewLinear(hyper.NHidden, nInput)
	if hyper.GeneLikelihood == LikelihoodZINB {
		v.gateHead = nn.NewLinear(hyper.NHidden, nInput)
	}
	if hyper.GeneLikelihood != LikelihoodPoisson {
		switch hyper.Dispersion {
		case DispersionGene:
			v.thetaGene = nn.Normal(0, 0.01, nInput).RequireGrad()
		case DispersionGeneBatch:
			v.thetaBatch = nn.Normal(0, 0.01, nBatch, nInput).RequireGrad()
		case DispersionGeneLabel:
			if nLabels > 0 {
				v.thetaLabel = nn.Normal(0, 0.01, nLabels, nInput).RequireGrad()
			} else {
				// the unsupervised model has no label structure yet; fall
				// back to per-gene dispersion until fine-tuning
				v.thetaGene = nn.Normal(0, 0.01, nInput).RequireGrad()
			}
		case DispersionGeneCell:
			v.thetaHead = nn.NewLinear(hyper.NHidden, nInput)
		}
	}
	return v, nil
}

func buildMLP(in, hidden, layers int, dropout float32) *nn.Sequential {
	ls := []nn.Layer{nn.NewLinear(in, hidden), nn.NewReLU(), nn.NewDropout(dropout)}
	for i := 1; i < layers; i++ {
		ls = append(ls, nn.NewLinear(hidden, hidden), nn.NewReLU(), nn.NewDropout(dropout))
	}
	return nn.NewSequential(ls...)
}

func (v *VAE) Hyperparameters() Hyperparameters {
	return v.hyper
}

func (v *VAE) NInput() int {
	return v.nInput
}

func (v *VAE) NBatch() int {
	return v.nBatch
}

// IsTrained reports whether the model finished a training run. The flag is
// monotonic: it transitions false to true and never resets.
func (v *VAE) IsTrained() bool {
	return v.trained
}

func (v *VAE) MarkTrained() {
	v.trained = true
}

// SetTraining toggles dropout between train and eval behavior.
func (v *VAE) SetTraining(training bool) {
	v.encoder.SetTraining(training)
	v.decoder.SetTraining(training)
}

// encode maps counts to the latent posterior without touching the decoder.
func (v *VAE) encode(b *Minibatch) (mu, logvar *nn.Tensor) {
	h := v.encoder.Forward(nn.ConcatCols(b.X, b.BatchOH))
	return v.meanHead.Forward(h), v.logvarHead.Forward(h)
}

// Forward runs the generative model. With sample set, the latent is drawn by
// reparameterization; otherwise the posterior mean is used.
func (v *VAE) Forward(b *Minibatch, sample bool) *Output {
	mu, logvar := v.encode(b)

	z := mu
	if sample {
		eps := nn.Normal(0, 1, b.Rows(), v.hyper.NLatent)
		z = nn.Add(mu, nn.Mul(nn.Exp(nn.Mul(logvar, nn.NewScalar(0.5))), eps))
	}

	d := v.decoder.Forward(nn.ConcatCols(z, b.BatchOH))
	scale := nn.Softmax(v.scaleHead.Forward(d))
	rate := nn.Mul(scale, b.Library)

	out := &Output{Mu: mu, Logvar: logvar, Z: z, Rate: rate, Hidden: d}
	if v.gateHead != nil {
		out.Gate = v.gateHead.Forward(d)
	}
	out.Theta = v.theta(b, d)
	return out
}

// theta resolves the dispersion tensor for the minibatch according to the
// dispersion mode. It is nil for the poisson likelihood.
func (v *VAE) theta(b *Minibatch, hidden *nn.Tensor) *nn.Tensor {
	switch {
	case v.thetaHead != nil:
		return nn.Softplus(v.thetaHead.Forward(hidden))
	case v.thetaBatch != nil:
		return nn.Softplus(nn.Embedding(v.thetaBatch, b.BatchCodes))
	case v.thetaLabel != nil:
		codes := b.LabelCodes
		if codes == nil {
			codes = v.resolveLabels(b)
		}
		return nn.Softplus(nn.Embedding(v.thetaLabel, codes))
	case v.thetaGene != nil:
		return nn.Softplus(v.thetaGene)
	default:
		return nil
	}
}

// Loss computes the evidence lower bound of a minibatch: negative
// reconstruction log-likelihood plus the KL term weighted by klWeight.
func (v *VAE) Loss(b *Minibatch, klWeight float32) *nn.Tensor {
	out := v.Forward(b, true)
	recon := v.reconstructionLoss(b, out)
	kl := nn.GaussianKL(out.Mu, out.Logvar)
	return nn.Add(recon, nn.Mul(kl, nn.NewScalar(klWeight)))
}

func (v *VAE) reconstructionLoss(b *Minibatch, out *Output) *nn.Tensor {
	var ll *nn.Tensor
	switch v.hyper.GeneLikelihood {
	case LikelihoodPoisson:
		ll = poissonLogLikelihood(b.X, out.Rate)
	case LikelihoodNB:
		ll = nbLogLikelihood(b.X, out.Rate, out.Theta)
	case LikelihoodZINB:
		ll = zinbLogLikelihood(b.X, out.Rate, out.Theta, out.Gate)
	}
	return nn.Mul(nn.Sum(ll), nn.NewScalar(-1/float32(b.Rows())))
}

// Latent returns the posterior mean of a minibatch. Only the encoder runs.
func (v *VAE) Latent(b *Minibatch) *nn.Tensor {
	mu, _ := v.encode(b)
	return mu
}

// Parameters returns every learnable tensor in state-dict key order.
func (v *VAE) Parameters() []*nn.Tensor {
	return parametersOf(v)
}

// StateDict exports named parameters. Names are stable across models so that
// a partial transplant can match them.
func (v *VAE) StateDict() StateDict {
	sd := StateDict{}
	addSequential(sd, "encoder", v.encoder)
	addLinear(sd, "encoder.mean", v.meanHead)
	addLinear(sd, "encoder.logvar", v.logvarHead)
	addSequential(sd, "decoder", v.decoder)
	addLinear(sd, "decoder.scale", v.scaleHead)
	if v.gateHead != nil {
		addLinear(sd, "decoder.gate", v.gateHead)
	}
	if v.thetaHead != nil {
		addLinear(sd, "decoder.theta", v.thetaHead)
	}
	if v.thetaGene != nil {
		sd["theta.gene"] = v.thetaGene
	}
	if v.thetaBatch != nil {
		sd["theta.batch"] = v.thetaBatch
	}
	if v.thetaLabel != nil {
		sd["theta.label"] = v.thetaLabel
	}
	return sd
}
