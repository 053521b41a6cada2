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
	"bytes"
	"fmt"
	"testing"

	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/nn"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGenes  = 6
	testLabels = 3
)

func testHyper() Hyperparameters {
	h := DefaultHyperparameters()
	h.NHidden = 16
	h.NLatent = 4
	return h
}

func testObservations(t *testing.T, n int) *dataset.ObservationSet {
	obs := dataset.NewObservationSet(testGenes)
	labels := []string{"B cell", "T cell", "unknown"}
	for i := 0; i < n; i++ {
		counts := make([]float32, testGenes)
		for j := range counts {
			counts[j] = float32((i*7 + j*3) % 9)
		}
		counts[i%testGenes] += 5
		batch := fmt.Sprintf("batch%d", i%2)
		require.NoError(t, obs.Add(fmt.Sprintf("cell%d", i), counts, batch, labels[i%3]))
	}
	return obs
}

func testMinibatch(t *testing.T, n int, withLabels bool) *Minibatch {
	obs := testObservations(t, n)
	indices := make([]int, n)
	var codes []float32
	if withLabels {
		codes = make([]float32, n)
	}
	for i := range indices {
		indices[i] = i
		if withLabels {
			codes[i] = float32(i % testLabels)
		}
	}
	return NewMinibatch(obs, indices, codes)
}

func TestHyperparametersValidate(t *testing.T) {
	assert.NoError(t, DefaultHyperparameters().Validate())

	h := DefaultHyperparameters()
	h.Dispersion = "gene-planet"
	assert.ErrorIs(t, h.Validate(), ErrUnsupportedHyperparameter)

	h = DefaultHyperparameters()
	h.GeneLikelihood = "gaussian"
	assert.ErrorIs(t, h.Validate(), ErrUnsupportedHyperparameter)

	h = DefaultHyperparameters()
	h.DropoutRate = 1
	assert.ErrorIs(t, h.Validate(), ErrUnsupportedHyperparameter)
}

func TestVAELoss(t *testing.T) {
	nn.Seed(0)
	for _, likelihood := range []GeneLikelihood{LikelihoodPoisson, LikelihoodNB, LikelihoodZINB} {
		t.Run(string(likelihood), func(t *testing.T) {
			hyper := testHyper()
			hyper.GeneLikelihood = likelihood
			vae, err := NewVAE(testGenes, 2, hyper)
			require.NoError(t, err)
			batch := testMinibatch(t, 8, false)
			loss := vae.Loss(batch, 1)
			value := loss.Get(0)
			assert.False(t, math32.IsNaN(value))
			assert.False(t, math32.IsInf(value, 0))
			loss.Backward()
			for _, p := range vae.Parameters() {
				require.NotNil(t, p.Grad())
			}
		})
	}
}

func TestVAEDispersionModes(t *testing.T) {
	nn.Seed(0)
	labeled := testMinibatch(t, 8, true)
	unlabeled := testMinibatch(t, 8, false)
	for _, dispersion := range []Dispersion{DispersionGene, DispersionGeneBatch, DispersionGeneLabel, DispersionGeneCell} {
		t.Run(string(dispersion), func(t *testing.T) {
			hyper := testHyper()
			hyper.Dispersion = dispersion
			m, err := NewSCANVAE(testGenes, 2, testLabels, hyper)
			require.NoError(t, err)
			assert.False(t, math32.IsNaN(m.Loss(labeled, 1).Get(0)))
			// reconstruction batches carry no label codes
			assert.False(t, math32.IsNaN(m.Loss(unlabeled, 1).Get(0)))
		})
	}
}

func TestGeneLabelDispersionUnlabeledBatch(t *testing.T) {
	// per-label dispersion falls back to the predicted label when a
	// minibatch has no label codes
	nn.Seed(0)
	hyper := testHyper()
	hyper.Dispersion = DispersionGeneLabel
	m, err := NewSCANVAE(testGenes, 2, testLabels, hyper)
	require.NoError(t, err)

	batch := testMinibatch(t, 6, false)
	loss := m.Loss(batch, 1)
	assert.False(t, math32.IsNaN(loss.Get(0)))
	loss.Backward()
	require.NotNil(t, m.StateDict()["theta.label"].Grad())

	m.SetTraining(false)
	proba := m.PredictProba(batch)
	require.Equal(t, []int{6, testLabels}, proba.Shape())
}

func TestVAEGeneLabelFallback(t *testing.T) {
	// without label structure the unsupervised model degrades to per-gene
	hyper := testHyper()
	hyper.Dispersion = DispersionGeneLabel
	vae, err := NewVAE(testGenes, 2, hyper)
	require.NoError(t, err)
	_, ok := vae.StateDict()["theta.gene"]
	assert.True(t, ok)
	_, ok = vae.StateDict()["theta.label"]
	assert.False(t, ok)
}

func TestTransplant(t *testing.T) {
	nn.Seed(42)
	hyper := testHyper()
	vae, err := NewVAE(testGenes, 2, hyper)
	require.NoError(t, err)
	scanvae, err := NewSCANVAE(testGenes, 2, testLabels, hyper)
	require.NoError(t, err)

	classifierBefore := scanvae.StateDict()["classifier.0.weight"].Clone()

	report := Transplant(scanvae.StateDict(), vae.StateDict())
	assert.Empty(t, report.SkippedExtra)
	assert.Empty(t, report.ShapeMismatch)
	assert.NotEmpty(t, report.Copied)
	for _, k := range report.SkippedNew {
		assert.Contains(t, k, "classifier.")
	}

	// matched parameters are bitwise equal after the transplant
	src, dst := vae.StateDict(), scanvae.StateDict()
	for _, k := range report.Copied {
		assert.Equal(t, src[k].Data(), dst[k].Data(), k)
	}
	// the classifier head keeps its own initialization
	assert.Equal(t, classifierBefore.Data(), dst["classifier.0.weight"].Data())
}

func TestTransplantShapeMismatch(t *testing.T) {
	nn.Seed(1)
	vae, err := NewVAE(testGenes, 2, testHyper())
	require.NoError(t, err)
	wide := testHyper()
	wide.NLatent = 8
	scanvae, err := NewSCANVAE(testGenes, 2, testLabels, wide)
	require.NoError(t, err)

	dst := scanvae.StateDict()
	before := dst["encoder.mean.weight"].Clone()
	report := Transplant(dst, vae.StateDict())
	assert.Contains(t, report.ShapeMismatch, "encoder.mean.weight")
	assert.Equal(t, before.Data(), dst["encoder.mean.weight"].Data())
}

func TestPredictProba(t *testing.T) {
	nn.Seed(7)
	m, err := NewSCANVAE(testGenes, 2, testLabels, testHyper())
	require.NoError(t, err)
	m.SetTraining(false)

	batch := testMinibatch(t, 5, false)
	proba := m.PredictProba(batch)
	require.Equal(t, []int{5, testLabels}, proba.Shape())
	for i := 0; i < 5; i++ {
		var sum float32
		for j := 0; j < testLabels; j++ {
			sum += proba.At(i, j)
		}
		assert.InDelta(t, 1, sum, 1e-4)
	}

	codes, confidence := m.Predict(batch)
	require.Len(t, codes, 5)
	for i, code := range codes {
		assert.GreaterOrEqual(t, code, 0)
		assert.Less(t, code, testLabels)
		assert.InDelta(t, proba.At(i, code), confidence[i], 1e-6)
	}
}

func TestPredictDeterministic(t *testing.T) {
	nn.Seed(11)
	m, err := NewSCANVAE(testGenes, 2, testLabels, testHyper())
	require.NoError(t, err)
	m.SetTraining(false)

	batch := testMinibatch(t, 6, false)
	first := m.PredictProba(batch)
	second := m.PredictProba(batch)
	assert.Equal(t, first.Data(), second.Data())
}

func TestMarshalRoundTrip(t *testing.T) {
	nn.Seed(3)
	m, err := NewSCANVAE(testGenes, 2, testLabels, testHyper())
	require.NoError(t, err)
	m.MarkTrained()

	buf := bytes.NewBuffer(nil)
	require.NoError(t, m.Marshal(buf))

	restored, err := UnmarshalSCANVAE(buf)
	require.NoError(t, err)
	assert.True(t, restored.IsTrained())
	assert.Equal(t, m.Hyperparameters(), restored.Hyperparameters())

	src, dst := m.StateDict(), restored.StateDict()
	require.Equal(t, src.Keys(), dst.Keys())
	for _, k := range src.Keys() {
		assert.Equal(t, src[k].Data(), dst[k].Data(), k)
	}

	// same inputs, same predictions
	m.SetTraining(false)
	restored.SetTraining(false)
	batch := testMinibatch(t, 4, false)
	assert.Equal(t, m.PredictProba(batch).Data(), restored.PredictProba(batch).Data())
}

func TestClassificationLoss(t *testing.T) {
	nn.Seed(5)
	m, err := NewSCANVAE(testGenes, 2, testLabels, testHyper())
	require.NoError(t, err)
	batch := testMinibatch(t, 9, true)
	loss := m.ClassificationLoss(batch)
	assert.False(t, math32.IsNaN(loss.Get(0)))
	loss.Backward()
	require.NotNil(t, m.StateDict()["classifier.0.weight"].Grad())
}
