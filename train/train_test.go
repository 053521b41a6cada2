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

package train

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/model"
	"github.com/cellanno-io/cellanno/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGenes = 5

func testObservations(t *testing.T, n int, sentinelEvery int) *dataset.ObservationSet {
	obs := dataset.NewObservationSet(testGenes)
	for i := 0; i < n; i++ {
		counts := make([]float32, testGenes)
		for j := range counts {
			counts[j] = float32((i*5 + j*2) % 7)
		}
		counts[i%testGenes] += 4
		label := fmt.Sprintf("type%d", i%2)
		if sentinelEvery > 0 && i%sentinelEvery == 0 {
			label = "unknown"
		}
		require.NoError(t, obs.Add(fmt.Sprintf("cell%d", i), counts, "batch0", label))
	}
	return obs
}

func testHyper() model.Hyperparameters {
	h := model.DefaultHyperparameters()
	h.NHidden = 8
	h.NLatent = 3
	return h
}

func quietConfig() *Config {
	return NewConfig().SetVerbose(false).SetBatchSize(16).SetEvalFrequency(2)
}

func TestConfigChaining(t *testing.T) {
	c := NewConfig().SetTrainSize(0.8).SetTestSize(0.1).SetBatchSize(64).
		SetKLWarmupEpochs(10).SetKLWarmupIters(0).SetSeed(3)
	assert.Equal(t, 0.8, c.TrainSize)
	assert.Equal(t, 0.1, c.TestSize)
	assert.Equal(t, 64, c.BatchSize)
	assert.Equal(t, 10, c.NEpochsKLWarmup)
	assert.Equal(t, int64(3), c.Seed)
}

func TestKLWarmup(t *testing.T) {
	c := NewConfig().SetKLWarmupEpochs(4)
	assert.InDelta(t, 0.25, c.klWeight(0, 0), 1e-6)
	assert.InDelta(t, 0.5, c.klWeight(1, 10), 1e-6)
	assert.InDelta(t, 1.0, c.klWeight(3, 0), 1e-6)
	assert.InDelta(t, 1.0, c.klWeight(100, 0), 1e-6)
}

func TestKLWarmupIterations(t *testing.T) {
	// iteration-based warmup takes precedence over the epoch window
	c := NewConfig().SetKLWarmupEpochs(4).SetKLWarmupIters(100)
	assert.InDelta(t, 0.01, c.klWeight(0, 0), 1e-6)
	assert.InDelta(t, 0.5, c.klWeight(0, 49), 1e-6)
	assert.InDelta(t, 1.0, c.klWeight(0, 100), 1e-6)
	assert.InDelta(t, 0.02, c.klWeight(50, 1), 1e-6)
}

func TestUnsupervisedFit(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 40, 0)
	vae, err := model.NewVAE(testGenes, obs.Batches(), testHyper())
	require.NoError(t, err)

	trainer := NewUnsupervisedTrainer(vae, obs, quietConfig())
	require.False(t, vae.IsTrained())
	require.NoError(t, trainer.Fit(context.Background(), 3, 0.01))
	assert.True(t, vae.IsTrained())
}

func TestUnsupervisedFitCancelled(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 20, 0)
	vae, err := model.NewVAE(testGenes, obs.Batches(), testHyper())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trainer := NewUnsupervisedTrainer(vae, obs, quietConfig())
	assert.ErrorIs(t, trainer.Fit(ctx, 3, 0.01), context.Canceled)
	assert.False(t, vae.IsTrained())
}

func TestSplitDeterministic(t *testing.T) {
	obs := testObservations(t, 30, 0)
	vae, err := model.NewVAE(testGenes, obs.Batches(), testHyper())
	require.NoError(t, err)

	first := NewUnsupervisedTrainer(vae, obs, quietConfig().SetSeed(42))
	second := NewUnsupervisedTrainer(vae, obs, quietConfig().SetSeed(42))
	assert.Equal(t, first.trainIdx, second.trainIdx)
	assert.Equal(t, first.testIdx, second.testIdx)
	assert.Len(t, first.trainIdx, 27)
	assert.Len(t, first.testIdx, 3)
}

func TestSplitTestSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	train, test := split(rng, 100, 0.8, 0.1)
	assert.Len(t, train, 80)
	assert.Len(t, test, 10)

	// an oversized held-out cut shrinks to the remainder
	rng = rand.New(rand.NewSource(7))
	train, test = split(rng, 100, 0.8, 0.5)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)
}

func TestSemiSupervisedFit(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 40, 4)
	index, partition := dataset.BuildLabelIndex(obs, "unknown")
	m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), testHyper())
	require.NoError(t, err)

	trainer := NewSemiSupervisedTrainer(m, obs, quietConfig())
	trainer.SetLabeledView(trainer.CreateView(partition.Labeled(), index))
	trainer.SetUnlabeledView(trainer.CreateView(partition.Unlabeled(), index))
	require.NoError(t, trainer.Fit(context.Background(), 2, 0.01))
	assert.True(t, m.IsTrained())
}

func TestSemiSupervisedFitRequiresLabeledView(t *testing.T) {
	obs := testObservations(t, 10, 2)
	index, _ := dataset.BuildLabelIndex(obs, "unknown")
	m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), testHyper())
	require.NoError(t, err)

	trainer := NewSemiSupervisedTrainer(m, obs, quietConfig())
	assert.Error(t, trainer.Fit(context.Background(), 1, 0.01))
}

func TestSemiSupervisedFitFullySupervised(t *testing.T) {
	// no sentinel cells: the unlabeled view is empty and Fit still works
	nn.Seed(0)
	obs := testObservations(t, 24, 0)
	index, partition := dataset.BuildLabelIndex(obs, "unknown")
	require.Empty(t, partition.Unlabeled())

	m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), testHyper())
	require.NoError(t, err)
	trainer := NewSemiSupervisedTrainer(m, obs, quietConfig())
	trainer.SetLabeledView(trainer.CreateView(partition.Labeled(), index))
	trainer.SetUnlabeledView(trainer.CreateView(partition.Unlabeled(), index))
	require.NoError(t, trainer.Fit(context.Background(), 2, 0.01))
	assert.True(t, m.IsTrained())
}

func dispersionModes() []model.Dispersion {
	return []model.Dispersion{
		model.DispersionGene,
		model.DispersionGeneBatch,
		model.DispersionGeneLabel,
		model.DispersionGeneCell,
	}
}

func TestSemiSupervisedFitDispersionModes(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 32, 4)
	index, partition := dataset.BuildLabelIndex(obs, "unknown")
	for _, dispersion := range dispersionModes() {
		t.Run(string(dispersion), func(t *testing.T) {
			hyper := testHyper()
			hyper.Dispersion = dispersion
			m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), hyper)
			require.NoError(t, err)

			trainer := NewSemiSupervisedTrainer(m, obs, quietConfig())
			trainer.SetLabeledView(trainer.CreateView(partition.Labeled(), index))
			trainer.SetUnlabeledView(trainer.CreateView(partition.Unlabeled(), index))
			require.NoError(t, trainer.Fit(context.Background(), 2, 0.01))
			assert.True(t, m.IsTrained())
		})
	}
}

func TestPosteriorDispersionModes(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 12, 3)
	index, _ := dataset.BuildLabelIndex(obs, "unknown")
	indices := []int{0, 4, 8}
	for _, dispersion := range dispersionModes() {
		t.Run(string(dispersion), func(t *testing.T) {
			hyper := testHyper()
			hyper.Dispersion = dispersion
			m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), hyper)
			require.NoError(t, err)

			posterior := NewPosterior(m, obs, indices, 2)
			codes, confidence, err := posterior.Predict(context.Background())
			require.NoError(t, err)
			require.Len(t, codes, len(indices))
			require.Len(t, confidence, len(indices))

			proba, err := posterior.PredictProba(context.Background())
			require.NoError(t, err)
			require.Len(t, proba, len(indices))
		})
	}
}

func TestPosteriorDeterministic(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 20, 4)
	index, _ := dataset.BuildLabelIndex(obs, "unknown")
	m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), testHyper())
	require.NoError(t, err)

	indices := []int{3, 1, 7, 0}
	posterior := NewPosterior(m, obs, indices, 2)
	require.Equal(t, 4, posterior.Count())

	first, err := posterior.Latent(context.Background())
	require.NoError(t, err)
	second, err := posterior.Latent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 4)
	assert.Len(t, first[0], testHyper().NLatent)
}

func TestPosteriorPredict(t *testing.T) {
	nn.Seed(0)
	obs := testObservations(t, 15, 3)
	index, _ := dataset.BuildLabelIndex(obs, "unknown")
	m, err := model.NewSCANVAE(testGenes, obs.Batches(), index.NumLabels(), testHyper())
	require.NoError(t, err)

	indices := make([]int, obs.Count())
	for i := range indices {
		indices[i] = i
	}
	posterior := NewPosterior(m, obs, indices, 4)
	codes, confidence, err := posterior.Predict(context.Background())
	require.NoError(t, err)
	require.Len(t, codes, obs.Count())
	require.Len(t, confidence, obs.Count())
	for i, code := range codes {
		assert.GreaterOrEqual(t, code, 0)
		assert.Less(t, code, index.NumLabels())
		assert.Greater(t, confidence[i], float32(0))
	}

	proba, err := posterior.PredictProba(context.Background())
	require.NoError(t, err)
	require.Len(t, proba, obs.Count())
	for _, row := range proba {
		var sum float32
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-4)
	}
}
