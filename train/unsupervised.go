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
	"math/rand"

	"github.com/cellanno-io/cellanno/base/log"
	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/model"
	"github.com/cellanno-io/cellanno/nn"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// UnsupervisedTrainer fits the generative model on every cell, labels
// ignored. The train/test split is drawn once at construction from the
// config seed.
type UnsupervisedTrainer struct {
	model    *model.VAE
	obs      *dataset.ObservationSet
	config   *Config
	rng      *rand.Rand
	trainIdx []int
	testIdx  []int
	iter     int // optimizer steps taken, drives iteration-based KL warmup
	runId    string
}

func NewUnsupervisedTrainer(m *model.VAE, obs *dataset.ObservationSet, config *Config) *UnsupervisedTrainer {
	if config == nil {
		config = NewConfig()
	}
	t := &UnsupervisedTrainer{
		model:  m,
		obs:    obs,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		runId:  uuid.NewString(),
	}
	t.trainIdx, t.testIdx = split(t.rng, obs.Count(), config.TrainSize, config.TestSize)
	return t
}

// Fit runs nEpochs of minibatch gradient descent with Adam and KL warmup,
// then marks the model trained.
func (t *UnsupervisedTrainer) Fit(ctx context.Context, nEpochs int, lr float32) error {
	log.Logger().Info("start unsupervised fit",
		zap.String("run_id", t.runId),
		zap.Int("n_epochs", nEpochs),
		zap.Float32("lr", lr),
		zap.Int("n_train", len(t.trainIdx)),
		zap.Int("n_test", len(t.testIdx)))
	optimizer := nn.NewAdam(t.model.Parameters(), lr)
	t.model.SetTraining(true)
	var bar *progressbar.ProgressBar
	if t.config.Verbose {
		bar = progressbar.Default(int64(nEpochs), "unsupervised")
	}
	for epoch := 0; epoch < nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		loss := t.fitEpoch(optimizer, epoch)
		if bar != nil {
			_ = bar.Add(1)
		}
		if t.config.EvalFrequency > 0 && (epoch+1)%t.config.EvalFrequency == 0 {
			log.Logger().Info("unsupervised epoch",
				zap.String("run_id", t.runId),
				zap.Int("epoch", epoch+1),
				zap.Float32("kl_weight", t.config.klWeight(epoch, t.iter)),
				zap.Float32("train_loss", loss),
				zap.Float32("test_loss", t.evaluate()))
			t.model.SetTraining(true)
		}
	}
	t.model.SetTraining(false)
	t.model.MarkTrained()
	log.Logger().Info("unsupervised fit complete", zap.String("run_id", t.runId))
	return nil
}

func (t *UnsupervisedTrainer) fitEpoch(optimizer nn.Optimizer, epoch int) float32 {
	t.rng.Shuffle(len(t.trainIdx), func(i, j int) {
		t.trainIdx[i], t.trainIdx[j] = t.trainIdx[j], t.trainIdx[i]
	})
	var sum float32
	var batches int
	for _, indices := range minibatches(t.trainIdx, t.config.BatchSize) {
		batch := model.NewMinibatch(t.obs, indices, nil)
		loss := t.model.Loss(batch, t.config.klWeight(epoch, t.iter))
		t.iter++
		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
		sum += loss.Get(0)
		batches++
	}
	if batches == 0 {
		return 0
	}
	return sum / float32(batches)
}

// evaluate computes the held-out loss in eval mode with full KL weight.
func (t *UnsupervisedTrainer) evaluate() float32 {
	if len(t.testIdx) == 0 {
		return 0
	}
	t.model.SetTraining(false)
	var sum float32
	var batches int
	for _, indices := range minibatches(t.testIdx, t.config.BatchSize) {
		batch := model.NewMinibatch(t.obs, indices, nil)
		sum += t.model.Loss(batch, 1).Get(0)
		batches++
	}
	return sum / float32(batches)
}

// split shuffles [0,n) and cuts a train slice of trainSize and a disjoint
// test slice of testSize. A zero testSize takes everything left over; either
// side may come out empty.
func split(rng *rand.Rand, n int, trainSize, testSize float64) (train, test []int) {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	cut := int(float64(n) * trainSize)
	if cut > n {
		cut = n
	}
	testCut := n - cut
	if testSize > 0 {
		testCut = int(float64(n) * testSize)
		if cut+testCut > n {
			testCut = n - cut
		}
	}
	return indices[:cut], indices[cut : cut+testCut]
}

// minibatches cuts indices into consecutive chunks of at most size.
func minibatches(indices []int, size int) [][]int {
	if len(indices) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(indices)
	}
	return lo.Chunk(indices, size)
}
