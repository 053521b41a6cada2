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
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// EvaluationView is a fixed subset of cells a trainer iterates over. Views
// share the underlying observation set; they never copy counts.
type EvaluationView struct {
	obs        *dataset.ObservationSet
	indices    []int
	labelCodes []float32
}

// Indices returns the cell indices the view covers, in view order.
func (v *EvaluationView) Indices() []int {
	return v.indices
}

func (v *EvaluationView) Count() int {
	return len(v.indices)
}

// SemiSupervisedTrainer fine-tunes the classifier-bearing model. Every epoch
// blends the reconstruction loss over all cells with classification cross
// entropy over the labeled view only.
type SemiSupervisedTrainer struct {
	model     *model.SCANVAE
	obs       *dataset.ObservationSet
	config    *Config
	rng       *rand.Rand
	labeled   *EvaluationView
	unlabeled *EvaluationView
	runId     string

	// classificationRatio weights the cross entropy against the ELBO
	classificationRatio float32
}

func NewSemiSupervisedTrainer(m *model.SCANVAE, obs *dataset.ObservationSet, config *Config) *SemiSupervisedTrainer {
	if config == nil {
		config = NewConfig()
	}
	return &SemiSupervisedTrainer{
		model:               m,
		obs:                 obs,
		config:              config,
		rng:                 rand.New(rand.NewSource(config.Seed)),
		runId:               uuid.NewString(),
		classificationRatio: 50,
	}
}

// CreateView captures a subset of cells with their label codes resolved
// through the given index. Cells carrying the sentinel keep its code; the
// labeled view must only contain non-sentinel cells.
func (t *SemiSupervisedTrainer) CreateView(indices []int, labelIndex *dataset.LabelIndex) *EvaluationView {
	codes := make([]float32, t.obs.Count())
	for i := 0; i < t.obs.Count(); i++ {
		if code, ok := labelIndex.CodeOf(t.obs.Label(i)); ok {
			codes[i] = float32(code)
		}
	}
	copied := make([]int, len(indices))
	copy(copied, indices)
	return &EvaluationView{obs: t.obs, indices: copied, labelCodes: codes}
}

// SetLabeledView installs the view the classification loss runs over.
func (t *SemiSupervisedTrainer) SetLabeledView(v *EvaluationView) {
	t.labeled = v
}

// SetUnlabeledView installs the sentinel-bearing view. It participates in
// the reconstruction loss only.
func (t *SemiSupervisedTrainer) SetUnlabeledView(v *EvaluationView) {
	t.unlabeled = v
}

// Fit runs nEpochs of blended optimization and marks the model trained.
// The labeled view must be set first; an empty unlabeled view degrades to
// plain supervised fine-tuning.
func (t *SemiSupervisedTrainer) Fit(ctx context.Context, nEpochs int, lr float32) error {
	if t.labeled == nil {
		return errors.NotValidf("labeled view must be set before Fit")
	}
	log.Logger().Info("start semi-supervised fit",
		zap.String("run_id", t.runId),
		zap.Int("n_epochs", nEpochs),
		zap.Float32("lr", lr),
		zap.Int("n_labeled", t.labeled.Count()),
		zap.Int("n_unlabeled", t.unlabeledCount()))
	optimizer := nn.NewAdam(t.model.Parameters(), lr)
	t.model.SetTraining(true)
	var bar *progressbar.ProgressBar
	if t.config.Verbose {
		bar = progressbar.Default(int64(nEpochs), "semi-supervised")
	}
	for epoch := 0; epoch < nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		elbo, ce := t.fitEpoch(optimizer)
		if bar != nil {
			_ = bar.Add(1)
		}
		log.Logger().Info("semi-supervised epoch",
			zap.String("run_id", t.runId),
			zap.Int("epoch", epoch+1),
			zap.Float32("elbo_loss", elbo),
			zap.Float32("classification_loss", ce))
	}
	t.model.SetTraining(false)
	t.model.MarkTrained()
	log.Logger().Info("semi-supervised fit complete", zap.String("run_id", t.runId))
	return nil
}

func (t *SemiSupervisedTrainer) fitEpoch(optimizer nn.Optimizer) (elboLoss, ceLoss float32) {
	all := t.allIndices()
	t.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	labeled := make([]int, t.labeled.Count())
	copy(labeled, t.labeled.indices)
	t.rng.Shuffle(len(labeled), func(i, j int) {
		labeled[i], labeled[j] = labeled[j], labeled[i]
	})

	reconChunks := minibatches(all, t.config.BatchSize)
	labelChunks := minibatches(labeled, t.config.BatchSize)

	var elboSum, ceSum float32
	steps := len(reconChunks)
	if len(labelChunks) > steps {
		steps = len(labelChunks)
	}
	for i := 0; i < steps; i++ {
		loss := nn.NewScalar(0)
		if i < len(reconChunks) {
			batch := model.NewMinibatch(t.obs, reconChunks[i], nil)
			elbo := t.model.Loss(batch, 1)
			elboSum += elbo.Get(0)
			loss = nn.Add(loss, elbo)
		}
		if i < len(labelChunks) {
			batch := model.NewMinibatch(t.obs, labelChunks[i], t.labeled.labelCodes)
			ce := t.model.ClassificationLoss(batch)
			ceSum += ce.Get(0)
			loss = nn.Add(loss, nn.Mul(ce, nn.NewScalar(t.classificationRatio)))
		}
		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
	}
	if steps == 0 {
		return 0, 0
	}
	return elboSum / float32(steps), ceSum / float32(steps)
}

// allIndices joins the labeled and unlabeled views for the reconstruction
// pass.
func (t *SemiSupervisedTrainer) allIndices() []int {
	indices := make([]int, 0, t.labeled.Count()+t.unlabeledCount())
	indices = append(indices, t.labeled.indices...)
	if t.unlabeled != nil {
		indices = append(indices, t.unlabeled.indices...)
	}
	return indices
}

func (t *SemiSupervisedTrainer) unlabeledCount() int {
	if t.unlabeled == nil {
		return 0
	}
	return t.unlabeled.Count()
}
