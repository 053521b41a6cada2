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

package annotate

import (
	"context"

	"github.com/cellanno-io/cellanno/base/copier"
	"github.com/cellanno-io/cellanno/base/log"
	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/model"
	"github.com/cellanno-io/cellanno/train"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ErrUntrainedPretrainedModel rejects a model passed as pretrained whose
// training never completed.
var ErrUntrainedPretrainedModel = errors.New("pretrained model has not been trained")

// ErrNotTrained rejects predictions before Train has completed.
var ErrNotTrained = errors.New("annotator has not been trained")

// Annotator orchestrates the two training phases over one observation set:
// unsupervised pretraining of the generative model, weight transplant, then
// semi-supervised fine-tuning of the classifier-bearing model on the labeled
// partition.
type Annotator struct {
	obs       *dataset.ObservationSet
	index     *dataset.LabelIndex
	partition *dataset.Partition
	config    *train.Config
	base      *model.VAE
	scanvae   *model.SCANVAE
}

type annotatorOptions struct {
	hyper      model.Hyperparameters
	config     *train.Config
	pretrained *model.VAE
}

type Option func(*annotatorOptions)

// WithHyperparameters overrides the default model hyperparameters.
func WithHyperparameters(hyper model.Hyperparameters) Option {
	return func(o *annotatorOptions) {
		o.hyper = hyper
	}
}

// WithConfig overrides the default trainer settings. The config is copied,
// so later mutations by the caller do not reach the trainers.
func WithConfig(config *train.Config) Option {
	return func(o *annotatorOptions) {
		copied := train.NewConfig()
		if err := copier.Copy(copied, *config); err != nil {
			log.Logger().Panic("failed to copy config", zap.Error(err))
		}
		o.config = copied
	}
}

// WithPretrained adopts an already trained generative model instead of
// building a fresh one. Phase 1 is then skipped by Train.
func WithPretrained(base *model.VAE) Option {
	return func(o *annotatorOptions) {
		o.pretrained = base
	}
}

// NewAnnotator builds the label index and partition from the observation set
// and constructs both models. The sentinel marks unlabeled cells; a sentinel
// that never occurs puts every cell in the labeled partition.
func NewAnnotator(obs *dataset.ObservationSet, sentinel string, opts ...Option) (*Annotator, error) {
	options := annotatorOptions{
		hyper:  model.DefaultHyperparameters(),
		config: train.NewConfig(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	index, partition := dataset.BuildLabelIndex(obs, sentinel)
	a := &Annotator{
		obs:       obs,
		index:     index,
		partition: partition,
		config:    options.config,
	}

	if options.pretrained != nil {
		if !options.pretrained.IsTrained() {
			return nil, errors.Trace(ErrUntrainedPretrainedModel)
		}
		if options.pretrained.NInput() != obs.Genes() || options.pretrained.NBatch() != obs.Batches() {
			return nil, errors.NotValidf("pretrained model over %d genes and %d batches, dataset has %d and %d",
				options.pretrained.NInput(), options.pretrained.NBatch(), obs.Genes(), obs.Batches())
		}
		a.base = options.pretrained
	} else {
		base, err := model.NewVAE(obs.Genes(), obs.Batches(), options.hyper)
		if err != nil {
			return nil, errors.Trace(err)
		}
		a.base = base
	}

	scanvae, err := model.NewSCANVAE(obs.Genes(), obs.Batches(), index.NumLabels(), a.base.Hyperparameters())
	if err != nil {
		return nil, errors.Trace(err)
	}
	a.scanvae = scanvae
	return a, nil
}

func (a *Annotator) LabelIndex() *dataset.LabelIndex {
	return a.index
}

func (a *Annotator) Partition() *dataset.Partition {
	return a.partition
}

// BaseTrained reports whether the generative model finished phase 1.
func (a *Annotator) BaseTrained() bool {
	return a.base.IsTrained()
}

// Trained reports whether the full pipeline finished phase 2.
func (a *Annotator) Trained() bool {
	return a.scanvae.IsTrained()
}

// TrainOptions override the schedule heuristics and learning rate.
type TrainOptions struct {
	UnsupervisedEpochs   *int
	SemiSupervisedEpochs *int
	LearningRate         float32
}

type TrainOption func(*TrainOptions)

// WithUnsupervisedEpochs forwards the epoch count verbatim, bypassing the
// dataset-size heuristic.
func WithUnsupervisedEpochs(epochs int) TrainOption {
	return func(o *TrainOptions) {
		o.UnsupervisedEpochs = &epochs
	}
}

// WithSemiSupervisedEpochs forwards the epoch count verbatim, bypassing the
// clamp.
func WithSemiSupervisedEpochs(epochs int) TrainOption {
	return func(o *TrainOptions) {
		o.SemiSupervisedEpochs = &epochs
	}
}

func WithLearningRate(lr float32) TrainOption {
	return func(o *TrainOptions) {
		o.LearningRate = lr
	}
}

// Train runs both phases. Phase 1 is skipped when the generative model is
// already trained, so a second invocation re-runs fine-tuning only. The
// phase-1 trainer is released before the phase-2 trainer is built.
func (a *Annotator) Train(ctx context.Context, opts ...TrainOption) error {
	options := TrainOptions{LearningRate: 1e-3}
	for _, opt := range opts {
		opt(&options)
	}

	unsupervisedEpochs, err := train.UnsupervisedEpochs(a.obs.Count(), options.UnsupervisedEpochs)
	if err != nil {
		return errors.Trace(err)
	}

	if a.base.IsTrained() {
		log.Logger().Info("skip unsupervised phase, base model already trained")
	} else {
		trainer := train.NewUnsupervisedTrainer(a.base, a.obs, a.config)
		if err := trainer.Fit(ctx, unsupervisedEpochs, options.LearningRate); err != nil {
			return errors.Trace(err)
		}
	}

	report := model.Transplant(a.scanvae.StateDict(), a.base.StateDict())
	log.Logger().Info("transplanted pretrained weights",
		zap.Int("copied", len(report.Copied)),
		zap.Int("skipped_new", len(report.SkippedNew)),
		zap.Int("skipped_extra", len(report.SkippedExtra)),
		zap.Int("shape_mismatch", len(report.ShapeMismatch)))

	semiSupervisedEpochs := train.SemiSupervisedEpochs(unsupervisedEpochs, options.SemiSupervisedEpochs)
	trainer := train.NewSemiSupervisedTrainer(a.scanvae, a.obs, a.config)
	trainer.SetLabeledView(trainer.CreateView(a.partition.Labeled(), a.index))
	trainer.SetUnlabeledView(trainer.CreateView(a.partition.Unlabeled(), a.index))
	return errors.Trace(trainer.Fit(ctx, semiSupervisedEpochs, options.LearningRate))
}

// Predictor exports the trained model and its label codebook for standalone
// prediction and serialization.
func (a *Annotator) Predictor() *Predictor {
	return &Predictor{model: a.scanvae, index: a.index}
}

// Predict annotates the cells at the given indices, all cells when nil.
func (a *Annotator) Predict(ctx context.Context, indices []int) ([]Prediction, error) {
	if !a.Trained() {
		return nil, errors.Trace(ErrNotTrained)
	}
	return a.Predictor().Predict(ctx, a.obs, a.resolve(indices))
}

// PredictProba returns full probability rows instead of argmax labels.
func (a *Annotator) PredictProba(ctx context.Context, indices []int) (*ProbaTable, error) {
	if !a.Trained() {
		return nil, errors.Trace(ErrNotTrained)
	}
	return a.Predictor().PredictProba(ctx, a.obs, a.resolve(indices))
}

func (a *Annotator) resolve(indices []int) []int {
	if indices != nil {
		return indices
	}
	all := make([]int, a.obs.Count())
	for i := range all {
		all[i] = i
	}
	return all
}
