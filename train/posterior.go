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

	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/model"
	"github.com/juju/errors"
)

// Posterior runs deterministic forward passes over a fixed, non-shuffled
// subset of cells. The model is put in eval mode for the duration of each
// call, so repeated calls return identical results.
type Posterior struct {
	model     *model.SCANVAE
	obs       *dataset.ObservationSet
	indices   []int
	batchSize int
}

func NewPosterior(m *model.SCANVAE, obs *dataset.ObservationSet, indices []int, batchSize int) *Posterior {
	copied := make([]int, len(indices))
	copy(copied, indices)
	if batchSize <= 0 {
		batchSize = NewConfig().BatchSize
	}
	return &Posterior{model: m, obs: obs, indices: copied, batchSize: batchSize}
}

func (p *Posterior) Count() int {
	return len(p.indices)
}

// Latent returns the posterior mean of every cell, rows in subset order.
func (p *Posterior) Latent(ctx context.Context) ([][]float32, error) {
	p.model.SetTraining(false)
	latent := make([][]float32, 0, len(p.indices))
	for _, chunk := range minibatches(p.indices, p.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		batch := model.NewMinibatch(p.obs, chunk, nil)
		mu := p.model.Latent(batch)
		d := mu.Shape()[1]
		for i := 0; i < batch.Rows(); i++ {
			row := make([]float32, d)
			for j := 0; j < d; j++ {
				row[j] = mu.At(i, j)
			}
			latent = append(latent, row)
		}
	}
	return latent, nil
}

// Predict returns the argmax label code and its probability per cell.
func (p *Posterior) Predict(ctx context.Context) (codes []int, confidence []float32, err error) {
	p.model.SetTraining(false)
	for _, chunk := range minibatches(p.indices, p.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Trace(err)
		}
		batch := model.NewMinibatch(p.obs, chunk, nil)
		batchCodes, batchConfidence := p.model.Predict(batch)
		codes = append(codes, batchCodes...)
		confidence = append(confidence, batchConfidence...)
	}
	return codes, confidence, nil
}

// PredictProba returns the full label distribution per cell, columns in code
// order.
func (p *Posterior) PredictProba(ctx context.Context) ([][]float32, error) {
	p.model.SetTraining(false)
	rows := make([][]float32, 0, len(p.indices))
	for _, chunk := range minibatches(p.indices, p.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		batch := model.NewMinibatch(p.obs, chunk, nil)
		proba := p.model.PredictProba(batch)
		for i := 0; i < batch.Rows(); i++ {
			row := make([]float32, p.model.NumLabels())
			for j := range row {
				row[j] = proba.At(i, j)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
