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
	"io"

	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/model"
	"github.com/cellanno-io/cellanno/train"
	"github.com/juju/errors"
)

// Prediction is one annotated cell: the argmax label and its probability.
type Prediction struct {
	Id         string
	Label      string
	Confidence float32
}

// ProbaTable is the soft prediction surface: one row per requested cell in
// input order, one column per label in code order. Probabilities come
// straight from the classifier softmax, never renormalized.
type ProbaTable struct {
	Labels []string
	Ids    []string
	Rows   [][]float32
}

// Predictor bundles a trained model with the label codebook it was trained
// against. It can annotate any observation set over the same genes and
// batches.
type Predictor struct {
	model *model.SCANVAE
	index *dataset.LabelIndex
}

// Model returns the underlying trained model.
func (p *Predictor) Model() *model.SCANVAE {
	return p.model
}

func (p *Predictor) LabelIndex() *dataset.LabelIndex {
	return p.index
}

func (p *Predictor) check(obs *dataset.ObservationSet) error {
	if obs.Genes() != p.model.NInput() || obs.Batches() != p.model.NBatch() {
		return errors.NotValidf("model over %d genes and %d batches, dataset has %d and %d",
			p.model.NInput(), p.model.NBatch(), obs.Genes(), obs.Batches())
	}
	return nil
}

// Predict maps every requested cell to its most probable label. A code the
// codebook cannot resolve surfaces dataset.ErrCodeMapping.
func (p *Predictor) Predict(ctx context.Context, obs *dataset.ObservationSet, indices []int) ([]Prediction, error) {
	if err := p.check(obs); err != nil {
		return nil, errors.Trace(err)
	}
	posterior := train.NewPosterior(p.model, obs, indices, 0)
	codes, confidence, err := posterior.Predict(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	predictions := make([]Prediction, len(codes))
	for i, code := range codes {
		label, err := p.index.LabelOf(code)
		if err != nil {
			return nil, errors.Trace(err)
		}
		predictions[i] = Prediction{
			Id:         obs.Id(indices[i]),
			Label:      label,
			Confidence: confidence[i],
		}
	}
	return predictions, nil
}

// PredictProba returns the full label distribution of every requested cell.
func (p *Predictor) PredictProba(ctx context.Context, obs *dataset.ObservationSet, indices []int) (*ProbaTable, error) {
	if err := p.check(obs); err != nil {
		return nil, errors.Trace(err)
	}
	posterior := train.NewPosterior(p.model, obs, indices, 0)
	rows, err := posterior.PredictProba(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = obs.Id(idx)
	}
	return &ProbaTable{
		Labels: p.index.Labels(),
		Ids:    ids,
		Rows:   rows,
	}, nil
}

// Marshal writes the model and its label codebook.
func (p *Predictor) Marshal(w io.Writer) error {
	if err := p.index.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.model.Marshal(w))
}

// UnmarshalPredictor restores a predictor saved by Marshal.
func UnmarshalPredictor(r io.Reader) (*Predictor, error) {
	index, err := dataset.UnmarshalLabelIndex(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := model.UnmarshalSCANVAE(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if m.NumLabels() != index.NumLabels() {
		return nil, errors.NotValidf("model over %d labels, codebook has %d", m.NumLabels(), index.NumLabels())
	}
	return &Predictor{model: m, index: index}, nil
}
