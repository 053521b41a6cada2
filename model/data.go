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
	"github.com/cellanno-io/cellanno/dataset"
	"github.com/cellanno-io/cellanno/nn"
)

// Minibatch groups the constant tensors of one forward pass over a subset of
// cells. All tensors are leaves: gradients never flow into observation data.
type Minibatch struct {
	X          *nn.Tensor // counts [n, genes]
	BatchOH    *nn.Tensor // batch one-hot [n, n_batch]
	BatchCodes *nn.Tensor // batch codes [n]
	LabelCodes *nn.Tensor // label codes [n], nil when labels are not supplied
	Library    *nn.Tensor // per-cell total count replicated per gene [n, genes]
	rows       int
}

// NewMinibatch gathers the cells at the given indices. labelCodes is the
// full per-cell label code column (or nil for unlabeled forward passes).
func NewMinibatch(obs *dataset.ObservationSet, indices []int, labelCodes []float32) *Minibatch {
	n, g, b := len(indices), obs.Genes(), obs.Batches()
	x := make([]float32, n*g)
	oneHot := make([]float32, n*b)
	batchCodes := make([]float32, n)
	library := make([]float32, n*g)
	var labels []float32
	if labelCodes != nil {
		labels = make([]float32, n)
	}
	for i, idx := range indices {
		copy(x[i*g:(i+1)*g], obs.Counts(idx))
		code := obs.Batch(idx)
		oneHot[i*b+code] = 1
		batchCodes[i] = float32(code)
		if labels != nil {
			labels[i] = labelCodes[idx]
		}
		lib := obs.Library(idx)
		for j := 0; j < g; j++ {
			library[i*g+j] = lib
		}
	}
	batch := &Minibatch{
		X:          nn.NewTensor(x, n, g),
		BatchOH:    nn.NewTensor(oneHot, n, b),
		BatchCodes: nn.NewTensor(batchCodes, n),
		Library:    nn.NewTensor(library, n, g),
		rows:       n,
	}
	if labels != nil {
		batch.LabelCodes = nn.NewTensor(labels, n)
	}
	return batch
}

// Rows returns the number of cells in the minibatch.
func (b *Minibatch) Rows() int {
	return b.rows
}
