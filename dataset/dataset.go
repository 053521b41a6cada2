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

// Package dataset holds single-cell expression observations and the label
// codebooks derived from them.
package dataset

import (
	"github.com/juju/errors"
)

// ObservationSet is an ordered collection of cells. Each cell carries a gene
// expression count vector, a batch annotation and a raw label value. The
// training and prediction code reads it and never mutates it.
type ObservationSet struct {
	ids       []string
	counts    [][]float32
	batches   []int
	labels    []string
	genes     int
	batchDict *Dict
}

func NewObservationSet(genes int) *ObservationSet {
	return &ObservationSet{
		genes:     genes,
		batchDict: NewDict(),
	}
}

// Add appends one cell. The count vector length must equal the gene count
// declared at construction.
func (s *ObservationSet) Add(id string, counts []float32, batch, label string) error {
	if len(counts) != s.genes {
		return errors.NotValidf("cell %q has %d genes, expect %d", id, len(counts), s.genes)
	}
	s.ids = append(s.ids, id)
	s.counts = append(s.counts, counts)
	s.batches = append(s.batches, s.batchDict.Add(batch))
	s.labels = append(s.labels, label)
	return nil
}

// Count returns the number of cells.
func (s *ObservationSet) Count() int {
	return len(s.ids)
}

// Genes returns the number of genes per cell.
func (s *ObservationSet) Genes() int {
	return s.genes
}

// Batches returns the number of distinct batch annotations.
func (s *ObservationSet) Batches() int {
	return s.batchDict.Count()
}

func (s *ObservationSet) Id(i int) string {
	return s.ids[i]
}

func (s *ObservationSet) Counts(i int) []float32 {
	return s.counts[i]
}

func (s *ObservationSet) Batch(i int) int {
	return s.batches[i]
}

// Label returns the raw label value of a cell, possibly the unlabeled
// sentinel.
func (s *ObservationSet) Label(i int) string {
	return s.labels[i]
}

// Library returns the total count of a cell, used to scale decoded rates.
func (s *ObservationSet) Library(i int) float32 {
	var sum float32
	for _, v := range s.counts[i] {
		sum += v
	}
	return sum
}
