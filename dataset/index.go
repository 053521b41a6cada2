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

package dataset

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
)

// ErrCodeMapping reports a predicted code outside the known codebook. This is
// an internal invariant violation, not a user error.
var ErrCodeMapping = errors.New("predicted code outside label codebook")

// LabelIndex is an immutable bijection between integer codes [0,L) and the
// distinct raw label values of an observation set, discovered in
// first-occurrence order. The unlabeled sentinel participates in the codebook
// like any other category.
type LabelIndex struct {
	dict     *Dict
	sentinel string
}

// Partition splits observation indices into labeled and unlabeled cells. The
// two sets are disjoint and together cover every index. It is derived once
// and never recomputed: callers must not mutate the observation set
// afterwards.
type Partition struct {
	labeled   []int
	unlabeled []int
	mask      *bitset.BitSet // set bit = labeled
}

// BuildLabelIndex discovers the label codebook and splits cell indices by
// comparing each raw label against the unlabeled sentinel. A sentinel that
// never occurs yields an empty unlabeled partition, which is the fully
// supervised degenerate mode rather than an error.
func BuildLabelIndex(obs *ObservationSet, sentinel string) (*LabelIndex, *Partition) {
	dict := NewDict()
	partition := &Partition{mask: bitset.New(uint(obs.Count()))}
	for i := 0; i < obs.Count(); i++ {
		label := obs.Label(i)
		dict.Add(label)
		if label == sentinel {
			partition.unlabeled = append(partition.unlabeled, i)
		} else {
			partition.labeled = append(partition.labeled, i)
			partition.mask.Set(uint(i))
		}
	}
	return &LabelIndex{dict: dict, sentinel: sentinel}, partition
}

// NumLabels returns the codebook size, sentinel included.
func (idx *LabelIndex) NumLabels() int {
	return idx.dict.Count()
}

func (idx *LabelIndex) Sentinel() string {
	return idx.sentinel
}

// CodeOf returns the code of a raw label value.
func (idx *LabelIndex) CodeOf(label string) (int, bool) {
	return idx.dict.Lookup(label)
}

// LabelOf maps a code back to its raw label value.
func (idx *LabelIndex) LabelOf(code int) (string, error) {
	label, ok := idx.dict.String(code)
	if !ok {
		return "", errors.Annotatef(ErrCodeMapping, "code %d of %d", code, idx.dict.Count())
	}
	return label, nil
}

// Labels returns every raw label value in code order.
func (idx *LabelIndex) Labels() []string {
	return idx.dict.Values()
}

// Freq returns how many cells carry the label with the given code.
func (idx *LabelIndex) Freq(code int) int {
	return idx.dict.Freq(code)
}

// Labeled returns the indices of cells whose raw label differs from the
// sentinel.
func (p *Partition) Labeled() []int {
	return p.labeled
}

// Unlabeled returns the indices of cells carrying the sentinel.
func (p *Partition) Unlabeled() []int {
	return p.unlabeled
}

// IsLabeled reports whether the cell at index i belongs to the labeled set.
func (p *Partition) IsLabeled(i int) bool {
	return p.mask.Test(uint(i))
}

// Count returns the total number of partitioned cells.
func (p *Partition) Count() int {
	return len(p.labeled) + len(p.unlabeled)
}
