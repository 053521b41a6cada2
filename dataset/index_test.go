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
	"fmt"
	"math/rand"
	"testing"

	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unknown = "Unknown"

func newTestSet(t *testing.T, labels []string) *ObservationSet {
	f := faker.NewWithSeed(rand.NewSource(42))
	obs := NewObservationSet(3)
	for i, label := range labels {
		counts := []float32{float32(i), float32(i + 1), float32(i + 2)}
		require.NoError(t, obs.Add(fmt.Sprintf("cell-%s-%d", f.RandomStringWithLength(4), i), counts, "batch0", label))
	}
	return obs
}

func TestBuildLabelIndex(t *testing.T) {
	obs := newTestSet(t, []string{"A", unknown, "B", "A", unknown})
	index, partition := BuildLabelIndex(obs, unknown)

	// codes follow first-occurrence order, sentinel included
	assert.Equal(t, []string{"A", unknown, "B"}, index.Labels())
	assert.Equal(t, 3, index.NumLabels())
	code, ok := index.CodeOf(unknown)
	assert.True(t, ok)
	assert.Equal(t, 1, code)

	// partition is disjoint and exhaustive
	assert.Equal(t, []int{0, 2, 3}, partition.Labeled())
	assert.Equal(t, []int{1, 4}, partition.Unlabeled())
	assert.Equal(t, obs.Count(), partition.Count())
	for _, i := range partition.Labeled() {
		assert.True(t, partition.IsLabeled(i))
	}
	for _, i := range partition.Unlabeled() {
		assert.False(t, partition.IsLabeled(i))
	}
}

func TestBuildLabelIndexDeterminism(t *testing.T) {
	obs := newTestSet(t, []string{"B", "A", unknown, "C", "A"})
	first, _ := BuildLabelIndex(obs, unknown)
	second, _ := BuildLabelIndex(obs, unknown)
	assert.Equal(t, first.Labels(), second.Labels())
	for code, label := range first.Labels() {
		got, err := second.LabelOf(code)
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}
}

func TestBuildLabelIndexFullySupervised(t *testing.T) {
	// sentinel absent: unlabeled partition is legitimately empty
	obs := newTestSet(t, []string{"A", "B", "A"})
	index, partition := BuildLabelIndex(obs, unknown)
	assert.Empty(t, partition.Unlabeled())
	assert.Len(t, partition.Labeled(), 3)
	_, ok := index.CodeOf(unknown)
	assert.False(t, ok)
}

func TestLabelOfUnknownCode(t *testing.T) {
	obs := newTestSet(t, []string{"A", "B"})
	index, _ := BuildLabelIndex(obs, unknown)
	_, err := index.LabelOf(7)
	assert.True(t, errors.Is(err, ErrCodeMapping))
}

func TestLibrary(t *testing.T) {
	obs := newTestSet(t, []string{"A"})
	assert.Equal(t, float32(3), obs.Library(0))
	assert.Equal(t, 1, obs.Batches())
}
