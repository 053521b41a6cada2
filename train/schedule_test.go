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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsupervisedEpochs(t *testing.T) {
	cases := []struct {
		nObs     int
		expected int
	}{
		{1, 400},      // tiny datasets saturate the cap
		{20000, 400},  // reference size sits exactly at the cap
		{40000, 200},  // halves as the dataset doubles
		{100000, 80},  // 20000/100000*400
		{128000, 63},  // rounds, not truncates
		{10000000, 1}, // never reaches zero
	}
	for _, c := range cases {
		epochs, err := UnsupervisedEpochs(c.nObs, nil)
		require.NoError(t, err)
		assert.Equal(t, c.expected, epochs, "n_obs=%d", c.nObs)
	}
}

func TestUnsupervisedEpochsEmptyDataset(t *testing.T) {
	_, err := UnsupervisedEpochs(0, nil)
	assert.ErrorIs(t, err, ErrInvalidDatasetSize)
	_, err = UnsupervisedEpochs(-1, nil)
	assert.ErrorIs(t, err, ErrInvalidDatasetSize)
}

func TestUnsupervisedEpochsOverride(t *testing.T) {
	override := 7
	epochs, err := UnsupervisedEpochs(20000, &override)
	require.NoError(t, err)
	assert.Equal(t, 7, epochs)

	// override wins even over an empty dataset
	epochs, err = UnsupervisedEpochs(0, &override)
	require.NoError(t, err)
	assert.Equal(t, 7, epochs)
}

func TestSemiSupervisedEpochs(t *testing.T) {
	assert.Equal(t, 3, SemiSupervisedEpochs(9, nil))
	assert.Equal(t, 10, SemiSupervisedEpochs(400, nil)) // clamped above
	assert.Equal(t, 2, SemiSupervisedEpochs(3, nil))    // clamped below
	assert.Equal(t, 2, SemiSupervisedEpochs(1, nil))
	assert.Equal(t, 7, SemiSupervisedEpochs(20, nil)) // round(20/3)
}

func TestSemiSupervisedEpochsOverride(t *testing.T) {
	override := 50
	// overrides bypass the clamp
	assert.Equal(t, 50, SemiSupervisedEpochs(9, &override))
}
