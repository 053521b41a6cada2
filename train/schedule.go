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
	"math"

	"github.com/juju/errors"
	"modernc.org/mathutil"
)

// ErrInvalidDatasetSize reports an epoch heuristic applied to an empty
// observation set.
var ErrInvalidDatasetSize = errors.New("dataset must contain at least one cell")

const (
	maxUnsupervisedEpochs   = 400
	referenceCells          = 20000
	minSemiSupervisedEpochs = 2
	maxSemiSupervisedEpochs = 10
)

// UnsupervisedEpochs derives the phase-1 epoch count from the dataset size,
// scaling down from 400 epochs as datasets grow past 20k cells. A non-nil
// override is returned verbatim, bypassing the heuristic entirely.
func UnsupervisedEpochs(nObs int, override *int) (int, error) {
	if override != nil {
		return *override, nil
	}
	if nObs <= 0 {
		return 0, errors.Annotatef(ErrInvalidDatasetSize, "size %d", nObs)
	}
	epochs := int(math.Round(referenceCells / float64(nObs) * maxUnsupervisedEpochs))
	return mathutil.Max(mathutil.Min(epochs, maxUnsupervisedEpochs), 1), nil
}

// SemiSupervisedEpochs derives the phase-2 epoch count as one third of the
// phase-1 count, clamped to [2, 10]. A non-nil override is returned
// verbatim, even outside the clamp range.
func SemiSupervisedEpochs(unsupervisedEpochs int, override *int) int {
	if override != nil {
		return *override
	}
	epochs := int(math.Round(float64(unsupervisedEpochs) / 3))
	return mathutil.Max(mathutil.Min(epochs, maxSemiSupervisedEpochs), minSemiSupervisedEpochs)
}
