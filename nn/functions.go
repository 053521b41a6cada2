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

package nn

// MeanSquareError computes the mean squared difference.
func MeanSquareError(y, yPred *Tensor) *Tensor {
	return Mean(Square(Sub(y, yPred)))
}

// GaussianKL computes the per-row average KL divergence between N(mu,
// exp(logvar)) and the standard normal.
func GaussianKL(mu, logvar *Tensor) *Tensor {
	rows := float32(mu.shape[0])
	// 1 + logvar - mu^2 - exp(logvar)
	inner := Sub(Sub(Add(logvar, NewScalar(1)), Square(mu)), Exp(logvar))
	return Mul(Sum(inner), NewScalar(-0.5/rows))
}
