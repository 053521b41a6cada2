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

import "github.com/cellanno-io/cellanno/nn"

// likelihoodEps keeps the log terms finite when a rate underflows.
const likelihoodEps = 1e-8

// poissonLogLikelihood returns the elementwise poisson log-density of the
// counts x under the rate mu: x*log(mu) - mu - lgamma(x+1).
func poissonLogLikelihood(x, mu *nn.Tensor) *nn.Tensor {
	logMu := nn.Log(nn.Add(mu, nn.NewScalar(likelihoodEps)))
	ll := nn.Sub(nn.Mul(logMu, x), mu)
	return nn.Sub(ll, nn.Lgamma(nn.Add(x, nn.NewScalar(1))))
}

// nbLogLikelihood returns the elementwise negative binomial log-density with
// mean mu and inverse dispersion theta. Theta broadcasts over rows when it is
// shaped per gene.
func nbLogLikelihood(x, mu, theta *nn.Tensor) *nn.Tensor {
	logThetaMu := nn.Log(nn.Add(nn.Add(mu, theta), nn.NewScalar(likelihoodEps)))
	logTheta := nn.Log(nn.Add(theta, nn.NewScalar(likelihoodEps)))

	ll := nn.Sub(nn.Add(nn.Lgamma(nn.Add(x, theta)), nn.Mul(logTheta, theta)), nn.Lgamma(theta))
	ll = nn.Sub(ll, nn.Lgamma(nn.Add(x, nn.NewScalar(1))))
	ll = nn.Add(ll, nn.Mul(nn.Log(nn.Add(mu, nn.NewScalar(likelihoodEps))), x))
	// theta*log(theta+mu) + x*log(theta+mu) folded into one product
	return nn.Sub(ll, nn.Mul(logThetaMu, nn.Add(x, theta)))
}

// zinbLogLikelihood returns the elementwise zero-inflated negative binomial
// log-density. The gate holds the zero-inflation logits.
func zinbLogLikelihood(x, mu, theta, gate *nn.Tensor) *nn.Tensor {
	negGate := nn.Mul(gate, nn.NewScalar(-1))
	softplusNegGate := nn.Softplus(negGate)
	logThetaMu := nn.Log(nn.Add(nn.Add(mu, theta), nn.NewScalar(likelihoodEps)))
	logTheta := nn.Log(nn.Add(theta, nn.NewScalar(likelihoodEps)))

	gateThetaLog := nn.Sub(nn.Add(negGate, nn.Mul(logTheta, theta)), nn.Mul(logThetaMu, theta))

	caseZero := nn.Sub(nn.Softplus(gateThetaLog), softplusNegGate)

	caseNonZero := nn.Sub(gateThetaLog, softplusNegGate)
	caseNonZero = nn.Add(caseNonZero, nn.Mul(nn.Sub(nn.Log(nn.Add(mu, nn.NewScalar(likelihoodEps))), logThetaMu), x))
	caseNonZero = nn.Sub(nn.Add(caseNonZero, nn.Lgamma(nn.Add(x, theta))), nn.Lgamma(theta))
	caseNonZero = nn.Sub(caseNonZero, nn.Lgamma(nn.Add(x, nn.NewScalar(1))))

	zeroMask, nonZeroMask := zeroMasks(x)
	return nn.Add(nn.Mul(caseZero, zeroMask), nn.Mul(caseNonZero, nonZeroMask))
}

// zeroMasks splits the count matrix into indicator tensors for zero and
// non-zero entries. The masks are constants.
func zeroMasks(x *nn.Tensor) (zero, nonZero *nn.Tensor) {
	data := x.Data()
	zeroData := make([]float32, len(data))
	nonZeroData := make([]float32, len(data))
	for i, v := range data {
		if v < likelihoodEps {
			zeroData[i] = 1
		} else {
			nonZeroData[i] = 1
		}
	}
	shape := x.Shape()
	return nn.NewTensor(zeroData, shape...), nn.NewTensor(nonZeroData, shape...)
}
