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

// Package model implements the variational models trained by this
// repository: an unsupervised VAE over gene expression counts and its
// label-aware extension with a classifier head.
package model

import (
	"github.com/juju/errors"
)

// ErrUnsupportedHyperparameter reports an unrecognized dispersion or
// likelihood value.
var ErrUnsupportedHyperparameter = errors.New("unsupported hyperparameter value")

// Dispersion selects how the negative binomial dispersion parameter is
// shared across cells.
type Dispersion string

const (
	// DispersionGene shares one dispersion per gene across all cells.
	DispersionGene Dispersion = "gene"
	// DispersionGeneBatch lets dispersion differ between batches.
	DispersionGeneBatch Dispersion = "gene-batch"
	// DispersionGeneLabel lets dispersion differ between labels.
	DispersionGeneLabel Dispersion = "gene-label"
	// DispersionGeneCell emits a dispersion per gene in every cell.
	DispersionGeneCell Dispersion = "gene-cell"
)

// GeneLikelihood selects the reconstruction likelihood family.
type GeneLikelihood string

const (
	LikelihoodNB      GeneLikelihood = "nb"
	LikelihoodZINB    GeneLikelihood = "zinb"
	LikelihoodPoisson GeneLikelihood = "poisson"
)

// Hyperparameters enumerates every recognized model option. There is no
// pass-through of unknown options: anything not listed here is rejected at
// the configuration boundary.
type Hyperparameters struct {
	NHidden        int
	NLatent        int
	NLayers        int
	DropoutRate    float32
	Dispersion     Dispersion
	GeneLikelihood GeneLikelihood
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		NHidden:        128,
		NLatent:        10,
		NLayers:        1,
		DropoutRate:    0.1,
		Dispersion:     DispersionGene,
		GeneLikelihood: LikelihoodZINB,
	}
}

func (h Hyperparameters) Validate() error {
	switch h.Dispersion {
	case DispersionGene, DispersionGeneBatch, DispersionGeneLabel, DispersionGeneCell:
	default:
		return errors.Annotatef(ErrUnsupportedHyperparameter, "dispersion %q", h.Dispersion)
	}
	switch h.GeneLikelihood {
	case LikelihoodNB, LikelihoodZINB, LikelihoodPoisson:
	default:
		return errors.Annotatef(ErrUnsupportedHyperparameter, "gene likelihood %q", h.GeneLikelihood)
	}
	if h.NHidden <= 0 || h.NLatent <= 0 || h.NLayers <= 0 {
		return errors.Annotatef(ErrUnsupportedHyperparameter,
			"n_hidden %d, n_latent %d, n_layers %d must be positive", h.NHidden, h.NLatent, h.NLayers)
	}
	if h.DropoutRate < 0 || h.DropoutRate >= 1 {
		return errors.Annotatef(ErrUnsupportedHyperparameter, "dropout rate %v", h.DropoutRate)
	}
	return nil
}
