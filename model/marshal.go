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
	"io"
	"slices"

	"github.com/cellanno-io/cellanno/base/encoding"
	"github.com/juju/errors"
)

type modelHeader struct {
	NInput  int
	NBatch  int
	NLabels int
	Hyper   Hyperparameters
	Trained bool
}

// Marshal writes the model structure and parameters.
func (m *SCANVAE) Marshal(w io.Writer) error {
	header := modelHeader{
		NInput:  m.nInput,
		NBatch:  m.nBatch,
		NLabels: m.nLabels,
		Hyper:   m.hyper,
		Trained: m.trained,
	}
	if err := encoding.WriteGob(w, header); err != nil {
		return errors.Trace(err)
	}
	return marshalStateDict(w, m.StateDict())
}

// UnmarshalSCANVAE rebuilds a model saved by Marshal.
func UnmarshalSCANVAE(r io.Reader) (*SCANVAE, error) {
	var header modelHeader
	if err := encoding.ReadGob(r, &header); err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewSCANVAE(header.NInput, header.NBatch, header.NLabels, header.Hyper)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m.trained = header.Trained
	if err := unmarshalStateDict(r, m.StateDict()); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

func marshalStateDict(w io.Writer, sd StateDict) error {
	keys := sd.Keys()
	if err := encoding.WriteGob(w, keys); err != nil {
		return errors.Trace(err)
	}
	for _, k := range keys {
		if err := encoding.WriteGob(w, sd[k].Shape()); err != nil {
			return errors.Annotate(err, k)
		}
		if err := encoding.WriteVector(w, sd[k].Data()); err != nil {
			return errors.Annotate(err, k)
		}
	}
	return nil
}

func unmarshalStateDict(r io.Reader, sd StateDict) error {
	var keys []string
	if err := encoding.ReadGob(r, &keys); err != nil {
		return errors.Trace(err)
	}
	for _, k := range keys {
		var shape []int
		if err := encoding.ReadGob(r, &shape); err != nil {
			return errors.Annotate(err, k)
		}
		data, err := encoding.ReadVector(r)
		if err != nil {
			return errors.Annotate(err, k)
		}
		tensor, ok := sd[k]
		if !ok {
			return errors.NotValidf("unknown parameter %s", k)
		}
		if !slices.Equal(tensor.Shape(), shape) {
			return errors.NotValidf("parameter %s shape %v, expected %v", k, shape, tensor.Shape())
		}
		copy(tensor.Data(), data)
	}
	return nil
}
