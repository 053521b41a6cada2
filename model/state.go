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
	"fmt"
	"slices"

	"github.com/cellanno-io/cellanno/nn"
	mapset "github.com/deckarep/golang-set/v2"
)

// StateDict maps stable parameter names to their tensors. The tensors are
// shared with the model, not copied.
type StateDict map[string]*nn.Tensor

// Keys returns the parameter names in sorted order.
func (sd StateDict) Keys() []string {
	keys := make([]string, 0, len(sd))
	for k := range sd {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func addLinear(sd StateDict, prefix string, l *nn.LinearLayer) {
	sd[prefix+".weight"] = l.W
	sd[prefix+".bias"] = l.B
}

func addSequential(sd StateDict, prefix string, s *nn.Sequential) {
	i := 0
	for _, layer := range s.Layers {
		if l, ok := layer.(*nn.LinearLayer); ok {
			addLinear(sd, fmt.Sprintf("%s.%d", prefix, i), l)
			i++
		}
	}
}

type stateful interface {
	StateDict() StateDict
}

// parametersOf flattens a state dict into a deterministic parameter list.
func parametersOf(m stateful) []*nn.Tensor {
	sd := m.StateDict()
	params := make([]*nn.Tensor, 0, len(sd))
	for _, k := range sd.Keys() {
		params = append(params, sd[k])
	}
	return params
}

// TransplantReport describes the outcome of a partial weight transplant.
type TransplantReport struct {
	Copied        []string // parameters overwritten from the source
	SkippedNew    []string // destination parameters absent from the source
	SkippedExtra  []string // source parameters absent from the destination
	ShapeMismatch []string // names shared but shapes differ
}

// Transplant copies every source parameter whose name and shape match a
// destination parameter, leaving the rest of the destination untouched.
// Mismatches are reported, never fatal.
func Transplant(dst, src StateDict) TransplantReport {
	dstKeys := mapset.NewThreadUnsafeSet[string]()
	for k := range dst {
		dstKeys.Add(k)
	}
	srcKeys := mapset.NewThreadUnsafeSet[string]()
	for k := range src {
		srcKeys.Add(k)
	}

	report := TransplantReport{
		SkippedNew:   sortedSlice(dstKeys.Difference(srcKeys)),
		SkippedExtra: sortedSlice(srcKeys.Difference(dstKeys)),
	}
	for _, k := range sortedSlice(dstKeys.Intersect(srcKeys)) {
		if !slices.Equal(dst[k].Shape(), src[k].Shape()) {
			report.ShapeMismatch = append(report.ShapeMismatch, k)
			continue
		}
		copy(dst[k].Data(), src[k].Data())
		report.Copied = append(report.Copied, k)
	}
	return report
}

func sortedSlice(s mapset.Set[string]) []string {
	slice := s.ToSlice()
	slices.Sort(slice)
	return slice
}
