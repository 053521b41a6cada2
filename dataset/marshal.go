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
	"io"

	"github.com/cellanno-io/cellanno/base/encoding"
	"github.com/juju/errors"
)

type dictSnapshot struct {
	Values []string
	Counts []int
}

// Marshal writes the codebook in code order so it restores bit-identically.
func (d *Dict) Marshal(w io.Writer) error {
	snapshot := dictSnapshot{Values: d.is, Counts: d.cnt}
	return errors.Trace(encoding.WriteGob(w, snapshot))
}

// Unmarshal replaces the codebook with a previously saved one.
func (d *Dict) Unmarshal(r io.Reader) error {
	var snapshot dictSnapshot
	if err := encoding.ReadGob(r, &snapshot); err != nil {
		return errors.Trace(err)
	}
	if len(snapshot.Values) != len(snapshot.Counts) {
		return errors.NotValidf("codebook with %d values but %d counts",
			len(snapshot.Values), len(snapshot.Counts))
	}
	d.si = make(map[string]int, len(snapshot.Values))
	d.is = snapshot.Values
	d.cnt = snapshot.Counts
	for i, v := range snapshot.Values {
		d.si[v] = i
	}
	return nil
}

// Marshal writes the label codebook together with its sentinel.
func (idx *LabelIndex) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, idx.sentinel); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(idx.dict.Marshal(w))
}

// UnmarshalLabelIndex restores a label codebook saved by Marshal.
func UnmarshalLabelIndex(r io.Reader) (*LabelIndex, error) {
	sentinel, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dict := NewDict()
	if err := dict.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return &LabelIndex{dict: dict, sentinel: sentinel}, nil
}
