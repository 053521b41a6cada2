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
	"encoding/csv"
	"os"
	"strconv"

	"github.com/juju/errors"
)

// LoadCSV reads an observation set from a CSV file. The expected layout is a
// header row followed by one row per cell:
//
//	cell_id,batch,label,<gene_1>,<gene_2>,...
//
// Counts are parsed as float32. The header supplies the gene count.
func LoadCSV(path string) (*ObservationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(header) < 4 {
		return nil, errors.NotValidf("header with %d columns, expect cell_id,batch,label and at least one gene", len(header))
	}
	genes := len(header) - 3
	obs := NewObservationSet(genes)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range rows {
		counts := make([]float32, genes)
		for j, cell := range row[3:] {
			v, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "cell %q gene %q", row[0], header[3+j])
			}
			counts[j] = float32(v)
		}
		if err := obs.Add(row[0], counts, row[1], row[2]); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return obs, nil
}
