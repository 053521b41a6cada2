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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.csv")
	content := "cell_id,batch,label,GeneA,GeneB\n" +
		"c1,b0,T cells,3,0\n" +
		"c2,b1,Unknown,1,2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	obs, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.Count())
	assert.Equal(t, 2, obs.Genes())
	assert.Equal(t, 2, obs.Batches())
	assert.Equal(t, "c1", obs.Id(0))
	assert.Equal(t, []float32{3, 0}, obs.Counts(0))
	assert.Equal(t, "T cells", obs.Label(0))
	assert.Equal(t, 1, obs.Batch(1))
}

func TestLoadCSVBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("cell_id,batch,label\n"), 0644))
	_, err := LoadCSV(path)
	assert.Error(t, err)
}

func TestLoadCSVBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "cell_id,batch,label,GeneA\nc1,b0,A,oops\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	_, err := LoadCSV(path)
	assert.Error(t, err)
}
