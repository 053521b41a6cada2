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

package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteVector(buf, []float32{1, 2, 3}))
	v, err := ReadVector(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestString(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteString(buf, "CD4 T cells"))
	s, err := ReadString(buf)
	require.NoError(t, err)
	assert.Equal(t, "CD4 T cells", s)
}

func TestGob(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteGob(buf, map[string]int{"B cells": 1}))
	var m map[string]int
	require.NoError(t, ReadGob(buf, &m))
	assert.Equal(t, map[string]int{"B cells": 1}, m)
}
