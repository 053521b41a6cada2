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

// Dict assigns contiguous integer codes to string categories in
// first-occurrence order. Codes are stable: re-adding the same values in the
// same order always yields the same codebook.
type Dict struct {
	si  map[string]int
	is  []string
	cnt []int
}

func NewDict() *Dict {
	return &Dict{si: map[string]int{}, is: []string{}, cnt: []int{}}
}

func (d *Dict) Count() int {
	return len(d.is)
}

// Add returns the code of s, creating one if s is unseen, and increments its
// frequency.
func (d *Dict) Add(s string) (y int) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}
	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// Lookup returns the code of s without mutating the dictionary.
func (d *Dict) Lookup(s string) (y int, ok bool) {
	y, ok = d.si[s]
	return
}

func (d *Dict) String(id int) (s string, ok bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

func (d *Dict) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// Values returns all categories in code order.
func (d *Dict) Values() []string {
	values := make([]string, len(d.is))
	copy(values, d.is)
	return values
}
