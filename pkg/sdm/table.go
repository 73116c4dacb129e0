// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sdm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Entry is the expected MAC for one counter value.
type Entry struct {
	Counter string `json:"ctr"`
	MAC     string `json:"cmac"`
	Value   uint32 `json:"counter"`
}

// Table lists the MACs a tag will mirror over a counter range.
type Table struct {
	UID     string  `json:"uid"`
	Entries []Entry `json:"cmacs"`
}

// Generate computes the MACs for counters first through last inclusive,
// with an empty MAC input.
func Generate(key, uid []byte, first, last uint32) (*Table, error) {
	if first > last || last > MaxCounter {
		return nil, fmt.Errorf("%w: %d..%d", ErrCounterRange, first, last)
	}

	t := &Table{
		UID:     strings.ToUpper(hex.EncodeToString(uid)),
		Entries: make([]Entry, 0, int(last-first)+1),
	}
	for ctr := first; ; ctr++ {
		mac, err := MAC(key, uid, ctr, nil)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, Entry{
			Counter: FormatCounter(ctr),
			MAC:     strings.ToUpper(hex.EncodeToString(mac)),
			Value:   ctr,
		})
		if ctr == last {
			break
		}
	}
	return t, nil
}

// WriteJSON writes t as indented JSON.
func (t *Table) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("sdm: encode table: %w", err)
	}
	return nil
}
