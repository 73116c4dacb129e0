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

package pcsc

import (
	"errors"
	"testing"

	"github.com/ZaparooProject/tapurl/type4"
	"github.com/ebfe/scard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickReader(t *testing.T) {
	t.Parallel()

	readers := []string{
		"ACS ACR122U PICC Interface 00 00",
		"Digital Logic uFR Nano 01 00",
	}

	tests := []struct {
		wantErr  error
		name     string
		selector string
		want     string
		readers  []string
	}{
		{name: "default first", readers: readers, want: readers[0]},
		{name: "by index", readers: readers, selector: "1", want: readers[1]},
		{name: "by name", readers: readers, selector: "ufr", want: readers[1]},
		{name: "case insensitive", readers: readers, selector: "ACR122", want: readers[0]},
		{name: "index out of range", readers: readers, selector: "5", wantErr: type4.ErrReaderNotFound},
		{name: "no match", readers: readers, selector: "omnikey", wantErr: type4.ErrReaderNotFound},
		{name: "no readers", wantErr: type4.ErrReaderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := PickReader(tt.readers, tt.selector)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, classify(scard.ErrRemovedCard), type4.ErrNoCard)
	assert.ErrorIs(t, classify(scard.ErrNoSmartcard), type4.ErrNoCard)
	assert.ErrorIs(t, classify(scard.ErrRemovedCard), scard.ErrRemovedCard)
	assert.ErrorIs(t, classify(scard.ErrUnknownReader), type4.ErrReaderNotFound)

	other := errors.New("sharing violation")
	assert.Equal(t, other, classify(other))
}

func TestDisconnectWithoutConnect(t *testing.T) {
	t.Parallel()

	l := NewLink(Options{})
	require.NoError(t, l.Disconnect())
	assert.Empty(t, l.Reader())
}
