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

package type4

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want []byte
		cmd  Command
	}{
		{
			name: "header only",
			cmd:  Command{CLA: 0x00, INS: 0xA4, P1: 0x00, P2: 0x0C},
			want: []byte{0x00, 0xA4, 0x00, 0x0C},
		},
		{
			name: "data without Le",
			cmd:  Command{INS: 0xA4, P2: 0x0C, Data: []byte{0xE1, 0x04}},
			want: []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04},
		},
		{
			name: "Le only",
			cmd:  Command{INS: 0xB0, Ne: 0x80},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x80},
		},
		{
			name: "Le of 256 encodes as zero",
			cmd:  Command{CLA: 0x90, INS: 0x60, Ne: 256},
			want: []byte{0x90, 0x60, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cmd.Bytes())
		})
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	resp, err := ParseResponse([]byte{0x01, 0x02, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, resp.Data)
	assert.Equal(t, SWSuccess, resp.SW)
	assert.True(t, resp.OK())

	resp, err = ParseResponse([]byte{0x91, 0x00})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.True(t, resp.OK())

	_, err = ParseResponse([]byte{0x90})
	require.ErrorIs(t, err, ErrShortResponse)
}

func TestTransmit_WrongLeIsRetried(t *testing.T) {
	t.Parallel()

	var sent [][]byte
	ex := ExchangeFunc(func(_ context.Context, capdu []byte) ([]byte, error) {
		sent = append(sent, capdu)
		if capdu[4] != 0x03 {
			return []byte{0x6C, 0x03}, nil
		}
		return []byte{0xAA, 0xBB, 0xCC, 0x90, 0x00}, nil
	})

	resp, err := transmit(context.Background(), ex, Command{INS: insReadBinary, Ne: 16})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, resp.Data)
	require.Len(t, sent, 2)
	assert.Equal(t, byte(0x03), sent[1][4])
}

func TestTransmit_GetResponseChain(t *testing.T) {
	t.Parallel()

	responses := [][]byte{
		{0x01, 0x61, 0x02},
		{0x02, 0x03, 0x61, 0x01},
		{0x04, 0x90, 0x00},
	}
	var calls int
	ex := ExchangeFunc(func(_ context.Context, capdu []byte) ([]byte, error) {
		if calls > 0 {
			assert.Equal(t, byte(insGetResponse), capdu[1])
		}
		r := responses[calls]
		calls++
		return r, nil
	})

	resp, err := transmit(context.Background(), ex, Command{INS: insSelect})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, resp.Data)
	assert.Equal(t, SWSuccess, resp.SW)
	assert.Equal(t, 3, calls)
}

func TestTransmit_ExchangeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("link down")
	ex := ExchangeFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, boom
	})

	_, err := transmit(context.Background(), ex, Command{INS: insSelect})
	require.ErrorIs(t, err, boom)
}

func TestAPDUError(t *testing.T) {
	t.Parallel()

	err := error(&APDUError{Op: "select file E104", SW: SWFileNotFound})
	assert.Equal(t, "select file E104: status word 6A82", err.Error())
	assert.True(t, IsSW(err, SWFileNotFound))
	assert.False(t, IsSW(err, SWSuccess))
	assert.False(t, IsSW(errors.New("other"), SWFileNotFound))
}

func TestFileID(t *testing.T) {
	t.Parallel()

	for fileNo, want := range map[byte]uint16{1: 0xE103, 2: 0xE104, 3: 0xE105} {
		got, err := FileID(fileNo)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := FileID(4)
	require.ErrorIs(t, err, ErrUnknownFile)
}
