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

package pn532

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	err       error
	responses map[byte][]byte
	sent      [][]byte
	closed    bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{responses: make(map[byte][]byte)}
}

func (m *mockTransport) SendCommand(_ context.Context, cmd byte, args []byte) ([]byte, error) {
	m.sent = append(m.sent, append([]byte{cmd}, args...))
	if m.err != nil {
		return nil, m.err
	}
	res, ok := m.responses[cmd]
	if !ok {
		return nil, ErrApplicationError
	}
	return res, nil
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

func (*mockTransport) Type() TransportType {
	return TransportMock
}

func TestGetFirmwareVersion(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdGetFirmwareVersion] = []byte{0x03, 0x32, 0x01, 0x06, 0x07}

	fw, err := New(mt).GetFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0x32), fw.IC)
	assert.Equal(t, "PN532 v1.6", fw.String())
}

func TestGetFirmwareVersion_Short(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdGetFirmwareVersion] = []byte{0x03, 0x32}

	_, err := New(mt).GetFirmwareVersion(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestSAMConfiguration(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdSAMConfiguration] = []byte{0x15}

	require.NoError(t, New(mt).SAMConfiguration(context.Background()))
	assert.Equal(t, []byte{cmdSAMConfiguration, 0x01, 0x14, 0x01}, mt.sent[0])
}

func TestSend_WrongResponseCode(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdSAMConfiguration] = []byte{0x03}

	err := New(mt).SAMConfiguration(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestSend_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("serial read failed")
	mt := newMockTransport()
	mt.err = boom

	_, err := New(mt).GetFirmwareVersion(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	uid := []byte{0x04, 0x96, 0x8C, 0xAA, 0x5C, 0x5E, 0x80}
	ats := []byte{0x06, 0x77, 0x77, 0x71, 0x02, 0x80}

	tests := []struct {
		wantErr error
		want    *Target
		name    string
		res     []byte
	}{
		{
			name: "iso-dep with ats",
			res:  append(append([]byte{0x01, 0x01, 0x03, 0x44, 0x20, 0x07}, uid...), ats...),
			want: &Target{Number: 1, SENS: [2]byte{0x03, 0x44}, SELRes: 0x20, UID: uid, ATS: ats},
		},
		{
			name: "ntag21x without ats",
			res:  append([]byte{0x01, 0x01, 0x00, 0x44, 0x00, 0x07}, uid...),
			want: &Target{Number: 1, SENS: [2]byte{0x00, 0x44}, SELRes: 0x00, UID: uid},
		},
		{
			name:    "empty field",
			res:     []byte{0x00},
			wantErr: ErrNoTarget,
		},
		{
			name:    "truncated header",
			res:     []byte{0x01, 0x01, 0x00},
			wantErr: ErrUnexpectedResponse,
		},
		{
			name:    "uid overruns",
			res:     []byte{0x01, 0x01, 0x00, 0x44, 0x00, 0x07, 0x04},
			wantErr: ErrUnexpectedResponse,
		},
		{
			name:    "ats overruns",
			res:     append(append([]byte{0x01, 0x01, 0x03, 0x44, 0x20, 0x07}, uid...), 0x06, 0x77),
			wantErr: ErrUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTarget(tt.res)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_ISODEP(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Target{SELRes: 0x20}).ISODEP())
	assert.True(t, (&Target{SELRes: 0x28}).ISODEP())
	assert.False(t, (&Target{SELRes: 0x00}).ISODEP())
	assert.False(t, (&Target{SELRes: 0x08}).ISODEP())
}

func TestInDataExchange(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdInDataExchange] = []byte{0x41, 0x00, 0x90, 0x00}

	res, err := New(mt).InDataExchange(context.Background(), 1, []byte{0x00, 0xA4, 0x04, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, res)
	assert.Equal(t, []byte{cmdInDataExchange, 0x01, 0x00, 0xA4, 0x04, 0x00}, mt.sent[0])
}

func TestInDataExchange_StatusError(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdInDataExchange] = []byte{0x41, 0x01}

	_, err := New(mt).InDataExchange(context.Background(), 1, []byte{0x00})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0x01), pe.Code)
	assert.True(t, pe.CardGone())
	assert.Equal(t, "InDataExchange error 0x01 (timeout)", pe.Error())
}

func TestInRelease(t *testing.T) {
	t.Parallel()

	mt := newMockTransport()
	mt.responses[cmdInRelease] = []byte{0x53, 0x00}
	require.NoError(t, New(mt).InRelease(context.Background(), 1))

	mt.responses[cmdInRelease] = []byte{0x53, 0x27}
	var pe *Error
	require.ErrorAs(t, New(mt).InRelease(context.Background(), 1), &pe)
	assert.False(t, pe.CardGone())
	assert.Equal(t, "wrong context for command", codeMeaning(pe.Code))
}

func TestCodeMeaning_Unknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "unknown error", codeMeaning(0x55))
}
