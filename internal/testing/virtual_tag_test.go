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

package testing

import (
	"context"
	"testing"

	"github.com/ZaparooProject/tapurl/internal/frame"
	"github.com/ZaparooProject/tapurl/pkg/ndef"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(t *testing.T, v *VirtualNTAG424, capdu ...byte) []byte {
	t.Helper()
	res, err := v.Exchange(context.Background(), capdu)
	require.NoError(t, err)
	return res
}

func TestVirtualNTAG424_SelectAndRead(t *testing.T) {
	t.Parallel()

	v := NewVirtualNTAG424("https://example.com")
	_, err := v.Connect(context.Background())
	require.NoError(t, err)

	// File select before the application is rejected.
	assert.Equal(t, []byte{0x6A, 0x82}, exchange(t, v, 0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04))

	sel := append([]byte{0x00, 0xA4, 0x04, 0x00, 0x07}, type4.NDEFApplicationName...)
	assert.Equal(t, []byte{0x90, 0x00}, exchange(t, v, append(sel, 0x00)...))
	assert.Equal(t, []byte{0x90, 0x00}, exchange(t, v, 0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04))

	res := exchange(t, v, 0x00, 0xB0, 0x00, 0x00, 0x20)
	require.Len(t, res, 0x22)
	assert.Equal(t, []byte{0x90, 0x00}, res[0x20:])

	view, err := ndef.ParseURIFile(res[:0x20])
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", view.URI)
}

func TestVirtualNTAG424_ReadPastEnd(t *testing.T) {
	t.Parallel()

	v := NewVirtualNTAG424("")
	v.SetFile(type4.FileIDNDEF, []byte{0x01, 0x02, 0x03})
	sel := append([]byte{0x00, 0xA4, 0x04, 0x00, 0x07}, type4.NDEFApplicationName...)
	exchange(t, v, sel...)
	exchange(t, v, 0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04)

	assert.Equal(t, []byte{0x02, 0x03, 0x62, 0x82}, exchange(t, v, 0x00, 0xB0, 0x00, 0x01, 0x10))
	assert.Equal(t, []byte{0x6B, 0x00}, exchange(t, v, 0x00, 0xB0, 0x00, 0x03, 0x10))
}

func TestVirtualNTAG424_Absent(t *testing.T) {
	t.Parallel()

	v := NewVirtualNTAG424("https://example.com")
	v.Present = false

	_, err := v.Connect(context.Background())
	require.ErrorIs(t, err, type4.ErrNoCard)
	_, err = v.Exchange(context.Background(), []byte{0x00, 0xA4, 0x04, 0x00})
	require.ErrorIs(t, err, type4.ErrNoCard)
	assert.Equal(t, 1, v.Connects)
}

func TestVirtualNTAG424_GetVersionFrames(t *testing.T) {
	t.Parallel()

	v := NewVirtualNTAG424("")
	first := exchange(t, v, 0x90, 0x60, 0x00, 0x00, 0x00)
	assert.Equal(t, append(NTAG424Version[:7:7], 0x91, 0xAF), first)
	second := exchange(t, v, 0x90, 0xAF, 0x00, 0x00, 0x00)
	assert.Equal(t, append(NTAG424Version[7:14:14], 0x91, 0xAF), second)
	third := exchange(t, v, 0x90, 0xAF, 0x00, 0x00, 0x00)
	assert.Equal(t, append(append([]byte(nil), NTAG424Version[14:]...), 0x91, 0x00), third)

	// A continuation without a running GetVersion is illegal.
	assert.Equal(t, []byte{0x91, 0x1C}, exchange(t, v, 0x90, 0xAF, 0x00, 0x00, 0x00))
}

func TestVirtualPN532_WireProtocol(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(NewVirtualNTAG424("https://example.com"))

	cmd, err := frame.Build(pn532.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	_, err = sim.Write(append([]byte{0x55, 0x00, 0x00, 0x00}, cmd...))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := sim.Read(buf)
	require.NoError(t, err)

	fr, used, err := frame.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, frame.KindAck, fr.Kind)

	fr, _, err = frame.Parse(buf[used:n])
	require.NoError(t, err)
	assert.Equal(t, frame.KindData, fr.Kind)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, fr.Data)

	n, err = sim.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVirtualPN532_UnknownCommand(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	st := NewSimulatorTransport(sim)

	_, err := st.SendCommand(context.Background(), 0x60, nil)
	require.ErrorIs(t, err, pn532.ErrApplicationError)
	assert.Equal(t, 1, sim.CommandCount(0x60))
}

func TestVirtualPN532_DataExchangeNeedsTarget(t *testing.T) {
	t.Parallel()

	st := NewSimulatorTransport(NewVirtualPN532(NewVirtualNTAG424("")))
	res, err := st.SendCommand(context.Background(), pn532.CmdInDataExchange, []byte{0x01, 0x00, 0xA4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, StatusWrongContext}, res)
}
