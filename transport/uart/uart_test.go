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

package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/tapurl/internal/frame"
	testutil "github.com/ZaparooProject/tapurl/internal/testing"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

// mockPort feeds writes into a VirtualPN532 and reads its answers back.
type mockPort struct {
	sim     *testutil.VirtualPN532
	script  [][]byte
	writes  [][]byte
	closed  bool
	readErr error
}

func (m *mockPort) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if len(m.script) > 0 {
		n := copy(p, m.script[0])
		m.script = m.script[1:]
		return n, nil
	}
	if m.sim == nil {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	return m.sim.Read(p)
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.writes = append(m.writes, append([]byte(nil), p...))
	if m.sim == nil {
		return len(p), nil
	}
	return m.sim.Write(p)
}

func (*mockPort) Drain() error { return nil }

func (*mockPort) ResetInputBuffer() error { return nil }

func (*mockPort) SetReadTimeout(time.Duration) error { return nil }

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func TestSendCommand_FirmwareVersion(t *testing.T) {
	t.Parallel()

	port := &mockPort{sim: testutil.NewVirtualPN532(nil)}
	tr := NewWithPort(port, "/dev/ttyMOCK")

	fw, err := pn532.New(tr).GetFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PN532 v1.6", fw.String())

	// Wake-up preamble and frame go out in one write, then the host ACK.
	require.Len(t, port.writes, 2)
	assert.Equal(t, byte(0x55), port.writes[0][0])
	assert.Equal(t, frame.AckFrame, port.writes[1])
}

func TestSendCommand_FullSession(t *testing.T) {
	t.Parallel()

	const url = "https://zaparoo.org/launch"
	port := &mockPort{sim: testutil.NewVirtualPN532(testutil.NewVirtualNTAG424(url))}
	link := pn532.NewLink(func(context.Context) (pn532.Transport, error) {
		return NewWithPort(port, "/dev/ttyMOCK"), nil
	})

	ex, err := link.Connect(context.Background())
	require.NoError(t, err)
	res, err := ex.Exchange(context.Background(), []byte{0x00, 0xA4, 0x04, 0x00, 0x07,
		0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, res)

	require.NoError(t, link.Disconnect())
	assert.True(t, port.closed)
}

func TestSendCommand_ResponseBeforeACK(t *testing.T) {
	t.Parallel()

	resp, err := frame.BuildResponse([]byte{0x15})
	require.NoError(t, err)
	port := &mockPort{script: [][]byte{resp, frame.AckFrame}}
	tr := NewWithPort(port, "/dev/ttyMOCK")

	res, err := tr.SendCommand(context.Background(), pn532.CmdSAMConfiguration, []byte{0x01, 0x14, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x15}, res)
}

func TestSendCommand_ChecksumErrorSendsNACK(t *testing.T) {
	t.Parallel()

	good, err := frame.BuildResponse([]byte{0x15})
	require.NoError(t, err)
	bad := append([]byte(nil), good...)
	bad[len(bad)-2]++ // corrupt DCS

	port := &mockPort{script: [][]byte{frame.AckFrame, bad, good}}
	tr := NewWithPort(port, "/dev/ttyMOCK")

	res, err := tr.SendCommand(context.Background(), pn532.CmdSAMConfiguration, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x15}, res)
	assert.Contains(t, port.writes, frame.NackFrame)
}

func TestSendCommand_ApplicationError(t *testing.T) {
	t.Parallel()

	port := &mockPort{script: [][]byte{
		frame.AckFrame,
		{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00},
	}}
	_, err := NewWithPort(port, "/dev/ttyMOCK").SendCommand(context.Background(), 0x60, nil)
	require.ErrorIs(t, err, pn532.ErrApplicationError)
}

func TestSendCommand_NoACK(t *testing.T) {
	t.Parallel()

	tr := NewWithPort(&mockPort{}, "/dev/ttyMOCK")
	tr.SetTimeout(20 * time.Millisecond)

	_, err := tr.SendCommand(context.Background(), pn532.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, ErrNoACK)
}

func TestSendCommand_TimeoutAfterACK(t *testing.T) {
	t.Parallel()

	tr := NewWithPort(&mockPort{script: [][]byte{frame.AckFrame}}, "/dev/ttyMOCK")
	tr.SetTimeout(20 * time.Millisecond)

	_, err := tr.SendCommand(context.Background(), pn532.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSendCommand_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWithPort(&mockPort{}, "/dev/ttyMOCK").SendCommand(ctx, pn532.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSendCommand_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("device unplugged")
	_, err := NewWithPort(&mockPort{readErr: boom}, "/dev/ttyMOCK").
		SendCommand(context.Background(), pn532.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, boom)
}

func TestClose(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	tr := NewWithPort(port, "/dev/ttyMOCK")
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, port.closed)

	_, err := tr.SendCommand(context.Background(), pn532.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, pn532.TransportUART, tr.Type())
}

//nolint:paralleltest // replaces the package-level port lister
func TestDetectPorts(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
		}, nil
	}

	ports, err := DetectPorts()
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyUSB0", ports[0].Name)
	assert.Equal(t, "1A86:7523", ports[0].VIDPID)
	assert.Equal(t, "QinHeng CH340", ports[0].Bridge)
	assert.Equal(t, "/dev/ttyACM0", ports[1].Name)
	assert.Empty(t, ports[1].Bridge)
}

//nolint:paralleltest // replaces the package-level port lister
func TestOpener_NoPorts(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })
	listPorts = func() ([]*enumerator.PortDetails, error) { return nil, nil }

	_, err := Opener("")(context.Background())
	require.ErrorIs(t, err, type4.ErrReaderNotFound)
	assert.Contains(t, err.Error(), "no USB serial ports")
}
