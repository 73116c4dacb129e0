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
	"errors"
	"time"

	"github.com/ZaparooProject/tapurl/internal/frame"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/ZaparooProject/tapurl/pn532"
)

// PN532 status codes the simulator reports.
const (
	StatusOK           = 0x00
	StatusTimeout      = 0x01
	StatusWrongContext = 0x27
)

// CommandLogEntry records a command received by the simulator.
type CommandLogEntry struct {
	Timestamp time.Time
	Args      []byte
	Cmd       byte
}

// VirtualPN532 emulates the PN532 command set in front of a virtual tag.
// It can be driven at command level through SimulatorTransport or at wire
// level through Read and Write, which speak the UART frame protocol.
type VirtualPN532 struct {
	Tag        *VirtualNTAG424
	failures   map[byte]byte
	Firmware   []byte
	ATS        []byte
	commandLog []CommandLogEntry
	in         []byte
	out        []byte
	mu         syncutil.Mutex
	SELRes     byte
	active     bool
}

// NewVirtualPN532 returns a PN532 with tag in its field. A nil tag is an
// empty field.
func NewVirtualPN532(tag *VirtualNTAG424) *VirtualPN532 {
	return &VirtualPN532{
		Tag:      tag,
		Firmware: DefaultFirmware,
		ATS:      DefaultATS,
		SELRes:   0x20,
		failures: make(map[byte]byte),
	}
}

// FailCommand makes cmd answer with status until cleared with StatusOK.
// Only commands that carry a status byte honour it.
func (v *VirtualPN532) FailCommand(cmd, status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if status == StatusOK {
		delete(v.failures, cmd)
		return
	}
	v.failures[cmd] = status
}

// CommandCount returns how many times cmd was received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, e := range v.commandLog {
		if e.Cmd == cmd {
			n++
		}
	}
	return n
}

// CommandLog returns the received commands in order.
func (v *VirtualPN532) CommandLog() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.commandLog...)
}

// HandleCommand answers one command. A nil result stands for the
// application-level error frame.
func (v *VirtualPN532) HandleCommand(ctx context.Context, cmd byte, args []byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.commandLog = append(v.commandLog, CommandLogEntry{
		Cmd:       cmd,
		Args:      append([]byte(nil), args...),
		Timestamp: time.Now(),
	})
	if status, ok := v.failures[cmd]; ok && cmd != pn532.CmdGetFirmwareVersion && cmd != pn532.CmdSAMConfiguration {
		if cmd == pn532.CmdInListPassiveTarget {
			return BuildNoTagResponse()
		}
		return BuildStatusResponse(cmd, status)
	}

	switch cmd {
	case pn532.CmdGetFirmwareVersion:
		return BuildFirmwareVersionResponse(v.Firmware)
	case pn532.CmdSAMConfiguration:
		return BuildSAMConfigurationResponse()
	case pn532.CmdInListPassiveTarget:
		return v.listTarget(ctx)
	case pn532.CmdInDataExchange:
		return v.dataExchange(ctx, args)
	case pn532.CmdInRelease:
		if v.active && v.Tag != nil {
			_ = v.Tag.Disconnect()
		}
		v.active = false
		return BuildStatusResponse(cmd, StatusOK)
	default:
		return nil
	}
}

func (v *VirtualPN532) listTarget(ctx context.Context) []byte {
	if v.Tag == nil {
		return BuildNoTagResponse()
	}
	if _, err := v.Tag.Connect(ctx); err != nil {
		return BuildNoTagResponse()
	}
	v.active = true
	return BuildTargetResponse(v.Tag.UID, v.SELRes, v.ATS)
}

func (v *VirtualPN532) dataExchange(ctx context.Context, args []byte) []byte {
	if !v.active || len(args) == 0 || args[0] != 0x01 {
		return BuildStatusResponse(pn532.CmdInDataExchange, StatusWrongContext)
	}
	res, err := v.Tag.Exchange(ctx, args[1:])
	if err != nil {
		return BuildStatusResponse(pn532.CmdInDataExchange, StatusTimeout)
	}
	return BuildDataExchangeResponse(res)
}

// Write accepts host bytes: wake-up preambles, ACKs and command frames.
// Each complete command is answered with an ACK and a response frame.
func (v *VirtualPN532) Write(p []byte) (int, error) {
	v.mu.Lock()
	v.in = append(v.in, p...)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		fr, n, err := frame.ParseCommand(v.in)
		if errors.Is(err, frame.ErrIncomplete) {
			v.mu.Unlock()
			return len(p), nil
		}
		v.in = v.in[n:]
		v.mu.Unlock()

		if err != nil {
			v.queue(frame.NackFrame)
			continue
		}
		if fr.Kind != frame.KindData || len(fr.Data) == 0 {
			continue
		}

		res := v.HandleCommand(context.Background(), fr.Data[0], fr.Data[1:])
		v.queue(frame.AckFrame)
		if res == nil {
			v.queue([]byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00})
			continue
		}
		out, err := frame.BuildResponse(res)
		if err != nil {
			return len(p), err
		}
		v.queue(out)
	}
}

// Read returns pending response bytes; zero bytes means nothing is
// pending, like a serial read timeout.
func (v *VirtualPN532) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := copy(p, v.out)
	v.out = v.out[n:]
	return n, nil
}

func (v *VirtualPN532) queue(b []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.out = append(v.out, b...)
}

// SimulatorTransport is a pn532.Transport that calls VirtualPN532
// directly, without framing.
type SimulatorTransport struct {
	sim    *VirtualPN532
	Closed int
}

var _ pn532.Transport = (*SimulatorTransport)(nil)

// NewSimulatorTransport creates a transport backed by sim.
func NewSimulatorTransport(sim *VirtualPN532) *SimulatorTransport {
	return &SimulatorTransport{sim: sim}
}

// SendCommand implements pn532.Transport.
func (t *SimulatorTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := t.sim.HandleCommand(ctx, cmd, args)
	if res == nil {
		return nil, pn532.ErrApplicationError
	}
	return res, nil
}

// Close implements pn532.Transport.
func (t *SimulatorTransport) Close() error {
	t.Closed++
	return nil
}

// Type implements pn532.Transport.
func (*SimulatorTransport) Type() pn532.TransportType {
	return pn532.TransportMock
}

// Simulator returns the backing VirtualPN532.
func (t *SimulatorTransport) Simulator() *VirtualPN532 {
	return t.sim
}
