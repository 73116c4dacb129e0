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

// Package uart is the PN532 transport for serial (HSU) connections, usually
// a USB-serial bridge on a breakout board.
package uart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/tapurl/internal/frame"
	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/ZaparooProject/tapurl/pn532"
	"go.bug.st/serial"
)

const (
	baudRate = 115200
	// readPoll is the serial read timeout; reads return empty after it.
	readPoll = 50 * time.Millisecond
	// DefaultTimeout bounds one command, from write to response.
	DefaultTimeout = time.Second
	maxNacks       = 3
)

var (
	ErrTimeout = errors.New("uart: timed out waiting for PN532")
	ErrNoACK   = errors.New("uart: PN532 did not acknowledge command")
	ErrNACK    = errors.New("uart: PN532 kept rejecting frames")
	ErrClosed  = errors.New("uart: transport closed")
)

// wakeUp brings the PN532 out of power-down before a frame: 0x55 followed by
// enough idle bytes to cover its wake-up time.
var wakeUp = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Port is the subset of serial.Port the transport uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

var _ Port = (serial.Port)(nil)

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port     Port
	portName string
	timeout  time.Duration
	mu       syncutil.Mutex
}

var _ pn532.Transport = (*Transport)(nil)

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an already open port.
func NewWithPort(port Port, name string) *Transport {
	return &Transport{port: port, portName: name, timeout: DefaultTimeout}
}

// SetTimeout changes the per-command timeout.
func (t *Transport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, err
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		log.Debugf("UART %s: reset input buffer: %v", t.portName, err)
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.write(append(append([]byte(nil), wakeUp...), frm...)); err != nil {
		return nil, err
	}
	res, err := t.receive(ctx, deadline, frm)
	if err != nil {
		return nil, fmt.Errorf("UART %s command 0x%02X: %w", t.portName, cmd, err)
	}
	return res, nil
}

// receive reads until the response frame arrives. Some clones deliver the
// response ahead of the ACK, so a data frame is accepted either way.
func (t *Transport) receive(ctx context.Context, deadline time.Time, frm []byte) ([]byte, error) {
	var (
		buf   []byte
		acked bool
		nacks int
	)
	chunk := make([]byte, 64)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			if !acked {
				return nil, ErrNoACK
			}
			return nil, ErrTimeout
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		buf = append(buf, chunk[:n]...)

		for {
			fr, used, err := frame.Parse(buf)
			if errors.Is(err, frame.ErrIncomplete) {
				break
			}
			buf = buf[used:]

			switch {
			case errors.Is(err, frame.ErrLengthChecksum), errors.Is(err, frame.ErrDataChecksum):
				// Ask the PN532 to send the response again.
				if nacks++; nacks > maxNacks {
					return nil, err
				}
				if err := t.write(frame.NackFrame); err != nil {
					return nil, err
				}
				continue
			case err != nil:
				return nil, err
			}

			switch fr.Kind {
			case frame.KindAck:
				acked = true
			case frame.KindNack:
				if nacks++; nacks > maxNacks {
					return nil, ErrNACK
				}
				if err := t.write(frm); err != nil {
					return nil, err
				}
			case frame.KindError:
				return nil, pn532.ErrApplicationError
			case frame.KindData:
				if err := t.write(frame.AckFrame); err != nil {
					log.Debugf("UART %s: ACK after response: %v", t.portName, err)
				}
				return fr.Data, nil
			}
		}
	}
}

func (t *Transport) write(b []byte) error {
	n, err := t.port.Write(b)
	if err != nil {
		return fmt.Errorf("UART %s write: %w", t.portName, err)
	}
	if n != len(b) {
		return fmt.Errorf("UART %s write: short write %d of %d bytes", t.portName, n, len(b))
	}
	if err := t.port.Drain(); err != nil {
		return fmt.Errorf("UART %s drain: %w", t.portName, err)
	}
	return nil
}

// Close implements pn532.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART %s close: %w", t.portName, err)
	}
	return nil
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// PortName returns the device path.
func (t *Transport) PortName() string {
	return t.portName
}
