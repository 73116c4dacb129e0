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

// Package i2c is the PN532 transport for I2C buses, using periph.io.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/tapurl/internal/frame"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address. The datasheet's 0x48 includes the R/W bit.
	pn532Addr = 0x24

	// pn532Ready is the status byte that precedes every read once the PN532
	// has data.
	pn532Ready = 0x01

	maxClockFreq = 400 * physic.KiloHertz

	// DefaultTimeout bounds one command, from write to response.
	DefaultTimeout = time.Second
	pollInterval   = 2 * time.Millisecond

	// readSize covers the largest normal frame plus its status byte.
	readSize = 1 + 6 + frame.MaxDataLength + 2
)

var (
	ErrTimeout = errors.New("i2c: timed out waiting for PN532")
	ErrNoACK   = errors.New("i2c: PN532 did not acknowledge command")
	ErrClosed  = errors.New("i2c: transport closed")
)

// Conn is the bus connection the transport talks through; *i2c.Dev
// satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.Transport over I2C.
type Transport struct {
	dev     Conn
	bus     i2c.BusCloser
	busName string
	timeout time.Duration
	mu      syncutil.Mutex
}

var _ pn532.Transport = (*Transport)(nil)

// parseBusName strips an address suffix: "/dev/i2c-1:0x24" names the bus
// "/dev/i2c-1".
func parseBusName(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens busName ("" selects the first bus) and addresses the PN532.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseBusName(busName))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open I2C bus %q: %w", type4.ErrReaderNotFound, busName, err)
	}
	// Not every bus driver supports changing speed.
	_ = bus.SetSpeed(maxClockFreq)

	t := NewWithConn(&i2c.Dev{Addr: pn532Addr, Bus: bus}, busName)
	t.bus = bus
	return t, nil
}

// NewWithConn wraps an existing connection to the PN532.
func NewWithConn(dev Conn, name string) *Transport {
	return &Transport{dev: dev, busName: name, timeout: DefaultTimeout}
}

// Opener returns a pn532.Opener for busName.
func Opener(busName string) pn532.Opener {
	return func(ctx context.Context) (pn532.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(busName)
	}
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

	if t.dev == nil {
		return nil, ErrClosed
	}
	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.dev.Tx(frm, nil); err != nil {
		return nil, fmt.Errorf("I2C %s write: %w", t.busName, err)
	}

	ack, err := t.read(ctx, deadline, len(frame.AckFrame))
	if errors.Is(err, ErrTimeout) {
		return nil, ErrNoACK
	}
	if err != nil {
		return nil, err
	}
	if !frame.IsAck(ack) {
		return nil, fmt.Errorf("I2C %s: %w, got % X", t.busName, ErrNoACK, ack)
	}

	raw, err := t.read(ctx, deadline, readSize-1)
	if err != nil {
		return nil, err
	}
	fr, _, err := frame.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("I2C %s response: %w", t.busName, err)
	}
	if fr.Kind == frame.KindError {
		return nil, pn532.ErrApplicationError
	}
	if fr.Kind != frame.KindData {
		return nil, fmt.Errorf("I2C %s: unexpected %s frame", t.busName, fr.Kind)
	}

	// The ACK tells the PN532 the response was taken; a lost one is harmless.
	_ = t.dev.Tx(frame.AckFrame, nil)
	return fr.Data, nil
}

// read polls the status byte until the PN532 is ready, then returns n data
// bytes with the status byte stripped.
func (t *Transport) read(ctx context.Context, deadline time.Time, n int) ([]byte, error) {
	buf := make([]byte, 1+n)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.dev.Tx(nil, buf); err != nil {
			return nil, fmt.Errorf("I2C %s read: %w", t.busName, err)
		}
		if buf[0]&pn532Ready != 0 {
			return buf[1:], nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Close implements pn532.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
	if t.bus == nil {
		return nil
	}
	err := t.bus.Close()
	t.bus = nil
	if err != nil {
		return fmt.Errorf("I2C %s close: %w", t.busName, err)
	}
	return nil
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}
