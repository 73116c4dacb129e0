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

// Package spi is the PN532 transport for SPI buses, using periph.io.
//
// The PN532 shifts bits LSB first; frames are bit-reversed on the way in and
// out so the bus can stay in its default MSB-first mode.
package spi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/tapurl/internal/frame"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI operation bytes, before bit reversal.
const (
	opDataWrite  = 0x01
	opStatusRead = 0x02
	opDataRead   = 0x03

	statusReady = 0x01
)

const (
	clockFreq = 1 * physic.MegaHertz

	// DefaultTimeout bounds one command, from write to response.
	DefaultTimeout = time.Second
	pollInterval   = 2 * time.Millisecond

	readSize = 6 + frame.MaxDataLength + 2
)

var (
	ErrTimeout = errors.New("spi: timed out waiting for PN532")
	ErrNoACK   = errors.New("spi: PN532 did not acknowledge command")
	ErrClosed  = errors.New("spi: transport closed")
)

// Conn is the full-duplex connection the transport talks through; the
// spi.Conn returned by periph satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.Transport over SPI.
type Transport struct {
	conn     Conn
	port     spi.PortCloser
	portName string
	timeout  time.Duration
	mu       syncutil.Mutex
}

var _ pn532.Transport = (*Transport)(nil)

// New opens portName ("" selects the first port) in mode 0 at 1 MHz.
func New(portName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SPI port %q: %w", type4.ErrReaderNotFound, portName, err)
	}
	conn, err := port.Connect(clockFreq, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI %q: %w", portName, err)
	}

	t := NewWithConn(conn, portName)
	t.port = port
	t.wakeup()
	return t, nil
}

// NewWithConn wraps an existing connection to the PN532.
func NewWithConn(conn Conn, name string) *Transport {
	return &Transport{conn: conn, portName: name, timeout: DefaultTimeout}
}

// Opener returns a pn532.Opener for portName.
func Opener(portName string) pn532.Opener {
	return func(ctx context.Context) (pn532.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(portName)
	}
}

// SetTimeout changes the per-command timeout.
func (t *Transport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

// wakeup toggles chip select once; the PN532 leaves power-down on the
// falling edge.
func (t *Transport) wakeup() {
	time.Sleep(time.Millisecond)
	_ = t.conn.Tx([]byte{0x00}, make([]byte, 1))
	time.Sleep(time.Millisecond)
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
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

	if err := t.write(frm); err != nil {
		return nil, err
	}

	err = t.waitReady(ctx, deadline)
	if errors.Is(err, ErrTimeout) {
		return nil, ErrNoACK
	}
	if err != nil {
		return nil, err
	}
	ack, err := t.read(len(frame.AckFrame))
	if err != nil {
		return nil, err
	}
	if !frame.IsAck(ack) {
		return nil, fmt.Errorf("SPI %s: %w, got % X", t.portName, ErrNoACK, ack)
	}

	if err := t.waitReady(ctx, deadline); err != nil {
		return nil, err
	}
	raw, err := t.read(readSize)
	if err != nil {
		return nil, err
	}
	fr, _, err := frame.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("SPI %s response: %w", t.portName, err)
	}
	if fr.Kind == frame.KindError {
		return nil, pn532.ErrApplicationError
	}
	if fr.Kind != frame.KindData {
		return nil, fmt.Errorf("SPI %s: unexpected %s frame", t.portName, fr.Kind)
	}
	return fr.Data, nil
}

func (t *Transport) write(frm []byte) error {
	w := make([]byte, 1+len(frm))
	w[0] = reverseBit(opDataWrite)
	for i, b := range frm {
		w[1+i] = reverseBit(b)
	}
	if err := t.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("SPI %s write: %w", t.portName, err)
	}
	return nil
}

// waitReady polls the status register until the PN532 has data.
func (t *Transport) waitReady(ctx context.Context, deadline time.Time) error {
	w := []byte{reverseBit(opStatusRead), 0x00}
	r := make([]byte, len(w))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.conn.Tx(w, r); err != nil {
			return fmt.Errorf("SPI %s status: %w", t.portName, err)
		}
		if reverseBit(r[1])&statusReady != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// read clocks out n bytes after a data-read op, un-reversed.
func (t *Transport) read(n int) ([]byte, error) {
	w := make([]byte, 1+n)
	w[0] = reverseBit(opDataRead)
	r := make([]byte, len(w))
	if err := t.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("SPI %s read: %w", t.portName, err)
	}
	out := r[1:]
	for i, b := range out {
		out[i] = reverseBit(b)
	}
	return out, nil
}

// Close implements pn532.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = nil
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("SPI %s close: %w", t.portName, err)
	}
	return nil
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportSPI
}

func reverseBit(b byte) byte {
	var r byte
	for range 8 {
		r = r<<1 | b&1
		b >>= 1
	}
	return r
}
