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

// Package frame encodes and decodes PN532 host interface frames shared by
// the UART, I2C and SPI transports.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means buf ends before the frame does; read more bytes.
	ErrIncomplete     = errors.New("frame: incomplete")
	ErrLengthChecksum = errors.New("frame: length checksum mismatch")
	ErrDataChecksum   = errors.New("frame: data checksum mismatch")
	ErrUnexpectedTFI  = errors.New("frame: unexpected frame identifier")
	ErrExtended       = errors.New("frame: extended frames are not supported")
	ErrTooLarge       = errors.New("frame: data too large for a normal frame")
)

// Kind classifies a decoded frame.
type Kind int

const (
	KindData Kind = iota
	KindAck
	KindNack
	// KindError is the PN532 application-level error frame (TFI 0x7F).
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindAck:
		return "ack"
	case KindNack:
		return "nack"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is a decoded frame. For KindData, Data holds the bytes after the
// TFI, starting with the response code (command + 1).
type Frame struct {
	Data []byte
	Kind Kind
}

// Build encodes a host-to-PN532 command frame.
func Build(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args)
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, dataLen)
	}

	out := make([]byte, 0, headerLength+1+dataLen+2)
	out = append(out, Preamble, StartCode1, StartCode2, byte(dataLen), complement(byte(dataLen)))
	out = append(out, HostToPn532, cmd)
	out = append(out, args...)
	dcs := complement(CalculateChecksum(out[headerLength+1:]))
	return append(out, dcs, Postamble), nil
}

// BuildResponse encodes a PN532-to-host frame carrying data (response code
// first). Simulators use it to answer commands.
func BuildResponse(data []byte) ([]byte, error) {
	dataLen := 1 + len(data)
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, dataLen)
	}

	out := make([]byte, 0, headerLength+1+dataLen+2)
	out = append(out, Preamble, StartCode1, StartCode2, byte(dataLen), complement(byte(dataLen)))
	out = append(out, Pn532ToHost)
	out = append(out, data...)
	dcs := complement(CalculateChecksum(out[headerLength+1:]))
	return append(out, dcs, Postamble), nil
}

// Parse decodes the first PN532-to-host frame found in buf and reports how
// many bytes of buf it consumed, including any leading garbage.
// ErrIncomplete asks the caller to append more input and call again.
func Parse(buf []byte) (Frame, int, error) {
	return parse(buf, Pn532ToHost)
}

// ParseCommand is Parse for host-to-PN532 frames. Data starts with the
// command code.
func ParseCommand(buf []byte) (Frame, int, error) {
	return parse(buf, HostToPn532)
}

func parse(buf []byte, tfi byte) (Frame, int, error) {
	start := findStart(buf)
	if start < 0 {
		return Frame{}, 0, ErrIncomplete
	}
	if len(buf) < start+headerLength {
		return Frame{}, 0, ErrIncomplete
	}

	// buf[start] and buf[start+1] are the 00 FF start code.
	length, lcs := buf[start+2], buf[start+3]
	switch {
	case length == 0x00 && lcs == 0xFF:
		return Frame{Kind: KindAck}, consumed(buf, start+headerLength), nil
	case length == 0xFF && lcs == 0x00:
		return Frame{Kind: KindNack}, consumed(buf, start+headerLength), nil
	case length == 0xFF && lcs == 0xFF:
		return Frame{}, start + headerLength, ErrExtended
	case length+lcs != 0:
		return Frame{}, start + headerLength, ErrLengthChecksum
	}

	body := start + headerLength
	end := body + int(length) + 1
	if len(buf) < end {
		return Frame{}, 0, ErrIncomplete
	}
	if CalculateChecksum(buf[body:end]) != 0 {
		return Frame{}, end, ErrDataChecksum
	}

	n := consumed(buf, end)
	switch buf[body] {
	case tfi:
		data := make([]byte, int(length)-1)
		copy(data, buf[body+1:end-1])
		return Frame{Kind: KindData, Data: data}, n, nil
	case ErrorTFI:
		return Frame{Kind: KindError}, n, nil
	default:
		return Frame{}, n, fmt.Errorf("%w: 0x%02X", ErrUnexpectedTFI, buf[body])
	}
}

// IsAck reports whether buf holds exactly an ACK frame, postamble
// included.
func IsAck(buf []byte) bool {
	return bytes.Equal(buf, AckFrame)
}

// findStart returns the index of the 00 FF start code or -1.
func findStart(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i
		}
	}
	return -1
}

// consumed extends end over an optional postamble byte.
func consumed(buf []byte, end int) int {
	if end < len(buf) && buf[end] == Postamble {
		return end + 1
	}
	return end
}
