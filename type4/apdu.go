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
	"fmt"
)

// ISO 7816-4 status words used by Type 4 tags.
const (
	SWSuccess              uint16 = 0x9000
	SWEndOfFile            uint16 = 0x6282
	SWWrongLength          uint16 = 0x6700
	SWSecurityNotSatisfied uint16 = 0x6982
	SWWrongData            uint16 = 0x6A80
	SWFileNotFound         uint16 = 0x6A82
	SWIncorrectP1P2        uint16 = 0x6A86
	SWWrongP1P2            uint16 = 0x6B00
	SWInsNotSupported      uint16 = 0x6D00
	SWClaNotSupported      uint16 = 0x6E00

	// Native NTAG 424 / DESFire status words.
	SWNativeOK         uint16 = 0x9100
	SWNativeMoreFrames uint16 = 0x91AF
	SWNativeAuthError  uint16 = 0x91AE
	SWNativePermission uint16 = 0x919D
	SWNativeIllegalCmd uint16 = 0x911C
)

// Instruction bytes.
const (
	insSelect      = 0xA4
	insReadBinary  = 0xB0
	insGetResponse = 0xC0
	insGetVersion  = 0x60
	insAdditional  = 0xAF
	claISO         = 0x00
	claNative      = 0x90
	maxShortLe     = 256
)

var ErrShortResponse = errors.New("type4: response shorter than status word")

// Exchanger sends one command APDU to the card and returns the response
// APDU including the trailing status word.
type Exchanger interface {
	Exchange(ctx context.Context, capdu []byte) ([]byte, error)
}

// ExchangeFunc adapts a function to Exchanger.
type ExchangeFunc func(ctx context.Context, capdu []byte) ([]byte, error)

func (f ExchangeFunc) Exchange(ctx context.Context, capdu []byte) ([]byte, error) {
	return f(ctx, capdu)
}

// Command is a short-form command APDU. Ne is the expected response length;
// zero omits Le, 256 encodes as 0x00.
type Command struct {
	Data []byte
	Ne   int
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
}

// Bytes encodes the command.
func (c Command) Bytes() []byte {
	out := make([]byte, 0, 5+len(c.Data)+1)
	out = append(out, c.CLA, c.INS, c.P1, c.P2)
	if len(c.Data) > 0 {
		out = append(out, byte(len(c.Data)))
		out = append(out, c.Data...)
	}
	if c.Ne > 0 {
		out = append(out, byte(c.Ne%maxShortLe))
	}
	return out
}

// Response is a decoded response APDU.
type Response struct {
	Data []byte
	SW   uint16
}

// ParseResponse splits the trailing status word off raw.
func ParseResponse(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrShortResponse, len(raw))
	}
	n := len(raw) - 2
	return Response{
		Data: raw[:n],
		SW:   uint16(raw[n])<<8 | uint16(raw[n+1]),
	}, nil
}

// OK reports an ISO or native success status word.
func (r Response) OK() bool {
	return r.SW == SWSuccess || r.SW == SWNativeOK
}

// APDUError is a command that completed with a failure status word.
type APDUError struct {
	Op string
	SW uint16
}

func (e *APDUError) Error() string {
	return fmt.Sprintf("%s: status word %04X", e.Op, e.SW)
}

// IsSW reports whether err is an APDUError with the given status word.
func IsSW(err error, sw uint16) bool {
	var ae *APDUError
	return errors.As(err, &ae) && ae.SW == sw
}

// transmit sends cmd and follows 61xx (more data) and 6Cxx (wrong Le)
// continuations.
func transmit(ctx context.Context, ex Exchanger, cmd Command) (Response, error) {
	raw, err := ex.Exchange(ctx, cmd.Bytes())
	if err != nil {
		return Response{}, fmt.Errorf("exchange %02X%02X: %w", cmd.CLA, cmd.INS, err)
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return Response{}, err
	}

	switch resp.SW >> 8 {
	case 0x6C:
		cmd.Ne = int(resp.SW & 0xFF)
		if cmd.Ne == 0 {
			cmd.Ne = maxShortLe
		}
		return transmit(ctx, ex, cmd)
	case 0x61:
		data := resp.Data
		for resp.SW>>8 == 0x61 {
			ne := int(resp.SW & 0xFF)
			if ne == 0 {
				ne = maxShortLe
			}
			raw, err = ex.Exchange(ctx, Command{CLA: claISO, INS: insGetResponse, Ne: ne}.Bytes())
			if err != nil {
				return Response{}, fmt.Errorf("exchange GET RESPONSE: %w", err)
			}
			if resp, err = ParseResponse(raw); err != nil {
				return Response{}, err
			}
			data = append(data, resp.Data...)
		}
		resp.Data = data
	}
	return resp, nil
}
