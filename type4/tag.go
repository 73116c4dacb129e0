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

// Package type4 implements the NFC Forum Type 4 tag command set (ISO 7816-4
// APDUs) as used by NTAG 424 DNA, and a tapurl.Driver built on it. Reader
// backends only have to provide an Exchanger.
package type4

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/tapurl"
	"github.com/ansel1/merry/v2"
)

// NDEFApplicationName is the DF name of the NDEF tag application.
var NDEFApplicationName = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// NTAG 424 DNA standard file identifiers.
const (
	FileIDCapabilityContainer uint16 = 0xE103
	FileIDNDEF                uint16 = 0xE104
	FileIDProprietary         uint16 = 0xE105
)

// DefaultMaxRead is the largest READ BINARY chunk requested at once. It
// keeps responses inside a single PN532 frame.
const DefaultMaxRead = 128

var ErrUnknownFile = errors.New("type4: unknown file number")

// FileID maps an NTAG 424 file number to its ISO file identifier.
func FileID(fileNo byte) (uint16, error) {
	switch fileNo {
	case 1:
		return FileIDCapabilityContainer, nil
	case 2:
		return FileIDNDEF, nil
	case 3:
		return FileIDProprietary, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFile, fileNo)
	}
}

func deferWrap(err *error) {
	if err != nil && *err != nil {
		*err = merry.WrapSkipping(*err, 1)
	}
}

// Tag issues Type 4 commands over an Exchanger.
type Tag struct {
	ex      Exchanger
	maxRead int
}

// NewTag wraps ex. maxRead <= 0 selects DefaultMaxRead.
func NewTag(ex Exchanger, maxRead int) *Tag {
	if maxRead <= 0 || maxRead > maxShortLe {
		maxRead = DefaultMaxRead
	}
	return &Tag{ex: ex, maxRead: maxRead}
}

func (t *Tag) run(ctx context.Context, op string, cmd Command) (_ Response, err error) {
	defer deferWrap(&err)

	resp, err := transmit(ctx, t.ex, cmd)
	if err != nil {
		return Response{}, err
	}
	if !resp.OK() && resp.SW != SWEndOfFile {
		return resp, &APDUError{Op: op, SW: resp.SW}
	}
	return resp, nil
}

// SelectNDEFApplication selects the NDEF application by DF name.
func (t *Tag) SelectNDEFApplication(ctx context.Context) error {
	_, err := t.run(ctx, "select NDEF application", Command{
		CLA: claISO, INS: insSelect, P1: 0x04, P2: 0x00, Data: NDEFApplicationName, Ne: maxShortLe,
	})
	return err
}

// SelectFile selects an elementary file by identifier, without FCI.
func (t *Tag) SelectFile(ctx context.Context, fid uint16) error {
	_, err := t.run(ctx, fmt.Sprintf("select file %04X", fid), Command{
		CLA: claISO, INS: insSelect, P1: 0x00, P2: 0x0C, Data: []byte{byte(fid >> 8), byte(fid)},
	})
	return err
}

// ReadBinary reads up to length bytes from the selected file starting at
// offset, in chunks of at most maxRead bytes. It stops early when the tag
// reports the end of the file.
func (t *Tag) ReadBinary(ctx context.Context, offset, length uint16) (_ []byte, err error) {
	defer deferWrap(&err)

	out := make([]byte, 0, length)
	pos := int(offset)
	end := int(offset) + int(length)
	for pos < end {
		if pos > 0x7FFF {
			return out, &APDUError{Op: "read binary", SW: SWWrongP1P2}
		}
		n := min(end-pos, t.maxRead)
		resp, err := t.run(ctx, fmt.Sprintf("read binary @%d", pos), Command{
			CLA: claISO, INS: insReadBinary, P1: byte(pos >> 8), P2: byte(pos), Ne: n,
		})
		if err != nil {
			// Past-the-end reads after some data is an end of file.
			if len(out) > 0 && IsSW(err, SWWrongP1P2) {
				return out, nil
			}
			return out, err
		}
		out = append(out, resp.Data...)
		pos += len(resp.Data)
		if resp.SW == SWEndOfFile || len(resp.Data) < n {
			break
		}
	}
	if len(out) > int(length) {
		out = out[:length]
	}
	return out, nil
}

// GetVersion runs the native GetVersion command and returns the
// concatenated hardware, software and production frames.
func (t *Tag) GetVersion(ctx context.Context) (_ []byte, err error) {
	defer deferWrap(&err)

	var version []byte
	cmd := Command{CLA: claNative, INS: insGetVersion, Ne: maxShortLe}
	for range 3 {
		resp, err := transmit(ctx, t.ex, cmd)
		if err != nil {
			return nil, err
		}
		version = append(version, resp.Data...)
		switch resp.SW {
		case SWNativeMoreFrames:
			cmd = Command{CLA: claNative, INS: insAdditional, Ne: maxShortLe}
		case SWNativeOK:
			return version, nil
		default:
			return nil, &APDUError{Op: "get version", SW: resp.SW}
		}
	}
	return nil, &APDUError{Op: "get version", SW: SWNativeMoreFrames}
}

// ClassifyVersion maps a GetVersion response to a card type.
func ClassifyVersion(v []byte) tapurl.CardType {
	if len(v) < 3 || v[0] != 0x04 {
		return tapurl.CardTypeType4
	}
	switch v[1] {
	case 0x01, 0x81:
		return tapurl.CardTypeDESFire
	case 0x04:
		switch v[2] {
		case 0x02:
			return tapurl.CardTypeNTAG424DNA
		case 0x08:
			return tapurl.CardTypeNTAG424DNATT
		}
	}
	return tapurl.CardTypeType4
}
