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

package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Offsets into a Type 4 NDEF file that holds a single short URI record.
// The file starts with the 2-byte NLEN field, followed by the record.
const (
	NLENSize            = 2
	HeaderOffset        = 2
	TypeLengthOffset    = 3
	PayloadLengthOffset = 4
	TypeOffset          = 5
	URICodeOffset       = 6
	URIOffset           = 7
)

var (
	ErrFileTooShort = errors.New("ndef: file shorter than URI record header")
	ErrEmptyPayload = errors.New("ndef: record payload is empty")
	ErrNotURIRecord = errors.New("ndef: record is not a well-known URI record")
)

// ExtractURIPayload returns the URI bytes of the record in buf: N is read
// from offset 4 and the result is exactly buf[7 : 7+N-1]. The identifier
// code byte at offset 6 is counted in N but not returned.
func ExtractURIPayload(buf []byte) ([]byte, error) {
	if len(buf) < URIOffset {
		return nil, fmt.Errorf("%w: have %d bytes", ErrFileTooShort, len(buf))
	}

	n := int(buf[PayloadLengthOffset])
	if n == 0 {
		return nil, ErrEmptyPayload
	}

	end := URIOffset + n - 1
	if end > len(buf) {
		return nil, fmt.Errorf("%w: payload length %d needs %d bytes, have %d",
			ErrTruncatedRecord, n, end, len(buf))
	}
	return buf[URIOffset:end], nil
}

// URIView is a parsed view over the URI record at the start of an NDEF file.
type URIView struct {
	URI           string
	Raw           []byte
	PayloadLength int
	Code          byte
}

// ParseURIFile validates the record header in buf and returns the URI it
// carries, with the identifier code expanded.
func ParseURIFile(buf []byte) (*URIView, error) {
	raw, err := ExtractURIPayload(buf)
	if err != nil {
		return nil, err
	}

	hdr := buf[HeaderOffset]
	if hdr&tnfMask != TNFWellKnown || hdr&FlagSR == 0 || hdr&FlagIL != 0 ||
		buf[TypeLengthOffset] != 1 || buf[TypeOffset] != URIType[0] {
		return nil, fmt.Errorf("%w: header 0x%02X type 0x%02X", ErrNotURIRecord, hdr, buf[TypeOffset])
	}

	uri, err := ExpandURI(buf[URICodeOffset], raw)
	if err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, ErrEmptyPayload
	}

	return &URIView{
		URI:           uri,
		Raw:           raw,
		PayloadLength: int(buf[PayloadLengthOffset]),
		Code:          buf[URICodeOffset],
	}, nil
}

// DecodeFile decodes the NLEN-prefixed message stored in a Type 4 NDEF file.
func DecodeFile(buf []byte) (*Message, error) {
	if len(buf) < NLENSize {
		return nil, ErrFileTooShort
	}
	nlen := int(binary.BigEndian.Uint16(buf))
	if nlen == 0 {
		return nil, ErrEmptyMessage
	}
	if NLENSize+nlen > len(buf) {
		return nil, fmt.Errorf("%w: NLEN %d exceeds %d available bytes",
			ErrTruncatedRecord, nlen, len(buf)-NLENSize)
	}
	return Parse(buf[NLENSize : NLENSize+nlen])
}

// EncodeFile prefixes the encoded message with its NLEN field.
func EncodeFile(m *Message) ([]byte, error) {
	body, err := m.Bytes()
	if err != nil {
		return nil, err
	}
	if len(body) > 0xFFFF {
		return nil, fmt.Errorf("ndef: message of %d bytes does not fit NLEN", len(body))
	}
	out := make([]byte, NLENSize, NLENSize+len(body))
	//nolint:gosec // bounded above
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	return append(out, body...), nil
}
