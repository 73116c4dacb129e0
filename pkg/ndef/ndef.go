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

// Package ndef decodes and encodes NFC Forum NDEF messages as they are
// stored in the NDEF file of a Type 4 tag.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00
	TNFWellKnown   byte = 0x01
	TNFMedia       byte = 0x02
	TNFAbsoluteURI byte = 0x03
	TNFExternal    byte = 0x04
	TNFUnknown     byte = 0x05
	TNFUnchanged   byte = 0x06
	TNFReserved    byte = 0x07
)

// Record header flag bits.
const (
	FlagMB byte = 0x80 // message begin
	FlagME byte = 0x40 // message end
	FlagCF byte = 0x20 // chunk
	FlagSR byte = 0x10 // short record
	FlagIL byte = 0x08 // ID length present

	tnfMask     byte = 0x07
	shortMaxLen      = 255
)

var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
)

// Record is a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
}

// Message is an ordered list of records. The MB/ME flags are derived from
// the position of each record when encoding.
type Message struct {
	Records []Record
}

// NewMessage builds a message from the given records.
func NewMessage(records ...Record) *Message {
	return &Message{Records: records}
}

// Bytes encodes the message.
func (m *Message) Bytes() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	last := len(m.Records) - 1
	for i := range m.Records {
		var flags byte
		if i == 0 {
			flags |= FlagMB
		}
		if i == last {
			flags |= FlagME
		}
		enc, err := m.Records[i].encode(flags)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, enc...)
	}
	return out, nil
}

func (r *Record) encode(flags byte) ([]byte, error) {
	if r.TNF > TNFReserved {
		return nil, ErrInvalidTNF
	}

	flags |= r.TNF & tnfMask
	short := len(r.Payload) <= shortMaxLen
	if short {
		flags |= FlagSR
	}
	if r.ID != "" {
		flags |= FlagIL
	}

	out := []byte{flags, byte(len(r.Type))}
	if short {
		out = append(out, byte(len(r.Payload)))
	} else {
		//nolint:gosec // length comes from len() and is bounded by the 4-byte field
		out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		out = append(out, byte(len(r.ID)))
	}
	out = append(out, r.Type...)
	out = append(out, r.ID...)
	out = append(out, r.Payload...)
	return out, nil
}

// Parse decodes every record up to and including the one flagged ME.
func Parse(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &Message{}
	off := 0
	for off < len(data) {
		rec, flags, n, err := decodeRecord(data[off:])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", off, err)
		}
		msg.Records = append(msg.Records, rec)
		off += n
		if flags&FlagME != 0 {
			break
		}
	}
	return msg, nil
}

func decodeRecord(data []byte) (rec Record, flags byte, n int, err error) {
	if len(data) < 3 {
		return rec, 0, 0, ErrTruncatedRecord
	}

	flags = data[0]
	if flags&FlagCF != 0 {
		return rec, flags, 0, ErrChunkedRecord
	}
	rec.TNF = flags & tnfMask
	if rec.TNF > TNFUnchanged {
		return rec, flags, 0, ErrInvalidTNF
	}

	typeLen := int(data[1])
	off := 2

	var payloadLen int
	if flags&FlagSR != 0 {
		payloadLen = int(data[off])
		off++
	} else {
		if off+4 > len(data) {
			return rec, flags, 0, ErrTruncatedRecord
		}
		payloadLen = int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
	}

	var idLen int
	if flags&FlagIL != 0 {
		if off >= len(data) {
			return rec, flags, 0, ErrTruncatedRecord
		}
		idLen = int(data[off])
		off++
	}

	if payloadLen < 0 || off+typeLen+idLen+payloadLen > len(data) {
		return rec, flags, 0, ErrTruncatedRecord
	}

	rec.Type = string(data[off : off+typeLen])
	off += typeLen
	rec.ID = string(data[off : off+idLen])
	off += idLen
	if payloadLen > 0 {
		rec.Payload = append([]byte(nil), data[off:off+payloadLen]...)
	}
	off += payloadLen

	return rec, flags, off, nil
}
