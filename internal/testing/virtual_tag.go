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

// Package testing provides a virtual NTAG 424 DNA tag and a simulated PN532
// transport for exercising the Type 4 driver and reader backends without
// hardware.
package testing

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/ZaparooProject/tapurl/pkg/ndef"
	"github.com/ZaparooProject/tapurl/type4"
)

// NDEFFileSize is the size of the NTAG 424 DNA NDEF file.
const NDEFFileSize = 256

// Version frames returned by GetVersion on an NTAG 424 DNA.
var (
	NTAG424Version = []byte{
		0x04, 0x04, 0x02, 0x30, 0x00, 0x11, 0x05, // hardware
		0x04, 0x04, 0x02, 0x01, 0x02, 0x11, 0x05, // software
		0x04, 0x96, 0x8C, 0xAA, 0x5C, 0x5E, 0x80, // UID
		0xCF, 0x39, 0xC3, 0x50, 0x70, 0x43, 0x21, // batch, week, year
	}

	// TestUID is the UID reported by the virtual tag.
	TestUID = []byte{0x04, 0x96, 0x8C, 0xAA, 0x5C, 0x5E, 0x80}
)

// capabilityContainer describes the E104 NDEF file (free read, free write)
// and the E105 proprietary file.
var capabilityContainer = []byte{
	0x00, 0x17, 0x20, 0x01, 0x00, 0x00, 0xFF,
	0x04, 0x06, 0xE1, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x06, 0xE1, 0x05, 0x00, 0x80, 0x82, 0x83,
}

// VirtualNTAG424 is an APDU-level NTAG 424 DNA. It implements both
// type4.Exchanger and type4.Link.
type VirtualNTAG424 struct {
	files       map[uint16][]byte
	protected   map[uint16]bool
	exchangeErr error
	Version     []byte
	UID         []byte
	log         [][]byte
	mu          syncutil.Mutex
	selected    uint16
	versionStep int
	Connects    int
	Disconnects int
	appSelected bool
	Present     bool
	connected   bool
}

var (
	_ type4.Exchanger = (*VirtualNTAG424)(nil)
	_ type4.Link      = (*VirtualNTAG424)(nil)
)

// NewVirtualNTAG424 returns a present tag whose NDEF file holds a single URI
// record for uri. An empty uri leaves the NDEF file zeroed.
func NewVirtualNTAG424(uri string) *VirtualNTAG424 {
	v := &VirtualNTAG424{
		files: map[uint16][]byte{
			type4.FileIDCapabilityContainer: append([]byte(nil), capabilityContainer...),
			type4.FileIDNDEF:                make([]byte, NDEFFileSize),
			type4.FileIDProprietary:         make([]byte, 128),
		},
		protected: map[uint16]bool{type4.FileIDProprietary: true},
		Version:   NTAG424Version,
		UID:       TestUID,
		Present:   true,
	}
	if uri != "" {
		// Setup data is well-formed.
		_ = v.SetURI(uri)
	}
	return v
}

// SetURI replaces the NDEF file contents with a URI record.
func (v *VirtualNTAG424) SetURI(uri string) error {
	data, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord(uri)))
	if err != nil {
		return err
	}
	return v.SetNDEFFile(data)
}

// SetNDEFFile writes raw bytes at the start of the NDEF file.
func (v *VirtualNTAG424) SetNDEFFile(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(data) > NDEFFileSize {
		return fmt.Errorf("NDEF file data too large: %d bytes", len(data))
	}
	file := make([]byte, NDEFFileSize)
	copy(file, data)
	v.files[type4.FileIDNDEF] = file
	return nil
}

// SetFile replaces a whole file, changing its size.
func (v *VirtualNTAG424) SetFile(fid uint16, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[fid] = append([]byte(nil), data...)
}

// RemoveFile deletes a file so SELECT reports it missing.
func (v *VirtualNTAG424) RemoveFile(fid uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.files, fid)
}

// Protect makes reads of fid fail with "security status not satisfied".
func (v *VirtualNTAG424) Protect(fid uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.protected[fid] = true
}

// FailExchange makes every following exchange return err. Nil restores
// normal operation.
func (v *VirtualNTAG424) FailExchange(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exchangeErr = err
}

// Commands returns a copy of every command APDU received.
func (v *VirtualNTAG424) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.log))
	for i, c := range v.log {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// CountINS counts received commands with the given instruction byte.
func (v *VirtualNTAG424) CountINS(ins byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, c := range v.log {
		if len(c) > 1 && c[1] == ins {
			n++
		}
	}
	return n
}

// Connected reports whether a Connect is outstanding.
func (v *VirtualNTAG424) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// Connect activates the tag.
func (v *VirtualNTAG424) Connect(ctx context.Context) (type4.Exchanger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Connects++
	if !v.Present {
		return nil, type4.ErrNoCard
	}
	v.connected = true
	v.appSelected = false
	v.selected = 0
	return v, nil
}

// Disconnect deactivates the tag.
func (v *VirtualNTAG424) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Disconnects++
	v.connected = false
	return nil
}

// Exchange processes one command APDU.
func (v *VirtualNTAG424) Exchange(ctx context.Context, capdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.log = append(v.log, append([]byte(nil), capdu...))
	if v.exchangeErr != nil {
		return nil, v.exchangeErr
	}
	if !v.Present {
		return nil, type4.ErrNoCard
	}
	if len(capdu) < 4 {
		return sw(type4.SWWrongLength), nil
	}

	cla, ins, p1, p2 := capdu[0], capdu[1], capdu[2], capdu[3]
	data, le := splitBody(capdu[4:])

	switch {
	case cla == 0x00 && ins == 0xA4:
		return v.handleSelect(p1, p2, data), nil
	case cla == 0x00 && ins == 0xB0:
		return v.handleReadBinary(int(p1)<<8|int(p2), le), nil
	case cla == 0x90 && (ins == 0x60 || ins == 0xAF):
		return v.handleGetVersion(ins), nil
	case cla == 0x90:
		return sw(type4.SWNativeIllegalCmd), nil
	default:
		return sw(type4.SWInsNotSupported), nil
	}
}

func (v *VirtualNTAG424) handleSelect(p1, p2 byte, data []byte) []byte {
	switch {
	case p1 == 0x04 && bytes.Equal(data, type4.NDEFApplicationName):
		v.appSelected = true
		v.selected = 0
		return sw(type4.SWSuccess)
	case p1 == 0x04:
		return sw(type4.SWFileNotFound)
	case p1 == 0x00 && p2 == 0x0C && len(data) == 2:
		fid := uint16(data[0])<<8 | uint16(data[1])
		if _, ok := v.files[fid]; !ok || !v.appSelected {
			return sw(type4.SWFileNotFound)
		}
		v.selected = fid
		return sw(type4.SWSuccess)
	default:
		return sw(type4.SWIncorrectP1P2)
	}
}

func (v *VirtualNTAG424) handleReadBinary(offset, le int) []byte {
	file, ok := v.files[v.selected]
	if !ok || v.selected == 0 {
		return sw(0x6986)
	}
	if v.protected[v.selected] {
		return sw(type4.SWSecurityNotSatisfied)
	}
	if offset >= len(file) {
		return sw(type4.SWWrongP1P2)
	}
	if le <= 0 {
		le = 256
	}
	end := min(offset+le, len(file))
	out := append([]byte(nil), file[offset:end]...)
	if end-offset < le {
		return append(out, sw(type4.SWEndOfFile)...)
	}
	return append(out, sw(type4.SWSuccess)...)
}

func (v *VirtualNTAG424) handleGetVersion(ins byte) []byte {
	if len(v.Version) < 21 {
		return sw(type4.SWNativeIllegalCmd)
	}
	if ins == 0x60 {
		v.versionStep = 0
	} else if v.versionStep == 0 {
		return sw(type4.SWNativeIllegalCmd)
	}

	var frame []byte
	status := type4.SWNativeMoreFrames
	switch v.versionStep {
	case 0:
		frame = v.Version[0:7]
	case 1:
		frame = v.Version[7:14]
	default:
		frame = v.Version[14:]
		status = type4.SWNativeOK
	}
	v.versionStep++
	if status == type4.SWNativeOK {
		v.versionStep = 0
	}
	return append(append([]byte(nil), frame...), sw(status)...)
}

// splitBody splits the APDU body after the header into data and Le.
func splitBody(body []byte) (data []byte, le int) {
	switch {
	case len(body) == 0:
		return nil, -1
	case len(body) == 1:
		return nil, int(body[0])
	}
	lc := int(body[0])
	if 1+lc > len(body) {
		return body[1:], -1
	}
	data = body[1 : 1+lc]
	if len(body) > 1+lc {
		return data, int(body[1+lc])
	}
	return data, -1
}

func sw(word uint16) []byte {
	return []byte{byte(word >> 8), byte(word)}
}
