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

// Package sdm computes the Secure Dynamic Messaging MAC an NTAG 424 DNA
// mirrors into its URL on every read, so a backend can be loaded with the
// values a given tag will produce.
package sdm

import (
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aead/cmac"
)

const (
	UIDLength  = 7
	KeyLength  = 16
	MACLength  = 8
	MaxCounter = 0xFFFFFF
)

var (
	ErrUIDLength    = errors.New("sdm: UID must be 7 bytes")
	ErrKeyLength    = errors.New("sdm: key must be 16 bytes")
	ErrCounterRange = errors.New("sdm: counter out of range")
)

// sv2Prefix starts the session vector for KSesSDMFileReadMAC.
var sv2Prefix = []byte{0x3C, 0xC3, 0x00, 0x01, 0x00, 0x80}

// SessionVector builds SV2: prefix, UID, then the 24-bit read counter
// least significant byte first.
func SessionVector(uid []byte, counter uint32) ([]byte, error) {
	if len(uid) != UIDLength {
		return nil, fmt.Errorf("%w: got %d", ErrUIDLength, len(uid))
	}
	if counter > MaxCounter {
		return nil, fmt.Errorf("%w: %d", ErrCounterRange, counter)
	}

	sv := make([]byte, 0, aes.BlockSize)
	sv = append(sv, sv2Prefix...)
	sv = append(sv, uid...)
	var ctr [4]byte
	binary.LittleEndian.PutUint32(ctr[:], counter)
	return append(sv, ctr[:3]...), nil
}

// MAC returns the 8-byte SDMMAC for a read of the tag identified by uid at
// counter. input is the mirrored data between SDMMACInputOffset and
// SDMMACOffset; it is empty when both offsets point at the MAC itself.
func MAC(key, uid []byte, counter uint32, input []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	sv, err := SessionVector(uid, counter)
	if err != nil {
		return nil, err
	}

	sessionKey, err := aesCMAC(key, sv)
	if err != nil {
		return nil, err
	}
	full, err := aesCMAC(sessionKey, input)
	if err != nil {
		return nil, err
	}
	return Truncate(full), nil
}

// Truncate keeps the odd-indexed bytes of a 16-byte CMAC.
func Truncate(full []byte) []byte {
	out := make([]byte, 0, len(full)/2)
	for i := 1; i < len(full); i += 2 {
		out = append(out, full[i])
	}
	return out
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	sum, err := cmac.Sum(msg, block, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("cmac: %w", err)
	}
	return sum, nil
}

// ParseHex decodes a hex string, ignoring ':' and whitespace separators.
func ParseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', ' ', '\t', '-':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("sdm: decode hex: %w", err)
	}
	return b, nil
}

// FormatCounter renders counter the way the tag mirrors it: six uppercase
// hex digits, most significant first.
func FormatCounter(counter uint32) string {
	return fmt.Sprintf("%06X", counter)
}
