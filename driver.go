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

// Package tapurl reads the URL stored on an NFC Type 4 tag and hands it to
// the system browser.
//
// All reader access goes through the Driver interface. Backends live in
// their own packages (pcsc, pn532) and share the Type 4 command set in
// package type4, so the hardware boundary never leaks into the session flow.
package tapurl

import (
	"context"
	"fmt"
)

// Driver is the reader capability table: one method per driver operation.
// Non-zero driver statuses are reported as *StatusError.
type Driver interface {
	// Open connects to the reader and activates the tag in its field.
	Open(ctx context.Context) error

	// Close releases the reader. It is safe to call after a failed Open.
	Close() error

	// CardType reports the family of the activated card.
	CardType(ctx context.Context) (CardType, error)

	// SetGlobalParameters selects the file, key and communication mode used
	// by subsequent file operations.
	SetGlobalParameters(fileNo, keyNo byte, mode CommMode) error

	// LinearRead reads length bytes starting at offset from the selected file.
	LinearRead(ctx context.Context, offset, length uint16, auth AuthMode, keyIndex byte) ([]byte, error)

	// StatusText translates a driver status into a human-readable string.
	StatusText(status Status) string
}

// CommMode is the secure messaging mode for file access.
type CommMode byte

const (
	CommModePlain CommMode = 0x00
	CommModeMAC   CommMode = 0x01
	CommModeFull  CommMode = 0x03
)

func (m CommMode) String() string {
	switch m {
	case CommModePlain:
		return "plain"
	case CommModeMAC:
		return "mac"
	case CommModeFull:
		return "full"
	default:
		return fmt.Sprintf("CommMode(0x%02X)", byte(m))
	}
}

// ParseCommMode accepts the names returned by CommMode.String.
func ParseCommMode(s string) (CommMode, error) {
	switch s {
	case "plain", "":
		return CommModePlain, nil
	case "mac":
		return CommModeMAC, nil
	case "full":
		return CommModeFull, nil
	default:
		return 0, fmt.Errorf("%w: unknown communication mode %q", ErrInvalidParameter, s)
	}
}

// AuthMode selects how a linear read authenticates against the tag.
type AuthMode byte

const (
	// AuthWithoutPassword reads files whose read key grants free access.
	AuthWithoutPassword AuthMode = 0x60
	// AuthProvidedKey authenticates with a key passed by the caller.
	AuthProvidedKey AuthMode = 0x80
	// AuthReaderKey authenticates with a key stored in the reader.
	AuthReaderKey AuthMode = 0x02
)

// KeyFreeAccess is the NTAG 424 access-rights value meaning "no key needed".
const KeyFreeAccess byte = 0x0E

// CardType is the card family reported by Driver.CardType.
type CardType int

const (
	CardTypeUnknown CardType = iota
	CardTypeType4
	CardTypeDESFire
	CardTypeNTAG424DNA
	CardTypeNTAG424DNATT
)

func (c CardType) String() string {
	switch c {
	case CardTypeType4:
		return "ISO 14443-4 Type 4"
	case CardTypeDESFire:
		return "MIFARE DESFire"
	case CardTypeNTAG424DNA:
		return "NTAG 424 DNA"
	case CardTypeNTAG424DNATT:
		return "NTAG 424 DNA TagTamper"
	default:
		return "Unknown"
	}
}
