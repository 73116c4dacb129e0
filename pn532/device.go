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

package pn532

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ansel1/merry/v2"
)

// SAM modes for SAMConfiguration.
const (
	SAMModeNormal byte = 0x01
)

// baudRate106TypeA selects ISO 14443 Type A targets in InListPassiveTarget.
const baudRate106TypeA = 0x00

// selResISODEP is the SEL_RES bit announcing ISO 14443-4 support.
const selResISODEP = 0x20

// FirmwareVersion is the GetFirmwareVersion response.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f *FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Target is a card activated by InListPassiveTarget.
type Target struct {
	UID    []byte
	ATS    []byte
	SENS   [2]byte
	Number byte
	SELRes byte
}

// ISODEP reports whether the target speaks ISO 14443-4.
func (t *Target) ISODEP() bool {
	return t.SELRes&selResISODEP != 0
}

// Device issues PN532 commands over a Transport.
type Device struct {
	transport Transport
}

// New returns a Device on t.
func New(t Transport) *Device {
	return &Device{transport: t}
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

func deferWrap(err *error) {
	if err != nil && *err != nil {
		*err = merry.WrapSkipping(*err, 1)
	}
}

// send runs cmd and checks the response code.
func (d *Device) send(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	res, err := d.transport.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0] != cmd+1 {
		return nil, fmt.Errorf("%w to command 0x%02X: % X", ErrUnexpectedResponse, cmd, res)
	}
	return res[1:], nil
}

// GetFirmwareVersion identifies the chip.
func (d *Device) GetFirmwareVersion(ctx context.Context) (_ *FirmwareVersion, err error) {
	defer deferWrap(&err)

	res, err := d.send(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}
	if len(res) < 4 {
		return nil, fmt.Errorf("%w: firmware version is %d bytes", ErrUnexpectedResponse, len(res))
	}
	return &FirmwareVersion{IC: res[0], Version: res[1], Revision: res[2], Support: res[3]}, nil
}

// SAMConfiguration puts the PN532 in normal mode, which must happen once
// after power-up before it will talk to cards.
func (d *Device) SAMConfiguration(ctx context.Context) (err error) {
	defer deferWrap(&err)

	// Timeout 0x14 is 50ms units (1s); use the IRQ pin.
	_, err = d.send(ctx, cmdSAMConfiguration, []byte{SAMModeNormal, 0x14, 0x01})
	return err
}

// InListPassiveTarget activates one Type A target at 106 kbps. It returns
// ErrNoTarget when the field is empty.
func (d *Device) InListPassiveTarget(ctx context.Context) (_ *Target, err error) {
	defer deferWrap(&err)

	res, err := d.send(ctx, cmdInListPassiveTarget, []byte{0x01, baudRate106TypeA})
	if err != nil {
		return nil, err
	}
	log.Debugf("InListPassiveTarget response: % X", res)
	return parseTarget(res)
}

// parseTarget decodes NbTg, Tg, SENS_RES, SEL_RES, NFCIDLength, NFCID1 and
// the optional ATS.
func parseTarget(res []byte) (*Target, error) {
	if len(res) == 0 || res[0] == 0 {
		return nil, ErrNoTarget
	}
	if len(res) < 6 {
		return nil, fmt.Errorf("%w: target data is %d bytes", ErrUnexpectedResponse, len(res))
	}

	t := &Target{
		Number: res[1],
		SENS:   [2]byte{res[2], res[3]},
		SELRes: res[4],
	}
	uidLen := int(res[5])
	off := 6
	if off+uidLen > len(res) {
		return nil, fmt.Errorf("%w: UID length %d exceeds response", ErrUnexpectedResponse, uidLen)
	}
	t.UID = append([]byte(nil), res[off:off+uidLen]...)
	off += uidLen

	if off < len(res) {
		atsLen := int(res[off])
		if atsLen == 0 || off+atsLen > len(res) {
			return nil, fmt.Errorf("%w: ATS length %d exceeds response", ErrUnexpectedResponse, atsLen)
		}
		t.ATS = append([]byte(nil), res[off:off+atsLen]...)
	}
	return t, nil
}

// InDataExchange sends data to target tg and returns the card's answer.
func (d *Device) InDataExchange(ctx context.Context, tg byte, data []byte) (_ []byte, err error) {
	defer deferWrap(&err)

	res, err := d.send(ctx, cmdInDataExchange, append([]byte{tg}, data...))
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: missing InDataExchange status", ErrUnexpectedResponse)
	}
	if status := res[0] & 0x3F; status != 0 {
		return nil, &Error{Command: "InDataExchange", Code: status}
	}
	return res[1:], nil
}

// InRelease deselects target tg; 0 releases all targets.
func (d *Device) InRelease(ctx context.Context, tg byte) (err error) {
	defer deferWrap(&err)

	res, err := d.send(ctx, cmdInRelease, []byte{tg})
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return fmt.Errorf("%w: missing InRelease status", ErrUnexpectedResponse)
	}
	if status := res[0] & 0x3F; status != 0 {
		return &Error{Command: "InRelease", Code: status}
	}
	return nil
}
