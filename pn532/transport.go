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

// Package pn532 drives NXP PN532 reader modules as a Type 4 tag link. The
// PN532 wraps card APDUs in InDataExchange, so the card protocol itself is
// handled by package type4.
package pn532

import "context"

// Transport carries PN532 commands. Implementations frame cmd and args,
// wait for the ACK and return the response data after the TFI, so the first
// byte is the response code (cmd + 1).
type Transport interface {
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)
	Close() error
	Type() TransportType
}

// TransportType names a transport implementation.
type TransportType string

const (
	TransportUART TransportType = "uart"
	TransportI2C  TransportType = "i2c"
	TransportSPI  TransportType = "spi"
	TransportMock TransportType = "mock"
)

// Command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// Command codes exported for simulators and tests.
const (
	CmdGetFirmwareVersion  = cmdGetFirmwareVersion
	CmdSAMConfiguration    = cmdSAMConfiguration
	CmdInDataExchange      = cmdInDataExchange
	CmdInListPassiveTarget = cmdInListPassiveTarget
	CmdInRelease           = cmdInRelease
)
