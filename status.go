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

package tapurl

import "fmt"

// Status is the integer result of a driver call. Zero means success.
type Status int

const (
	StatusOK                   Status = 0x00
	StatusCommunicationError   Status = 0x01
	StatusChecksumError        Status = 0x02
	StatusReadingError         Status = 0x03
	StatusBufferOverflow       Status = 0x05
	StatusMaxAddressExceeded   Status = 0x06
	StatusNoCard               Status = 0x08
	StatusCommandNotSupported  Status = 0x09
	StatusAuthError            Status = 0x0E
	StatusParametersError      Status = 0x0F
	StatusTimeout              Status = 0x50
	StatusReaderNotFound       Status = 0x51
	StatusReaderOpeningError   Status = 0x52
	StatusReaderNotOpened      Status = 0x53
	StatusFileNotFound         Status = 0x60
	StatusSecurityNotSatisfied Status = 0x61
	StatusUnsupportedCard      Status = 0x62
	StatusApplicationNotFound  Status = 0x63
	StatusCardProtocolError    Status = 0x64
)

var statusNames = map[Status]string{
	StatusOK:                   "OK",
	StatusCommunicationError:   "COMMUNICATION_ERROR",
	StatusChecksumError:        "CHECKSUM_ERROR",
	StatusReadingError:         "READING_ERROR",
	StatusBufferOverflow:       "BUFFER_OVERFLOW",
	StatusMaxAddressExceeded:   "MAX_ADDRESS_EXCEEDED",
	StatusNoCard:               "NO_CARD",
	StatusCommandNotSupported:  "COMMAND_NOT_SUPPORTED",
	StatusAuthError:            "AUTH_ERROR",
	StatusParametersError:      "PARAMETERS_ERROR",
	StatusTimeout:              "TIMEOUT",
	StatusReaderNotFound:       "READER_NOT_FOUND",
	StatusReaderOpeningError:   "READER_OPENING_ERROR",
	StatusReaderNotOpened:      "READER_NOT_OPENED",
	StatusFileNotFound:         "FILE_NOT_FOUND",
	StatusSecurityNotSatisfied: "SECURITY_STATUS_NOT_SATISFIED",
	StatusUnsupportedCard:      "UNSUPPORTED_CARD_TYPE",
	StatusApplicationNotFound:  "APPLICATION_NOT_FOUND",
	StatusCardProtocolError:    "CARD_PROTOCOL_ERROR",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_STATUS_0x%02X", int(s))
}

// OK reports whether s is the success status.
func (s Status) OK() bool {
	return s == StatusOK
}
