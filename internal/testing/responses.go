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

package testing

// PN532 response builders. Each returns the response data after the TFI,
// starting with the response code.

// DefaultFirmware is IC, version, revision and support of a PN532 v1.6.
var DefaultFirmware = []byte{0x32, 0x01, 0x06, 0x07}

// DefaultATS is the ATS of an NTAG 424 DNA, including its length byte.
var DefaultATS = []byte{0x06, 0x77, 0x77, 0x71, 0x02, 0x80}

// BuildFirmwareVersionResponse creates a GetFirmwareVersion response.
func BuildFirmwareVersionResponse(fw []byte) []byte {
	return append([]byte{0x03}, fw...)
}

// BuildSAMConfigurationResponse creates a SAMConfiguration response.
func BuildSAMConfigurationResponse() []byte {
	return []byte{0x15}
}

// BuildTargetResponse creates an InListPassiveTarget response announcing
// one Type A target. selRes 0x20 marks ISO 14443-4 support.
func BuildTargetResponse(uid []byte, selRes byte, ats []byte) []byte {
	res := make([]byte, 0, 7+len(uid)+len(ats))
	res = append(res, 0x4B, 0x01, 0x01, 0x03, 0x44, selRes, byte(len(uid)))
	res = append(res, uid...)
	return append(res, ats...)
}

// BuildNoTagResponse creates an empty InListPassiveTarget response.
func BuildNoTagResponse() []byte {
	return []byte{0x4B, 0x00}
}

// BuildDataExchangeResponse creates a successful InDataExchange response.
func BuildDataExchangeResponse(data []byte) []byte {
	res := make([]byte, 0, 2+len(data))
	res = append(res, 0x41, 0x00)
	return append(res, data...)
}

// BuildStatusResponse creates a response carrying only a status byte.
func BuildStatusResponse(cmd, status byte) []byte {
	return []byte{cmd + 1, status}
}
