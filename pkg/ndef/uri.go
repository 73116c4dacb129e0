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
	"errors"
	"strings"
)

// URIType is the well-known type of a URI record.
const URIType = "U"

var ErrInvalidPrefixCode = errors.New("ndef: invalid URI identifier code")

// uriPrefixes is the URI identifier code table from the NFC Forum URI RTD.
// Code 0x00 means the URI is stored without abbreviation.
var uriPrefixes = [...]string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// ExpandURI joins the prefix named by code with rest. Invalid UTF-8 in rest
// is replaced with U+FFFD.
func ExpandURI(code byte, rest []byte) (string, error) {
	if int(code) >= len(uriPrefixes) {
		return "", ErrInvalidPrefixCode
	}
	return uriPrefixes[code] + strings.ToValidUTF8(string(rest), "\uFFFD"), nil
}

// CompressURI splits uri into the identifier code of its longest known
// prefix and the remainder.
func CompressURI(uri string) (code byte, rest string) {
	best := 0
	for i := 1; i < len(uriPrefixes); i++ {
		p := uriPrefixes[i]
		if strings.HasPrefix(uri, p) && len(p) > len(uriPrefixes[best]) {
			best = i
		}
	}
	return byte(best), uri[len(uriPrefixes[best]):]
}

// NewURIRecord builds a well-known URI record, abbreviating the URI when a
// prefix from the identifier table matches.
func NewURIRecord(uri string) Record {
	code, rest := CompressURI(uri)
	payload := make([]byte, 0, 1+len(rest))
	payload = append(payload, code)
	payload = append(payload, rest...)
	return Record{TNF: TNFWellKnown, Type: URIType, Payload: payload}
}

// URI returns the expanded URI of a well-known URI record.
func (r *Record) URI() (string, error) {
	if r.TNF != TNFWellKnown || r.Type != URIType {
		return "", ErrNotURIRecord
	}
	if len(r.Payload) == 0 {
		return "", ErrEmptyPayload
	}
	return ExpandURI(r.Payload[0], r.Payload[1:])
}
