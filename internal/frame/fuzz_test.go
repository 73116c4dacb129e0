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

package frame

import (
	"testing"
)

// FuzzParse feeds arbitrary bytes to the frame decoder. Clone chips and
// noisy serial lines deliver garbage, so Parse must never panic and must
// never report consuming more than it was given.
//
// Run with: go test -fuzz=FuzzParse -fuzztime=30s ./internal/frame/
func FuzzParse(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x28, 0x00})
	f.Add(AckFrame)
	f.Add(NackFrame)
	f.Add([]byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00})
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xFF})
	f.Add([]byte{0x00, 0xFF, 0x00, 0x00, 0x00})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x02, 0x00, 0xD5, 0x03})

	f.Fuzz(func(t *testing.T, buf []byte) {
		fr, n, err := Parse(buf)
		if n < 0 || n > len(buf) {
			t.Fatalf("consumed %d of %d bytes", n, len(buf))
		}
		if err == nil && fr.Kind == KindData && len(fr.Data) > len(buf) {
			t.Fatalf("data longer than input")
		}
	})
}

// FuzzBuildParse checks that every command frame Build produces is
// accepted by Parse once its TFI is flipped to the response direction.
func FuzzBuildParse(f *testing.F) {
	f.Add(byte(0x4A), []byte{0x01, 0x00})
	f.Add(byte(0x40), []byte{0x01, 0x00, 0xA4, 0x04, 0x00})
	f.Add(byte(0x02), []byte{})

	f.Fuzz(func(t *testing.T, cmd byte, args []byte) {
		if len(args) > MaxDataLength-2 {
			args = args[:MaxDataLength-2]
		}
		resp, err := BuildResponse(append([]byte{cmd + 1}, args...))
		if err != nil {
			t.Fatalf("BuildResponse: %v", err)
		}
		fr, n, err := Parse(resp)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if n != len(resp) || fr.Kind != KindData || len(fr.Data) != len(args)+1 {
			t.Fatalf("got kind %v, %d data bytes, consumed %d of %d", fr.Kind, len(fr.Data), n, len(resp))
		}
	})
}
