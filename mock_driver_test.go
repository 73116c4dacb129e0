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

import (
	"context"
	"sync"
)

// mockDriver records every call and returns scripted results.
type mockDriver struct {
	openErr   error
	closeErr  error
	paramsErr error
	readErr   error
	cardErr   error
	data      []byte
	calls     []string
	cardType  CardType
	mu        sync.Mutex
}

func (m *mockDriver) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockDriver) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockDriver) Open(context.Context) error {
	m.record("Open")
	return m.openErr
}

func (m *mockDriver) Close() error {
	m.record("Close")
	return m.closeErr
}

func (m *mockDriver) CardType(context.Context) (CardType, error) {
	m.record("CardType")
	return m.cardType, m.cardErr
}

func (m *mockDriver) SetGlobalParameters(byte, byte, CommMode) error {
	m.record("SetGlobalParameters")
	return m.paramsErr
}

func (m *mockDriver) LinearRead(context.Context, uint16, uint16, AuthMode, byte) ([]byte, error) {
	m.record("LinearRead")
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data, nil
}

func (*mockDriver) StatusText(s Status) string {
	return "mock: " + s.String()
}

type recordingOpener struct {
	err  error
	urls []string
}

func (o *recordingOpener) Open(_ context.Context, url string) error {
	o.urls = append(o.urls, url)
	return o.err
}

// uriFile returns a 200 byte NDEF file holding one abbreviated URI record.
func uriFile(code byte, rest string) []byte {
	buf := make([]byte, DefaultReadLength)
	rec := append([]byte{0xD1, 0x01, byte(len(rest) + 1), 'U', code}, rest...)
	buf[1] = byte(len(rec))
	copy(buf[2:], rec)
	return buf
}
