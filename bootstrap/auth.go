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

package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
	"github.com/google/uuid"
)

// DefaultSessionHeader carries the session id on outgoing requests.
const DefaultSessionHeader = "X-Session-Id"

var ErrNotInitialized = errors.New("auth not initialised")

// RequestDecorator adds credentials to an outgoing request.
type RequestDecorator interface {
	Decorate(req *http.Request) error
}

// SessionAuth is an Authenticator holding a per-run session id.
type SessionAuth struct {
	// NewID mints session ids. Defaults to uuid.New.
	NewID  func() uuid.UUID
	Header string
	id     uuid.UUID
	mu     syncutil.Mutex
}

var (
	_ Authenticator    = (*SessionAuth)(nil)
	_ RequestDecorator = (*SessionAuth)(nil)
)

// NewSessionAuth returns an uninitialised SessionAuth.
func NewSessionAuth() *SessionAuth {
	return &SessionAuth{Header: DefaultSessionHeader}
}

// Init mints a fresh session id.
func (a *SessionAuth) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	newID := a.NewID
	if newID == nil {
		newID = uuid.New
	}

	a.mu.Lock()
	a.id = newID()
	id := a.id
	a.mu.Unlock()

	log.WithFields(log.Fields{"session": id.String()}).Debug("session started")
	return nil
}

// SessionID returns the current id, or "" before Init.
func (a *SessionAuth) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == uuid.Nil {
		return ""
	}
	return a.id.String()
}

// Decorate sets the session header on req.
func (a *SessionAuth) Decorate(req *http.Request) error {
	id := a.SessionID()
	if id == "" {
		return ErrNotInitialized
	}
	header := a.Header
	if header == "" {
		header = DefaultSessionHeader
	}
	req.Header.Set(header, id)
	return nil
}
