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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds a balance fetch when the client has none.
const DefaultRequestTimeout = 10 * time.Second

var (
	ErrBadStatus   = errors.New("unexpected HTTP status")
	ErrBadBalance  = errors.New("malformed balance response")
	ErrNoEndpoint  = errors.New("no balance endpoint configured")
	errNoDecorator = errors.New("no request decorator")
)

// Display shows the formatted balance.
type Display interface {
	ShowBalance(text string) error
}

// WriterDisplay prints the balance as a line on W (stdout when nil).
type WriterDisplay struct {
	W io.Writer
}

func (d WriterDisplay) ShowBalance(text string) error {
	w := d.W
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintf(w, "Balance: %s\n", text)
	return err
}

// Balance is the JSON document served by the balance endpoint.
type Balance struct {
	Balance json.Number `json:"balance"`
	Unit    string      `json:"unit,omitempty"`
}

// String formats the balance with thousands separators and its unit.
func (b Balance) String() string {
	s := groupDigits(b.Balance.String())
	if b.Unit == "" {
		return s
	}
	return s + " " + b.Unit
}

// HTTPBalance fetches the balance from URL and shows it on Display.
type HTTPBalance struct {
	Client  *http.Client
	Auth    RequestDecorator
	Display Display
	URL     string
}

var _ BalanceRefresher = (*HTTPBalance)(nil)

// Fetch retrieves the balance without displaying it.
func (h *HTTPBalance) Fetch(ctx context.Context) (Balance, error) {
	if h.URL == "" {
		return Balance{}, ErrNoEndpoint
	}
	if h.Auth == nil {
		return Balance{}, errNoDecorator
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, http.NoBody)
	if err != nil {
		return Balance{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := h.Auth.Decorate(req); err != nil {
		return Balance{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Balance{}, fmt.Errorf("fetch balance: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Balance{}, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	var b Balance
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return Balance{}, fmt.Errorf("%w: %w", ErrBadBalance, err)
	}
	if _, err := b.Balance.Int64(); err != nil {
		return Balance{}, fmt.Errorf("%w: balance %q is not an integer", ErrBadBalance, b.Balance)
	}
	return b, nil
}

// Refresh fetches the balance and shows it.
func (h *HTTPBalance) Refresh(ctx context.Context) error {
	b, err := h.Fetch(ctx)
	if err != nil {
		return err
	}
	display := h.Display
	if display == nil {
		display = WriterDisplay{}
	}
	return display.ShowBalance(b.String())
}

func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
