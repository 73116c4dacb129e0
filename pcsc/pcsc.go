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

// Package pcsc reaches Type 4 tags through a PC/SC reader (ACR122U, uFR in
// PC/SC mode and similar CCID devices) via github.com/ebfe/scard.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/type4"
	"github.com/ansel1/merry/v2"
	"github.com/ebfe/scard"
)

// waitSlice bounds each GetStatusChange call while waiting for a card.
const waitSlice = 250 * time.Millisecond

// Options configures a Link.
type Options struct {
	// Reader selects the reader by index ("0") or by case-insensitive
	// substring of its name. Empty picks the first reader.
	Reader string
	// WaitForCard keeps polling until a card is presented or the context
	// ends, instead of failing when the field is empty.
	WaitForCard bool
}

// Link is a type4.Link over PC/SC.
type Link struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
	opts   Options
}

var _ type4.Link = (*Link)(nil)

// NewLink returns a Link using opts.
func NewLink(opts Options) *Link {
	return &Link{opts: opts}
}

func deferWrap(err *error) {
	if err != nil && *err != nil {
		*err = merry.WrapSkipping(*err, 1)
	}
}

// Connect establishes a PC/SC context, picks the reader and connects to the
// card in shared mode.
func (l *Link) Connect(ctx context.Context) (_ type4.Exchanger, err error) {
	defer deferWrap(&err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("%w: EstablishContext: %w", type4.ErrReaderNotFound, err)
	}
	l.ctx = sc

	readers, err := sc.ListReaders()
	if err != nil && !errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, fmt.Errorf("list readers: %w", err)
	}
	reader, err := PickReader(readers, l.opts.Reader)
	if err != nil {
		return nil, err
	}
	l.reader = reader
	log.Debugf("using PC/SC reader %q", reader)

	if l.opts.WaitForCard {
		if err := l.waitForCard(ctx); err != nil {
			return nil, err
		}
	}

	card, err := sc.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return nil, classify(fmt.Errorf("connect %q: %w", reader, err))
	}
	l.card = card
	return &exchanger{card: card}, nil
}

// waitForCard blocks until the reader reports a card or ctx ends.
func (l *Link) waitForCard(ctx context.Context) error {
	states := []scard.ReaderState{{Reader: l.reader, CurrentState: scard.StateUnaware}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.ctx.GetStatusChange(states, waitSlice)
		switch {
		case errors.Is(err, scard.ErrTimeout):
			continue
		case err != nil:
			return fmt.Errorf("wait for card: %w", err)
		}
		if states[0].EventState&scard.StatePresent != 0 {
			return nil
		}
		states[0].CurrentState = states[0].EventState &^ scard.StateChanged
	}
}

// Disconnect leaves the card powered and releases the context.
func (l *Link) Disconnect() error {
	var errs []error
	if l.card != nil {
		if err := l.card.Disconnect(scard.LeaveCard); err != nil {
			errs = append(errs, fmt.Errorf("disconnect card: %w", err))
		}
		l.card = nil
	}
	if l.ctx != nil {
		if err := l.ctx.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release context: %w", err))
		}
		l.ctx = nil
	}
	return errors.Join(errs...)
}

// Reader returns the name of the reader in use.
func (l *Link) Reader() string {
	return l.reader
}

type exchanger struct {
	card *scard.Card
}

func (e *exchanger) Exchange(ctx context.Context, capdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := e.card.Transmit(capdu)
	if err != nil {
		return nil, classify(fmt.Errorf("transmit: %w", err))
	}
	return res, nil
}

// classify marks card-gone and reader-gone errors with the type4 sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, scard.ErrNoSmartcard),
		errors.Is(err, scard.ErrRemovedCard),
		errors.Is(err, scard.ErrUnpoweredCard),
		errors.Is(err, scard.ErrResetCard):
		return fmt.Errorf("%w: %w", type4.ErrNoCard, err)
	case errors.Is(err, scard.ErrUnknownReader),
		errors.Is(err, scard.ErrReaderUnavailable),
		errors.Is(err, scard.ErrNoReadersAvailable):
		return fmt.Errorf("%w: %w", type4.ErrReaderNotFound, err)
	default:
		return err
	}
}

// PickReader selects a reader by index or name substring.
func PickReader(readers []string, want string) (string, error) {
	if len(readers) == 0 {
		return "", fmt.Errorf("%w: no PC/SC readers", type4.ErrReaderNotFound)
	}
	if want == "" {
		return readers[0], nil
	}
	if idx, err := strconv.Atoi(want); err == nil {
		if idx < 0 || idx >= len(readers) {
			return "", fmt.Errorf("%w: reader index %d out of range (0..%d)",
				type4.ErrReaderNotFound, idx, len(readers)-1)
		}
		return readers[idx], nil
	}
	lower := strings.ToLower(want)
	for _, r := range readers {
		if strings.Contains(strings.ToLower(r), lower) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: no reader matching %q among %q", type4.ErrReaderNotFound, want, readers)
}
