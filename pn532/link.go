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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/type4"
)

const (
	// releaseTimeout bounds the InRelease sent while disconnecting.
	releaseTimeout = time.Second

	// DefaultPollInterval is the pause between target detections when
	// polling is enabled.
	DefaultPollInterval = 250 * time.Millisecond
)

// Opener creates the transport when a Link connects.
type Opener func(ctx context.Context) (Transport, error)

// Link is a type4.Link over a PN532. Connect opens the transport,
// configures the SAM and activates the first ISO 14443-4 target.
type Link struct {
	open         Opener
	dev          *Device
	target       *Target
	pollInterval time.Duration
}

var _ type4.Link = (*Link)(nil)

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithPolling makes Connect keep looking for a target every interval until
// one enters the field or the context ends. A non-positive interval
// selects DefaultPollInterval.
func WithPolling(interval time.Duration) LinkOption {
	return func(l *Link) {
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		l.pollInterval = interval
	}
}

// NewLink returns a Link that opens its transport with open.
func NewLink(open Opener, opts ...LinkOption) *Link {
	l := &Link{open: open}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect implements type4.Link.
func (l *Link) Connect(ctx context.Context) (type4.Exchanger, error) {
	t, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.dev = New(t)

	if err := l.dev.SAMConfiguration(ctx); err != nil {
		return nil, fmt.Errorf("SAM configuration: %w", err)
	}
	fw, err := l.dev.GetFirmwareVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("firmware version: %w", err)
	}
	log.Debugf("connected to %s over %s", fw, t.Type())

	target, err := l.detect(ctx)
	if errors.Is(err, ErrNoTarget) {
		return nil, fmt.Errorf("%w: %w", type4.ErrNoCard, err)
	}
	if err != nil {
		return nil, fmt.Errorf("target detection: %w", err)
	}
	log.Debugf("target %d UID % X SEL_RES 0x%02X", target.Number, target.UID, target.SELRes)
	if !target.ISODEP() {
		return nil, fmt.Errorf("%w: %w", type4.ErrUnsupportedCard, ErrNotISODEP)
	}
	l.target = target
	return &exchanger{dev: l.dev, tg: target.Number}, nil
}

// detect lists a passive target, polling while the field is empty when
// polling is enabled.
func (l *Link) detect(ctx context.Context) (*Target, error) {
	for {
		target, err := l.dev.InListPassiveTarget(ctx)
		if !errors.Is(err, ErrNoTarget) || l.pollInterval <= 0 {
			return target, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// Disconnect releases the target and closes the transport.
func (l *Link) Disconnect() error {
	if l.dev == nil {
		return nil
	}
	if l.target != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		if err := l.dev.InRelease(ctx, l.target.Number); err != nil {
			log.Debugf("InRelease: %v", err)
		}
		cancel()
	}
	err := l.dev.Transport().Close()
	l.dev, l.target = nil, nil
	return err
}

// Target returns the activated target, or nil.
func (l *Link) Target() *Target {
	return l.target
}

type exchanger struct {
	dev *Device
	tg  byte
}

func (e *exchanger) Exchange(ctx context.Context, capdu []byte) ([]byte, error) {
	res, err := e.dev.InDataExchange(ctx, e.tg, capdu)
	var pe *Error
	if errors.As(err, &pe) && pe.CardGone() {
		return nil, fmt.Errorf("%w: %w", type4.ErrNoCard, err)
	}
	return res, err
}
