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

// Package bootstrap runs the front-end start-up sequence: wait for the host
// to become ready, initialise the authentication context, then refresh the
// displayed balance.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/tapurl/internal/log"
)

var (
	ErrNoAuthenticator = errors.New("no authenticator constructor")
	ErrNoBalance       = errors.New("no balance refresher")
)

// Authenticator is the authentication context built during start-up.
type Authenticator interface {
	Init(ctx context.Context) error
}

// BalanceRefresher fetches and displays the current balance.
type BalanceRefresher interface {
	Refresh(ctx context.Context) error
}

// Ready returns a channel that is already closed, for hosts that are ready
// before Run is called.
func Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Run waits for ready (nil means ready now), builds the authenticator with
// newAuth, initialises it and refreshes the balance. Steps run strictly in
// order and the first failure stops the sequence.
func Run(
	ctx context.Context,
	ready <-chan struct{},
	newAuth func() Authenticator,
	balance BalanceRefresher,
) error {
	if newAuth == nil {
		return ErrNoAuthenticator
	}
	if balance == nil {
		return ErrNoBalance
	}

	if ready != nil {
		log.Debugf("waiting for host ready signal")
		select {
		case <-ready:
		case <-ctx.Done():
			return fmt.Errorf("waiting for ready: %w", ctx.Err())
		}
	}

	auth := newAuth()
	if auth == nil {
		return ErrNoAuthenticator
	}
	if err := auth.Init(ctx); err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	log.Debugf("auth initialised")

	if err := balance.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh balance: %w", err)
	}
	return nil
}

// Start is the top-level entry point: it runs the sequence and logs any
// failure. The error is returned for callers that need an exit status.
func Start(
	ctx context.Context,
	ready <-chan struct{},
	newAuth func() Authenticator,
	balance BalanceRefresher,
) error {
	err := Run(ctx, ready, newAuth, balance)
	if err != nil {
		log.WithError(err).Error("bootstrap failed")
	}
	return err
}
