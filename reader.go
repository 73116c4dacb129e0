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

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/internal/syncutil"
)

// Reader is an open connection to a driver. The caller owns it and must
// Close it; the driver's Close runs exactly once per Reader.
type Reader struct {
	drv     Driver
	release *syncutil.Release
}

// OpenReader opens drv. When Open fails the driver is closed before
// returning, so a failed open still releases whatever it acquired.
func OpenReader(ctx context.Context, drv Driver) (*Reader, error) {
	if err := drv.Open(ctx); err != nil {
		err = describe(drv, err)
		if cerr := drv.Close(); cerr != nil {
			log.Debugf("close after failed open: %v", cerr)
		}
		return nil, err
	}
	return &Reader{drv: drv, release: syncutil.NewRelease(drv.Close)}, nil
}

// Close releases the reader. Later calls return the first call's result.
func (r *Reader) Close() error {
	return r.release.Do()
}

// CardType queries the card family.
func (r *Reader) CardType(ctx context.Context) (CardType, error) {
	if r.release.Done() {
		return CardTypeUnknown, ErrReaderClosed
	}
	ct, err := r.drv.CardType(ctx)
	return ct, describe(r.drv, err)
}

// SetGlobalParameters forwards to the driver.
func (r *Reader) SetGlobalParameters(fileNo, keyNo byte, mode CommMode) error {
	if r.release.Done() {
		return ErrReaderClosed
	}
	return describe(r.drv, r.drv.SetGlobalParameters(fileNo, keyNo, mode))
}

// LinearRead forwards to the driver.
func (r *Reader) LinearRead(ctx context.Context, offset, length uint16, auth AuthMode, keyIndex byte) ([]byte, error) {
	if r.release.Done() {
		return nil, ErrReaderClosed
	}
	data, err := r.drv.LinearRead(ctx, offset, length, auth, keyIndex)
	return data, describe(r.drv, err)
}
