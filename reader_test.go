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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	drv := &mockDriver{closeErr: errors.New("busy")}
	r, err := OpenReader(context.Background(), drv)
	require.NoError(t, err)

	assert.EqualError(t, r.Close(), "busy")
	assert.EqualError(t, r.Close(), "busy")
	assert.Equal(t, 1, drv.count("Close"))
}

func TestReaderRejectsUseAfterClose(t *testing.T) {
	t.Parallel()

	drv := &mockDriver{}
	r, err := OpenReader(context.Background(), drv)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.CardType(context.Background())
	require.ErrorIs(t, err, ErrReaderClosed)
	require.ErrorIs(t, r.SetGlobalParameters(2, KeyFreeAccess, CommModePlain), ErrReaderClosed)
	_, err = r.LinearRead(context.Background(), 0, 16, AuthWithoutPassword, 0)
	require.ErrorIs(t, err, ErrReaderClosed)

	assert.Equal(t, []string{"Open", "Close"}, drv.calls)
}

func TestOpenReaderFailureClosesDriver(t *testing.T) {
	t.Parallel()

	drv := &mockDriver{openErr: NewStatusError("Open", StatusReaderNotFound, nil)}
	r, err := OpenReader(context.Background(), drv)

	assert.Nil(t, r)
	require.Error(t, err)
	assert.Equal(t, "Open: mock: READER_NOT_FOUND (0x51)", err.Error())
	assert.Equal(t, []string{"Open", "Close"}, drv.calls)
}

func TestReaderTranslatesStatus(t *testing.T) {
	t.Parallel()

	cause := errors.New("SW 6982")
	drv := &mockDriver{readErr: NewStatusError("LinearRead", StatusSecurityNotSatisfied, cause)}
	r, err := OpenReader(context.Background(), drv)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.LinearRead(context.Background(), 0, 200, AuthWithoutPassword, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "LinearRead: mock: SECURITY_STATUS_NOT_SATISFIED (0x61): SW 6982", err.Error())
}
