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

package pn532_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/tapurl"
	testutil "github.com/ZaparooProject/tapurl/internal/testing"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://zaparoo.org/t/abc"

func newLink(sim *testutil.VirtualPN532) (*pn532.Link, *testutil.SimulatorTransport) {
	st := testutil.NewSimulatorTransport(sim)
	return pn532.NewLink(func(context.Context) (pn532.Transport, error) { return st, nil }), st
}

func TestLink_ReadURL(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG424(testURL)
	sim := testutil.NewVirtualPN532(tag)
	link, st := newLink(sim)

	url, err := tapurl.ReadURL(context.Background(), type4.NewDriver(link), tapurl.DefaultSessionConfig())
	require.NoError(t, err)
	assert.Equal(t, testURL, url)

	assert.Equal(t, 1, sim.CommandCount(pn532.CmdSAMConfiguration))
	assert.Equal(t, 1, sim.CommandCount(pn532.CmdInListPassiveTarget))
	assert.Equal(t, 1, sim.CommandCount(pn532.CmdInRelease))
	assert.Positive(t, sim.CommandCount(pn532.CmdInDataExchange))
	assert.Equal(t, 1, st.Closed)
	assert.False(t, tag.Connected())
}

func TestLink_ConnectReportsTarget(t *testing.T) {
	t.Parallel()

	link, _ := newLink(testutil.NewVirtualPN532(testutil.NewVirtualNTAG424(testURL)))
	_, err := link.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = link.Disconnect() })

	target := link.Target()
	require.NotNil(t, target)
	assert.Equal(t, testutil.TestUID, target.UID)
	assert.True(t, target.ISODEP())
}

func TestLink_EmptyField(t *testing.T) {
	t.Parallel()

	link, st := newLink(testutil.NewVirtualPN532(nil))
	drv := type4.NewDriver(link)

	_, err := tapurl.ReadURL(context.Background(), drv, tapurl.DefaultSessionConfig())
	require.Error(t, err)
	assert.True(t, tapurl.IsStatus(err, tapurl.StatusNoCard))
	assert.ErrorIs(t, err, pn532.ErrNoTarget)
	assert.Equal(t, 1, st.Closed)
}

func TestLink_NotISODEP(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(testutil.NewVirtualNTAG424(testURL))
	sim.SELRes = 0x00
	link, _ := newLink(sim)

	err := type4.NewDriver(link).Open(context.Background())
	assert.True(t, tapurl.IsStatus(err, tapurl.StatusUnsupportedCard))
	assert.ErrorIs(t, err, pn532.ErrNotISODEP)
	require.NoError(t, link.Disconnect())
}

func TestLink_CardRemovedMidRead(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(testutil.NewVirtualNTAG424(testURL))
	link, _ := newLink(sim)
	drv := type4.NewDriver(link)
	require.NoError(t, drv.Open(context.Background()))
	t.Cleanup(func() { _ = drv.Close() })

	require.NoError(t, drv.SetGlobalParameters(2, tapurl.KeyFreeAccess, tapurl.CommModePlain))
	sim.FailCommand(pn532.CmdInDataExchange, 0x2B)

	_, err := drv.LinearRead(context.Background(), 0, 200, tapurl.AuthWithoutPassword, 0)
	assert.True(t, tapurl.IsStatus(err, tapurl.StatusNoCard))
	var pe *pn532.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0x2B), pe.Code)
	assert.Contains(t, pe.Error(), "card disappeared")
}

func TestLink_OpenerError(t *testing.T) {
	t.Parallel()

	link := pn532.NewLink(func(context.Context) (pn532.Transport, error) {
		return nil, errors.Join(type4.ErrReaderNotFound, errors.New("no serial ports"))
	})
	err := type4.NewDriver(link).Open(context.Background())
	assert.True(t, tapurl.IsStatus(err, tapurl.StatusReaderNotFound))
	require.NoError(t, link.Disconnect())
}

func TestLink_DisconnectWithoutConnect(t *testing.T) {
	t.Parallel()

	link, st := newLink(testutil.NewVirtualPN532(nil))
	require.NoError(t, link.Disconnect())
	assert.Zero(t, st.Closed)
}

func TestLink_PollsUntilTargetArrives(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(testutil.NewVirtualNTAG424(testURL))
	sim.FailCommand(pn532.CmdInListPassiveTarget, testutil.StatusTimeout)
	st := testutil.NewSimulatorTransport(sim)
	link := pn532.NewLink(func(context.Context) (pn532.Transport, error) { return st, nil },
		pn532.WithPolling(5*time.Millisecond))

	go func() {
		time.Sleep(30 * time.Millisecond)
		sim.FailCommand(pn532.CmdInListPassiveTarget, testutil.StatusOK)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := link.Connect(ctx)
	require.NoError(t, err)
	assert.Greater(t, sim.CommandCount(pn532.CmdInListPassiveTarget), 1)
	require.NoError(t, link.Disconnect())
}

func TestLink_PollingStopsWithContext(t *testing.T) {
	t.Parallel()

	st := testutil.NewSimulatorTransport(testutil.NewVirtualPN532(nil))
	link := pn532.NewLink(func(context.Context) (pn532.Transport, error) { return st, nil },
		pn532.WithPolling(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := link.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, link.Disconnect())
	assert.Equal(t, 1, st.Closed)
}
