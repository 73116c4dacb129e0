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

package uart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/type4"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// knownBridges are USB-serial VID:PIDs commonly fitted to PN532 boards.
var knownBridges = map[string]string{
	"067B:2303": "Prolific PL2303",
	"0403:6001": "FTDI FT232",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "QinHeng CH340",
}

// PortInfo describes a candidate serial port.
type PortInfo struct {
	Name   string
	VIDPID string
	Bridge string
	USB    bool
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// DetectPorts lists USB serial ports, known PN532 bridges first. Ports
// without USB details are skipped since probing arbitrary serial devices
// can upset them.
func DetectPorts() ([]PortInfo, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var ports []PortInfo
	for _, d := range details {
		if d == nil || !d.IsUSB {
			continue
		}
		vidpid := strings.ToUpper(d.VID + ":" + d.PID)
		ports = append(ports, PortInfo{
			Name:   d.Name,
			VIDPID: vidpid,
			Bridge: knownBridges[vidpid],
			USB:    true,
		})
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].Bridge != "" && ports[j].Bridge == ""
	})
	return ports, nil
}

// Opener returns a pn532.Opener for device. An empty device selects the
// first detected port.
func Opener(device string) pn532.Opener {
	return func(ctx context.Context) (pn532.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := device
		if name == "" {
			ports, err := DetectPorts()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", type4.ErrReaderNotFound, err)
			}
			if len(ports) == 0 {
				return nil, fmt.Errorf("%w: no USB serial ports", type4.ErrReaderNotFound)
			}
			name = ports[0].Name
			log.Debugf("using serial port %s (%s %s)", name, ports[0].VIDPID, ports[0].Bridge)
		}
		t, err := New(name)
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("%w: %w", type4.ErrReaderNotFound, err)
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
