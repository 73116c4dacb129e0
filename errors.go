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
	"errors"
	"fmt"
)

var (
	ErrReaderClosed     = errors.New("reader is closed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoURL            = errors.New("tag carries no URL")
)

// StatusError is a non-zero driver status together with the operation that
// produced it and the driver's description.
type StatusError struct {
	Err    error  // Underlying cause, if any (e.g. an APDU status word)
	Op     string // Driver operation, e.g. "LinearRead"
	Text   string // Driver-provided description
	Status Status
}

func (e *StatusError) Error() string {
	text := e.Text
	if text == "" {
		text = e.Status.String()
	}
	msg := fmt.Sprintf("%s: %s (0x%02X)", e.Op, text, int(e.Status))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a StatusError. It returns nil for StatusOK so driver
// code can return its result directly.
func NewStatusError(op string, status Status, cause error) error {
	if status.OK() {
		return nil
	}
	return &StatusError{Op: op, Status: status, Text: status.String(), Err: cause}
}

// StatusOf extracts the driver status carried by err. A nil error is
// StatusOK; an error without a status is StatusCommunicationError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusCommunicationError
}

// IsStatus reports whether err carries the given driver status.
func IsStatus(err error, status Status) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// describe fills in the driver's own text for a status error.
func describe(drv Driver, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		if text := drv.StatusText(se.Status); text != "" {
			se.Text = text
		}
	}
	return err
}
