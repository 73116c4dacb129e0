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

package type4

import (
	"context"
	"errors"

	"github.com/ZaparooProject/tapurl"
)

// Errors a Link reports from Connect or Exchange. Backends wrap them so the
// driver can pick the matching status.
var (
	ErrReaderNotFound  = errors.New("type4: reader not found")
	ErrNoCard          = errors.New("type4: no card in field")
	ErrUnsupportedCard = errors.New("type4: card does not support ISO 14443-4")
)

// Link is the backend half of a Driver: it reaches the reader and activates
// the card in its field.
type Link interface {
	// Connect opens the reader and activates a card, returning the channel
	// used to exchange APDUs with it.
	Connect(ctx context.Context) (Exchanger, error)
	// Disconnect releases the card and the reader. It must be safe to call
	// when Connect failed or was never called.
	Disconnect() error
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxRead caps the READ BINARY chunk size.
func WithMaxRead(n int) Option {
	return func(d *Driver) {
		d.maxRead = n
	}
}

// Driver implements tapurl.Driver for Type 4 tags reachable through a Link.
// Only plain communication with the free-access key is supported.
type Driver struct {
	link    Link
	tag     *Tag
	maxRead int
	fileNo  byte
	keyNo   byte
	mode    tapurl.CommMode
	params  bool
}

var _ tapurl.Driver = (*Driver)(nil)

// NewDriver returns a Driver over link.
func NewDriver(link Link, opts ...Option) *Driver {
	d := &Driver{link: link, maxRead: DefaultMaxRead}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open connects the link and selects the NDEF application.
func (d *Driver) Open(ctx context.Context) error {
	ex, err := d.link.Connect(ctx)
	if err != nil {
		status := tapurl.StatusReaderOpeningError
		switch {
		case isContextErr(err):
			status = tapurl.StatusTimeout
		case errors.Is(err, ErrReaderNotFound):
			status = tapurl.StatusReaderNotFound
		case errors.Is(err, ErrNoCard):
			status = tapurl.StatusNoCard
		case errors.Is(err, ErrUnsupportedCard):
			status = tapurl.StatusUnsupportedCard
		}
		return tapurl.NewStatusError("Open", status, err)
	}

	tag := NewTag(ex, d.maxRead)
	if err := tag.SelectNDEFApplication(ctx); err != nil {
		return d.fail("Open", err, tapurl.StatusApplicationNotFound)
	}
	d.tag = tag
	return nil
}

// Close disconnects the link.
func (d *Driver) Close() error {
	d.tag = nil
	d.params = false
	if err := d.link.Disconnect(); err != nil {
		return tapurl.NewStatusError("Close", tapurl.StatusCommunicationError, err)
	}
	return nil
}

// CardType classifies the card from its GetVersion response. Cards that do
// not implement the native command are plain Type 4 tags.
func (d *Driver) CardType(ctx context.Context) (tapurl.CardType, error) {
	if d.tag == nil {
		return tapurl.CardTypeUnknown, tapurl.NewStatusError("CardType", tapurl.StatusReaderNotOpened, nil)
	}
	v, err := d.tag.GetVersion(ctx)
	if err != nil {
		if IsSW(err, SWClaNotSupported) || IsSW(err, SWInsNotSupported) || IsSW(err, SWNativeIllegalCmd) {
			return tapurl.CardTypeType4, nil
		}
		return tapurl.CardTypeUnknown, d.fail("CardType", err, tapurl.StatusFileNotFound)
	}
	return ClassifyVersion(v), nil
}

// SetGlobalParameters records the file, key and mode for later reads.
func (d *Driver) SetGlobalParameters(fileNo, keyNo byte, mode tapurl.CommMode) error {
	const op = "SetGlobalParameters"
	if d.tag == nil {
		return tapurl.NewStatusError(op, tapurl.StatusReaderNotOpened, nil)
	}
	if _, err := FileID(fileNo); err != nil {
		return tapurl.NewStatusError(op, tapurl.StatusParametersError, err)
	}
	if keyNo > KeyMax {
		return tapurl.NewStatusError(op, tapurl.StatusParametersError, nil)
	}
	if mode != tapurl.CommModePlain {
		return tapurl.NewStatusError(op, tapurl.StatusCommandNotSupported, nil)
	}
	d.fileNo, d.keyNo, d.mode = fileNo, keyNo, mode
	d.params = true
	return nil
}

// KeyMax is the highest access-rights value a key number can carry.
const KeyMax byte = 0x0F

// LinearRead selects the configured file and reads length bytes from
// offset. A file shorter than the request yields the bytes up to its end.
func (d *Driver) LinearRead(
	ctx context.Context, offset, length uint16, auth tapurl.AuthMode, _ byte,
) ([]byte, error) {
	const op = "LinearRead"
	switch {
	case d.tag == nil:
		return nil, tapurl.NewStatusError(op, tapurl.StatusReaderNotOpened, nil)
	case !d.params || length == 0:
		return nil, tapurl.NewStatusError(op, tapurl.StatusParametersError, nil)
	case d.keyNo != tapurl.KeyFreeAccess || auth != tapurl.AuthWithoutPassword:
		return nil, tapurl.NewStatusError(op, tapurl.StatusAuthError, nil)
	}

	fid, _ := FileID(d.fileNo)
	if err := d.tag.SelectFile(ctx, fid); err != nil {
		return nil, d.fail(op, err, tapurl.StatusFileNotFound)
	}
	data, err := d.tag.ReadBinary(ctx, offset, length)
	if err != nil {
		return nil, d.fail(op, err, tapurl.StatusFileNotFound)
	}
	return data, nil
}

var statusTexts = map[tapurl.Status]string{
	tapurl.StatusCommunicationError:   "communication with the reader failed",
	tapurl.StatusMaxAddressExceeded:   "read past the end of the file",
	tapurl.StatusNoCard:               "no card in the reader field",
	tapurl.StatusCommandNotSupported:  "command not supported by this driver or card",
	tapurl.StatusAuthError:            "authentication required",
	tapurl.StatusParametersError:      "invalid parameters",
	tapurl.StatusTimeout:              "operation timed out",
	tapurl.StatusReaderNotFound:       "reader not found",
	tapurl.StatusReaderOpeningError:   "could not open reader",
	tapurl.StatusReaderNotOpened:      "reader not opened",
	tapurl.StatusFileNotFound:         "file not found",
	tapurl.StatusUnsupportedCard:      "card is not an ISO 14443-4 tag",
	tapurl.StatusSecurityNotSatisfied: "security status not satisfied",
	tapurl.StatusApplicationNotFound:  "NDEF application not found",
	tapurl.StatusCardProtocolError:    "card returned an error status",
}

// StatusText describes status in words.
func (*Driver) StatusText(status tapurl.Status) string {
	if text, ok := statusTexts[status]; ok {
		return text
	}
	return status.String()
}

// fail converts a command error to a status error. notFound is the status
// used for 6A82, which means a missing application on SELECT by name and a
// missing file everywhere else.
func (*Driver) fail(op string, err error, notFound tapurl.Status) error {
	status := tapurl.StatusCommunicationError
	var ae *APDUError
	switch {
	case isContextErr(err):
		status = tapurl.StatusTimeout
	case errors.Is(err, ErrNoCard):
		status = tapurl.StatusNoCard
	case errors.As(err, &ae):
		status = statusForSW(ae.SW, notFound)
	}
	return tapurl.NewStatusError(op, status, err)
}

func statusForSW(sw uint16, notFound tapurl.Status) tapurl.Status {
	switch sw {
	case SWFileNotFound:
		return notFound
	case SWSecurityNotSatisfied, SWNativePermission:
		return tapurl.StatusSecurityNotSatisfied
	case SWIncorrectP1P2, SWWrongLength, SWWrongData:
		return tapurl.StatusParametersError
	case SWWrongP1P2:
		return tapurl.StatusMaxAddressExceeded
	case SWInsNotSupported, SWClaNotSupported, SWNativeIllegalCmd:
		return tapurl.StatusCommandNotSupported
	case SWNativeAuthError:
		return tapurl.StatusAuthError
	default:
		return tapurl.StatusCardProtocolError
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
