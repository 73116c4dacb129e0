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
	"fmt"

	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/pkg/ndef"
)

// DefaultReadLength is the size of the single linear read.
const DefaultReadLength = 200

// URLOpener receives the URL read from the tag.
type URLOpener interface {
	Open(ctx context.Context, url string) error
}

// SessionConfig holds the tag-access parameters for one read.
type SessionConfig struct {
	Offset      uint16
	Length      uint16
	FileNo      byte
	KeyNo       byte
	KeyIndex    byte
	CommMode    CommMode
	AuthMode    AuthMode
	DumpRecords bool
}

// DefaultSessionConfig reads the NDEF file (file 2) of an NTAG 424 with the
// free-access key in plain mode.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Offset:   0,
		Length:   DefaultReadLength,
		FileNo:   2,
		KeyNo:    KeyFreeAccess,
		CommMode: CommModePlain,
		AuthMode: AuthWithoutPassword,
		KeyIndex: 0,
	}
}

// Validate rejects configurations that can never yield a URI record.
func (c *SessionConfig) Validate() error {
	if c.Length < ndef.URIOffset {
		return fmt.Errorf("%w: read length %d is shorter than the %d byte record header",
			ErrInvalidParameter, c.Length, ndef.URIOffset)
	}
	return nil
}

// ReadURL runs a reader session and returns the URL without dispatching it.
func ReadURL(ctx context.Context, drv Driver, cfg *SessionConfig) (string, error) {
	return Run(ctx, drv, nil, cfg)
}

// Run opens the reader, configures file access, performs one linear read,
// extracts the URL and hands it to opener (when non-nil). The reader is
// released on every path. The first failing step ends the run.
func Run(ctx context.Context, drv Driver, opener URLOpener, cfg *SessionConfig) (string, error) {
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	reader, err := OpenReader(ctx, drv)
	if err != nil {
		log.WithError(err).Error("failed to open reader")
		return "", err
	}
	log.Infof("reader opened")

	defer func() {
		if cerr := reader.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close reader")
			return
		}
		log.Infof("reader closed")
	}()

	url, err := readURL(ctx, reader, cfg)
	if err != nil {
		return "", err
	}

	if opener == nil {
		return url, nil
	}

	log.Infof("opening URL: %s", url)
	if err := opener.Open(ctx, url); err != nil {
		log.WithError(err).Error("failed to open URL")
		return url, fmt.Errorf("open URL: %w", err)
	}
	return url, nil
}

func readURL(ctx context.Context, reader *Reader, cfg *SessionConfig) (string, error) {
	if ct, err := reader.CardType(ctx); err != nil {
		log.Debugf("card type unavailable: %v", err)
	} else {
		log.Debugf("card type: %s", ct)
	}

	if err := reader.SetGlobalParameters(cfg.FileNo, cfg.KeyNo, cfg.CommMode); err != nil {
		log.WithError(err).Error("failed to set parameters")
		return "", err
	}

	buf, err := reader.LinearRead(ctx, cfg.Offset, cfg.Length, cfg.AuthMode, cfg.KeyIndex)
	if err != nil {
		log.WithError(err).Error("failed to read data")
		return "", err
	}
	log.Debugf("linear read returned %d bytes: % X", len(buf), buf)

	if cfg.DumpRecords {
		dumpRecords(buf)
	}

	view, err := ndef.ParseURIFile(buf)
	if err != nil {
		log.WithError(err).Error("failed to parse NDEF record")
		return "", fmt.Errorf("%w: %w", ErrNoURL, err)
	}
	return view.URI, nil
}

func dumpRecords(buf []byte) {
	msg, err := ndef.DecodeFile(buf)
	if err != nil {
		log.Warnf("NDEF message not decodable: %v", err)
		return
	}
	for i, rec := range msg.Records {
		log.WithFields(log.Fields{
			"index":   i,
			"tnf":     rec.TNF,
			"type":    rec.Type,
			"id":      rec.ID,
			"payload": len(rec.Payload),
		}).Info("NDEF record")
	}
}
