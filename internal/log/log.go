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

// Package log is the project-wide logger: a thin wrapper over logrus that
// tags every entry with its call site.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
	if os.Getenv("TAPURL_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		std.SetLevel(logrus.DebugLevel)
	}
}

// Fields is an alias so callers do not import logrus for structured fields.
type Fields = logrus.Fields

// SetDebug toggles debug level output.
func SetDebug(enabled bool) {
	if enabled {
		std.SetLevel(logrus.DebugLevel)
		return
	}
	std.SetLevel(logrus.InfoLevel)
}

// DebugEnabled reports whether debug entries are emitted.
func DebugEnabled() bool {
	return std.IsLevelEnabled(logrus.DebugLevel)
}

// SetOutput redirects console output.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// ErrUnknownFormat is returned by SetFormat for names it does not know.
var ErrUnknownFormat = errors.New("unknown log format")

// SetFormat selects the console formatter: "text" (the default), "json" or
// "nocolor".
func SetFormat(format string) error {
	switch format {
	case "", "text":
		std.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
	case "json":
		std.Formatter = &logrus.JSONFormatter{}
	case "nocolor":
		std.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}

// WithFields returns an entry carrying fields and the caller's location.
func WithFields(fields Fields) *logrus.Entry {
	return withSource().WithFields(fields)
}

// WithError returns an entry carrying err and the caller's location.
func WithError(err error) *logrus.Entry {
	return withSource().WithError(err)
}

func Debugf(format string, args ...any) { withSource().Debugf(format, args...) }
func Infof(format string, args ...any)  { withSource().Infof(format, args...) }
func Warnf(format string, args ...any)  { withSource().Warnf(format, args...) }
func Errorf(format string, args ...any) { withSource().Errorf(format, args...) }

func withSource() *logrus.Entry {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return logrus.NewEntry(std)
	}
	if i := strings.LastIndex(file, "/"); i >= 0 {
		file = file[i+1:]
	}
	return std.WithField("source", fmt.Sprintf("%s:%d", file, line))
}
