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

package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var session struct {
	file *os.File
	hook *fileHook
	path string
}

// fileHook copies every emitted entry to the session log.
type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (*fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return fmt.Errorf("format session log entry: %w", err)
	}
	if _, err := h.w.Write(line); err != nil {
		return fmt.Errorf("write session log entry: %w", err)
	}
	return nil
}

// InitSessionLog opens path (or tapurl_<timestamp>.log when empty), writes
// a header describing the process, and mirrors every log entry into it.
func InitSessionLog(path string) (string, error) {
	if session.file != nil {
		return session.path, nil
	}
	if path == "" {
		path = fmt.Sprintf("tapurl_%s.log", time.Now().Format("20060102_150405"))
	}

	f, err := os.Create(path) //nolint:gosec // path is operator-supplied on the command line
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	writeSessionHeader(f)

	hook := &fileHook{w: f, formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}}
	std.AddHook(hook)

	session.file = f
	session.hook = hook
	session.path = path
	return path, nil
}

// CloseSessionLog writes the footer and closes the session log.
func CloseSessionLog() error {
	if session.file == nil {
		return nil
	}

	hooks := make(logrus.LevelHooks)
	for lvl, hs := range std.Hooks {
		for _, h := range hs {
			if h != session.hook {
				hooks[lvl] = append(hooks[lvl], h)
			}
		}
	}
	std.ReplaceHooks(hooks)

	_, _ = fmt.Fprintf(session.file, "\n%s === Session ended ===\n", time.Now().Format("15:04:05.000"))
	err := session.file.Close()
	session.file = nil
	session.hook = nil
	session.path = ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// SessionLogPath returns the active session log path, if any.
func SessionLogPath() string {
	return session.path
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== tapurl session log ===\n")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if k := kernelVersion(); k != "" {
		_, _ = fmt.Fprintf(w, "Kernel: %s\n", k)
	}
	_, _ = fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		_, _ = fmt.Fprintf(w, "Executable: %s\n", exe)
	}
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "==========================\n\n")
}
