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

// Package browser hands URLs to the operating system's default browser.
//
// The URL is always passed as a single argv element; no shell ever parses
// it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/ZaparooProject/tapurl/internal/log"
)

var (
	ErrEmptyURL          = errors.New("empty URL")
	ErrNotAbsolute       = errors.New("URL is not absolute")
	ErrSchemeNotAllowed  = errors.New("URL scheme not allowed")
	ErrControlCharacters = errors.New("URL contains control characters")
	ErrInvalidUTF8       = errors.New("URL is not valid UTF-8")
)

// DefaultSchemes are the schemes Dispatcher accepts when none are set.
var DefaultSchemes = []string{"http", "https"}

// Command is a launcher invocation: program name plus argv.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandFor returns the launcher command for goos.
func CommandFor(goos, rawURL string) Command {
	switch goos {
	case "darwin":
		return Command{Name: "open", Args: []string{rawURL}}
	case "windows":
		return Command{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler", rawURL}}
	default:
		return Command{Name: "xdg-open", Args: []string{rawURL}}
	}
}

// Process is a started launcher.
type Process interface {
	Wait() error
}

// Launcher starts commands without waiting for them.
type Launcher interface {
	Start(cmd Command) (Process, error)
}

// ExecLauncher starts commands with os/exec.
type ExecLauncher struct{}

func (ExecLauncher) Start(c Command) (Process, error) {
	cmd := exec.Command(c.Name, c.Args...) //nolint:gosec // argv only, validated URL
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Dispatcher validates URLs and launches the browser for them.
type Dispatcher struct {
	Launcher Launcher
	// Getenv looks up $BROWSER. Defaults to os.Getenv.
	Getenv func(string) string
	// Out receives the command line when DryRun is set. Defaults to stdout.
	Out     io.Writer
	GOOS    string
	Schemes []string
	DryRun  bool
}

// New returns a Dispatcher for the running platform.
func New() *Dispatcher {
	return &Dispatcher{
		Launcher: ExecLauncher{},
		GOOS:     runtime.GOOS,
		Schemes:  DefaultSchemes,
	}
}

// Validate checks that rawURL is absolute, free of control characters and
// uses an allowed scheme.
func (d *Dispatcher) Validate(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	if !utf8.ValidString(rawURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUTF8, rawURL)
	}
	if strings.ContainsFunc(rawURL, isControl) {
		return nil, fmt.Errorf("%w: %q", ErrControlCharacters, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if !u.IsAbs() || (u.Host == "" && u.Opaque == "") {
		return nil, fmt.Errorf("%w: %q", ErrNotAbsolute, rawURL)
	}

	schemes := d.Schemes
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrSchemeNotAllowed, u.Scheme, strings.Join(schemes, ", "))
}

// Command returns the launcher command for rawURL, honouring $BROWSER.
// $BROWSER is a colon-separated list; the first entry is used, split on
// whitespace into program and leading arguments.
func (d *Dispatcher) Command(rawURL string) Command {
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if cmd, ok := browserEnv(getenv("BROWSER"), rawURL); ok {
		return cmd
	}
	goos := d.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return CommandFor(goos, rawURL)
}

func browserEnv(val, rawURL string) (Command, bool) {
	for _, entry := range strings.Split(val, ":") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		return Command{Name: fields[0], Args: append(fields[1:], rawURL)}, true
	}
	return Command{}, false
}

// Open validates rawURL and starts the browser. It returns once the
// launcher has started; its exit status is only logged.
func (d *Dispatcher) Open(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.Validate(rawURL); err != nil {
		return err
	}

	cmd := d.Command(rawURL)
	if d.DryRun {
		out := d.Out
		if out == nil {
			out = os.Stdout
		}
		_, err := fmt.Fprintln(out, cmd.String())
		return err
	}

	launcher := d.Launcher
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	proc, err := launcher.Start(cmd)
	if err != nil {
		log.WithError(err).Errorf("failed to start %s", cmd.Name)
		return fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	log.Debugf("started %s", cmd)

	go func() {
		if err := proc.Wait(); err != nil {
			log.WithError(err).Warnf("%s exited with error", cmd.Name)
			return
		}
		log.Debugf("%s exited", cmd.Name)
	}()
	return nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
