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

// Command tapurl reads the URL stored on an NFC Type 4 tag and opens it in
// the default browser. "tapurl balance" runs the balance bootstrap instead;
// "tapurl cmacs" writes the SDM MACs a tag will mirror over a counter range.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/tapurl"
	"github.com/ZaparooProject/tapurl/bootstrap"
	"github.com/ZaparooProject/tapurl/browser"
	"github.com/ZaparooProject/tapurl/internal/log"
	"github.com/ZaparooProject/tapurl/pcsc"
	"github.com/ZaparooProject/tapurl/pkg/sdm"
	"github.com/ZaparooProject/tapurl/pn532"
	"github.com/ZaparooProject/tapurl/transport/i2c"
	"github.com/ZaparooProject/tapurl/transport/spi"
	"github.com/ZaparooProject/tapurl/transport/uart"
	"github.com/ZaparooProject/tapurl/type4"
)

const (
	backendPCSC  = "pcsc"
	backendPN532 = "pn532"

	balanceCommand = "balance"
	cmacsCommand   = "cmacs"

	defaultCMACCount = 30
)

var errUsage = errors.New("usage")

type config struct {
	session       *tapurl.SessionConfig
	backend       string
	reader        string
	device        string
	logFile       string
	logFormat     string
	balanceURL    string
	sessionHeader string
	output        string
	schemes       []string
	uid           []byte
	sdmKey        []byte
	timeout       time.Duration
	maxRead       int
	firstCounter  uint32
	lastCounter   uint32
	balance       bool
	cmacs         bool
	waitForCard   bool
	dryRun        bool
	debug         bool
}

func parseConfig(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{session: tapurl.DefaultSessionConfig()}
	if len(args) > 0 && args[0] == balanceCommand {
		cfg.balance = true
		return cfg, parseBalanceFlags(cfg, args[1:], stderr)
	}
	if len(args) > 0 && args[0] == cmacsCommand {
		cfg.cmacs = true
		return cfg, parseCmacsFlags(cfg, args[1:], stderr)
	}

	fs := flag.NewFlagSet("tapurl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		fileNo  = fs.Uint("file", uint(cfg.session.FileNo), "File number to read (1=CC, 2=NDEF, 3=proprietary)")
		keyNo   = fs.Uint("key", uint(cfg.session.KeyNo), "Read access key number (0x0E is free access)")
		length  = fs.Uint("length", uint(cfg.session.Length), "Number of bytes to read")
		mode    = fs.String("mode", cfg.session.CommMode.String(), "Communication mode: plain, mac or full")
		schemes = fs.String("schemes", strings.Join(browser.DefaultSchemes, ","), "Comma-separated URL schemes allowed to open")
	)
	fs.StringVar(&cfg.backend, "backend", backendPCSC, "Reader backend: pcsc or pn532")
	fs.StringVar(&cfg.reader, "reader", "", "PC/SC reader index or name substring (first reader if empty)")
	fs.StringVar(&cfg.device, "device", "", "PN532 device: serial port, i2c:<bus> or spi:<port> (auto-detect serial if empty)")
	fs.BoolVar(&cfg.waitForCard, "wait", false, "Wait for a card instead of failing when none is present")
	fs.IntVar(&cfg.maxRead, "chunk", type4.DefaultMaxRead, "Maximum bytes per READ BINARY")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "Overall timeout (0 disables)")
	fs.BoolVar(&cfg.dryRun, "dry-run", false, "Print the browser command instead of running it")
	fs.BoolVar(&cfg.session.DumpRecords, "dump", false, "Log every NDEF record read from the tag")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.StringVar(&cfg.logFile, "log-file", "", "Also write the log to this file")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "Console log format: text, json or nocolor")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	switch cfg.backend {
	case backendPCSC, backendPN532:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", errUsage, cfg.backend)
	}
	if *fileNo > 0xFF || *keyNo > 0xFF {
		return nil, fmt.Errorf("%w: -file and -key must fit in a byte", errUsage)
	}
	if *length > 0xFFFF {
		return nil, fmt.Errorf("%w: -length %d too large", errUsage, *length)
	}

	commMode, err := tapurl.ParseCommMode(*mode)
	if err != nil {
		return nil, err
	}
	cfg.session.FileNo = byte(*fileNo)
	cfg.session.KeyNo = byte(*keyNo)
	cfg.session.Length = uint16(*length)
	cfg.session.CommMode = commMode
	cfg.schemes = splitList(*schemes)

	return cfg, cfg.session.Validate()
}

func parseBalanceFlags(cfg *config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("tapurl balance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.balanceURL, "url", "", "Balance endpoint URL")
	fs.StringVar(&cfg.sessionHeader, "session-header", bootstrap.DefaultSessionHeader, "Header carrying the session id")
	fs.DurationVar(&cfg.timeout, "timeout", bootstrap.DefaultRequestTimeout, "Overall timeout (0 disables)")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.StringVar(&cfg.logFile, "log-file", "", "Also write the log to this file")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "Console log format: text, json or nocolor")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.balanceURL == "" {
		return fmt.Errorf("%w: -url is required", errUsage)
	}
	return nil
}

func parseCmacsFlags(cfg *config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("tapurl cmacs", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		uid   = fs.String("uid", "", "Tag UID as 14 hex digits")
		key   = fs.String("key", strings.Repeat("00", sdm.KeyLength), "SDM file read key as 32 hex digits")
		start = fs.Uint("start", 1, "First read counter")
		count = fs.Uint("count", defaultCMACCount, "Number of counters to generate")
	)
	fs.StringVar(&cfg.output, "output", "cmacs.json", "Output JSON file, - for stdout")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.StringVar(&cfg.logFile, "log-file", "", "Also write the log to this file")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "Console log format: text, json or nocolor")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uid == "" {
		return fmt.Errorf("%w: -uid is required", errUsage)
	}
	if *count == 0 || *start+*count-1 > sdm.MaxCounter {
		return fmt.Errorf("%w: counters %d+%d out of range", errUsage, *start, *count)
	}

	var err error
	if cfg.uid, err = sdm.ParseHex(*uid); err != nil {
		return fmt.Errorf("%w: -uid: %w", errUsage, err)
	}
	if len(cfg.uid) != sdm.UIDLength {
		return fmt.Errorf("%w: -uid must be %d bytes", errUsage, sdm.UIDLength)
	}
	if cfg.sdmKey, err = sdm.ParseHex(*key); err != nil {
		return fmt.Errorf("%w: -key: %w", errUsage, err)
	}
	if len(cfg.sdmKey) != sdm.KeyLength {
		return fmt.Errorf("%w: -key must be %d bytes", errUsage, sdm.KeyLength)
	}
	cfg.firstCounter = uint32(*start)
	cfg.lastCounter = uint32(*start + *count - 1)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// pn532Opener picks the PN532 transport from the device string: an "i2c:"
// or "spi:" prefix, or a path naming either bus, selects that bus; anything
// else is a serial port.
func pn532Opener(device string) pn532.Opener {
	if bus, ok := strings.CutPrefix(device, "i2c:"); ok {
		return i2c.Opener(bus)
	}
	if port, ok := strings.CutPrefix(device, "spi:"); ok {
		return spi.Opener(port)
	}

	lower := strings.ToLower(device)
	switch {
	case strings.Contains(lower, "i2c"):
		return i2c.Opener(device)
	case strings.Contains(lower, "spi"):
		return spi.Opener(device)
	default:
		return uart.Opener(device)
	}
}

func newDriver(cfg *config) (tapurl.Driver, error) {
	var link type4.Link
	switch cfg.backend {
	case backendPCSC:
		link = pcsc.NewLink(pcsc.Options{Reader: cfg.reader, WaitForCard: cfg.waitForCard})
	case backendPN532:
		var opts []pn532.LinkOption
		if cfg.waitForCard {
			opts = append(opts, pn532.WithPolling(pn532.DefaultPollInterval))
		}
		link = pn532.NewLink(pn532Opener(cfg.device), opts...)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", errUsage, cfg.backend)
	}
	return type4.NewDriver(link, type4.WithMaxRead(cfg.maxRead)), nil
}

func runRead(ctx context.Context, cfg *config, drv tapurl.Driver, stdout io.Writer) error {
	dispatcher := browser.New()
	dispatcher.Schemes = cfg.schemes
	dispatcher.DryRun = cfg.dryRun
	dispatcher.Out = stdout

	url, err := tapurl.Run(ctx, drv, dispatcher, cfg.session)
	if err != nil {
		return err
	}
	log.Debugf("session finished for %s", url)
	return nil
}

func runBalance(ctx context.Context, cfg *config, stdout io.Writer) error {
	auth := bootstrap.NewSessionAuth()
	auth.Header = cfg.sessionHeader

	bal := &bootstrap.HTTPBalance{
		Auth:    auth,
		Display: bootstrap.WriterDisplay{W: stdout},
		URL:     cfg.balanceURL,
	}
	newAuth := func() bootstrap.Authenticator { return auth }

	return bootstrap.Start(ctx, bootstrap.Ready(), newAuth, bal)
}

func runCmacs(cfg *config, stdout io.Writer) (err error) {
	table, err := sdm.Generate(cfg.sdmKey, cfg.uid, cfg.firstCounter, cfg.lastCounter)
	if err != nil {
		return err
	}
	if cfg.output == "-" {
		return table.WriteJSON(stdout)
	}

	f, err := os.Create(cfg.output) //nolint:gosec // path is operator-supplied on the command line
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if err = table.WriteJSON(f); err != nil {
		return err
	}
	log.Infof("wrote %d CMACs for %s to %s", len(table.Entries), table.UID, cfg.output)
	return nil
}

func run(ctx context.Context, cfg *config, stdout io.Writer) error {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	if cfg.balance {
		return runBalance(ctx, cfg, stdout)
	}
	if cfg.cmacs {
		return runCmacs(cfg, stdout)
	}

	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}
	return runRead(ctx, cfg, drv, stdout)
}

func setupLogging(cfg *config, stderr io.Writer) (func(), error) {
	if err := log.SetFormat(cfg.logFormat); err != nil {
		return nil, err
	}
	log.SetOutput(stderr)
	log.SetDebug(cfg.debug || log.DebugEnabled())
	if cfg.logFile == "" {
		return func() {}, nil
	}
	path, err := log.InitSessionLog(cfg.logFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Debugf("session log: %s (%s/%s)", path, runtime.GOOS, runtime.GOARCH)
	return func() {
		if err := log.CloseSessionLog(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
	}, nil
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:], os.Stdout, os.Stderr))
}

func mainWithExitCode(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseConfig(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	closeLog, err := setupLogging(cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			_, _ = fmt.Fprint(stderr, "\nShutting down...\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
