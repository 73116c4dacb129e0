//go:build deadlock

// Package syncutil holds the locking primitives shared by the reader handle,
// the serial transports and the tag simulator. This variant reports lock
// order violations and long waits through github.com/sasha-s/go-deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
//
//nolint:gocritic // embedded to expose Lock/Unlock
type Mutex struct {
	deadlock.Mutex
}
