//go:build !deadlock

// Package syncutil holds the locking primitives shared by the reader handle,
// the serial transports and the tag simulator. Plain sync types are used by
// default; build with -tags=deadlock to swap in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex is sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedded to expose Lock/Unlock
type Mutex struct {
	sync.Mutex
}
