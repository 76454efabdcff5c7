/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package rwlock implements a reader/writer lock shared by processes.
//
// Writers are serialised by a named mutex. Readers never take the mutex:
// they pass a turnstile event that writers close while they are active, then
// announce themselves in a readers counter that lives in shared memory. A
// writer announces itself in a writers counter before it takes the mutex and
// then waits for the readers counter to drain.
//
// A reader that sees a pending writer after announcing itself withdraws and
// retries, so a reader and a writer can never both be inside: each increments
// its own counter before reading the other's.
package rwlock

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by acquisitions attempted or interrupted after Close.
var ErrClosed = errors.New("rwlock: closed")

// Mutex is the named exclusive lock serialising writers.
type Mutex interface {
	Lock() error
	Unlock() error
}

// Turnstile is the manual-reset event readers pass through.
type Turnstile interface {
	Set()
	Reset()
	Wait(timeout time.Duration) bool
}

// Counters are the shared reader and writer counters.
type Counters interface {
	AddReaders(delta int32) int32
	AddWriters(delta int32) int32
	Readers() int32
	Writers() int32
}

// Config tunes the bounded waits of the lock.
type Config struct {
	// WaitTimeout bounds a single wait on the turnstile before the reader
	// re-checks whether the lock was closed.
	WaitTimeout time.Duration
	// SpinInterval is the sleep between checks while a reader backs off from
	// a pending writer or a writer waits for readers to drain.
	SpinInterval time.Duration
}

// DefaultConfig returns the intervals used when none are configured.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:  time.Second,
		SpinInterval: time.Millisecond,
	}
}

// Lock is a cross-process reader/writer lock.
type Lock struct {
	mu        Mutex
	turnstile Turnstile
	counters  Counters
	cfg       Config
	closed    atomic.Bool
}

// New returns a Lock over the given primitives. Zero intervals in cfg are
// replaced by their defaults.
func New(mu Mutex, turnstile Turnstile, counters Counters, cfg Config) *Lock {
	def := DefaultConfig()
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.SpinInterval <= 0 {
		cfg.SpinInterval = def.SpinInterval
	}
	return &Lock{mu: mu, turnstile: turnstile, counters: counters, cfg: cfg}
}

// Close makes every pending and future acquisition fail with ErrClosed.
// Holders are unaffected.
func (l *Lock) Close() {
	l.closed.Store(true)
}

// WithRead runs fn while holding the lock shared.
func (l *Lock) WithRead(fn func() error) error {
	if err := l.rlock(); err != nil {
		return err
	}
	defer l.counters.AddReaders(-1)
	return fn()
}

// WithWrite runs fn while holding the lock exclusively. The lock is released
// on every path out of fn, including a panic.
func (l *Lock) WithWrite(fn func() error) (err error) {
	if err := l.lock(); err != nil {
		return err
	}
	defer func() {
		if uerr := l.unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

func (l *Lock) rlock() error {
	for {
		if l.closed.Load() {
			return ErrClosed
		}
		if !l.turnstile.Wait(l.cfg.WaitTimeout) {
			continue
		}
		l.counters.AddReaders(1)
		if l.counters.Writers() == 0 {
			return nil
		}
		// A writer is pending or inside: withdraw and let it drain us.
		l.counters.AddReaders(-1)
		time.Sleep(l.cfg.SpinInterval)
	}
}

func (l *Lock) lock() error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.counters.AddWriters(1)
	if err := l.mu.Lock(); err != nil {
		l.counters.AddWriters(-1)
		return err
	}
	l.turnstile.Reset()
	for l.counters.Readers() > 0 {
		if l.closed.Load() {
			l.unlock()
			return ErrClosed
		}
		time.Sleep(l.cfg.SpinInterval)
	}
	return nil
}

func (l *Lock) unlock() error {
	l.counters.AddWriters(-1)
	l.turnstile.Set()
	return l.mu.Unlock()
}
