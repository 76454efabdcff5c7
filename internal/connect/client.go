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

// Package connect is the participant side of the multi-currency tester: each
// test process opens a Client, registers its instance id, and then exchanges
// ticks and named variables with every other process through one shared
// arena.
//
// A Client is meant to be driven by one goroutine, as the host process calls
// it synchronously. Deinitialize, Close and the introspection methods may be
// called from other goroutines while a call is waiting.
package connect

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/journal"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/rwlock"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/shm"
)

const (
	unregistered int32 = -1
	registering  int32 = -2
)

// Client is one participant's handle on the shared arena.
type Client struct {
	opts    Options
	session uuid.UUID
	log     atomic.Pointer[slog.Logger]
	journal journal.Sink

	mutex  *shm.Mutex
	seg    *shm.Segment
	events *shm.Events
	arena  *arena.Arena
	lock   *rwlock.Lock

	id      atomic.Int32
	waiting atomic.Bool
	closed  atomic.Bool

	// inflight is held shared by every call and exclusively by Close, so the
	// mappings outlive any call still running.
	inflight sync.RWMutex
}

// Open maps the shared arena and events named by opts, creating them if this
// is the first participant. The Client takes ownership of opts.Journal.
func Open(opts Options) (c *Client, err error) {
	opts = opts.withDefaults()
	defer func() {
		if err != nil {
			opts.Journal.Close()
		}
	}()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	session, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	mutex, err := shm.NewMutex(opts.Dir, opts.MutexName())
	if err != nil {
		return nil, err
	}
	seg, events, err := openShared(mutex, opts)
	if err != nil {
		mutex.Close()
		return nil, err
	}
	a, err := arena.New(seg.Mem)
	if err != nil {
		events.Close()
		seg.Close()
		mutex.Close()
		return nil, err
	}

	c = &Client{
		opts:    opts,
		session: session,
		journal: opts.Journal,
		mutex:   mutex,
		seg:     seg,
		events:  events,
		arena:   a,
		lock: rwlock.New(mutex, events.Turnstile, a, rwlock.Config{
			WaitTimeout:  opts.PollInterval,
			SpinInterval: opts.SpinInterval,
		}),
	}
	c.id.Store(unregistered)
	c.log.Store(opts.Logger.With("session", session.String()))
	c.logger().Debug("connected", "arena", seg.Path, "created", seg.Created, "capacity", seg.Size())
	return c, nil
}

// openShared maps the arena and events segments. Creation is serialised by
// the writer mutex so that two first participants agree on who creates.
func openShared(mutex *shm.Mutex, opts Options) (*shm.Segment, *shm.Events, error) {
	if err := mutex.Lock(); err != nil {
		return nil, nil, err
	}
	defer mutex.Unlock()

	seg, err := shm.OpenOrCreateSegment(opts.Dir, opts.ArenaName(), opts.Capacity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open arena: %w", err)
	}
	events, err := shm.OpenEvents(opts.Dir, opts.EventsName())
	if err != nil {
		seg.Close()
		return nil, nil, fmt.Errorf("failed to open events: %w", err)
	}
	return seg, events, nil
}

// Close interrupts any waiting call with ErrClosed, waits for running calls
// to return and releases the mappings and the journal. It does not change
// the instance's status in the arena.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.lock.Close()
	c.inflight.Lock()
	defer c.inflight.Unlock()

	c.logger().Debug("closing")
	return errors.Join(
		c.journal.Close(),
		c.events.Close(),
		c.seg.Close(),
		c.mutex.Close(),
	)
}

func (c *Client) enter() error {
	c.inflight.RLock()
	if c.closed.Load() {
		c.inflight.RUnlock()
		return ErrClosed
	}
	return nil
}

func (c *Client) leave() {
	c.inflight.RUnlock()
}

func (c *Client) logger() *slog.Logger {
	return c.log.Load()
}

// wait blocks until the arena changes after snapshot or the poll interval
// elapses. The caller re-evaluates its condition either way.
func (c *Client) wait(snapshot uint32) error {
	c.waiting.Store(true)
	defer c.waiting.Store(false)
	c.events.Changed.Wait(snapshot, c.opts.PollInterval)
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// InstanceID returns the registered instance id, or -1 before Initialize.
func (c *Client) InstanceID() int32 {
	if id := c.id.Load(); id >= 0 {
		return id
	}
	return unregistered
}

// Session returns the id that tags this Client's logs and journal records.
func (c *Client) Session() uuid.UUID {
	return c.session
}

// Status returns the instance's status in the arena, StatusUnknown before
// Initialize.
func (c *Client) Status() arena.Status {
	id := c.id.Load()
	if id < 0 {
		return arena.StatusUnknown
	}
	if err := c.enter(); err != nil {
		return arena.StatusUnknown
	}
	defer c.leave()
	st, err := c.arena.Status(id)
	if err != nil {
		return arena.StatusUnknown
	}
	return st
}

// IsWaiting reports whether a call is currently blocked waiting for peers.
func (c *Client) IsWaiting() bool {
	return c.waiting.Load()
}

// Snapshot decodes the whole arena under the read lock.
func (c *Client) Snapshot() (*arena.State, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()

	var st *arena.State
	err := c.lock.WithRead(func() error {
		var err error
		st, err = c.arena.Load()
		return err
	})
	return st, closedErr(err)
}

// Counters returns the lock's reader and writer counters.
func (c *Client) Counters() (readers, writers int32) {
	return c.arena.Readers(), c.arena.Writers()
}

// ResetCounters zeroes the lock counters and reopens the reader turnstile. It
// recovers an arena whose lock was left held by a process that died; running
// it while other processes use the lock breaks mutual exclusion.
func (c *Client) ResetCounters() error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	readers, writers := c.Counters()
	c.arena.ResetCounters()
	c.events.Turnstile.Set()
	c.events.Changed.Notify()
	c.logger().Warn("lock counters reset", "readers", readers, "writers", writers)
	return nil
}

// Remove deletes the named objects described by opts. Participants that
// still have them mapped keep their view; new participants start afresh.
func Remove(opts Options) error {
	opts = opts.withDefaults()
	var errs []error
	for _, name := range []string{opts.ArenaName(), opts.EventsName(), opts.MutexName()} {
		if err := shm.Remove(opts.Dir, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
