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

// Package frontdoor is the host-facing surface of the connect core. Every
// call is forwarded to a connect.Client; failures and panics are logged and
// turned into default results so that a misbehaving host never sees an
// error it cannot handle.
package frontdoor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/journal"
)

var errNotInitialized = errors.New("test API not initialized")

// Door holds at most one Client, created by InitializeTestAPI and released
// by Close or the next InitializeTestAPI.
type Door struct {
	base connect.Options
	log  *slog.Logger

	mu     sync.Mutex
	client *connect.Client
}

// New returns a Door whose clients are opened with base. base.Journal is
// ignored; each InitializeTestAPI opens its own.
func New(base connect.Options, log *slog.Logger) *Door {
	if log == nil {
		log = slog.Default()
	}
	base.Journal = nil
	base.Logger = log
	return &Door{base: base, log: log}
}

// guard runs fn and logs its error or panic.
func (d *Door) guard(op string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("call panicked", "op", op, "panic", r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		d.log.Error("call failed", "op", op, "error", err)
		return false
	}
	return true
}

func (d *Door) current() (*connect.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, errNotInitialized
	}
	return d.client, nil
}

// InitializeTestAPI opens a Client for instanceID of instancesCount and
// blocks until every instance has registered. A non-empty logFilePath
// receives the balance journal as CSV.
func (d *Door) InitializeTestAPI(instanceID, instancesCount, syncSeconds int32, logFilePath string) {
	d.guard("InitializeTestAPI", func() error {
		opts := d.base
		opts.SyncTolerance = syncSeconds
		if logFilePath != "" {
			sink, err := journal.OpenCSV(logFilePath)
			if err != nil {
				return err
			}
			opts.Journal = sink
		}
		c, err := connect.Open(opts)
		if err != nil {
			return err
		}

		d.mu.Lock()
		prev := d.client
		d.client = c
		d.mu.Unlock()
		if prev != nil {
			d.log.Warn("replacing initialized client", "instance", prev.InstanceID())
			prev.Close()
		}
		if err := c.Initialize(instanceID, instancesCount); err != nil {
			d.mu.Lock()
			if d.client == c {
				d.client = nil
			}
			d.mu.Unlock()
			return errors.Join(err, c.Close())
		}
		return nil
	})
}

// DeinitializeTestAPI deinitializes the instance. The Client stays open so
// that later calls still read and write variables without waiting; it is
// released by Close or the next InitializeTestAPI.
func (d *Door) DeinitializeTestAPI() {
	d.guard("DeinitializeTestAPI", func() error {
		c, err := d.current()
		if err != nil {
			return err
		}
		return c.Deinitialize()
	})
}

// NextTick forwards to connect.Client.NextTick.
func (d *Door) NextTick(tick int32, balance, equity float64) {
	d.guard("NextTick", func() error {
		c, err := d.current()
		if err != nil {
			return err
		}
		return c.NextTick(tick, balance, equity)
	})
}

// DeclareVariable forwards to connect.Client.DeclareVariable.
func (d *Door) DeclareVariable(name string, op int32) {
	d.guard("DeclareVariable", func() error {
		c, err := d.current()
		if err != nil {
			return err
		}
		return c.DeclareVariable(name, arena.Operation(op))
	})
}

// GetVariable forwards to connect.Client.GetVariable and returns 0 on any
// failure.
func (d *Door) GetVariable(name string) float64 {
	var value float64
	ok := d.guard("GetVariable", func() error {
		c, err := d.current()
		if err != nil {
			return err
		}
		value, err = c.GetVariable(name)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		return nil
	})
	if !ok {
		return 0
	}
	return value
}

// SetVariable forwards to connect.Client.SetVariable.
func (d *Door) SetVariable(name string, value float64) {
	d.guard("SetVariable", func() error {
		c, err := d.current()
		if err != nil {
			return err
		}
		return c.SetVariable(name, value)
	})
}

// Status returns the status of the current instance.
func (d *Door) Status() arena.Status {
	c, err := d.current()
	if err != nil {
		return arena.StatusUnknown
	}
	return c.Status()
}

// Close releases the Client. An instance that was not deinitialized stays
// registered in the arena.
func (d *Door) Close() error {
	d.mu.Lock()
	c := d.client
	d.client = nil
	d.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
