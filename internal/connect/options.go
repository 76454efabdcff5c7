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

package connect

import (
	"log/slog"
	"time"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/journal"
)

// DefaultName is the prefix of the named objects every participant shares.
const DefaultName = "SmartDev.MultiCurrencyTester"

// Suffixes of the named objects derived from Options.Name.
const (
	arenaSuffix  = ".MemoryMappedFile"
	eventsSuffix = ".OnDataUpdatedEvent"
	mutexSuffix  = ".OnWriteLockMutex"
)

// Options configures a Client.
type Options struct {
	// Name prefixes the shared segment, event and mutex names. Participants
	// must agree on it.
	Name string
	// Dir holds the named objects. Empty selects /dev/shm.
	Dir string
	// Capacity is the arena size in bytes. Participants must agree on it.
	Capacity int
	// SyncTolerance is how many ticks an instance may run ahead of the
	// slowest live instance before its variable calls wait.
	SyncTolerance int32
	// PollInterval bounds every wait for a change in the arena.
	PollInterval time.Duration
	// SpinInterval is the sleep between checks while the lock drains.
	SpinInterval time.Duration
	// Journal receives the balance and equity of every tick. Nil discards
	// them. The Client closes it.
	Journal journal.Sink
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the options shared by every participant of the
// default test setup.
func DefaultOptions() Options {
	return Options{
		Name:         DefaultName,
		Capacity:     arena.DefaultCapacity,
		PollInterval: time.Second,
		SpinInterval: time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Name == "" {
		o.Name = def.Name
	}
	if o.Capacity == 0 {
		o.Capacity = def.Capacity
	}
	if o.PollInterval == 0 {
		o.PollInterval = def.PollInterval
	}
	if o.SpinInterval == 0 {
		o.SpinInterval = def.SpinInterval
	}
	if o.Journal == nil {
		o.Journal = journal.Discard{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate() error {
	if o.Capacity < arena.MinCapacity {
		return invalidArgument("capacity %d below minimum %d", o.Capacity, arena.MinCapacity)
	}
	if o.SyncTolerance < 0 {
		return invalidArgument("negative sync tolerance %d", o.SyncTolerance)
	}
	if o.PollInterval < 0 || o.SpinInterval < 0 {
		return invalidArgument("negative interval")
	}
	return nil
}

// ArenaName returns the name of the shared arena segment.
func (o Options) ArenaName() string { return o.Name + arenaSuffix }

// EventsName returns the name of the segment holding the shared events.
func (o Options) EventsName() string { return o.Name + eventsSuffix }

// MutexName returns the name of the writer mutex.
func (o Options) MutexName() string { return o.Name + mutexSuffix }
