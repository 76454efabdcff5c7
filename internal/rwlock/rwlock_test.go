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

package rwlock

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMutex struct {
	mu      sync.Mutex
	lockErr error
}

func (m *fakeMutex) Lock() error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.mu.Lock()
	return nil
}

func (m *fakeMutex) Unlock() error {
	m.mu.Unlock()
	return nil
}

// fakeTurnstile polls a flag; it starts signalled like the shared event.
type fakeTurnstile struct {
	reset atomic.Bool
}

func (e *fakeTurnstile) Set()   { e.reset.Store(false) }
func (e *fakeTurnstile) Reset() { e.reset.Store(true) }
func (e *fakeTurnstile) Wait(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for e.reset.Load() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Microsecond)
	}
	return true
}

type fakeCounters struct {
	readers, writers atomic.Int32
}

func (c *fakeCounters) AddReaders(d int32) int32 { return c.readers.Add(d) }
func (c *fakeCounters) AddWriters(d int32) int32 { return c.writers.Add(d) }
func (c *fakeCounters) Readers() int32           { return c.readers.Load() }
func (c *fakeCounters) Writers() int32           { return c.writers.Load() }

type fixture struct {
	mu        *fakeMutex
	turnstile *fakeTurnstile
	counters  *fakeCounters
	lock      *Lock
}

func newFixture() *fixture {
	f := &fixture{mu: &fakeMutex{}, turnstile: &fakeTurnstile{}, counters: &fakeCounters{}}
	f.lock = New(f.mu, f.turnstile, f.counters, Config{
		WaitTimeout:  10 * time.Millisecond,
		SpinInterval: 100 * time.Microsecond,
	})
	return f
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	assert.Equal(t, int32(0), f.counters.Readers())
	assert.Equal(t, int32(0), f.counters.Writers())
	assert.False(t, f.turnstile.reset.Load(), "turnstile left closed")
	require.True(t, f.mu.mu.TryLock(), "mutex left held")
	f.mu.mu.Unlock()
}

func TestWritersAreExclusive(t *testing.T) {
	f := newFixture()

	var inside atomic.Int32
	var total int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := f.lock.WithWrite(func() error {
					if n := inside.Add(1); n != 1 {
						t.Errorf("%d writers inside", n)
					}
					total++
					inside.Add(-1)
					return nil
				})
				if err != nil {
					t.Errorf("WithWrite: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, total)
	f.assertReleased(t)
}

func TestReadersExcludeWriters(t *testing.T) {
	f := newFixture()

	var readers, writers atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 30; j++ {
				f.lock.WithRead(func() error {
					readers.Add(1)
					if writers.Load() != 0 {
						t.Error("reader inside with a writer")
					}
					time.Sleep(20 * time.Microsecond)
					readers.Add(-1)
					return nil
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 30; j++ {
				f.lock.WithWrite(func() error {
					writers.Add(1)
					if readers.Load() != 0 {
						t.Error("writer inside with a reader")
					}
					time.Sleep(20 * time.Microsecond)
					writers.Add(-1)
					return nil
				})
			}
		}()
	}
	wg.Wait()
	f.assertReleased(t)
}

func TestReadersShare(t *testing.T) {
	f := newFixture()

	second := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.lock.WithRead(func() error {
			select {
			case <-second:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("second reader never entered")
			}
		})
	}()

	require.Eventually(t, func() bool { return f.counters.Readers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, f.lock.WithRead(func() error {
		close(second)
		return nil
	}))
	require.NoError(t, <-done)
	f.assertReleased(t)
}

func TestWriterWaitsForReadersToDrain(t *testing.T) {
	f := newFixture()
	f.counters.AddReaders(1)

	entered := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		f.lock.WithWrite(func() error {
			close(entered)
			return nil
		})
	}()

	select {
	case <-entered:
		t.Fatal("writer entered while a reader was inside")
	case <-time.After(30 * time.Millisecond):
	}
	assert.True(t, f.turnstile.reset.Load(), "pending writer must close the turnstile")

	f.counters.AddReaders(-1)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never entered after readers drained")
	}
	<-finished
	f.assertReleased(t)
}

func TestReaderBacksOffFromPendingWriter(t *testing.T) {
	f := newFixture()
	f.counters.AddWriters(1)

	entered := make(chan struct{})
	go func() {
		f.lock.WithRead(func() error {
			close(entered)
			return nil
		})
	}()

	select {
	case <-entered:
		t.Fatal("reader entered while a writer was pending")
	case <-time.After(30 * time.Millisecond):
	}

	f.counters.AddWriters(-1)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never entered")
	}
}

func TestReleaseOnError(t *testing.T) {
	f := newFixture()
	boom := errors.New("boom")

	assert.ErrorIs(t, f.lock.WithWrite(func() error { return boom }), boom)
	f.assertReleased(t)

	assert.ErrorIs(t, f.lock.WithRead(func() error { return boom }), boom)
	f.assertReleased(t)
}

func TestReleaseOnPanic(t *testing.T) {
	f := newFixture()

	assert.Panics(t, func() {
		f.lock.WithWrite(func() error { panic("boom") })
	})
	f.assertReleased(t)

	assert.Panics(t, func() {
		f.lock.WithRead(func() error { panic("boom") })
	})
	f.assertReleased(t)
}

func TestMutexErrorRestoresWriters(t *testing.T) {
	f := newFixture()
	f.mu.lockErr = errors.New("flock failed")

	called := false
	err := f.lock.WithWrite(func() error {
		called = true
		return nil
	})
	assert.EqualError(t, err, "flock failed")
	assert.False(t, called)
	assert.Equal(t, int32(0), f.counters.Writers())
}

func TestCloseAbortsWaits(t *testing.T) {
	f := newFixture()
	f.turnstile.Reset()

	done := make(chan error, 1)
	go func() {
		done <- f.lock.WithRead(func() error { return nil })
	}()

	time.Sleep(20 * time.Millisecond)
	f.lock.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("reader not released by Close")
	}
	assert.ErrorIs(t, f.lock.WithWrite(func() error { return nil }), ErrClosed)
}

func TestCloseAbortsDrainingWriter(t *testing.T) {
	f := newFixture()
	f.counters.AddReaders(1)

	done := make(chan error, 1)
	go func() {
		done <- f.lock.WithWrite(func() error { return nil })
	}()

	time.Sleep(20 * time.Millisecond)
	f.lock.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("writer not released by Close")
	}
	assert.Equal(t, int32(0), f.counters.Writers())
	assert.False(t, f.turnstile.reset.Load())
}
