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

package shm

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipUnlessLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("shared memory tests only supported on Linux")
	}
}

// openTestSegment maps a segment in a per-test directory and unmaps it on
// cleanup.
func openTestSegment(t *testing.T, dir, name string, size int) *Segment {
	t.Helper()
	seg, err := OpenOrCreateSegment(dir, name, size)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	return seg
}

func TestSegmentCreateThenOpen(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	first := openTestSegment(t, dir, "arena", 4096)
	assert.True(t, first.Created)
	assert.Equal(t, 4096, first.Size())
	assert.True(t, Exists(dir, "arena"))

	second := openTestSegment(t, dir, "arena", 4096)
	assert.False(t, second.Created)

	// Both mappings see the same bytes.
	first.Mem[100] = 0x5A
	assert.Equal(t, byte(0x5A), second.Mem[100])
}

func TestSegmentSizeMismatch(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	openTestSegment(t, dir, "arena", 4096)
	_, err := OpenOrCreateSegment(dir, "arena", 8192)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8192")
}

func TestSegmentInvalidSize(t *testing.T) {
	_, err := OpenOrCreateSegment(t.TempDir(), "arena", 0)
	require.Error(t, err)
}

func TestSegmentRemove(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	seg, err := OpenOrCreateSegment(dir, "gone", 64)
	require.NoError(t, err)
	require.NoError(t, seg.Close())

	require.NoError(t, Remove(dir, "gone"))
	assert.False(t, Exists(dir, "gone"))
	assert.Error(t, Remove(dir, "gone"))
}

func TestSegmentWordBounds(t *testing.T) {
	skipUnlessLinux(t)
	seg := openTestSegment(t, t.TempDir(), "words", 64)

	assert.NotPanics(t, func() { seg.Uint32(60) })
	assert.Panics(t, func() { seg.Uint32(62) })
	assert.Panics(t, func() { seg.Uint32(64) })
	assert.Panics(t, func() { seg.Uint32(-4) })
}

func TestSegmentPathDefaultsToDevShm(t *testing.T) {
	if !isDevShmAvailable() {
		t.Skip("/dev/shm not available")
	}
	assert.Equal(t, "/dev/shm/x", SegmentPath("", "x"))
	assert.Equal(t, "/tmp/y/x", SegmentPath("/tmp/y", "x"))
}

func TestEventStartsSignalled(t *testing.T) {
	skipUnlessLinux(t)
	ev, err := OpenEvents(t.TempDir(), "events")
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close() })

	assert.True(t, ev.Turnstile.IsSet())
	assert.True(t, ev.Turnstile.Wait(time.Millisecond))
}

func TestEventResetBlocksUntilSet(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	a, err := OpenEvents(dir, "events")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := OpenEvents(dir, "events")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	a.Turnstile.Reset()
	start := time.Now()
	assert.False(t, b.Turnstile.Wait(50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	go func() {
		time.Sleep(30 * time.Millisecond)
		a.Turnstile.Set()
	}()
	start = time.Now()
	assert.True(t, b.Turnstile.Wait(2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotifierWakesAcrossMappings(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	a, err := OpenEvents(dir, "events")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := OpenEvents(dir, "events")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	snap := b.Changed.Snapshot()
	go func() {
		time.Sleep(30 * time.Millisecond)
		a.Changed.Notify()
	}()

	start := time.Now()
	assert.True(t, b.Changed.Wait(snap, 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotifierNoLostWakeup(t *testing.T) {
	skipUnlessLinux(t)
	ev, err := OpenEvents(t.TempDir(), "events")
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close() })

	// A notify between snapshot and wait must end the wait immediately.
	snap := ev.Changed.Snapshot()
	ev.Changed.Notify()

	start := time.Now()
	assert.True(t, ev.Changed.Wait(snap, 2*time.Second))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestNotifierTimeout(t *testing.T) {
	skipUnlessLinux(t)
	ev, err := OpenEvents(t.TempDir(), "events")
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close() })

	start := time.Now()
	assert.False(t, ev.Changed.Wait(ev.Changed.Snapshot(), 50*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestMutexExcludesOtherHandles(t *testing.T) {
	skipUnlessLinux(t)
	dir := t.TempDir()

	m1, err := NewMutex(dir, "lock")
	require.NoError(t, err)
	t.Cleanup(func() { m1.Close() })
	m2, err := NewMutex(dir, "lock")
	require.NoError(t, err)
	t.Cleanup(func() { m2.Close() })

	require.NoError(t, m1.Lock())

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m2.Lock(); err != nil {
			t.Errorf("m2.Lock: %v", err)
			return
		}
		acquired.Store(true)
		m2.Unlock()
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "second handle acquired a held mutex")

	require.NoError(t, m1.Unlock())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handle never acquired the released mutex")
	}
	assert.True(t, acquired.Load())
}

func TestMutexSerialisesGoroutinesOfOneHandle(t *testing.T) {
	skipUnlessLinux(t)
	m, err := NewMutex(t.TempDir(), "lock")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	var inside, maxInside atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				require.NoError(t, m.Lock())
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(50 * time.Microsecond)
				inside.Add(-1)
				m.Unlock()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, int32(1), maxInside.Load())
}
