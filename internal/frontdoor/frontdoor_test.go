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

package frontdoor

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
)

// syncBuffer lets the log handler and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testDoor(t *testing.T) (*Door, *syncBuffer, connect.Options) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("shared memory tests only supported on Linux")
	}
	logs := &syncBuffer{}
	opts := connect.Options{
		Name:         "door-test",
		Dir:          t.TempDir(),
		Capacity:     64 * 1024,
		PollInterval: 20 * time.Millisecond,
	}
	d := New(opts, slog.New(slog.NewTextHandler(logs, nil)))
	t.Cleanup(func() { d.Close() })
	return d, logs, opts
}

func TestCallsBeforeInitializeAreSwallowed(t *testing.T) {
	d, logs, _ := testDoor(t)

	assert.Equal(t, 0.0, d.GetVariable("X"))
	d.SetVariable("X", 1)
	d.NextTick(1, 2, 3)
	d.DeclareVariable("X", 1)
	d.DeinitializeTestAPI()

	out := logs.String()
	for _, op := range []string{"GetVariable", "SetVariable", "NextTick", "DeclareVariable", "DeinitializeTestAPI"} {
		assert.Contains(t, out, "op="+op)
	}
	assert.Contains(t, out, "test API not initialized")
	assert.Equal(t, arena.StatusUnknown, d.Status())
}

func TestForwarding(t *testing.T) {
	d, logs, _ := testDoor(t)
	journalPath := filepath.Join(t.TempDir(), "EURUSD.csv")

	d.InitializeTestAPI(0, 1, 0, journalPath)
	require.Equal(t, arena.StatusInitialized, d.Status())

	d.DeclareVariable("total", int32(arena.OperationSum))
	d.SetVariable("total", 4.5)
	assert.Equal(t, 4.5, d.GetVariable("total"))
	d.NextTick(1, 1000, 1001)

	d.DeinitializeTestAPI()
	assert.Equal(t, arena.StatusDeinitialized, d.Status())
	assert.NotContains(t, logs.String(), "level=ERROR")

	data, err := os.ReadFile(journalPath)
	require.NoError(t, err)
	assert.Equal(t, "1;1000;1001;\n", string(data))
}

func TestDeinitializedInstanceKeepsWorking(t *testing.T) {
	_, _, opts := testDoor(t)
	log := slog.New(slog.NewTextHandler(&syncBuffer{}, nil))
	d0 := New(opts, log)
	t.Cleanup(func() { d0.Close() })
	d1 := New(opts, log)
	t.Cleanup(func() { d1.Close() })

	var wg sync.WaitGroup
	for i, d := range []*Door{d0, d1} {
		i, d := i, d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.InitializeTestAPI(int32(i), 2, 0, "")
		}()
	}
	wg.Wait()
	require.Equal(t, arena.StatusInitialized, d0.Status())

	d1.SetVariable("X", 10)
	assert.Equal(t, 10.0, d0.GetVariable("X"))

	d0.DeinitializeTestAPI()
	assert.Equal(t, arena.StatusDeinitialized, d0.Status())
	assert.Equal(t, 10.0, d0.GetVariable("X"))

	// Peer 1 is far ahead, which no longer holds back instance 0.
	d1.NextTick(100, 0, 0)
	d0.SetVariable("X", 11)
	assert.Equal(t, 11.0, d1.GetVariable("X"))

	// A second deinitialize is refused but the Client survives it.
	d0.DeinitializeTestAPI()
	assert.Equal(t, arena.StatusDeinitialized, d0.Status())
	assert.Equal(t, 11.0, d0.GetVariable("X"))
}

func TestGetVariableReturnsZeroOnFailure(t *testing.T) {
	d, logs, _ := testDoor(t)
	d.InitializeTestAPI(0, 1, 0, "")

	d.DeclareVariable("X", 9)
	d.SetVariable("X", 5)
	assert.Equal(t, 0.0, d.GetVariable("X"))
	assert.Contains(t, logs.String(), "unknown operation")
}

func TestInitializeFailureIsSwallowed(t *testing.T) {
	d, logs, _ := testDoor(t)

	d.InitializeTestAPI(3, 1, 0, "")
	assert.Contains(t, logs.String(), "invalid argument")
	assert.Equal(t, arena.StatusUnknown, d.Status())
	assert.Equal(t, 0.0, d.GetVariable("X"))
}

func TestRegistry(t *testing.T) {
	_, _, opts := testDoor(t)
	r := NewRegistry(opts, slog.New(slog.NewTextHandler(&syncBuffer{}, nil)))

	a := r.Create()
	b := r.Create()
	assert.NotEqual(t, Handle(0), a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
	require.NotNil(t, r.Get(a))
	assert.Nil(t, r.Get(Handle(99)))

	// Two instances of one run driven from one process.
	var wg sync.WaitGroup
	for i, h := range []Handle{a, b} {
		i, h := i, h
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Get(h).InitializeTestAPI(int32(i), 2, 0, "")
		}()
	}
	wg.Wait()
	assert.Equal(t, arena.StatusInitialized, r.Get(a).Status())
	assert.Equal(t, arena.StatusInitialized, r.Get(b).Status())

	r.Get(a).SetVariable("X", 2)
	assert.Equal(t, 2.0, r.Get(b).GetVariable("X"))

	require.NoError(t, r.Destroy(a))
	require.NoError(t, r.Destroy(a))
	assert.Nil(t, r.Get(a))
	require.NoError(t, r.Destroy(b))
	assert.Equal(t, 0, r.Len())
}
