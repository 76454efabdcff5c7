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

package arena

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	s := NewState(2)
	s.Instances[0].Status = StatusInitialized
	s.Instances[0].Tick = 100
	s.Instances[1].Status = StatusNotInitialized
	s.Values["EURUSD.spread"] = []Entry{{InstanceID: 0, Tick: 100, Value: 1.5}}
	s.Values["total"] = []Entry{
		{InstanceID: 0, Tick: 100, Value: 10},
		{InstanceID: 1, Tick: 0, Value: 12},
	}
	s.Operations["total"] = OperationSum
	return s
}

// hexLines renders b as lowercase hex, 16 bytes per line.
func hexLines(b []byte) []byte {
	var sb strings.Builder
	for len(b) > 0 {
		n := min(16, len(b))
		sb.WriteString(hex.EncodeToString(b[:n]))
		sb.WriteByte('\n')
		b = b[n:]
	}
	return []byte(sb.String())
}

func TestEncodeGolden(t *testing.T) {
	buf, err := Encode(sampleState(), DefaultCapacity)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "state", hexLines(buf))
}

func TestRoundTrip(t *testing.T) {
	unicode := NewState(1)
	unicode.Instances[0] = Instance{ID: 0, Status: StatusDeinitialized, Tick: -5}
	unicode.Values["Größe"] = []Entry{{InstanceID: 0, Tick: -5, Value: -0.25}}
	unicode.Operations["Größe"] = Operation(42)

	many := NewState(16)
	for i := range many.Instances {
		many.Instances[i].Status = StatusInitialized
		many.Instances[i].Tick = int32(i * 10)
		many.Values[strings.Repeat("v", i+1)] = []Entry{{InstanceID: int32(i), Tick: int32(i), Value: float64(i) / 3}}
	}

	tests := []struct {
		name  string
		state *State
	}{
		{"empty", NewState(0)},
		{"registered only", NewState(4)},
		{"sample", sampleState()},
		{"unicode and unknown operation", unicode},
		{"many instances", many},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.state, DefaultCapacity)
			require.NoError(t, err)

			got, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.state, got)

			again, err := Encode(got, DefaultCapacity)
			require.NoError(t, err)
			assert.Equal(t, buf, again, "encoding is not deterministic")
		})
	}
}

func TestDecodeZeroFilled(t *testing.T) {
	s, err := Decode(make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, NewState(0), s)
}

func TestEncodeOverflow(t *testing.T) {
	s := NewState(1)
	s.Values[strings.Repeat("x", 100)] = []Entry{{Value: 1}}

	buf, err := Encode(s, 64)
	assert.Nil(t, buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityOverflow))
}

func TestEncodeInstanceMismatch(t *testing.T) {
	s := NewState(2)
	s.InstancesCount = 3
	_, err := Encode(s, DefaultCapacity)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	buf, err := Encode(sampleState(), DefaultCapacity)
	require.NoError(t, err)

	// Every strict prefix that cuts a record must be rejected.
	for _, n := range []int{0, 3, 4, 12, 21, 30, 40, len(buf) - 1} {
		_, err := Decode(buf[:n])
		assert.ErrorIs(t, err, ErrDecode, "prefix of %d bytes", n)
	}
}

func TestDecodeInconsistentCounts(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"negative instance count", le32(-1, 0, 0)},
		{"instance count beyond buffer", le32(1000, 0, 0)},
		{"negative variable count", le32(0, -3, 0)},
		{"negative string length", le32(0, 1, -1, 0, 0)},
		{"entry count beyond buffer", le32(0, 1, 0, 50, 0)},
		{"duplicate variable", duplicateVariable()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func duplicateVariable() []byte {
	w := NewWriter(1 << 20)
	w.Int32(0)
	w.Count(2)
	w.String("a")
	w.Count(0)
	w.String("a")
	w.Count(0)
	w.Count(0)
	return w.Bytes()
}

// le32 packs words as little-endian int32.
func le32(words ...int32) []byte {
	w := NewWriter(1 << 20)
	for _, v := range words {
		w.Int32(v)
	}
	return w.Bytes()
}
