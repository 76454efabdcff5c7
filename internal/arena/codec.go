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
	"fmt"
	"sort"
)

const (
	entrySize    = 4 + 4 + 8
	minVariable  = 4 + 4 // empty name, zero entries
	minOperation = 4 + 4 // empty name, operation
)

// Encode packs s, starting with the instance count, into a new buffer of at
// most limit bytes. It fails with ErrCapacityOverflow when the encoding
// would be longer.
func Encode(s *State, limit int) ([]byte, error) {
	if int(s.InstancesCount) != len(s.Instances) {
		return nil, fmt.Errorf("arena: instance count %d does not match %d instances", s.InstancesCount, len(s.Instances))
	}
	w := NewWriter(limit)
	w.Int32(s.InstancesCount)
	for _, in := range s.Instances {
		w.Int32(int32(in.Status))
	}
	for _, in := range s.Instances {
		w.Int32(in.Tick)
	}
	encodeDynamic(w, s)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeDynamic(w *Writer, s *State) {
	names := sortedKeys(s.Values)
	w.Count(len(names))
	for _, name := range names {
		entries := s.Values[name]
		w.String(name)
		w.Count(len(entries))
		for _, e := range entries {
			w.Int32(e.InstanceID)
			w.Int32(e.Tick)
			w.Float64(e.Value)
		}
	}

	names = sortedKeys(s.Operations)
	w.Count(len(names))
	for _, name := range names {
		w.String(name)
		w.Int32(int32(s.Operations[name]))
	}
}

// Decode unpacks a state encoded by Encode. Trailing bytes are ignored.
func Decode(b []byte) (*State, error) {
	r := NewReader(b)
	n := r.Count(2 * wordSize)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("instance count: %w", err)
	}

	s := NewState(int32(n))
	for i := range s.Instances {
		s.Instances[i].Status = Status(r.Int32())
	}
	for i := range s.Instances {
		s.Instances[i].Tick = r.Int32()
	}

	vars := r.Count(minVariable)
	for i := 0; i < vars && r.Err() == nil; i++ {
		name := r.String()
		count := r.Count(entrySize)
		entries := make([]Entry, count)
		for j := range entries {
			entries[j] = Entry{InstanceID: r.Int32(), Tick: r.Int32(), Value: r.Float64()}
		}
		if r.Err() != nil {
			break
		}
		if _, dup := s.Values[name]; dup {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrDecode, name)
		}
		s.Values[name] = entries
	}

	ops := r.Count(minOperation)
	for i := 0; i < ops && r.Err() == nil; i++ {
		name := r.String()
		op := Operation(r.Int32())
		if r.Err() != nil {
			break
		}
		if _, dup := s.Operations[name]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %q", ErrDecode, name)
		}
		s.Operations[name] = op
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
