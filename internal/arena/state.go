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
	"math"
	"strings"
)

// Status is the registration state of an instance.
type Status int32

const (
	StatusUnknown        Status = 0
	StatusNotInitialized Status = 1
	StatusInitialized    Status = 2
	StatusDeinitialized  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusNotInitialized:
		return "NotInitialized"
	case StatusInitialized:
		return "Initialized"
	case StatusDeinitialized:
		return "Deinitialized"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Operation is the aggregation applied when a variable is read.
type Operation int32

const (
	// OperationNothing keeps only the most recent write.
	OperationNothing Operation = 0
	// OperationSum adds up the most recent write of every instance.
	OperationSum Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OperationNothing:
		return "Nothing"
	case OperationSum:
		return "Sum"
	default:
		return fmt.Sprintf("Operation(%d)", int32(o))
	}
}

// Valid reports whether o has an implementation.
func (o Operation) Valid() bool {
	return o == OperationNothing || o == OperationSum
}

// ParseOperation maps a case-insensitive operation name to its value.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "nothing":
		return OperationNothing, nil
	case "sum":
		return OperationSum, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// Instance is one row of the instance table.
type Instance struct {
	ID     int32  `json:"id"`
	Status Status `json:"status"`
	Tick   int32  `json:"tick"`
}

// Entry is one contribution to a variable.
type Entry struct {
	InstanceID int32   `json:"instance"`
	Tick       int32   `json:"tick"`
	Value      float64 `json:"value"`
}

// State is the decoded content of the arena, excluding the lock counters.
type State struct {
	InstancesCount int32                `json:"instances_count"`
	Instances      []Instance           `json:"instances"`
	Values         map[string][]Entry   `json:"values"`
	Operations     map[string]Operation `json:"operations"`
}

// NewState returns an empty state for n instances.
func NewState(n int32) *State {
	s := &State{
		InstancesCount: n,
		Instances:      make([]Instance, n),
		Values:         make(map[string][]Entry),
		Operations:     make(map[string]Operation),
	}
	for i := range s.Instances {
		s.Instances[i].ID = int32(i)
	}
	return s
}

// Known returns the number of instances that have registered at least once.
func (s *State) Known() int {
	return KnownOf(s.Instances)
}

// Slowest returns the smallest tick among instances that have not
// deinitialized, or math.MaxInt32 when there are none.
func (s *State) Slowest() int32 {
	return SlowestOf(s.Instances)
}

// KnownOf counts the instances whose status is not StatusUnknown.
func KnownOf(instances []Instance) int {
	known := 0
	for _, in := range instances {
		if in.Status != StatusUnknown {
			known++
		}
	}
	return known
}

// SlowestOf returns the smallest tick among instances that have not
// deinitialized, or math.MaxInt32 when there are none.
func SlowestOf(instances []Instance) int32 {
	lowest := int32(math.MaxInt32)
	for _, in := range instances {
		if in.Status != StatusDeinitialized && in.Tick < lowest {
			lowest = in.Tick
		}
	}
	return lowest
}

// Operation returns the aggregation declared for name, OperationNothing when
// none was declared.
func (s *State) Operation(name string) Operation {
	return s.Operations[name]
}

// Value returns the visible value of name: the last write for
// OperationNothing and the sum of every instance's last write for
// OperationSum. A variable that was never written reads as 0.
func (s *State) Value(name string) (float64, error) {
	op := s.Operation(name)
	entries := s.Values[name]
	switch op {
	case OperationNothing:
		if len(entries) == 0 {
			return 0, nil
		}
		return entries[len(entries)-1].Value, nil
	case OperationSum:
		sum := 0.0
		for _, i := range latestByInstance(entries) {
			sum += entries[i].Value
		}
		return sum, nil
	default:
		return 0, fmt.Errorf("%w: %v for %q", ErrUnknownOperation, op, name)
	}
}

// Contribute records value as written by instance at tick. A variable holds
// one entry per key: OperationNothing keeps a single entry that every write
// replaces, whoever wrote it, and OperationSum keeps one entry per instance
// that the instance's own writes replace.
func (s *State) Contribute(name string, instance, tick int32, value float64) error {
	e := Entry{InstanceID: instance, Tick: tick, Value: value}
	switch op := s.Operation(name); op {
	case OperationNothing:
		s.Values[name] = []Entry{e}
	case OperationSum:
		entries := s.Values[name]
		if i, ok := latestByInstance(entries)[instance]; ok {
			entries[i] = e
		} else {
			entries = append(entries, e)
		}
		s.Values[name] = entries
	default:
		return fmt.Errorf("%w: %v for %q", ErrUnknownOperation, op, name)
	}
	return nil
}

// latestByInstance maps each contributing instance to the index of its last
// entry.
func latestByInstance(entries []Entry) map[int32]int {
	latest := make(map[int32]int, len(entries))
	for i, e := range entries {
		latest[e.InstanceID] = i
	}
	return latest
}
