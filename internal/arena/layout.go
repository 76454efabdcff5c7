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

import "fmt"

// Arena layout constants
const (
	// DefaultCapacity is the size of the shared arena (10 MiB).
	DefaultCapacity = 0xA00000

	wordSize = 4

	readersOffset        = 0x00 // int32: readers holding or acquiring the lock
	writersOffset        = 0x04 // int32: writers holding or acquiring the lock
	instancesCountOffset = 0x08 // int32: write-once participant count
	instanceTableOffset  = 0x0C // statuses[n] then ticks[n]

	// MinCapacity fits the fixed header of an empty arena.
	MinCapacity = instanceTableOffset + 2*wordSize
)

// Layout holds the offsets derived from a fixed instance count. Every
// participant that agrees on the count derives the same Layout.
type Layout struct {
	InstancesCount int
	Capacity       int
}

// NewLayout validates that n instances fit an arena of the given capacity
// alongside an empty dynamic section.
func NewLayout(n, capacity int) (Layout, error) {
	if n < 0 {
		return Layout{}, fmt.Errorf("invalid instance count %d", n)
	}
	if capacity < MinCapacity {
		return Layout{}, fmt.Errorf("capacity %d below minimum %d", capacity, MinCapacity)
	}
	l := Layout{InstancesCount: n, Capacity: capacity}
	// An empty dynamic section is two zero counts.
	if need := l.DynamicOffset() + 2*wordSize; need > capacity {
		return Layout{}, fmt.Errorf("%d instances need %d bytes, capacity is %d: %w", n, need, capacity, ErrCapacityOverflow)
	}
	return l, nil
}

// StatusOffset returns the offset of the status word of instance id.
func (l Layout) StatusOffset(id int) int {
	return instanceTableOffset + id*wordSize
}

// TickOffset returns the offset of the tick word of instance id.
func (l Layout) TickOffset(id int) int {
	return instanceTableOffset + (l.InstancesCount+id)*wordSize
}

// DynamicOffset returns where the dynamic section starts.
func (l Layout) DynamicOffset() int {
	return instanceTableOffset + 2*l.InstancesCount*wordSize
}

// DynamicCapacity returns the number of bytes available to the dynamic
// section.
func (l Layout) DynamicCapacity() int {
	return l.Capacity - l.DynamicOffset()
}
