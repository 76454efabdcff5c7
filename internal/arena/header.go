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
	"sync/atomic"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/shm"
)

// Arena is a view over the mapped bytes of the shared arena. The lock
// counters are accessed atomically at any time; everything else must only be
// read under a read-acquired lock and written under a write-acquired lock.
type Arena struct {
	mem []byte
}

// New wraps mem, which must be at least MinCapacity bytes long and 4-byte
// aligned.
func New(mem []byte) (*Arena, error) {
	if len(mem) < MinCapacity {
		return nil, fmt.Errorf("arena of %d bytes is below minimum %d", len(mem), MinCapacity)
	}
	return &Arena{mem: mem}, nil
}

// Capacity returns the arena size in bytes.
func (a *Arena) Capacity() int { return len(a.mem) }

func (a *Arena) word(off int) *uint32 {
	return shm.Word(a.mem, off)
}

// AddReaders adds delta to the readers counter and returns the new value.
func (a *Arena) AddReaders(delta int32) int32 {
	return int32(atomic.AddUint32(a.word(readersOffset), uint32(delta)))
}

// AddWriters adds delta to the writers counter and returns the new value.
func (a *Arena) AddWriters(delta int32) int32 {
	return int32(atomic.AddUint32(a.word(writersOffset), uint32(delta)))
}

// Readers returns the readers counter.
func (a *Arena) Readers() int32 {
	return int32(atomic.LoadUint32(a.word(readersOffset)))
}

// Writers returns the writers counter.
func (a *Arena) Writers() int32 {
	return int32(atomic.LoadUint32(a.word(writersOffset)))
}

// ResetCounters zeroes both lock counters. It is only safe when no process
// holds or is acquiring the lock, and exists to recover from a holder that
// died without releasing.
func (a *Arena) ResetCounters() {
	atomic.StoreUint32(a.word(readersOffset), 0)
	atomic.StoreUint32(a.word(writersOffset), 0)
}

// InstancesCount returns the agreed instance count, 0 before the first
// registration.
func (a *Arena) InstancesCount() int32 {
	return int32(atomic.LoadUint32(a.word(instancesCountOffset)))
}

// Layout returns the offsets for the current instance count.
func (a *Arena) Layout() (Layout, error) {
	return NewLayout(int(a.InstancesCount()), len(a.mem))
}

func (a *Arena) instanceWord(id int32, tick bool) (*uint32, error) {
	l, err := a.Layout()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if id < 0 || int(id) >= l.InstancesCount {
		return nil, fmt.Errorf("instance %d outside [0, %d)", id, l.InstancesCount)
	}
	if tick {
		return a.word(l.TickOffset(int(id))), nil
	}
	return a.word(l.StatusOffset(int(id))), nil
}

// Status returns the status of instance id.
func (a *Arena) Status(id int32) (Status, error) {
	w, err := a.instanceWord(id, false)
	if err != nil {
		return StatusUnknown, err
	}
	return Status(atomic.LoadUint32(w)), nil
}

// SetStatus stores the status of instance id.
func (a *Arena) SetStatus(id int32, s Status) error {
	w, err := a.instanceWord(id, false)
	if err != nil {
		return err
	}
	atomic.StoreUint32(w, uint32(s))
	return nil
}

// Tick returns the tick of instance id.
func (a *Arena) Tick(id int32) (int32, error) {
	w, err := a.instanceWord(id, true)
	if err != nil {
		return 0, err
	}
	return int32(atomic.LoadUint32(w)), nil
}

// SetTick stores the tick of instance id.
func (a *Arena) SetTick(id int32, tick int32) error {
	w, err := a.instanceWord(id, true)
	if err != nil {
		return err
	}
	atomic.StoreUint32(w, uint32(tick))
	return nil
}

// Instances reads the instance table without decoding the dynamic section.
func (a *Arena) Instances() ([]Instance, error) {
	l, err := a.Layout()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := make([]Instance, l.InstancesCount)
	for i := range out {
		out[i] = Instance{
			ID:     int32(i),
			Status: Status(atomic.LoadUint32(a.word(l.StatusOffset(i)))),
			Tick:   int32(atomic.LoadUint32(a.word(l.TickOffset(i)))),
		}
	}
	return out, nil
}

// Slowest returns the smallest tick among instances that have not
// deinitialized, or math.MaxInt32 when there are none.
func (a *Arena) Slowest() (int32, error) {
	instances, err := a.Instances()
	if err != nil {
		return 0, err
	}
	return SlowestOf(instances), nil
}

// Load decodes the whole state.
func (a *Arena) Load() (*State, error) {
	return Decode(a.mem[instancesCountOffset:])
}

// Commit encodes s and copies it over the arena. On error the arena is left
// untouched.
func (a *Arena) Commit(s *State) error {
	buf, err := Encode(s, len(a.mem)-instancesCountOffset)
	if err != nil {
		return err
	}
	copy(a.mem[instancesCountOffset:], buf)
	return nil
}
