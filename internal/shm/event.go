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
	"math"
	"sync/atomic"
	"time"
)

// Events segment layout
const (
	// EventsSegmentSize is the size of the named segment hosting the event words
	EventsSegmentSize = 64

	turnstileOffset = 0x00 // uint32: 0 = signalled, 1 = reset
	changedOffset   = 0x04 // uint32: change sequence number
)

// Event is a named manual-reset event. While signalled every Wait returns
// immediately; once Reset, waiters block until the next Set.
//
// The word stores 0 for "signalled" so that a freshly created, zero-filled
// segment starts out signalled.
type Event struct {
	word *uint32
}

// NewEvent wraps a word of a mapped segment as an Event.
func NewEvent(word *uint32) *Event {
	return &Event{word: word}
}

// Set signals the event and wakes every waiter in every process.
func (e *Event) Set() {
	atomic.StoreUint32(e.word, 0)
	futexWake(e.word, math.MaxInt32)
}

// Reset makes subsequent waits block until the next Set.
func (e *Event) Reset() {
	atomic.StoreUint32(e.word, 1)
}

// IsSet reports whether the event is signalled.
func (e *Event) IsSet() bool {
	return atomic.LoadUint32(e.word) == 0
}

// Wait blocks until the event is signalled or timeout elapses, and reports
// whether it was signalled on return.
func (e *Event) Wait(timeout time.Duration) bool {
	if e.IsSet() {
		return true
	}
	futexWaitTimeout(e.word, 1, timeout.Nanoseconds())
	return e.IsSet()
}

// Notifier broadcasts "something changed" through a sequence number. A waiter
// snapshots the sequence while it still holds the state it evaluated, and
// waits for the sequence to move past the snapshot. Any Notify issued after
// the snapshot ends the wait, so there is no lost wakeup and nothing ever has
// to be reset.
type Notifier struct {
	seq *uint32
}

// NewNotifier wraps a word of a mapped segment as a Notifier.
func NewNotifier(word *uint32) *Notifier {
	return &Notifier{seq: word}
}

// Snapshot returns the current sequence number.
func (n *Notifier) Snapshot() uint32 {
	return atomic.LoadUint32(n.seq)
}

// Notify advances the sequence and wakes every waiter in every process.
func (n *Notifier) Notify() {
	atomic.AddUint32(n.seq, 1)
	futexWake(n.seq, math.MaxInt32)
}

// Wait blocks until the sequence differs from snapshot or timeout elapses,
// and reports whether the sequence moved.
func (n *Notifier) Wait(snapshot uint32, timeout time.Duration) bool {
	futexWaitTimeout(n.seq, snapshot, timeout.Nanoseconds())
	return atomic.LoadUint32(n.seq) != snapshot
}

// Events is the named segment holding the reader turnstile and the change
// notifier shared by all participants.
type Events struct {
	seg       *Segment
	Turnstile *Event
	Changed   *Notifier
}

// OpenEvents maps (creating if needed) the named events segment.
func OpenEvents(dir, name string) (*Events, error) {
	seg, err := OpenOrCreateSegment(dir, name, EventsSegmentSize)
	if err != nil {
		return nil, err
	}
	return &Events{
		seg:       seg,
		Turnstile: NewEvent(seg.Uint32(turnstileOffset)),
		Changed:   NewNotifier(seg.Uint32(changedOffset)),
	}, nil
}

// Path returns the file path of the events segment.
func (e *Events) Path() string {
	return e.seg.Path
}

// Close unmaps the events segment.
func (e *Events) Close() error {
	return e.seg.Close()
}
