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
	"log/slog"
	"sync"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
)

// Handle identifies a Door held by a Registry. The zero Handle is never
// issued.
type Handle uint64

// Registry hands out Doors by Handle for hosts that drive several instances
// from one process.
type Registry struct {
	base connect.Options
	log  *slog.Logger

	mu    sync.Mutex
	next  Handle
	doors map[Handle]*Door
}

// NewRegistry returns an empty Registry whose Doors use base.
func NewRegistry(base connect.Options, log *slog.Logger) *Registry {
	return &Registry{base: base, log: log, doors: make(map[Handle]*Door)}
}

// Create adds a Door and returns its Handle.
func (r *Registry) Create() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	log := r.log
	if log == nil {
		log = slog.Default()
	}
	r.doors[h] = New(r.base, log.With("handle", uint64(h)))
	return h
}

// Get returns the Door for h, or nil if h is unknown.
func (r *Registry) Get(h Handle) *Door {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doors[h]
}

// Destroy closes and forgets the Door for h. Unknown handles are ignored.
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	d, ok := r.doors[h]
	delete(r.doors, h)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return d.Close()
}

// Len returns the number of live Doors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.doors)
}
