//go:build linux || darwin

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
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
)

// Mutex is a named, cross-process exclusive lock backed by flock(2) on a lock
// file. The kernel drops the lock when the holding process exits, so a crashed
// holder never wedges the others.
//
// flock locks belong to the open file description, which every goroutine of
// the process shares through this Mutex. The embedded sync.Mutex therefore
// serialises holders within the process; the flock serialises processes.
type Mutex struct {
	mu   sync.Mutex
	file *os.File
	fd   int
	path string
}

// NewMutex opens (creating if needed) the lock file for the named mutex.
func NewMutex(dir, name string) (*Mutex, error) {
	path := SegmentPath(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open mutex file %s: %w", path, err)
	}
	return &Mutex{file: file, fd: int(file.Fd()), path: path}, nil
}

// Lock blocks until the mutex is held by the caller.
func (m *Mutex) Lock() error {
	m.mu.Lock()
	for {
		err := syscall.Flock(m.fd, syscall.LOCK_EX)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("flock %s: %w", m.path, err)
		}
		return nil
	}
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() error {
	defer m.mu.Unlock()
	if err := syscall.Flock(m.fd, syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unflock %s: %w", m.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (m *Mutex) Path() string {
	return m.path
}

// Close closes the lock file. A held lock is released by the kernel.
func (m *Mutex) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
