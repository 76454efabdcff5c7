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
	"fmt"
	"os"
	"path/filepath"
	"unsafe"
)

// Platform-specific functions (implemented in platform-specific files)
var (
	// unmapMemory unmaps a memory-mapped region
	unmapMemory func([]byte) error
)

// Segment represents a mapped shared memory segment
type Segment struct {
	File    *os.File // File backing the mapping
	Mem     []byte   // Memory-mapped region
	Path    string   // File path
	Created bool     // True if this call created the file
}

// Close unmaps the memory and closes the file
func (s *Segment) Close() error {
	var firstErr error

	if s.Mem != nil {
		if err := unmapMemory(s.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.Mem = nil
	}

	if s.File != nil {
		if err := s.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.File = nil
	}

	return firstErr
}

// Size returns the mapped size in bytes.
func (s *Segment) Size() int {
	return len(s.Mem)
}

// Uint32 returns a pointer to the 4-byte aligned word at off. It panics if the
// word lies outside the mapping; offsets are compile-time layout constants, so
// a bad offset is a programming error.
func (s *Segment) Uint32(off int) *uint32 {
	return Word(s.Mem, off)
}

// Word is the single place where a mapped byte slice is reinterpreted as a
// word for atomic access. It panics on an out of range or misaligned offset.
func Word(mem []byte, off int) *uint32 {
	if off < 0 || off%4 != 0 || off+4 > len(mem) {
		panic(fmt.Sprintf("shm: word offset %d out of range for %d-byte mapping", off, len(mem)))
	}
	return (*uint32)(unsafe.Pointer(&mem[off]))
}

// SegmentPath returns the file path backing the named object. An empty dir
// selects /dev/shm when it is available and the temporary directory otherwise.
func SegmentPath(dir, name string) string {
	if dir != "" {
		return filepath.Join(dir, name)
	}
	if isDevShmAvailable() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}

// isDevShmAvailable checks if /dev/shm is available
func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Remove removes the file backing a named object.
func Remove(dir, name string) error {
	if err := os.Remove(SegmentPath(dir, name)); err != nil {
		return err
	}
	return nil
}

// Exists checks if the file backing a named object exists
func Exists(dir, name string) bool {
	_, err := os.Stat(SegmentPath(dir, name))
	return err == nil
}
