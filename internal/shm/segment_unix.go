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
	"io/fs"
	"os"
	"syscall"
)

func init() {
	// Set platform-specific function implementations
	unmapMemory = munmapImpl
}

// OpenOrCreateSegment maps the named segment, creating it zero-filled with the
// given size if it does not exist yet. An existing segment must have exactly
// the requested size.
//
// Creation is not atomic with respect to other processes opening the same
// name; callers serialise it with the named Mutex.
func OpenOrCreateSegment(dir, name string, size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid segment size %d", size)
	}
	path := SegmentPath(dir, name)

	created := false
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create segment file %s: %w", path, err)
		}
		created = true
		if err := file.Truncate(int64(size)); err != nil {
			file.Close()
			os.Remove(path)
			return nil, fmt.Errorf("failed to resize segment file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}
	if info.Size() != int64(size) {
		file.Close()
		return nil, fmt.Errorf("segment %s has size %d, expected %d", path, info.Size(), size)
	}

	mem, err := mmapFile(file, size)
	if err != nil {
		file.Close()
		if created {
			os.Remove(path)
		}
		return nil, fmt.Errorf("failed to mmap segment: %w", err)
	}

	return &Segment{
		File:    file,
		Mem:     mem,
		Path:    path,
		Created: created,
	}, nil
}

// mmapFile memory maps a file
func mmapFile(file *os.File, size int) ([]byte, error) {
	fd := int(file.Fd())

	data, err := syscall.Mmap(fd, 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	return data, nil
}

// munmapImpl unmaps a memory-mapped region
func munmapImpl(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	err := syscall.Munmap(data)
	if err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}

	return nil
}
