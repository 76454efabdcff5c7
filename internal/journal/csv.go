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

package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// CSV appends "tick;balance;equity;" lines to a file.
type CSV struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// OpenCSV opens path for appending, creating it and its directory as needed.
func OpenCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, errors.New("csv journal needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	w := csv.NewWriter(f)
	w.Comma = ';'
	return &CSV{file: f, w: w}, nil
}

// Record writes and flushes one line.
func (c *CSV) Record(r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return os.ErrClosed
	}
	// The trailing empty field keeps the terminating separator.
	c.w.Write([]string{
		strconv.FormatInt(int64(r.Tick), 10),
		formatFloat(r.Balance),
		formatFloat(r.Equity),
		"",
	})
	c.w.Flush()
	return c.w.Error()
}

// Close closes the file.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
