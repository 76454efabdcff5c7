//go:build !linux && !darwin

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

// Mutex is not supported on this platform
type Mutex struct{}

// NewMutex is not supported on this platform
func NewMutex(dir, name string) (*Mutex, error) {
	return nil, ErrUnsupported
}

func (m *Mutex) Lock() error   { return ErrUnsupported }
func (m *Mutex) Unlock() error { return ErrUnsupported }
func (m *Mutex) Path() string  { return "" }
func (m *Mutex) Close() error  { return nil }
