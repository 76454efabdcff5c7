/*
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
 */

// Package shm provides the named cross-process objects the connect core is
// built from: memory-mapped segments, a named exclusive mutex, a manual-reset
// broadcast event and a change notifier.
//
// Every object is identified by a name that all participant processes share.
// Segments live under /dev/shm when it is available and fall back to the
// temporary directory otherwise. Waiting is implemented with shared futexes
// over words inside a mapped segment, so any process mapping the same file
// can wake any other. All waits are bounded; callers are expected to re-check
// their condition after every wake since wakes may be spurious or lost.
package shm
