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

// Package arena defines the fixed-capacity shared arena that holds all
// cross-process state of the connect core and the binary codec that packs
// that state into it.
//
// The arena starts with the reader and writer counters used by the
// distributed lock, followed by the write-once instance count, the instance
// table and the dynamic section:
//
//	offset 0       readersCount   int32 (atomic)
//	offset 4       writersCount   int32 (atomic)
//	offset 8       instancesCount int32 (write-once)
//	offset 12      statuses[n]    int32
//	offset 12+4n   ticks[n]       int32
//	offset 12+8n   dynamic section
//
// All integers are little-endian. The dynamic section is
//
//	int32 variableCount
//	  { string name, int32 entryCount, { int32 instance, int32 tick, float64 value } }
//	int32 operationCount
//	  { string name, int32 operation }
//
// where a string is an int32 byte length followed by the bytes. Records are
// written in ascending name order so that equal states encode identically.
package arena
