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

import "errors"

var (
	// ErrCapacityOverflow is returned when an encoded state does not fit in
	// the arena. The arena is left untouched.
	ErrCapacityOverflow = errors.New("arena: capacity overflow")

	// ErrDecode is returned when the arena holds a truncated or inconsistent
	// encoding.
	ErrDecode = errors.New("arena: decode error")

	// ErrUnknownOperation is returned when a variable's aggregation operation
	// has no implementation.
	ErrUnknownOperation = errors.New("arena: unknown operation")
)
