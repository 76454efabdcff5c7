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

package connect

import (
	"errors"
	"fmt"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/rwlock"
)

var (
	// ErrInvalidArgument reports a bad instance id or count, or a count that
	// disagrees with the one already agreed in the arena.
	ErrInvalidArgument = errors.New("connect: invalid argument")

	// ErrInvalidState reports a call made before Initialize or a repeated
	// Deinitialize.
	ErrInvalidState = errors.New("connect: invalid state")

	// ErrUnimplementedOperation reports a variable whose declared
	// aggregation has no implementation.
	ErrUnimplementedOperation = arena.ErrUnknownOperation

	// ErrClosed is returned by calls on, or interrupted by, a closed Client.
	ErrClosed = fmt.Errorf("%w: client closed", ErrInvalidState)
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// closedErr maps a lock closed under an operation to ErrClosed.
func closedErr(err error) error {
	if errors.Is(err, rwlock.ErrClosed) {
		return ErrClosed
	}
	return err
}
