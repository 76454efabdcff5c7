package shm

import "errors"

// ErrFutexTimeout is returned by futexWaitTimeout when the wait times out.
var ErrFutexTimeout = errors.New("futex timeout")

// ErrUnsupported is returned by operations the current platform cannot provide.
var ErrUnsupported = errors.New("shared memory operations not supported on this platform")
