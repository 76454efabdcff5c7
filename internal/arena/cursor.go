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

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer appends little-endian values to a private buffer that may not grow
// beyond a fixed limit. The first failure is sticky: later writes are
// dropped and Err reports it.
type Writer struct {
	buf   []byte
	limit int
	err   error
}

// NewWriter returns a Writer that fails once more than limit bytes are
// written.
func NewWriter(limit int) *Writer {
	return &Writer{limit: limit}
}

func (w *Writer) reserve(n int) []byte {
	if w.err != nil {
		return nil
	}
	if len(w.buf)+n > w.limit {
		w.err = fmt.Errorf("%w: need more than %d bytes", ErrCapacityOverflow, w.limit)
		return nil
	}
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return w.buf[off : off+n]
}

// Int32 appends v.
func (w *Writer) Int32(v int32) {
	if b := w.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

// Float64 appends v.
func (w *Writer) Float64(v float64) {
	if b := w.reserve(8); b != nil {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// String appends the byte length of s followed by its bytes.
func (w *Writer) String(s string) {
	if len(s) > math.MaxInt32 {
		w.fail(fmt.Errorf("%w: string of %d bytes", ErrCapacityOverflow, len(s)))
		return
	}
	w.Int32(int32(len(s)))
	if b := w.reserve(len(s)); b != nil {
		copy(b, s)
	}
}

// Count appends a collection length.
func (w *Writer) Count(n int) {
	if n > math.MaxInt32 {
		w.fail(fmt.Errorf("%w: collection of %d records", ErrCapacityOverflow, n))
		return
	}
	w.Int32(int32(n))
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Reader consumes little-endian values from a byte slice, rejecting any read
// past its end. The first failure is sticky: later reads return zero values
// and Err reports it.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.off {
		r.err = fmt.Errorf("%w: %s at offset %d needs %d bytes, %d left", ErrDecode, what, r.off, n, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Int32 reads an int32.
func (r *Reader) Int32() int32 {
	b := r.take(4, "int32")
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// Float64 reads a float64.
func (r *Reader) Float64() float64 {
	b := r.take(8, "float64")
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// String reads a length-prefixed string.
func (r *Reader) String() string {
	n := r.Int32()
	if r.err != nil {
		return ""
	}
	b := r.take(int(n), "string")
	if b == nil {
		return ""
	}
	return string(b)
}

// Count reads a collection length and checks that that many records of at
// least minRecord bytes each can still follow.
func (r *Reader) Count(minRecord int) int {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	left := len(r.buf) - r.off
	if n < 0 || (minRecord > 0 && int(n) > left/minRecord) {
		r.err = fmt.Errorf("%w: count %d at offset %d exceeds %d remaining bytes", ErrDecode, n, r.off-4, left)
		return 0
	}
	return int(n)
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }
