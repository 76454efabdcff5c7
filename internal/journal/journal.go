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

// Package journal records the balance and equity an instance reports on each
// tick. The connect core forwards every tick to a Sink and never fails a tick
// because a Sink did.
package journal

import (
	"fmt"
	"strings"
)

// Record is one reported tick.
type Record struct {
	Session    string
	InstanceID int32
	Tick       int32
	Balance    float64
	Equity     float64
}

// Sink receives tick records.
type Sink interface {
	Record(r Record) error
	Close() error
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(Record) error { return nil }
func (Discard) Close() error        { return nil }

// Kinds accepted by Open.
const (
	KindNone   = "none"
	KindCSV    = "csv"
	KindSQLite = "sqlite"
)

// Open returns the sink of the given kind writing to path. An empty kind is
// KindNone.
func Open(kind, path string) (Sink, error) {
	switch strings.ToLower(kind) {
	case "", KindNone:
		return Discard{}, nil
	case KindCSV:
		return OpenCSV(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal kind %q", kind)
	}
}
