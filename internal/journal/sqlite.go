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
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores records in a SQLite database shared by all instances.
type SQLite struct {
	db     *sql.DB
	insert *sql.Stmt
}

// OpenSQLite creates or opens the database at path.
//
// The database is configured with WAL mode and a busy timeout so that every
// instance of a run can append to the same file.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite journal needs a path")
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	insert, err := db.Prepare(`INSERT INTO ticks (session, instance_id, tick, balance, equity) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return &SQLite{db: db, insert: insert}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection per process; other processes are handled by the busy
	// timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return db, nil
}

// Record inserts one row.
func (s *SQLite) Record(r Record) error {
	if _, err := s.insert.Exec(r.Session, r.InstanceID, r.Tick, r.Balance, r.Equity); err != nil {
		return fmt.Errorf("insert tick %d: %w", r.Tick, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	s.insert.Close()
	err := s.db.Close()
	s.db = nil
	return err
}

// ReadSQLite returns the records stored at path in insertion order. A
// non-empty session restricts the result to that session.
func ReadSQLite(path, session string) ([]Record, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT session, instance_id, tick, balance, equity FROM ticks
		WHERE ? = '' OR session = ? ORDER BY seq`, session, session)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Session, &r.InstanceID, &r.Tick, &r.Balance, &r.Equity); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
