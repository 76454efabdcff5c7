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

// Package config loads the YAML configuration shared by the connect tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/journal"
)

// Config is the root of the configuration file.
type Config struct {
	Segment Segment `yaml:"segment"`
	Sync    Sync    `yaml:"sync"`
	Journal Journal `yaml:"journal"`
	Log     Log     `yaml:"log"`
}

// Segment names the shared objects.
type Segment struct {
	Name     string `yaml:"name"`
	Dir      string `yaml:"dir"`
	Capacity int    `yaml:"capacity"`
}

// Sync tunes tick gating and waiting.
type Sync struct {
	Tolerance    int32         `yaml:"tolerance"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SpinInterval time.Duration `yaml:"spin_interval"`
}

// Journal selects where balance and equity go.
type Journal struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	opts := connect.DefaultOptions()
	return Config{
		Segment: Segment{Name: opts.Name, Capacity: opts.Capacity},
		Sync:    Sync{PollInterval: opts.PollInterval, SpinInterval: opts.SpinInterval},
		Journal: Journal{Kind: journal.KindNone},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown fields are rejected.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Segment.Name == "" {
		errs = append(errs, errors.New("segment.name is empty"))
	}
	if c.Segment.Capacity < arena.MinCapacity {
		errs = append(errs, fmt.Errorf("segment.capacity %d below minimum %d", c.Segment.Capacity, arena.MinCapacity))
	}
	if c.Sync.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("sync.tolerance %d is negative", c.Sync.Tolerance))
	}
	if c.Sync.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("sync.poll_interval %v must be positive", c.Sync.PollInterval))
	}
	if c.Sync.SpinInterval <= 0 {
		errs = append(errs, fmt.Errorf("sync.spin_interval %v must be positive", c.Sync.SpinInterval))
	}
	switch strings.ToLower(c.Journal.Kind) {
	case "", journal.KindNone:
	case journal.KindCSV, journal.KindSQLite:
		if c.Journal.Path == "" {
			errs = append(errs, fmt.Errorf("journal.path is required for kind %q", c.Journal.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.kind %q must be one of none, csv, sqlite", c.Journal.Kind))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", f))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ConnectOptions builds client options, opening the configured journal. The
// returned options own the journal; it is closed with the Client.
func (c Config) ConnectOptions(logger *slog.Logger) (connect.Options, error) {
	sink, err := journal.Open(c.Journal.Kind, c.Journal.Path)
	if err != nil {
		return connect.Options{}, err
	}
	return connect.Options{
		Name:          c.Segment.Name,
		Dir:           c.Segment.Dir,
		Capacity:      c.Segment.Capacity,
		SyncTolerance: c.Sync.Tolerance,
		PollInterval:  c.Sync.PollInterval,
		SpinInterval:  c.Sync.SpinInterval,
		Journal:       sink,
		Logger:        logger,
	}, nil
}
