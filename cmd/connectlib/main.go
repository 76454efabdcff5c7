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

// Command connectlib builds the shared library loaded by the tester host:
//
//	go build -buildmode=c-shared -o MultiCurrencyTester.Connect.so ./cmd/connectlib
//
// The unqualified entry points drive a single process-wide instance. The
// Connect* entry points drive any number of instances through handles.
package main

import "C"

import (
	"log/slog"
	"os"
	"sync"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/config"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/frontdoor"
)

const (
	logFileName = "SmartDev.MultiCurrencyTester.Connect.log"
	configEnv   = "MCT_CONFIG"
)

var (
	setupOnce sync.Once
	logger    *slog.Logger
	door      *frontdoor.Door
	registry  *frontdoor.Registry
)

// setup builds the process-wide door and registry from the file named by
// MCT_CONFIG, or the defaults.
func setup() {
	setupOnce.Do(func() {
		cfg, cfgErr := config.Load(os.Getenv(configEnv))
		if cfgErr != nil {
			cfg = config.Default()
		}
		logger = newLogger(cfg)
		if cfgErr != nil {
			logger.Error("failed to load config, using defaults", "error", cfgErr)
		}
		base := connect.Options{
			Name:         cfg.Segment.Name,
			Dir:          cfg.Segment.Dir,
			Capacity:     cfg.Segment.Capacity,
			PollInterval: cfg.Sync.PollInterval,
			SpinInterval: cfg.Sync.SpinInterval,
		}
		door = frontdoor.New(base, logger)
		registry = frontdoor.NewRegistry(base, logger)
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	w := os.Stderr
	if f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		w = f
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

//export InitializeTestAPI
func InitializeTestAPI(instanceID, instancesCount, syncSeconds C.int, logFilePath *C.char) {
	setup()
	door.InitializeTestAPI(int32(instanceID), int32(instancesCount), int32(syncSeconds), goString(logFilePath))
}

//export DeinitializeTestAPI
func DeinitializeTestAPI() {
	setup()
	door.DeinitializeTestAPI()
}

//export NextTick
func NextTick(tick C.int, balance, equity C.double) {
	setup()
	door.NextTick(int32(tick), float64(balance), float64(equity))
}

//export DeclareVariable
func DeclareVariable(name *C.char, op C.int) {
	setup()
	door.DeclareVariable(goString(name), int32(op))
}

//export GetVariable
func GetVariable(name *C.char) C.double {
	setup()
	return C.double(door.GetVariable(goString(name)))
}

//export SetVariable
func SetVariable(name *C.char, value C.double) {
	setup()
	door.SetVariable(goString(name), float64(value))
}

//export ConnectCreate
func ConnectCreate() C.ulonglong {
	setup()
	return C.ulonglong(registry.Create())
}

//export ConnectDestroy
func ConnectDestroy(h C.ulonglong) {
	setup()
	registry.Destroy(frontdoor.Handle(h))
}

//export ConnectInitializeTestAPI
func ConnectInitializeTestAPI(h C.ulonglong, instanceID, instancesCount, syncSeconds C.int, logFilePath *C.char) {
	if d := handle(h); d != nil {
		d.InitializeTestAPI(int32(instanceID), int32(instancesCount), int32(syncSeconds), goString(logFilePath))
	}
}

//export ConnectDeinitializeTestAPI
func ConnectDeinitializeTestAPI(h C.ulonglong) {
	if d := handle(h); d != nil {
		d.DeinitializeTestAPI()
	}
}

//export ConnectNextTick
func ConnectNextTick(h C.ulonglong, tick C.int, balance, equity C.double) {
	if d := handle(h); d != nil {
		d.NextTick(int32(tick), float64(balance), float64(equity))
	}
}

//export ConnectDeclareVariable
func ConnectDeclareVariable(h C.ulonglong, name *C.char, op C.int) {
	if d := handle(h); d != nil {
		d.DeclareVariable(goString(name), int32(op))
	}
}

//export ConnectGetVariable
func ConnectGetVariable(h C.ulonglong, name *C.char) C.double {
	if d := handle(h); d != nil {
		return C.double(d.GetVariable(goString(name)))
	}
	return 0
}

//export ConnectSetVariable
func ConnectSetVariable(h C.ulonglong, name *C.char, value C.double) {
	if d := handle(h); d != nil {
		d.SetVariable(goString(name), float64(value))
	}
}

func handle(h C.ulonglong) *frontdoor.Door {
	setup()
	d := registry.Get(frontdoor.Handle(h))
	if d == nil {
		logger.Warn("unknown handle", "handle", uint64(h))
	}
	return d
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func main() {}
