// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Engine is the connection to a NetLogo workspace. [Link] is the real
// implementation; tests substitute a fake. Implementations are not
// required to be safe for concurrent use — Session serializes callers.
type Engine interface {
	// LoadModel opens a model file in the workspace.
	LoadModel(ctx context.Context, path string) error

	// Command executes an instruction for side effect only.
	Command(ctx context.Context, cmd string) error

	// Report evaluates a reporter expression and returns its value.
	Report(ctx context.Context, expr string) (Value, error)

	// PatchReport evaluates a patch attribute across the world grid.
	PatchReport(ctx context.Context, attribute string) ([][]Value, error)

	// Close releases the workspace. Must be safe to call more than once.
	Close() error
}

// EngineStarter constructs the engine connection. It is called at most
// once per Session.
type EngineStarter func(ctx context.Context) (Engine, error)

// LinkStarter returns an EngineStarter that launches the controller
// sidecar described by cfg.
func LinkStarter(cfg *Config, logger *slog.Logger) EngineStarter {
	return func(ctx context.Context) (Engine, error) {
		return StartLink(cfg, logger)
	}
}

// Session is the process-wide runtime handle: it owns the single engine
// connection, created lazily on first use and released exactly once by
// Close. It tracks whether a model has been loaded and serializes all
// engine access, since the underlying connection handles one in-flight
// instruction at a time.
//
// Session is an explicit value passed to the Server rather than hidden
// package state, so tests can run the whole tool surface against a fake
// engine.
type Session struct {
	start  EngineStarter
	logger *slog.Logger

	mu     sync.Mutex
	engine Engine
	loaded bool
	closed bool
}

// NewSession returns a Session that will start its engine with start on
// first use. A nil logger falls back to slog.Default().
func NewSession(start EngineStarter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{start: start, logger: logger}
}

// acquireLocked returns the live engine, starting it if needed.
// Callers must hold s.mu.
func (s *Session) acquireLocked(ctx context.Context) (Engine, error) {
	if s.closed {
		return nil, errors.New("session is closed")
	}
	if s.engine != nil {
		return s.engine, nil
	}
	eng, err := s.start(ctx)
	if err != nil {
		if !errors.Is(err, ErrConfiguration) {
			err = fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return nil, err
	}
	s.engine = eng
	s.logger.Info("engine connection established")
	return eng, nil
}

// Warm starts the engine connection eagerly so that JVM startup latency
// is paid before the transport accepts its first call.
func (s *Session) Warm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.acquireLocked(ctx)
	return err
}

// ModelLoaded reports whether a model has been loaded on this session.
func (s *Session) ModelLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// requireModelLocked fails with ErrNoModelLoaded before any engine call
// is made. Callers must hold s.mu.
func (s *Session) requireModelLocked() (Engine, error) {
	if !s.loaded || s.engine == nil {
		return nil, ErrNoModelLoaded
	}
	return s.engine, nil
}

// LoadModel opens a model file in the workspace and marks the session
// as having a loaded model.
func (s *Session) LoadModel(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, err := s.acquireLocked(ctx)
	if err != nil {
		return err
	}
	if err := eng.LoadModel(ctx, path); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// Command forwards one instruction to the engine. It is a pure
// pass-through with error translation: no parsing, no retry.
func (s *Session) Command(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, err := s.requireModelLocked()
	if err != nil {
		return err
	}
	return eng.Command(ctx, cmd)
}

// Report forwards one reporter expression and returns its typed value.
func (s *Session) Report(ctx context.Context, expr string) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, err := s.requireModelLocked()
	if err != nil {
		return Value{}, err
	}
	return eng.Report(ctx, expr)
}

// PatchGrid returns a patch attribute as a 2-D grid.
func (s *Session) PatchGrid(ctx context.Context, attribute string) ([][]Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, err := s.requireModelLocked()
	if err != nil {
		return nil, err
	}
	return eng.PatchReport(ctx, attribute)
}

// RunSteps advances the simulation count times with goCmd, evaluating
// every reporter once per advance, and returns one table row per
// advance in step order. count may be zero (an empty table with the
// requested columns) and reporters may be empty (count rows with zero
// columns).
//
// If any advance or evaluation fails, the whole call fails and no table
// is returned. The simulation clock is left wherever the engine
// stopped; callers must not assume the failed run was rolled back.
func (s *Session) RunSteps(ctx context.Context, count int, reporters []string, goCmd string) (*Table, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: step count must be >= 0, got %d", ErrValidation, count)
	}
	if goCmd == "" {
		goCmd = "go"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	eng, err := s.requireModelLocked()
	if err != nil {
		return nil, err
	}

	table := &Table{
		Columns: append([]string(nil), reporters...),
		Rows:    make([][]Value, 0, count),
	}
	for step := 0; step < count; step++ {
		if err := eng.Command(ctx, goCmd); err != nil {
			return nil, err
		}
		row := make([]Value, len(reporters))
		for i, expr := range reporters {
			v, err := eng.Report(ctx, expr)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Close releases the engine connection. It runs the release at most
// once; later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.engine == nil {
		return nil
	}
	s.logger.Info("releasing engine connection")
	err := s.engine.Close()
	s.engine = nil
	return err
}
