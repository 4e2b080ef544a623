// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a scriptable stand-in for a NetLogo workspace, so the
// whole tool surface can be exercised without a JVM.
type fakeEngine struct {
	mu sync.Mutex

	loadModelErr error
	loadedPaths  []string

	commands    []string
	commandErrs map[string]error
	commandHook func(cmd string) error

	reports      map[string]Value
	reportErrs   map[string]error
	reportCalls  []string
	defaultValue Value

	patchGrid [][]Value
	patchErr  error

	closed int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		commandErrs:  make(map[string]error),
		reports:      make(map[string]Value),
		reportErrs:   make(map[string]error),
		defaultValue: IntValue(42),
		patchGrid: [][]Value{
			{IntValue(1), IntValue(2)},
			{IntValue(3), IntValue(4)},
		},
	}
}

func (f *fakeEngine) LoadModel(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadModelErr != nil {
		return f.loadModelErr
	}
	f.loadedPaths = append(f.loadedPaths, path)
	return nil
}

func (f *fakeEngine) Command(_ context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if f.commandHook != nil {
		return f.commandHook(cmd)
	}
	if err, ok := f.commandErrs[cmd]; ok {
		return err
	}
	return nil
}

func (f *fakeEngine) Report(_ context.Context, expr string) (Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls = append(f.reportCalls, expr)
	if err, ok := f.reportErrs[expr]; ok {
		return Value{}, err
	}
	if v, ok := f.reports[expr]; ok {
		return v, nil
	}
	return f.defaultValue, nil
}

func (f *fakeEngine) PatchReport(_ context.Context, _ string) ([][]Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	return f.patchGrid, nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeEngine) commandLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a Server to a fake engine with a temp models
// directory.
func newTestServer(t *testing.T) (*Server, *Session, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine()
	cfg := &Config{
		NetLogoHome: t.TempDir(),
		ModelsDir:   t.TempDir(),
	}
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	t.Cleanup(func() { _ = session.Close() })

	srv := New(cfg, session, &Options{Logger: discardLogger()})
	return srv, session, eng
}

// loadTestModel puts the session into the model-loaded state.
func loadTestModel(t *testing.T, session *Session) {
	t.Helper()
	require.NoError(t, session.LoadModel(context.Background(), "test.nlogo"))
}

// resultText extracts the first text content item from a tool result.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return text.Text
}

// decodeStructured unmarshals a tool result's structured content.
func decodeStructured(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
