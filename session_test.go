// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StartsEngineOnce(t *testing.T) {
	eng := newFakeEngine()
	starts := 0
	session := NewSession(func(context.Context) (Engine, error) {
		starts++
		return eng, nil
	}, discardLogger())

	ctx := context.Background()
	require.NoError(t, session.LoadModel(ctx, "a.nlogo"))
	require.NoError(t, session.LoadModel(ctx, "b.nlogox"))
	require.NoError(t, session.Command(ctx, "setup"))

	assert.Equal(t, 1, starts)
	assert.Equal(t, []string{"a.nlogo", "b.nlogox"}, eng.loadedPaths)
}

func TestSession_Warm(t *testing.T) {
	starts := 0
	session := NewSession(func(context.Context) (Engine, error) {
		starts++
		return newFakeEngine(), nil
	}, discardLogger())

	require.NoError(t, session.Warm(context.Background()))
	require.NoError(t, session.Warm(context.Background()))
	assert.Equal(t, 1, starts)
	assert.False(t, session.ModelLoaded())
}

func TestSession_RequiresModelBeforeEngineOps(t *testing.T) {
	starts := 0
	session := NewSession(func(context.Context) (Engine, error) {
		starts++
		return newFakeEngine(), nil
	}, discardLogger())

	ctx := context.Background()
	assert.ErrorIs(t, session.Command(ctx, "go"), ErrNoModelLoaded)

	_, err := session.Report(ctx, "ticks")
	assert.ErrorIs(t, err, ErrNoModelLoaded)

	_, err = session.PatchGrid(ctx, "pcolor")
	assert.ErrorIs(t, err, ErrNoModelLoaded)

	_, err = session.RunSteps(ctx, 3, nil, "")
	assert.ErrorIs(t, err, ErrNoModelLoaded)

	// The guard fires before the engine is even started.
	assert.Zero(t, starts)
	assert.False(t, session.ModelLoaded())
}

func TestSession_StarterFailureIsConfiguration(t *testing.T) {
	session := NewSession(func(context.Context) (Engine, error) {
		return nil, errors.New("no jvm on PATH")
	}, discardLogger())

	err := session.LoadModel(context.Background(), "x.nlogo")
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "no jvm on PATH")
}

func TestSession_FailedLoadLeavesModelUnloaded(t *testing.T) {
	eng := newFakeEngine()
	eng.loadModelErr = newEngineError("bad model file")
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())

	err := session.LoadModel(context.Background(), "broken.nlogo")
	require.Error(t, err)
	assert.False(t, session.ModelLoaded())
	assert.ErrorIs(t, session.Command(context.Background(), "go"), ErrNoModelLoaded)
}

func TestSession_RunSteps(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	ctx := context.Background()
	loadTestModel(t, session)

	sheep := int64(100)
	eng.commandHook = func(cmd string) error {
		if cmd == "go" {
			sheep -= 2
		}
		return nil
	}
	// Reporters see the state after each advance.
	table, err := session.RunSteps(ctx, 3, []string{"count sheep"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"count sheep"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"go", "go", "go"}, eng.commandLog())
	assert.Equal(t, []string{"count sheep", "count sheep", "count sheep"}, eng.reportCalls)
}

func TestSession_RunSteps_CustomGoCommand(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	_, err := session.RunSteps(context.Background(), 2, nil, "step")
	require.NoError(t, err)
	assert.Equal(t, []string{"step", "step"}, eng.commandLog())
}

func TestSession_RunSteps_ZeroTicks(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	table, err := session.RunSteps(context.Background(), 0, []string{"ticks"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ticks"}, table.Columns)
	assert.Empty(t, table.Rows)
	assert.Empty(t, eng.commandLog())
}

func TestSession_RunSteps_NoReporters(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	table, err := session.RunSteps(context.Background(), 4, nil, "")
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)
	for _, row := range table.Rows {
		assert.Empty(t, row)
	}
	assert.Empty(t, eng.reportCalls)
}

func TestSession_RunSteps_NegativeCount(t *testing.T) {
	session := NewSession(func(context.Context) (Engine, error) {
		return newFakeEngine(), nil
	}, discardLogger())
	loadTestModel(t, session)

	_, err := session.RunSteps(context.Background(), -1, nil, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSession_RunSteps_MidRunFailure(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	calls := 0
	eng.commandHook = func(string) error {
		calls++
		if calls == 3 {
			return newEngineError("runtime error at tick 3")
		}
		return nil
	}

	table, err := session.RunSteps(context.Background(), 10, []string{"ticks"}, "")
	require.Error(t, err)
	assert.Nil(t, table, "a failed run returns no partial table")

	var engErr *EngineError
	assert.ErrorAs(t, err, &engErr)
	// The engine stopped mid-run; two advances already happened.
	assert.Equal(t, 3, calls)
}

func TestSession_RunSteps_ReporterFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.reportErrs["count wolves"] = newEngineError("WOLVES breed is undefined")
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	table, err := session.RunSteps(context.Background(), 5, []string{"ticks", "count wolves"}, "")
	require.Error(t, err)
	assert.Nil(t, table)
	// The failure surfaced on the first row's second reporter.
	assert.Equal(t, []string{"go"}, eng.commandLog())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	eng := newFakeEngine()
	session := NewSession(func(context.Context) (Engine, error) {
		return eng, nil
	}, discardLogger())
	loadTestModel(t, session)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, eng.closed)

	err := session.Command(context.Background(), "go")
	require.Error(t, err)
}

func TestSession_CloseWithoutEngine(t *testing.T) {
	starts := 0
	session := NewSession(func(context.Context) (Engine, error) {
		starts++
		return newFakeEngine(), nil
	}, discardLogger())

	require.NoError(t, session.Close())
	assert.Zero(t, starts, "closing an unused session never starts the engine")
}
