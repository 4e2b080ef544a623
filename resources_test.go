// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResource_Docs(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	res, err := srv.ReadResource(ctx, primitivesURI)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, primitivesURI, res.Contents[0].URI)
	assert.Equal(t, "text/markdown", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, "create-turtles")

	res, err = srv.ReadResource(ctx, programmingURI)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "breed")
}

func TestReadResource_ModelSource(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	source := "to setup\n  clear-all\nend"
	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.ModelsDir, "fire.nlogo"), []byte(source), 0o644))

	// By bare name, extension resolved automatically.
	res, err := srv.ReadResource(ctx, "netlogo://models/fire")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, source, res.Contents[0].Text)
	assert.Equal(t, "text/plain", res.Contents[0].MIMEType)

	// With explicit extension.
	res, err = srv.ReadResource(ctx, "netlogo://models/fire.nlogo")
	require.NoError(t, err)
	assert.Equal(t, source, res.Contents[0].Text)
}

func TestReadResource_ModelSource_PrefersNlogo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.ModelsDir, "ants.nlogo"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.ModelsDir, "ants.nlogox"), []byte("new"), 0o644))

	res, err := srv.ReadResource(context.Background(), "netlogo://models/ants")
	require.NoError(t, err)
	assert.Equal(t, "old", res.Contents[0].Text)
}

func TestReadResource_ModelSource_Traversal(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	// A secret outside the models directory must stay unreachable.
	outside := filepath.Join(filepath.Dir(srv.cfg.ModelsDir), "secret.nlogo")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	for _, uri := range []string{
		"netlogo://models/../secret",
		"netlogo://models/..%2Fsecret",
		"netlogo://models/..",
	} {
		_, err := srv.ReadResource(ctx, uri)
		require.ErrorIs(t, err, ErrValidation, "uri %s", uri)
	}
}

func TestReadResource_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	_, err := srv.ReadResource(ctx, "netlogo://models/missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = srv.ReadResource(ctx, "netlogo://docs/nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}
