// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed data/primitives.md data/programming_guide.md
var docsFS embed.FS

const (
	primitivesURI  = "netlogo://docs/primitives"
	programmingURI = "netlogo://docs/programming"

	// modelResourcePrefix is the URI space of the model-source template.
	modelResourcePrefix = "netlogo://models/"
)

func (s *Server) registerResources() {
	s.addResource(&mcp.Resource{
		URI:         primitivesURI,
		Name:        "primitives",
		Description: "NetLogo primitives quick reference — commands, reporters, and syntax.",
		MIMEType:    "text/markdown",
	}, embeddedDoc("data/primitives.md"))

	s.addResource(&mcp.Resource{
		URI:         programmingURI,
		Name:        "programming",
		Description: "NetLogo programming guide — contexts, breeds, variables, control flow.",
		MIMEType:    "text/markdown",
	}, embeddedDoc("data/programming_guide.md"))

	s.addModelResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: modelResourcePrefix + "{name}",
		Name:        "model-source",
		Description: "Source of a model file from the models directory, by name (extension optional).",
		MIMEType:    "text/plain",
	}, s.modelSource)
}

// embeddedDoc serves one of the reference documents compiled into the
// binary.
func embeddedDoc(path string) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := docsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, path)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     string(text),
			}},
		}, nil
	}
}

// modelSource returns the source text of a model in the models
// directory. The name arrives from an untrusted caller and is used to
// build a filesystem path, so it is validated against traversal and the
// resolved path is re-checked to sit inside the models directory.
func (s *Server) modelSource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	name := strings.TrimPrefix(req.Params.URI, modelResourcePrefix)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if err := validateModelName(name); err != nil {
		return nil, err
	}

	path, err := s.resolveModelPath(name)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s", ErrNotFound, name)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     string(text),
		}},
	}, nil
}

// resolveModelPath maps a validated model name to an existing file in
// the models directory, trying .nlogo and .nlogox when the name carries
// no extension.
func (s *Server) resolveModelPath(name string) (string, error) {
	dir, err := filepath.Abs(s.cfg.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolving models directory: %v", ErrConfiguration, err)
	}

	candidates := []string{name}
	switch filepath.Ext(name) {
	case ".nlogo", ".nlogox":
	default:
		candidates = []string{name + ".nlogo", name + ".nlogox"}
	}

	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: invalid model name %q (path traversal not allowed)", ErrValidation, name)
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: model %s", ErrNotFound, name)
}
