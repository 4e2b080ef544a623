// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "netlogo-mcp"
	serverVersion = "v0.2.0"

	serverInstructions = "This server lets you create, run, and analyze NetLogo agent-based " +
		"models. Use open_model or create_model first, then command/report " +
		"to interact. Consult netlogo://docs/primitives for syntax help."
)

// Server wraps an mcp.Server with the fixed NetLogo surface: 12 tools,
// 3 resources, and 3 prompts, all registered at construction. Every
// tool is a thin wrapper over the Session forwarder — argument check,
// model-loaded precondition, one engine round trip, result shaping.
//
// The Server keeps parallel handler registries so the surface can be
// invoked in-process (CallTool, GetPrompt, ReadResource) with behavior
// identical to the MCP transport path. Tests run entirely through that
// seam.
type Server struct {
	server  *mcp.Server
	impl    *mcp.Implementation
	logger  *slog.Logger
	cfg     *Config
	session *Session

	// mu protects the handler registries for in-process dispatch.
	mu            sync.RWMutex
	tools         map[string]toolEntry
	prompts       map[string]promptEntry
	resources     map[string]resourceEntry
	modelResource mcp.ResourceHandler
}

// toolEntry holds a tool and its handler for direct invocation.
type toolEntry struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// promptEntry holds a prompt and its handler for direct invocation.
type promptEntry struct {
	prompt  *mcp.Prompt
	handler mcp.PromptHandler
}

// resourceEntry holds a resource and its handler for direct invocation.
type resourceEntry struct {
	resource *mcp.Resource
	handler  mcp.ResourceHandler
}

// Options configures a Server.
type Options struct {
	// Logger for server activity. If nil, a default logger is used.
	// It must never write to stdout: stdout belongs to the MCP stdio
	// transport.
	Logger *slog.Logger
}

// New creates a Server bound to cfg and session and registers the full
// NetLogo surface. The session may be cold; the engine starts on first
// use (or earlier via Session.Warm).
func New(cfg *Config, session *Session, opts *Options) *Server {
	if cfg == nil {
		panic("netlogomcp: nil Config")
	}
	if session == nil {
		panic("netlogomcp: nil Session")
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{Name: serverName, Version: serverVersion}
	s := &Server{
		server:    mcp.NewServer(impl, &mcp.ServerOptions{Instructions: serverInstructions}),
		impl:      impl,
		logger:    logger,
		cfg:       cfg,
		session:   session,
		tools:     make(map[string]toolEntry),
		prompts:   make(map[string]promptEntry),
		resources: make(map[string]resourceEntry),
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCPServer returns the underlying mcp.Server for advanced use cases.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Implementation returns the server's implementation info.
func (s *Server) Implementation() *mcp.Implementation {
	return s.impl
}

// ErrToolNotFound is returned when calling a tool that doesn't exist.
var ErrToolNotFound = errors.New("tool not found")

// ErrPromptNotFound is returned when getting a prompt that doesn't exist.
var ErrPromptNotFound = errors.New("prompt not found")

// Run serves the MCP surface over stdio until ctx is canceled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio",
		"server", s.impl.Name,
		"version", s.impl.Version,
	)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// InMemorySession connects an in-memory MCP client to this server and
// returns both session ends. Used by transport-level tests.
func (s *Server) InMemorySession(ctx context.Context) (*mcp.ServerSession, *mcp.ClientSession, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting server transport: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: serverName + "-inmemory-client", Version: serverVersion}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		_ = serverSession.Close()
		return nil, nil, fmt.Errorf("connecting client transport: %w", err)
	}
	return serverSession, clientSession, nil
}

// CallTool invokes a tool by name with the given arguments, bypassing
// the MCP transport. The args parameter should be a map[string]any or a
// struct matching the tool's input schema.
//
// Returns ErrToolNotFound if no tool with the given name exists.
func (s *Server) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	entry, ok := s.tools[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	var rawArgs json.RawMessage
	if args != nil {
		var err error
		rawArgs, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshaling tool arguments: %w", err)
		}
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: rawArgs,
		},
	}
	return entry.handler(ctx, req)
}

// GetPrompt retrieves a prompt by name, bypassing the MCP transport.
//
// Returns ErrPromptNotFound if no prompt with the given name exists.
func (s *Server) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	s.mu.RLock()
	entry, ok := s.prompts[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}

	req := &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{
			Name:      name,
			Arguments: args,
		},
	}
	return entry.handler(ctx, req)
}

// ReadResource reads a resource by URI, bypassing the MCP transport.
// URIs under netlogo://models/ are dispatched to the model-source
// template handler.
//
// Returns ErrNotFound if the URI matches nothing.
func (s *Server) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	s.mu.RLock()
	entry, ok := s.resources[uri]
	model := s.modelResource
	s.mu.RUnlock()

	handler := entry.handler
	if !ok {
		if model == nil || !strings.HasPrefix(uri, modelResourcePrefix) {
			return nil, fmt.Errorf("%w: resource %s", ErrNotFound, uri)
		}
		handler = model
	}

	req := &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
	return handler(ctx, req)
}

// HasTool reports whether a tool with the given name is registered.
func (s *Server) HasTool(name string) bool {
	s.mu.RLock()
	_, ok := s.tools[name]
	s.mu.RUnlock()
	return ok
}

// HasPrompt reports whether a prompt with the given name is registered.
func (s *Server) HasPrompt(name string) bool {
	s.mu.RLock()
	_, ok := s.prompts[name]
	s.mu.RUnlock()
	return ok
}

// HasResource reports whether a resource with the given URI is registered.
func (s *Server) HasResource(uri string) bool {
	s.mu.RLock()
	_, ok := s.resources[uri]
	s.mu.RUnlock()
	return ok
}

// ToolCount returns the number of registered tools.
func (s *Server) ToolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tools)
}

// PromptCount returns the number of registered prompts.
func (s *Server) PromptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

// ResourceCount returns the number of registered resources, not
// counting the model-source template.
func (s *Server) ResourceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

// addTool registers a typed tool with automatic schema inference, both
// with the MCP server and in the in-process registry. Handler errors
// are shaped (kind-prefixed message, syntax tip for engine errors) and
// embedded in the result with IsError=true, matching SDK behavior on
// the transport path.
func addTool[In, Out any](s *Server, t *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) {
	shaped := func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		result, out, err := h(ctx, req, in)
		if err != nil {
			err = shapeToolError(err)
			s.logger.Debug("tool call failed", "tool", t.Name, "error", err)
		}
		return result, out, err
	}

	mcp.AddTool(s.server, t, shaped)

	// In-process dispatch needs a low-level handler equivalent to what
	// mcp.AddTool wraps internally: unmarshal, invoke, package result.
	wrapped := wrapTypedToolHandler(shaped)

	s.mu.Lock()
	s.tools[t.Name] = toolEntry{tool: t, handler: wrapped}
	s.mu.Unlock()
}

// wrapTypedToolHandler creates a low-level ToolHandler from a typed
// handler, mirroring the wrapping done by mcp.AddTool.
func wrapTypedToolHandler[In, Out any](h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input In
		if req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return nil, fmt.Errorf("unmarshaling tool arguments: %w", err)
			}
		}

		result, output, err := h(ctx, req, input)
		if err != nil {
			// Tool errors are embedded in the result with IsError=true,
			// matching MCP SDK behavior.
			var errRes mcp.CallToolResult
			errRes.Content = []mcp.Content{&mcp.TextContent{Text: err.Error()}}
			errRes.IsError = true
			return &errRes, nil
		}

		if result == nil {
			result = &mcp.CallToolResult{}
		}

		var outval any = output
		if outval != nil {
			outbytes, err := json.Marshal(outval)
			if err != nil {
				return nil, fmt.Errorf("marshaling tool output: %w", err)
			}
			result.StructuredContent = json.RawMessage(outbytes)
			if result.Content == nil {
				result.Content = []mcp.Content{&mcp.TextContent{Text: string(outbytes)}}
			}
		}
		return result, nil
	}
}

// addPrompt registers a prompt with the MCP server and the in-process
// registry.
func (s *Server) addPrompt(p *mcp.Prompt, h mcp.PromptHandler) {
	s.server.AddPrompt(p, h)

	s.mu.Lock()
	s.prompts[p.Name] = promptEntry{prompt: p, handler: h}
	s.mu.Unlock()
}

// addResource registers a resource with the MCP server and the
// in-process registry.
func (s *Server) addResource(r *mcp.Resource, h mcp.ResourceHandler) {
	s.server.AddResource(r, h)

	s.mu.Lock()
	s.resources[r.URI] = resourceEntry{resource: r, handler: h}
	s.mu.Unlock()
}

// addModelResourceTemplate registers the netlogo://models/{name}
// template with the MCP server and keeps the handler for in-process
// dispatch.
func (s *Server) addModelResourceTemplate(t *mcp.ResourceTemplate, h mcp.ResourceHandler) {
	s.server.AddResourceTemplate(t, h)

	s.mu.Lock()
	s.modelResource = h
	s.mu.Unlock()
}
