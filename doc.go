// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netlogomcp exposes a NetLogo workspace as an MCP server so that
// an AI client can create, run, and analyze agent-based models through
// structured tool calls instead of driving NetLogo by hand.
//
// netlogomcp is a thin protocol adapter. It owns no simulation semantics:
// every command and reporter expression is forwarded verbatim to a NetLogo
// workspace, and the engine's typed results (numbers, booleans, strings,
// lists, nobody) are converted into transport-safe JSON values on the way
// back. All the hard problems — agent scheduling, spatial topology, the
// numeric model itself — live inside NetLogo.
//
// # Architecture
//
// The adapter holds exactly one connection to the engine for the lifetime
// of the process. [Session] is that connection's handle: it lazily starts
// the NetLogo controller sidecar on first use, tracks whether a model has
// been loaded, serializes access to the engine, and releases the sidecar
// on shutdown. [Link] is the concrete connection, speaking line-delimited
// JSON over the sidecar's stdin/stdout; anything the engine prints that is
// not a protocol response is routed to the logger so it can never corrupt
// the MCP stdio framing.
//
// [Server] wraps an mcp.Server and registers the fixed surface:
//
//   - 12 tools: create_model, open_model, command, report, run_simulation,
//     set_parameter, get_world_state, get_patch_data, export_view,
//     save_model, export_world, list_models
//   - 3 resources: netlogo://docs/primitives, netlogo://docs/programming,
//     and netlogo://models/{name} for model source lookup
//   - 3 prompts: analyze_model, create_abm, parameter_sweep
//
// The Server keeps parallel handler registries so tools, prompts, and
// resources can also be invoked in-process via [Server.CallTool],
// [Server.GetPrompt], and [Server.ReadResource] — handy for tests and
// embedding, with behavior identical to the transport path.
//
// # Quick start
//
//	cfg, err := netlogomcp.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	session := netlogomcp.NewSession(netlogomcp.LinkStarter(cfg, logger), logger)
//	defer session.Close()
//
//	srv := netlogomcp.New(cfg, session, &netlogomcp.Options{Logger: logger})
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Error contract
//
// Tool failures are reported with a stable kind so the calling AI can
// decide how to recover: [ErrNoModelLoaded] means call open_model or
// create_model first; [ErrValidation] means the call arguments were
// malformed; [ErrNotFound] means a resource or model lookup missed; an
// [*EngineError] carries NetLogo's own compiler or runtime diagnostic
// verbatim so the caller can fix its generated code. Nothing is retried:
// a NetLogo instruction may have mutated world state before failing
// partway, so a blind retry is never safe.
package netlogomcp
