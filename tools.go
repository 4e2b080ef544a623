// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxRunTicks bounds a single run_simulation call. Each call is one
// blocking engine round trip per tick; an unbounded count would wedge
// the serialized transport behind one tool call indefinitely.
const maxRunTicks = 10000

func (s *Server) registerTools() {
	addTool(s, &mcp.Tool{
		Name:        "create_model",
		Description: "Create a new NetLogo model from code and load it. Accepts bare procedures (globals, breeds, setup, go, ...) or a full .nlogox document.",
	}, s.createModel)

	addTool(s, &mcp.Tool{
		Name:        "open_model",
		Description: "Open an existing .nlogo/.nlogox model file, by absolute path or relative to the models directory.",
	}, s.openModel)

	addTool(s, &mcp.Tool{
		Name:        "command",
		Description: "Execute a NetLogo command (e.g. 'setup', 'go', 'create-turtles 10').",
	}, s.command)

	addTool(s, &mcp.Tool{
		Name:        "report",
		Description: "Evaluate a NetLogo reporter expression (e.g. 'count turtles', 'mean [energy] of turtles') and return its value.",
	}, s.report)

	addTool(s, &mcp.Tool{
		Name:        "run_simulation",
		Description: "Run the simulation for N ticks, evaluating each reporter once per tick, and return the tick-by-tick table.",
	}, s.runSimulation)

	addTool(s, &mcp.Tool{
		Name:        "set_parameter",
		Description: "Set a NetLogo global variable / slider / switch. The value text is forwarded verbatim: quote string values yourself.",
	}, s.setParameter)

	addTool(s, &mcp.Tool{
		Name:        "get_world_state",
		Description: "Get the current world state: tick count, agent counts, and world bounds.",
	}, s.getWorldState)

	addTool(s, &mcp.Tool{
		Name:        "get_patch_data",
		Description: "Get a patch variable as a 2D grid (rows = y descending, cols = x ascending), for heatmaps and spatial analysis.",
	}, s.getPatchData)

	addTool(s, &mcp.Tool{
		Name:        "export_view",
		Description: "Export the current NetLogo view as a PNG image.",
	}, s.exportView)

	addTool(s, &mcp.Tool{
		Name:        "save_model",
		Description: "Save NetLogo model code as a .nlogox file in the models directory, for opening in the NetLogo desktop app.",
	}, s.saveModel)

	addTool(s, &mcp.Tool{
		Name:        "export_world",
		Description: "Export the full world state (all turtle, patch, and link data) to a CSV file and return its path.",
	}, s.exportWorld)

	addTool(s, &mcp.Tool{
		Name:        "list_models",
		Description: "List the .nlogo/.nlogox model files in the models directory.",
	}, s.listModels)
}

// ── create_model / open_model ──

type createModelInput struct {
	Code string `json:"code" jsonschema:"NetLogo model code: bare procedures or a full .nlogox document"`
}

type createModelOutput struct {
	Message string `json:"message"`
}

func (s *Server) createModel(ctx context.Context, _ *mcp.CallToolRequest, in createModelInput) (*mcp.CallToolResult, createModelOutput, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, createModelOutput{}, fmt.Errorf("%w: code is empty", ErrValidation)
	}

	tmp, err := os.CreateTemp("", "netlogomcp-*.nlogox")
	if err != nil {
		return nil, createModelOutput{}, fmt.Errorf("creating temp model file: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.WriteString(wrapModelEnvelope(in.Code)); err != nil {
		tmp.Close()
		return nil, createModelOutput{}, fmt.Errorf("writing temp model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, createModelOutput{}, fmt.Errorf("writing temp model file: %w", err)
	}

	if err := s.session.LoadModel(ctx, filepath.ToSlash(path)); err != nil {
		return nil, createModelOutput{}, err
	}
	return nil, createModelOutput{Message: "Model created and loaded."}, nil
}

type openModelInput struct {
	Path string `json:"path" jsonschema:"path to the .nlogo/.nlogox file, absolute or relative to the models directory"`
}

type openModelOutput struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (s *Server) openModel(ctx context.Context, _ *mcp.CallToolRequest, in openModelInput) (*mcp.CallToolResult, openModelOutput, error) {
	if in.Path == "" {
		return nil, openModelOutput{}, fmt.Errorf("%w: path is empty", ErrValidation)
	}

	path := in.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.ModelsDir, path)
	}
	switch filepath.Ext(path) {
	case ".nlogo", ".nlogox":
	default:
		return nil, openModelOutput{}, fmt.Errorf("%w: not a .nlogo/.nlogox file: %s", ErrValidation, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, openModelOutput{}, fmt.Errorf("%w: model file %s", ErrNotFound, path)
	}

	if err := s.session.LoadModel(ctx, filepath.ToSlash(path)); err != nil {
		return nil, openModelOutput{}, err
	}
	return nil, openModelOutput{
		Message: "Model loaded: " + filepath.Base(path),
		Path:    path,
	}, nil
}

// ── command / report ──

type commandInput struct {
	Command string `json:"command" jsonschema:"the NetLogo command string to execute"`
}

type commandOutput struct {
	Status string `json:"status"`
}

func (s *Server) command(ctx context.Context, _ *mcp.CallToolRequest, in commandInput) (*mcp.CallToolResult, commandOutput, error) {
	if strings.TrimSpace(in.Command) == "" {
		return nil, commandOutput{}, fmt.Errorf("%w: command is empty", ErrValidation)
	}
	if err := s.session.Command(ctx, in.Command); err != nil {
		return nil, commandOutput{}, err
	}
	return nil, commandOutput{Status: "OK: " + in.Command}, nil
}

type reportInput struct {
	Reporter string `json:"reporter" jsonschema:"a NetLogo reporter expression to evaluate"`
}

type reportOutput struct {
	Value Value `json:"value"`
}

func (s *Server) report(ctx context.Context, _ *mcp.CallToolRequest, in reportInput) (*mcp.CallToolResult, reportOutput, error) {
	if strings.TrimSpace(in.Reporter) == "" {
		return nil, reportOutput{}, fmt.Errorf("%w: reporter is empty", ErrValidation)
	}
	v, err := s.session.Report(ctx, in.Reporter)
	if err != nil {
		return nil, reportOutput{}, err
	}
	return nil, reportOutput{Value: v}, nil
}

// ── run_simulation ──

type runSimulationInput struct {
	Ticks     int      `json:"ticks" jsonschema:"number of ticks to run (0-10000)"`
	Reporters []string `json:"reporters,omitempty" jsonschema:"reporter expressions to evaluate after every tick"`
	GoCommand string   `json:"go_command,omitempty" jsonschema:"the step command to use, default 'go'"`
}

type runSimulationOutput struct {
	Columns  []string  `json:"columns"`
	Rows     [][]Value `json:"rows"`
	Markdown string    `json:"markdown"`
}

func (s *Server) runSimulation(ctx context.Context, _ *mcp.CallToolRequest, in runSimulationInput) (*mcp.CallToolResult, runSimulationOutput, error) {
	if in.Ticks < 0 || in.Ticks > maxRunTicks {
		return nil, runSimulationOutput{}, fmt.Errorf("%w: ticks must be between 0 and %d", ErrValidation, maxRunTicks)
	}
	for _, r := range in.Reporters {
		if strings.TrimSpace(r) == "" {
			return nil, runSimulationOutput{}, fmt.Errorf("%w: reporters must be non-empty expressions", ErrValidation)
		}
	}

	table, err := s.session.RunSteps(ctx, in.Ticks, in.Reporters, in.GoCommand)
	if err != nil {
		return nil, runSimulationOutput{}, err
	}
	return nil, runSimulationOutput{
		Columns:  table.Columns,
		Rows:     table.Rows,
		Markdown: table.Markdown(),
	}, nil
}

// ── set_parameter ──

type setParameterInput struct {
	Name  string `json:"name" jsonschema:"name of the global variable (e.g. 'initial-number-sheep')"`
	Value string `json:"value" jsonschema:"value text, forwarded verbatim to NetLogo"`
}

type setParameterOutput struct {
	Status string `json:"status"`
}

func (s *Server) setParameter(ctx context.Context, _ *mcp.CallToolRequest, in setParameterInput) (*mcp.CallToolResult, setParameterOutput, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, setParameterOutput{}, fmt.Errorf("%w: name is empty", ErrValidation)
	}
	if strings.TrimSpace(in.Value) == "" {
		return nil, setParameterOutput{}, fmt.Errorf("%w: value is empty", ErrValidation)
	}

	// Textual convenience only: whether the named global exists, and
	// whether the value parses, is the engine's call.
	cmd := "set " + in.Name + " " + in.Value
	if err := s.session.Command(ctx, cmd); err != nil {
		return nil, setParameterOutput{}, err
	}
	return nil, setParameterOutput{Status: "OK: " + cmd}, nil
}

// ── get_world_state ──

type getWorldStateInput struct{}

// WorldBounds are the patch-coordinate extents of the world.
type WorldBounds struct {
	MinPxcor int64 `json:"min_pxcor"`
	MaxPxcor int64 `json:"max_pxcor"`
	MinPycor int64 `json:"min_pycor"`
	MaxPycor int64 `json:"max_pycor"`
}

type getWorldStateOutput struct {
	Ticks       float64          `json:"ticks"`
	AgentCounts map[string]int64 `json:"agent_counts"`
	WorldBounds WorldBounds      `json:"world_bounds"`
}

func (s *Server) getWorldState(ctx context.Context, _ *mcp.CallToolRequest, _ getWorldStateInput) (*mcp.CallToolResult, getWorldStateOutput, error) {
	var out getWorldStateOutput

	ticks, err := s.reportFloat(ctx, "ticks")
	if err != nil {
		return nil, out, err
	}
	out.Ticks = ticks

	out.AgentCounts = make(map[string]int64, 3)
	for _, kind := range []string{"turtles", "patches", "links"} {
		n, err := s.reportInt(ctx, "count "+kind)
		if err != nil {
			return nil, out, err
		}
		out.AgentCounts[kind] = n
	}

	bounds := []struct {
		expr string
		dst  *int64
	}{
		{"min-pxcor", &out.WorldBounds.MinPxcor},
		{"max-pxcor", &out.WorldBounds.MaxPxcor},
		{"min-pycor", &out.WorldBounds.MinPycor},
		{"max-pycor", &out.WorldBounds.MaxPycor},
	}
	for _, b := range bounds {
		n, err := s.reportInt(ctx, b.expr)
		if err != nil {
			return nil, out, err
		}
		*b.dst = n
	}
	return nil, out, nil
}

func (s *Server) reportFloat(ctx context.Context, expr string) (float64, error) {
	v, err := s.session.Report(ctx, expr)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, fmt.Errorf("engine returned non-numeric %s: %s", expr, v)
	}
	return f, nil
}

func (s *Server) reportInt(ctx context.Context, expr string) (int64, error) {
	v, err := s.session.Report(ctx, expr)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("engine returned non-integer %s: %s", expr, v)
	}
	return i, nil
}

// ── get_patch_data ──

type getPatchDataInput struct {
	Attribute string `json:"attribute" jsonschema:"the patch variable to report (e.g. 'pcolor', 'grass')"`
}

type getPatchDataOutput struct {
	Attribute string    `json:"attribute"`
	Grid      [][]Value `json:"grid"`
}

func (s *Server) getPatchData(ctx context.Context, _ *mcp.CallToolRequest, in getPatchDataInput) (*mcp.CallToolResult, getPatchDataOutput, error) {
	if strings.TrimSpace(in.Attribute) == "" {
		return nil, getPatchDataOutput{}, fmt.Errorf("%w: attribute is empty", ErrValidation)
	}
	grid, err := s.session.PatchGrid(ctx, in.Attribute)
	if err != nil {
		return nil, getPatchDataOutput{}, err
	}
	return nil, getPatchDataOutput{Attribute: in.Attribute, Grid: grid}, nil
}

// ── export_view / export_world ──

type exportViewInput struct{}

func (s *Server) exportView(ctx context.Context, _ *mcp.CallToolRequest, _ exportViewInput) (*mcp.CallToolResult, any, error) {
	path := filepath.ToSlash(filepath.Join(os.TempDir(), "netlogo-view-"+uuid.NewString()+".png"))
	defer os.Remove(path)

	if err := s.session.Command(ctx, fmt.Sprintf("export-view %q", path)); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading exported view: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.ImageContent{Data: data, MIMEType: "image/png"},
		},
	}, nil, nil
}

type exportWorldInput struct{}

type exportWorldOutput struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (s *Server) exportWorld(ctx context.Context, _ *mcp.CallToolRequest, _ exportWorldInput) (*mcp.CallToolResult, exportWorldOutput, error) {
	path := filepath.ToSlash(filepath.Join(os.TempDir(), "netlogo-world-"+uuid.NewString()+".csv"))

	if err := s.session.Command(ctx, fmt.Sprintf("export-world %q", path)); err != nil {
		return nil, exportWorldOutput{}, err
	}
	return nil, exportWorldOutput{
		Message: "World exported to " + path,
		Path:    path,
	}, nil
}

// ── save_model / list_models ──

type saveModelInput struct {
	Name string `json:"name" jsonschema:"filename for the model, without extension"`
	Code string `json:"code" jsonschema:"NetLogo model code: bare procedures or a full .nlogox document"`
}

type saveModelOutput struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (s *Server) saveModel(_ context.Context, _ *mcp.CallToolRequest, in saveModelInput) (*mcp.CallToolResult, saveModelOutput, error) {
	if err := validateModelName(in.Name); err != nil {
		return nil, saveModelOutput{}, err
	}
	if strings.TrimSpace(in.Code) == "" {
		return nil, saveModelOutput{}, fmt.Errorf("%w: code is empty", ErrValidation)
	}

	path := filepath.Join(s.cfg.ModelsDir, in.Name+".nlogox")
	if err := os.WriteFile(path, []byte(wrapModelEnvelope(in.Code)), 0o644); err != nil {
		return nil, saveModelOutput{}, fmt.Errorf("writing model file: %w", err)
	}
	return nil, saveModelOutput{
		Message: "Model saved to " + path + ". You can open this file in NetLogo desktop for live visualization.",
		Path:    path,
	}, nil
}

type listModelsInput struct{}

// ModelInfo describes one model file in the models directory.
type ModelInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeKB float64 `json:"size_kb"`
}

type listModelsOutput struct {
	Models []ModelInfo `json:"models"`
}

func (s *Server) listModels(_ context.Context, _ *mcp.CallToolRequest, _ listModelsInput) (*mcp.CallToolResult, listModelsOutput, error) {
	// Read the directory fresh on every call; the adapter never caches
	// what the filesystem can answer.
	models := make([]ModelInfo, 0, 8)
	err := filepath.WalkDir(s.cfg.ModelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".nlogo" && ext != ".nlogox" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		models = append(models, ModelInfo{
			Name:   strings.TrimSuffix(filepath.Base(path), ext),
			Path:   path,
			SizeKB: math.Round(float64(info.Size())/1024*10) / 10,
		})
		return nil
	})
	if err != nil {
		return nil, listModelsOutput{}, fmt.Errorf("listing models directory: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Path < models[j].Path })
	return nil, listModelsOutput{Models: models}, nil
}
