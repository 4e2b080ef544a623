// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// The prompt surface is static templates: caller-supplied values are
// substituted into fixed placeholders, nothing is executed or validated
// beyond presence and number parsing.

func (s *Server) registerPrompts() {
	s.addPrompt(&mcp.Prompt{
		Name:        "analyze_model",
		Description: "Step-by-step guide to understanding an existing NetLogo model.",
		Arguments: []*mcp.PromptArgument{
			{Name: "model_name", Description: "Name of the .nlogo model file to analyze.", Required: true},
		},
	}, s.analyzeModelPrompt)

	s.addPrompt(&mcp.Prompt{
		Name:        "create_abm",
		Description: "Template for building a new agent-based model from scratch.",
		Arguments: []*mcp.PromptArgument{
			{Name: "description", Description: "What the model should simulate.", Required: true},
			{Name: "agents", Description: "Types of agents to include (e.g. 'predators, prey')."},
			{Name: "behaviors", Description: "Key behaviors agents should exhibit."},
		},
	}, s.createABMPrompt)

	s.addPrompt(&mcp.Prompt{
		Name:        "parameter_sweep",
		Description: "Template for systematic parameter exploration.",
		Arguments: []*mcp.PromptArgument{
			{Name: "parameter", Description: "Name of the global variable to sweep.", Required: true},
			{Name: "min_val", Description: "Minimum value for the parameter.", Required: true},
			{Name: "max_val", Description: "Maximum value for the parameter.", Required: true},
			{Name: "steps", Description: "Number of values to test, evenly spaced (default 5)."},
			{Name: "metric", Description: "NetLogo reporter to measure as the outcome (default 'count turtles')."},
		},
	}, s.parameterSweepPrompt)
}

func promptArg(req *mcp.GetPromptRequest, name string) (string, error) {
	v, ok := req.Params.Arguments[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing required prompt argument %q", ErrValidation, name)
	}
	return v, nil
}

func promptArgDefault(req *mcp.GetPromptRequest, name, fallback string) string {
	if v, ok := req.Params.Arguments[name]; ok && v != "" {
		return v
	}
	return fallback
}

func userMessage(text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}

func (s *Server) analyzeModelPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	modelName, err := promptArg(req, "model_name")
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf(
		"I want to understand the NetLogo model '%s'. Please follow these steps:\n\n"+
			"1. Open the model using the open_model tool with '%s'.\n"+
			"2. Read the model source via the netlogo://models/{name} resource.\n"+
			"3. Identify and list:\n"+
			"   - Global variables and their purposes\n"+
			"   - Breeds and their breed-specific variables\n"+
			"   - The setup procedure — what initial state it creates\n"+
			"   - The go procedure — what happens each tick\n"+
			"   - Any notable sub-procedures\n"+
			"4. Run the model: call 'setup', then run_simulation for 100 ticks with relevant reporters (agent counts, key metrics).\n"+
			"5. Use export_view to show me what the model looks like.\n"+
			"6. Summarize:\n"+
			"   - What the model simulates\n"+
			"   - Key dynamics and emergent behaviors\n"+
			"   - Interesting parameters to experiment with\n",
		modelName, modelName,
	)
	return userMessage(text), nil
}

func (s *Server) createABMPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description, err := promptArg(req, "description")
	if err != nil {
		return nil, err
	}
	agents := promptArgDefault(req, "agents", "turtles")
	behaviors := promptArgDefault(req, "behaviors", "movement, interaction")

	text := fmt.Sprintf(
		"Build a NetLogo agent-based model with this specification:\n\n"+
			"**Description:** %s\n"+
			"**Agent types:** %s\n"+
			"**Key behaviors:** %s\n\n"+
			"Please follow these steps:\n\n"+
			"1. First, read netlogo://docs/primitives and netlogo://docs/programming for reference.\n"+
			"2. Design the model structure:\n"+
			"   - Define breeds for each agent type\n"+
			"   - Define breed-specific and global variables\n"+
			"   - Plan the setup and go procedures\n"+
			"3. Write the complete NetLogo code.\n"+
			"4. Use create_model to load it.\n"+
			"5. Run 'setup' to initialize.\n"+
			"6. Use export_view to show the initial state.\n"+
			"7. Run the simulation for 200 ticks with relevant reporters.\n"+
			"8. Export the view again to show the evolved state.\n"+
			"9. Summarize the model's behavior and suggest experiments.\n",
		description, agents, behaviors,
	)
	return userMessage(text), nil
}

func (s *Server) parameterSweepPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	parameter, err := promptArg(req, "parameter")
	if err != nil {
		return nil, err
	}
	minRaw, err := promptArg(req, "min_val")
	if err != nil {
		return nil, err
	}
	maxRaw, err := promptArg(req, "max_val")
	if err != nil {
		return nil, err
	}

	minVal, err := strconv.ParseFloat(minRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: min_val %q is not a number", ErrValidation, minRaw)
	}
	maxVal, err := strconv.ParseFloat(maxRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: max_val %q is not a number", ErrValidation, maxRaw)
	}

	steps := 5
	if raw := promptArgDefault(req, "steps", ""); raw != "" {
		steps, err = strconv.Atoi(raw)
		if err != nil || steps < 1 {
			return nil, fmt.Errorf("%w: steps %q is not a positive integer", ErrValidation, raw)
		}
	}
	metric := promptArgDefault(req, "metric", "count turtles")

	values := sweepValues(minVal, maxVal, steps)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	valuesStr := strings.Join(parts, ", ")

	text := fmt.Sprintf(
		"Run a parameter sweep on '%s' to see how it affects '%s'.\n\n"+
			"**Parameter:** %s\n"+
			"**Values to test:** %s\n"+
			"**Metric to measure:** %s\n"+
			"**Ticks per run:** 200\n\n"+
			"For each value:\n"+
			"1. Run 'setup' to reset the model.\n"+
			"2. Set %s to the test value using set_parameter.\n"+
			"3. Run the simulation for 200 ticks.\n"+
			"4. Record the final value of: %s\n\n"+
			"After all runs:\n"+
			"5. Present results in a table (parameter value vs final metric).\n"+
			"6. Describe the relationship — linear, threshold, U-shaped, etc.\n"+
			"7. Identify the parameter value that optimizes the metric.\n"+
			"8. Suggest follow-up experiments.\n",
		parameter, metric, parameter, valuesStr, metric, parameter, metric,
	)
	return userMessage(text), nil
}

// sweepValues returns count values evenly spaced over [min, max],
// rounded to 4 decimal places.
func sweepValues(min, max float64, count int) []float64 {
	step := 0.0
	if count > 1 {
		step = (max - min) / float64(count-1)
	}
	values := make([]float64, count)
	for i := range values {
		values[i] = math.Round((min+float64(i)*step)*10000) / 10000
	}
	return values
}
