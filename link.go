// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Wire format between the adapter and the NetLogo controller sidecar:
// one JSON object per line in each direction. The controller answers
// every request exactly once, echoing its id. Anything else the engine
// prints on the pipe (JVM warnings, NetLogo banners) is not a response
// and is diverted to the logger — it must never reach the MCP transport.

type engineRequest struct {
	ID  int64  `json:"id"`
	Op  string `json:"op"`
	Arg string `json:"arg,omitempty"`
}

type engineResponse struct {
	ID    int64           `json:"id"`
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

const (
	opLoadModel   = "load-model"
	opCommand     = "command"
	opReport      = "report"
	opPatchReport = "patch-report"
	opQuit        = "quit"
)

// conn is the protocol codec over a request/response pipe pair. It is
// separate from Link so tests can drive it over in-memory pipes without
// a JVM.
type conn struct {
	enc    *json.Encoder
	sc     *bufio.Scanner
	logger *slog.Logger
	nextID int64
}

func newConn(w io.Writer, r io.Reader, logger *slog.Logger) *conn {
	sc := bufio.NewScanner(r)
	// Patch grids and exported lists can be large.
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &conn{
		enc:    json.NewEncoder(w),
		sc:     sc,
		logger: logger,
	}
}

// roundTrip sends one request and blocks until its response arrives.
// There is no cancellation once the request is written: the engine runs
// the instruction to completion, and a caller-side timeout means
// "unknown outcome", not "reverted".
func (c *conn) roundTrip(ctx context.Context, op, arg string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.nextID++
	req := engineRequest{ID: c.nextID, Op: op, Arg: arg}
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("writing to engine: %w", err)
	}

	for c.sc.Scan() {
		line := c.sc.Bytes()
		var resp engineResponse
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID == 0 {
			// Incidental engine output on the protocol pipe.
			c.logger.Debug("engine output", "line", string(line))
			continue
		}
		if resp.ID != req.ID {
			c.logger.Warn("engine response id mismatch", "want", req.ID, "got", resp.ID)
			continue
		}
		if !resp.OK {
			return nil, newEngineError(resp.Error)
		}
		return resp.Value, nil
	}
	if err := c.sc.Err(); err != nil {
		return nil, fmt.Errorf("reading from engine: %w", err)
	}
	return nil, fmt.Errorf("engine connection closed during %s", op)
}

// Link is a live connection to a NetLogo workspace, backed by a
// controller sidecar process (java -jar netlogo-mcp-controller.jar)
// driven over its stdin/stdout. A Link is not safe for concurrent use;
// Session serializes access to it.
type Link struct {
	conn   *conn
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// StartLink launches the controller sidecar and returns the connection.
// Failures here are configuration errors — a missing JVM or controller
// jar is an environment problem, not a transient fault.
func StartLink(cfg *Config, logger *slog.Logger) (*Link, error) {
	args := make([]string, 0, 6)
	if !cfg.GUI {
		args = append(args, "-Djava.awt.headless=true")
	}
	args = append(args, "-jar", cfg.ControllerJar, "--netlogo-home", cfg.NetLogoHome)
	if cfg.GUI {
		args = append(args, "--gui")
	}

	cmd := exec.Command(cfg.JavaBin(), args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: opening engine stdin: %v", ErrConfiguration, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: opening engine stdout: %v", ErrConfiguration, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: opening engine stderr: %v", ErrConfiguration, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting NetLogo controller (%s): %v", ErrConfiguration, cfg.JavaBin(), err)
	}

	l := &Link{
		conn:   newConn(stdin, stdout, logger),
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
	}
	go drainStderr(stderr, logger)

	logger.Info("NetLogo controller started",
		"java", cfg.JavaBin(),
		"jar", cfg.ControllerJar,
		"gui", cfg.GUI,
	)
	return l, nil
}

// drainStderr forwards the engine's stderr to the logger line by line,
// keeping it off the MCP transport channel.
func drainStderr(r io.Reader, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		logger.Debug("engine stderr", "line", sc.Text())
	}
}

// LoadModel opens a .nlogo/.nlogox file in the workspace.
func (l *Link) LoadModel(ctx context.Context, path string) error {
	_, err := l.conn.roundTrip(ctx, opLoadModel, path)
	return err
}

// Command executes a NetLogo instruction for side effect.
func (l *Link) Command(ctx context.Context, cmd string) error {
	_, err := l.conn.roundTrip(ctx, opCommand, cmd)
	return err
}

// Report evaluates a NetLogo reporter expression and returns its value.
func (l *Link) Report(ctx context.Context, expr string) (Value, error) {
	raw, err := l.conn.roundTrip(ctx, opReport, expr)
	if err != nil {
		return Value{}, err
	}
	return decodeValue(raw)
}

// PatchReport evaluates a patch attribute across the whole world and
// returns it as a 2-D grid, rows ordered by the engine's coordinate
// system (y descending, x ascending).
func (l *Link) PatchReport(ctx context.Context, attribute string) ([][]Value, error) {
	raw, err := l.conn.roundTrip(ctx, opPatchReport, attribute)
	if err != nil {
		return nil, err
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	rows, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("engine returned non-grid patch data (%v)", v.Kind())
	}
	grid := make([][]Value, len(rows))
	for i, row := range rows {
		cells, ok := row.AsList()
		if !ok {
			return nil, fmt.Errorf("engine returned non-grid patch row %d", i)
		}
		grid[i] = cells
	}
	return grid, nil
}

// Close asks the controller to quit, then reaps the process, killing it
// if it does not exit promptly. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		// Best effort: the controller exits on "quit" or on stdin EOF.
		_ = l.conn.enc.Encode(engineRequest{ID: -1, Op: opQuit})
		_ = l.stdin.Close()

		done := make(chan error, 1)
		go func() { done <- l.cmd.Wait() }()
		select {
		case err := <-done:
			l.closeErr = err
		case <-time.After(5 * time.Second):
			l.logger.Warn("NetLogo controller did not exit, killing it")
			_ = l.cmd.Process.Kill()
			l.closeErr = <-done
		}
	})
	return l.closeErr
}
