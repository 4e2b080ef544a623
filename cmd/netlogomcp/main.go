// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command netlogomcp serves the NetLogo MCP adapter over stdio.
//
// stdout belongs to the MCP transport, so every diagnostic — ours and
// the engine's — goes to stderr. The engine connection is warmed before
// the transport accepts calls and released on shutdown, including on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	netlogomcp "github.com/Razee4315/NetLogo-MCP"
)

var (
	logLevel  string
	modelsDir string
	gui       bool
	noWarm    bool
)

var rootCmd = &cobra.Command{
	Use:          "netlogomcp",
	Short:        "MCP server exposing a NetLogo workspace to AI clients",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log verbosity: debug, info, warn, error")
	rootCmd.Flags().StringVar(&modelsDir, "models-dir", "", "models directory (overrides NETLOGO_MODELS_DIR)")
	rootCmd.Flags().BoolVar(&gui, "gui", false, "open a live NetLogo window instead of running headless")
	rootCmd.Flags().BoolVar(&noWarm, "no-warm", false, "start the engine lazily on first tool call instead of at startup")
}

func serve() error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := netlogomcp.LoadConfig()
	if err != nil {
		return err
	}
	if modelsDir != "" {
		cfg.ModelsDir = modelsDir
	}
	if gui {
		cfg.GUI = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := netlogomcp.NewSession(netlogomcp.LinkStarter(cfg, logger), logger)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("engine shutdown", "error", err)
		}
	}()

	mode := "headless"
	if cfg.GUI {
		mode = "GUI (live window)"
	}
	logger.Info("starting NetLogo workspace", "mode", mode, "netlogo_home", cfg.NetLogoHome)

	if !noWarm {
		// Pay JVM startup before the first real request, and fail fast
		// on a broken environment.
		if err := session.Warm(ctx); err != nil {
			return err
		}
	}

	srv := netlogomcp.New(cfg, session, &netlogomcp.Options{Logger: logger})
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
