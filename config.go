// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the install-location pointers the adapter needs to reach
// the NetLogo runtime, plus the directory of browsable model files.
//
// Values come from an optional YAML file (NETLOGO_MCP_CONFIG) with
// environment variables taking precedence:
//
//	NETLOGO_HOME            NetLogo installation directory (required)
//	JAVA_HOME               JVM installation; "java" from PATH if unset
//	NETLOGO_CONTROLLER_JAR  controller sidecar jar; defaults to
//	                        $NETLOGO_HOME/app/netlogo-mcp-controller.jar
//	NETLOGO_MODELS_DIR      directory of .nlogo/.nlogox files
//	NETLOGO_GUI             "true" to open a live NetLogo window
type Config struct {
	NetLogoHome   string `yaml:"netlogo_home"`
	JavaHome      string `yaml:"java_home"`
	ControllerJar string `yaml:"controller_jar"`
	ModelsDir     string `yaml:"models_dir"`
	GUI           bool   `yaml:"gui"`
}

// LoadConfig reads the YAML file named by NETLOGO_MCP_CONFIG (if any),
// applies environment overrides and defaults, and validates the result.
// Invalid or missing engine locations are a ConfigurationError: the
// environment is wrong, and no amount of retrying fixes that.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("NETLOGO_MCP_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfiguration, path, err)
		}
	}

	if v := os.Getenv("NETLOGO_HOME"); v != "" {
		cfg.NetLogoHome = v
	}
	if v := os.Getenv("JAVA_HOME"); v != "" {
		cfg.JavaHome = v
	}
	if v := os.Getenv("NETLOGO_CONTROLLER_JAR"); v != "" {
		cfg.ControllerJar = v
	}
	if v := os.Getenv("NETLOGO_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("NETLOGO_GUI"); v != "" {
		gui, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: NETLOGO_GUI=%q is not a boolean", ErrConfiguration, v)
		}
		cfg.GUI = gui
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ControllerJar == "" && c.NetLogoHome != "" {
		c.ControllerJar = filepath.Join(c.NetLogoHome, "app", "netlogo-mcp-controller.jar")
	}
	if c.ModelsDir == "" {
		c.ModelsDir = "models"
	}
}

func (c *Config) validate() error {
	if c.NetLogoHome == "" {
		return fmt.Errorf("%w: NETLOGO_HOME is not set; point it at your NetLogo installation directory, e.g. /opt/NetLogo-7.0.3", ErrConfiguration)
	}
	info, err := os.Stat(c.NetLogoHome)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: NETLOGO_HOME points to a directory that does not exist: %s", ErrConfiguration, c.NetLogoHome)
	}
	if err := os.MkdirAll(c.ModelsDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating models directory %s: %v", ErrConfiguration, c.ModelsDir, err)
	}
	return nil
}

// JavaBin returns the java executable to launch the controller with:
// $JAVA_HOME/bin/java when JAVA_HOME is set, otherwise "java" from PATH.
func (c *Config) JavaBin() string {
	if c.JavaHome == "" {
		return "java"
	}
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	return filepath.Join(c.JavaHome, "bin", name)
}
