// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv isolates a test from the ambient environment.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NETLOGO_MCP_CONFIG", "NETLOGO_HOME", "JAVA_HOME",
		"NETLOGO_CONTROLLER_JAR", "NETLOGO_MODELS_DIR", "NETLOGO_GUI",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig_MissingHome(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "NETLOGO_HOME")
}

func TestLoadConfig_HomeNotADirectory(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("NETLOGO_HOME", filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	home := t.TempDir()
	models := filepath.Join(t.TempDir(), "models")
	t.Setenv("NETLOGO_HOME", home)
	t.Setenv("NETLOGO_MODELS_DIR", models)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, home, cfg.NetLogoHome)
	assert.Equal(t, filepath.Join(home, "app", "netlogo-mcp-controller.jar"), cfg.ControllerJar)
	assert.False(t, cfg.GUI)

	// The models directory is created if absent.
	info, err := os.Stat(models)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadConfig_YAMLWithEnvOverride(t *testing.T) {
	clearConfigEnv(t)
	home := t.TempDir()
	yamlModels := filepath.Join(t.TempDir(), "from-yaml")
	envModels := filepath.Join(t.TempDir(), "from-env")

	cfgPath := filepath.Join(t.TempDir(), "netlogomcp.yaml")
	yaml := "netlogo_home: " + home + "\n" +
		"models_dir: " + yamlModels + "\n" +
		"gui: true\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	t.Setenv("NETLOGO_MCP_CONFIG", cfgPath)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, yamlModels, cfg.ModelsDir)
	assert.True(t, cfg.GUI)

	// Environment wins over the file.
	t.Setenv("NETLOGO_MODELS_DIR", envModels)
	t.Setenv("NETLOGO_GUI", "false")

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, envModels, cfg.ModelsDir)
	assert.False(t, cfg.GUI)
}

func TestLoadConfig_BadGUIValue(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("NETLOGO_HOME", t.TempDir())
	t.Setenv("NETLOGO_GUI", "banana")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestConfig_JavaBin(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "java", cfg.JavaBin())

	cfg.JavaHome = filepath.Join("opt", "jdk")
	assert.Contains(t, cfg.JavaBin(), filepath.Join("opt", "jdk", "bin"))
}
