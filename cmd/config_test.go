package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/logging"
	"github.com/joescharf/bugboard/internal/output"
)

// testEnv isolates config, store and output for one test. The store is the
// seeded memory backend so commands run without touching disk.
func testEnv(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	setDefaults(dir)
	viper.Set("store.backend", "memory")
	viper.Set("anthropic.api_key", "")

	dataStore = nil
	t.Cleanup(func() { dataStore = nil })

	var buf bytes.Buffer
	ui = &output.UI{Out: &buf, ErrOut: &buf}
	logger = logging.New(slog.LevelError, io.Discard, logging.FormatJSON)

	dryRun = false
	configForce = false
	return dir, &buf
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir, _ := testEnv(t)

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "bugboard configuration")
	assert.Contains(t, string(data), `backend: "memory"`)
	assert.Contains(t, string(data), "port: 8420")
}

func TestConfigInit_TemplateIsValidYAML(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, configInitRun())

	file := fileConfig(filepath.Join(dir, "config.yaml"))
	require.NotNil(t, file)
	assert.True(t, file.InConfig("store.backend"))
	assert.True(t, file.InConfig("defaults.reporter"))
	assert.Equal(t, 8420, file.GetInt("serve.port"))
	assert.False(t, file.InConfig("anthropic.api_key"), "api key is commented out")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("existing"), 0o644))

	err := configInitRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir, _ := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = true
	require.NoError(t, configInitRun())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bugboard configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir, buf := testEnv(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, configInitRun())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
	assert.Contains(t, buf.String(), "Would write")
}

func TestConfigShow_NoFile(t *testing.T) {
	_, buf := testEnv(t)

	require.NoError(t, configShowRun())
	assert.Contains(t, buf.String(), "No config file")
	assert.Contains(t, buf.String(), "store.backend")
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	_, buf := testEnv(t)
	viper.Set("anthropic.api_key", "sk-ant-1234567890abcd")

	require.NoError(t, configShowRun())
	assert.NotContains(t, buf.String(), "sk-ant-1234567890abcd")
	assert.Contains(t, buf.String(), "sk-a****abcd")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, `""`, maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd****mnop", maskSecret("abcdefghijklmnop"))
}

func TestConfigKeyEnvVar(t *testing.T) {
	assert.Equal(t, "BUGBOARD_STORE_BACKEND", configKeyInfo{Key: "store.backend"}.EnvVar())
	assert.Equal(t, "BUGBOARD_DB_PATH", configKeyInfo{Key: "db_path"}.EnvVar())
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfigKeySource(t *testing.T) {
	dir, _ := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  backend: memory\nserve:\n  port: 9000\n"), 0o600))
	file := fileConfig(cfgPath)
	require.NotNil(t, file)

	t.Setenv("BUGBOARD_SERVE_PORT", "9100")
	assert.Equal(t, "(env: BUGBOARD_SERVE_PORT)", configKeyInfo{Key: "serve.port"}.source(file))
	assert.Equal(t, "(file)", configKeyInfo{Key: "store.backend"}.source(file))
	assert.Equal(t, "(default)", configKeyInfo{Key: "log.level"}.source(file))
	assert.Equal(t, "(default)", configKeyInfo{Key: "store.backend"}.source(nil))
}

func TestFileConfig_Missing(t *testing.T) {
	dir, _ := testEnv(t)
	assert.Nil(t, fileConfig(filepath.Join(dir, "nope.yaml")))
}

func TestGetStore_UnknownBackend(t *testing.T) {
	testEnv(t)
	viper.Set("store.backend", "postgres")

	_, err := getStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestGetStore_SQLite(t *testing.T) {
	dir, _ := testEnv(t)
	viper.Set("store.backend", "sqlite")
	viper.Set("db_path", filepath.Join(dir, "test.db"))

	s, err := getStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	bugs, err := s.ListBugs(t.Context())
	require.NoError(t, err)
	assert.Empty(t, bugs)
}
