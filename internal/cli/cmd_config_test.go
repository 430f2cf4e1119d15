package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/plannr/internal/config"
	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
)

func TestConfigShowOutputsValidYAML(t *testing.T) {
	setupCLI(t, "database")
	t.Setenv("PLANNR_DB_PASSWORD", "secret")

	out, _, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "****", cfg.Database.Postgres.Password)
}

func TestConfigShowWithSource(t *testing.T) {
	env := setupCLI(t, "database")
	t.Setenv("PLANNR_IMPORT_MAX_DEPTH", "40")

	out, _, err := runCLI(t, "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "import.max_depth: 40 (env)")
	assert.Contains(t, out, "storage.backend: database (project: "+filepath.Join(env.projectDir, config.ConfigFileName)+")")
}

func TestConfigGet(t *testing.T) {
	setupCLI(t, "file")

	out, _, err := runCLI(t, "config", "get", "storage.backend")
	require.NoError(t, err)
	assert.Equal(t, "file\n", out)

	out, _, err = runCLI(t, "config", "get", "log_level", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "info (from project:")

	_, _, err = runCLI(t, "config", "get", "nope")
	assert.Error(t, err)
}

func TestConfigExplicitFile(t *testing.T) {
	env := setupCLI(t, "database")
	explicit := writeFile(t, filepath.Join(env.root, "alt.yaml"), []byte("storage:\n  backend: file\n"))

	out, _, err := runCLI(t, "--config", explicit, "config", "get", "storage.backend", "--source")
	require.NoError(t, err)
	assert.Equal(t, "file (from flag: "+explicit+")\n", out)

	t.Setenv("PLANNR_CONFIG", explicit)
	out, _, err = runCLI(t, "config", "get", "storage.backend")
	require.NoError(t, err)
	assert.Equal(t, "file\n", out)
}

func TestConfigSet(t *testing.T) {
	env := setupCLI(t, "database")
	t.Chdir(filepath.Dir(env.projectDir))

	out, _, err := runCLI(t, "config", "set", "import.max_depth", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Set import.max_depth = 50")

	out, _, err = runCLI(t, "config", "get", "import.max_depth")
	require.NoError(t, err)
	assert.Equal(t, "50\n", out)

	before, err := os.ReadFile(filepath.Join(env.projectDir, config.ConfigFileName))
	require.NoError(t, err)

	_, _, err = runCLI(t, "config", "set", "log_level", "loud")
	require.Error(t, err)
	assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodeConfigInvalid))

	after, err := os.ReadFile(filepath.Join(env.projectDir, config.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "invalid value is not saved")
}

func TestVersion(t *testing.T) {
	setupCLI(t, "database")

	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "plannr version "+Version+"\n", out)

	t.Setenv("PLANNR_JSON", "true")
	out, _, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version, gjson.Get(out, "version").String())
}
