package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/plannr/internal/config"
)

const launchXML = `<?xml version="1.0" encoding="utf-8"?>
<omnifocus xmlns="http://www.omnigroup.com/namespace/OmniFocus/v1">
  <task id="p1">
    <project><status>active</status></project>
    <name>Launch</name>
    <task id="t1"><name>Design</name><flagged>true</flagged></task>
    <task id="t2"><name>Ship</name><completed>2024-02-01T10:00:00.000Z</completed></task>
  </task>
  <task id="t3"><name>Call Mom</name><due>2024-03-01T09:00:00Z</due></task>
</omnifocus>`

// testEnv isolates the CLI from the real home directory and environment.
type testEnv struct {
	root       string
	projectDir string
}

func setupCLI(t *testing.T, backend string) *testEnv {
	t.Helper()

	root := t.TempDir()
	userDir := filepath.Join(root, "home", config.PlannrDir)
	projectDir := filepath.Join(root, "project", config.PlannrDir)

	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.Storage.File.Path = filepath.Join(root, "plannr.json")
	cfg.Database.SQLite.Path = filepath.Join(root, "plannr.db")
	require.NoError(t, cfg.SaveTo(filepath.Join(projectDir, config.ConfigFileName)))

	orig := newLoader
	newLoader = func() *config.Loader {
		l := config.NewLoader()
		l.SetDirectories(userDir, projectDir)
		return l
	}
	t.Cleanup(func() { newLoader = orig })

	for envVar := range config.EnvVarMapping {
		t.Setenv(envVar, "")
	}
	for _, envVar := range []string{"PLANNR_CONFIG", "PLANNR_VERBOSE", "PLANNR_QUIET", "PLANNR_JSON"} {
		t.Setenv(envVar, "")
	}

	return &testEnv{root: root, projectDir: projectDir}
}

// runCLI executes a fresh command tree and captures its output.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
