package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration across levels with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.plannr/config.yaml) - optional
//  3. Project config (.plannr/config.yaml) - optional
//  4. Explicit file (--config) - must exist
//  5. Environment variables (PLANNR_*)
type Loader struct {
	userDir    string
	projectDir string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader for the standard directories.
func NewLoader() *Loader {
	l := &Loader{projectDir: PlannrDir, lookupEnv: os.LookupEnv}
	if home, err := os.UserHomeDir(); err == nil {
		l.userDir = filepath.Join(home, PlannrDir)
	}
	return l
}

// SetDirectories overrides the user and project config directories.
// An empty directory disables that level.
func (l *Loader) SetDirectories(userDir, projectDir string) {
	l.userDir = userDir
	l.projectDir = projectDir
}

// Load resolves the configuration. explicit names a --config file and may
// be empty. The result is validated.
func (l *Loader) Load(explicit string) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if l.userDir != "" {
		userPath := filepath.Join(l.userDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	if l.projectDir != "" {
		projectPath := filepath.Join(l.projectDir, ConfigFileName)
		if _, err := os.Stat(projectPath); err == nil {
			if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
				return nil, err // Project config errors are fatal
			}
		}
	}

	if explicit != "" {
		if err := mergeFromFile(tc, explicit, SourceFlag); err != nil {
			return nil, err
		}
	}

	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	applyEnv(tc, lookup)

	if err := tc.Config.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// mergeFromFile decodes path over tc.Config and records every key the file
// sets. yaml.v3 leaves fields absent from the document untouched.
func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, key := range setPaths(raw, "") {
		if _, known := tc.Sources[key]; !known {
			slog.Warn("unknown config key", "path", path, "key", key)
			continue
		}
		tc.SetSource(key, source, path)
	}
	return nil
}

// setPaths flattens a decoded YAML mapping into sorted dotted leaf paths.
func setPaths(raw map[string]any, prefix string) []string {
	var out []string
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			out = append(out, setPaths(nested, key)...)
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
