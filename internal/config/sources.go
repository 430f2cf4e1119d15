package config

import "fmt"

// ConfigLevel represents one of the conceptual configuration levels.
// Higher levels override lower levels.
type ConfigLevel int

const (
	// LevelDefaults is built-in default values (lowest priority).
	LevelDefaults ConfigLevel = iota
	// LevelUser is ~/.plannr/config.yaml.
	LevelUser
	// LevelProject is .plannr/config.yaml in the working directory.
	LevelProject
	// LevelRuntime is an explicit --config file and env vars (highest priority).
	LevelRuntime
)

// String returns the level name.
func (l ConfigLevel) String() string {
	return levelNames[l]
}

var levelNames = map[ConfigLevel]string{
	LevelDefaults: "default",
	LevelUser:     "user",
	LevelProject:  "project",
	LevelRuntime:  "runtime",
}

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates a built-in default value.
	SourceDefault ConfigSource = "default"
	// SourceUser indicates ~/.plannr/config.yaml.
	SourceUser ConfigSource = "user"
	// SourceProject indicates .plannr/config.yaml.
	SourceProject ConfigSource = "project"
	// SourceFlag indicates a file named with --config.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates a PLANNR_* environment variable.
	SourceEnv ConfigSource = "env"
)

// Level returns the ConfigLevel for this source.
func (s ConfigSource) Level() ConfigLevel {
	switch s {
	case SourceUser:
		return LevelUser
	case SourceProject:
		return LevelProject
	case SourceEnv, SourceFlag:
		return LevelRuntime
	default:
		return LevelDefaults
	}
}

// TrackedSource contains both the source type and the file path.
type TrackedSource struct {
	Source ConfigSource
	Path   string // File path or empty for defaults/env
}

// String returns a human-readable source description.
func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return fmt.Sprintf("%s: %s", ts.Source, ts.Path)
}

// TrackedConfig wraps a Config with source tracking.
type TrackedConfig struct {
	Config *Config

	// Sources maps dotted config paths to where their value came from.
	Sources map[string]TrackedSource
}

// NewTrackedConfig creates a TrackedConfig holding the defaults.
func NewTrackedConfig() *TrackedConfig {
	tc := &TrackedConfig{
		Config:  Default(),
		Sources: make(map[string]TrackedSource),
	}
	for _, path := range AllConfigPaths() {
		tc.Sources[path] = TrackedSource{Source: SourceDefault}
	}
	return tc
}

// SetSource records the source and optional file path for a config path.
func (tc *TrackedConfig) SetSource(path string, source ConfigSource, filePath string) {
	tc.Sources[path] = TrackedSource{Source: source, Path: filePath}
}

// GetSource returns the source info for a config path.
// Unrecorded paths report SourceDefault.
func (tc *TrackedConfig) GetSource(path string) TrackedSource {
	if ts, ok := tc.Sources[path]; ok {
		return ts
	}
	return TrackedSource{Source: SourceDefault}
}
