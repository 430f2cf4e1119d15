package config

import (
	"log/slog"
	"os"
	"sort"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"PLANNR_LOG_LEVEL":    "log_level",
	"PLANNR_STORAGE":      "storage.backend",
	"PLANNR_STORAGE_FILE": "storage.file.path",
	// Database settings
	"PLANNR_DB_DRIVER":   "database.driver",
	"PLANNR_DB_PATH":     "database.sqlite.path",
	"PLANNR_DB_HOST":     "database.postgres.host",
	"PLANNR_DB_PORT":     "database.postgres.port",
	"PLANNR_DB_NAME":     "database.postgres.database",
	"PLANNR_DB_USER":     "database.postgres.user",
	"PLANNR_DB_PASSWORD": "database.postgres.password",
	"PLANNR_DB_SSL_MODE": "database.postgres.ssl_mode",
	// Import limits
	"PLANNR_IMPORT_MAX_DEPTH":      "import.max_depth",
	"PLANNR_IMPORT_MAX_ENTRY_SIZE": "import.max_entry_size",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Returns the config paths that were overridden, sorted. Values that do not
// parse for their field are logged and skipped.
func ApplyEnvVars(tc *TrackedConfig) []string {
	return applyEnv(tc, os.LookupEnv)
}

func applyEnv(tc *TrackedConfig, lookup func(string) (string, bool)) []string {
	var overridden []string
	for envVar, path := range EnvVarMapping {
		value, ok := lookup(envVar)
		if !ok || value == "" {
			continue
		}
		if err := tc.Config.SetValue(path, value); err != nil {
			slog.Warn("ignoring environment override", "var", envVar, "error", err)
			continue
		}
		tc.SetSource(path, SourceEnv, "")
		overridden = append(overridden, path)
	}
	sort.Strings(overridden)
	return overridden
}

// EnvVarFor returns the environment variable that overrides path, if any.
func EnvVarFor(path string) string {
	for envVar, p := range EnvVarMapping {
		if p == path {
			return envVar
		}
	}
	return ""
}
