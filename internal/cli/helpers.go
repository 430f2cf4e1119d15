package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/plannr/internal/config"
	"github.com/randalmurphal/plannr/internal/storage"
)

// newLoader is replaced in tests to isolate the user and project directories.
var newLoader = config.NewLoader

// loadConfig resolves configuration and applies its log level.
func loadConfig(cmd *cobra.Command) (*config.TrackedConfig, error) {
	tc, err := newLoader().Load(cfgFile)
	if err != nil {
		return nil, err
	}
	setupLogging(cmd.ErrOrStderr(), tc.Config)
	return tc, nil
}

// getBackend opens the configured storage backend.
func getBackend(cmd *cobra.Command) (storage.Backend, *config.Config, error) {
	tc, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.NewBackend(tc.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return backend, tc.Config, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
