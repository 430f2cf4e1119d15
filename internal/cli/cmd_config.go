package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/plannr/internal/config"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage plannr configuration.

Configuration is loaded from multiple sources with this priority:
  1. Runtime: environment variables (PLANNR_*), --config file
  2. Project: .plannr/config.yaml
  3. User: ~/.plannr/config.yaml
  4. Defaults: Built-in values

Examples:
  plannr config show                       # Show merged config as YAML
  plannr config show --source              # Show with source annotations
  plannr config get database.driver        # Get one value
  plannr config set storage.backend file   # Set in project config
  plannr config set --user log_level debug # Set in user config`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

// newConfigShowCmd creates the 'config show' subcommand.
func newConfigShowCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Long: `Show the merged configuration from all sources.

By default, outputs valid YAML. Use --source to see where each value comes from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if showSource {
				return printConfigWithSources(out, tc)
			}
			masked := *tc.Config
			if masked.Database.Postgres.Password != "" {
				masked.Database.Postgres.Password = "****"
			}
			data, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Show source for each value")

	return cmd
}

func printConfigWithSources(w io.Writer, tc *config.TrackedConfig) error {
	for _, path := range config.AllConfigPaths() {
		value, err := tc.Config.GetValue(path)
		if err != nil {
			return err
		}
		if config.IsSecret(path) && value != "" {
			value = "****"
		}
		_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", path, value, tc.GetSource(path))
	}
	return nil
}

// newConfigGetCmd creates the 'config get' subcommand.
func newConfigGetCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific config value",
		Long: `Get a specific configuration value by key.

Keys use dot notation for nested values (e.g., "database.sqlite.path").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			value, err := tc.Config.GetValue(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showSource {
				_, _ = fmt.Fprintf(out, "%s (from %s)\n", value, tc.GetSource(key))
			} else {
				_, _ = fmt.Fprintln(out, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Show source of the value")

	return cmd
}

// newConfigSetCmd creates the 'config set' subcommand.
func newConfigSetCmd() *cobra.Command {
	var setUser bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: `Set a configuration value.

By default, values are saved to the project config (.plannr/config.yaml).
Use --user to save to ~/.plannr/config.yaml instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			targetPath := filepath.Join(config.PlannrDir, config.ConfigFileName)
			if setUser {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("get home directory: %w", err)
				}
				targetPath = filepath.Join(home, config.PlannrDir, config.ConfigFileName)
			}

			cfg, err := config.LoadFrom(targetPath)
			if err != nil {
				return fmt.Errorf("load config from %s: %w", targetPath, err)
			}
			if err := cfg.SetValue(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.SaveTo(targetPath); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			if !quiet {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, targetPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&setUser, "user", false, "Save to user config (~/.plannr/config.yaml)")

	return cmd
}
