// Package cli implements the plannr command-line interface.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/plannr/internal/config"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
)

// newRootCmd builds the command tree. Flags bind to the package-level
// variables above and are reset to their defaults on every build.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plannr",
		Short: "Personal projects and tasks",
		Long: `plannr keeps personal projects and tasks.

Existing data can be brought over from an OmniFocus export archive
(.zip or .ofocus) or a bare contents.xml; the whole import is written
at once or not at all.

Quick start:
  plannr import ~/Downloads/OmniFocus.zip   Import an export archive
  plannr projects                           List projects
  plannr tasks --project Launch             List a project's tasks`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .plannr/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(newImportCmd())
	root.AddCommand(newProjectsCmd())
	root.AddCommand(newTasksCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI until completion or interrupt.
func Execute() error {
	ctx, cancel := SetupSignalHandler()
	defer cancel()
	return newRootCmd().ExecuteContext(ctx)
}

// initConfig resolves the global flags. Each may also be set through the
// environment (PLANNR_CONFIG, PLANNR_VERBOSE, PLANNR_QUIET, PLANNR_JSON).
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("PLANNR")
	v.AutomaticEnv()
	for _, name := range []string{"config", "verbose", "quiet", "json"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	cfgFile = v.GetString("config")
	verbose = v.GetBool("verbose")
	quiet = v.GetBool("quiet")
	jsonOut = v.GetBool("json")

	setupLogging(cmd.ErrOrStderr(), nil)
	return nil
}

// setupLogging installs the default slog handler. Flags win over the
// configured log level.
func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	case cfg != nil:
		level = cfg.SlogLevel()
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
