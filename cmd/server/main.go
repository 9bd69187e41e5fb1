// Command server runs the CodeVault API.
//
//	server                    # same as "server serve"
//	server serve --config codevault.yaml
//	server migrate            # bring the schema up to date and exit
//
// Settings come from internal/config: defaults, then the --config file,
// then environment variables.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "CodeVault snippet manager API",
	Long: `CodeVault stores code snippets, projects, per-line notes and file uploads
for signed-in users, runs snippets in a Docker sandbox and answers questions
about them through an OpenAI-compatible assistant.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (YAML, TOML or JSON); environment variables override it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the process logger from it.
// The logger is also installed as the slog default so package-level
// slog calls share its level.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
