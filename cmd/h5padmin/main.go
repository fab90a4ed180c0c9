package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/h5p-content/pkg/h5pcontent/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configFile string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:   "h5padmin",
		Short: "H5P content admin CLI",
		Long: `H5P content admin CLI

Maintains the H5P library registry and the database schema using the same
configuration as the server (environment, .env or --config file).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewLibraryCommand())

	return rootCmd
}

// loadConfig reads configuration from --config when given, else from the environment.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	opt := config.WithEnv()
	if configFile != "" {
		opt = config.WithConfigFile(configFile)
	}
	cfg, err := config.Load(opt)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// cliLogger keeps service logs out of command output.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
