package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hexastack/agentic/cli/internal/config"
)

var (
	projectDir string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "agentic",
	Short: "Agentic - conversational workflow engine",
	Long: `Agentic runs declarative conversational workflows: ordered tasks bound to
actions, data-bound with "=" expressions, replying over messaging channels.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.FileName, "Config file, relative to the project directory")

	rootCmd.AddCommand(validateCmd, runCmd, serveCmd, actionsCmd)
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, path)
	}
	return config.LoadFile(projectDir, path)
}

