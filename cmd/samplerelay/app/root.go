package app

import (
	"github.com/spf13/cobra"

	"github.com/aptsec/samplerelay/pkg/config"
	"github.com/aptsec/samplerelay/pkg/log"
)

var (
	configPath string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "samplerelay",
	Short: "SampleRelay - MCP tools for fetching malware samples through an SSH bastion",
	Long: `SampleRelay exposes an APT analysis workflow as MCP tools and CLI commands:
downloading malware sample files by SHA256 hash from a remote analysis host
reached through a jump server, and looking up precomputed hash lists for
named YARA detection rules.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set log modes based on flags
		if verbose {
			log.SetVerbose(true)
		}
		if quiet {
			log.SetQuiet(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Enable quiet mode (minimal output)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// Run adds all child commands to the root command and sets flags, this is the entry point called by main.go
func Run() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration from the --config flag
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
