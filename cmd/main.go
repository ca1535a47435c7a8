package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/logging"
	"github.com/samaelod/paesim/tui"
)

var version = "dev"

var appConfigPath string

var rootCmd = &cobra.Command{
	Use:   "paesim",
	Short: "PAE to AFFCAR countdown traffic simulator",
	Long: `paesim reproduces the UDP countdown traffic a PAE sends to an AFFCAR display.

Without a subcommand it opens the interactive terminal UI, where a scenario
(.lua or .toml) can be run or a capture file (.pcap, .pcapng) inspected.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		return tui.Run(version, appCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appConfigPath, "config", "", "application config file (default paesim.toml)")
}

func loadAppConfig() (*config.Config, error) {
	if appConfigPath != "" {
		return config.Load(appConfigPath)
	}
	return config.LoadDefault()
}

func main() {
	logging.ConfigureRuntime()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "paesim:", err)
		os.Exit(1)
	}
}
