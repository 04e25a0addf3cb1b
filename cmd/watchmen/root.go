package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/watchmen/internal/config"
)

var servicesFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&servicesFile, "services", "s", "", "services file (overrides SERVICES_FILE)")
}

var rootCmd = &cobra.Command{
	Use:   "watchmen",
	Short: "watchmen - uptime monitoring and outage detection",
	Long: "watchmen checks every configured service on its own schedule, tracks outages " +
		"and broadcasts what it sees to alerts, ping history and the HTTP API.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() config.Config {
	cfg := config.FromEnv()
	if servicesFile != "" {
		cfg.ServicesFile = servicesFile
	}
	return cfg
}
