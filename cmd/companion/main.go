package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
)

var rootCmd = &cobra.Command{
	Use:          "companion",
	Short:        "Talk to your companion from the terminal",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "dotenv file with overrides")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemaCmd)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "companion.yaml"
	}
	return filepath.Join(dir, "companion", "config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
