// Command courtroom simulates a criminal case from spoken or typed
// statements: it matches each side's argument against Indian constitutional
// and penal law and reports the relevant citations with simulated odds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// defaultConfigPath is read when --config is not given. A missing file at
// this path means built-in defaults.
const defaultConfigPath = "courtroom.yaml"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "courtroom",
	Short: "Voice-driven legal case simulator",
	Long: `Courtroom asks for the prosecution's and the defense's statements, finds the
constitutional articles and penal code sections each one touches, and reports
simulated win percentages for both sides.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(crimesCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(voicesCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
