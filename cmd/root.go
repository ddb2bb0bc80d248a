package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/labtrace_backend/cmd/http"
	systemcmd "github.com/Alijeyrad/labtrace_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "labtrace",
	Short: "Labtrace sample lifecycle traceability backend.",
	Long: `Labtrace tracks material samples through a testing laboratory, from intake
through lot registration, specimen preparation and certification to discard, and
answers where each sample is and what state it is in.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
}
