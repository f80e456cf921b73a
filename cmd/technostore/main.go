// Command technostore runs a TechnoStore node and talks to one.
package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var log = logging.Logger("technostore")

var rootCmd = &cobra.Command{
	Use:   "technostore",
	Short: "Permit-paid electronics store on a local ledger",
	Long: `technostore serves a product catalog paid for with EIP-2612 permits of an
ERC-20 token, and provides client commands to browse, buy and refund.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file is optional.
		_ = godotenv.Load()
		return setLogLevel(logLevel)
	},
}

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.technostore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(addProductCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(refundCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.Version = version
}

func setLogLevel(level string) error {
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	if level == "" {
		return nil
	}
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logging.SetAllLoggers(lvl)
	return nil
}

func main() {
	logging.SetAllLoggers(logging.LevelInfo)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
