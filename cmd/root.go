// Package cmd implements the command-line interface for the crawld worker.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/crawld/internal/fetcher"
)

var (
	// cfgFile holds the path to the worker configuration file.
	cfgFile string

	// debug forces debug-level logging regardless of the configured level.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "crawld",
		Short: "A horizontally-scalable web crawler worker",
		Long:  "crawld runs a single crawl worker: claim a URL from the shared frontier, respect politeness, fetch, extract, persist and release.",
		RunE:  runWorker,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to worker config file (YAML); env vars override its values and are not read without it")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "force debug-level logging")
}

// Execute runs the root command and returns the process exit code: 0 clean
// shutdown, 2 misconfiguration, 3 coordination store unreachable, 4 document
// store unreachable.
func Execute() int {
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code, ok := fetcher.ExitCode(err); ok {
			return code
		}
		return 2
	}
	return 0
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if debug {
		viper.Set("logger.level", "debug")
	}
	return fetcher.Run(cmd.Context(), cfgFile, debug)
}
