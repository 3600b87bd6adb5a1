package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artiocarbon/CAR-ERW/src/results"
	"github.com/artiocarbon/CAR-ERW/src/viewerconf"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "carexport",
	Short: "Headless companion to the ERW CaR viewer",
	Long: "Carexport inspects folders of precomputed CaR result files and\n" +
		"renders the viewer's figures to PNG without opening a window.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(*cobra.Command, []string) {
		results.SetLogLevel(rootFlags.logLevel)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.Version = version
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "carviewer.yaml", "Viewer config file (YAML or JSON)")
	pf.StringVar(&rootFlags.logLevel, "loglevel", "warn", "Log level: debug, info, warn, error")
}

// exportConfig loads the shared viewer config; a missing file means
// defaults, only a malformed one is an error.
func exportConfig() (*viewerconf.Config, error) {
	return viewerconf.LoadOrDefault(rootFlags.config)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
