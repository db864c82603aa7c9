package main

import (
	"github.com/spf13/cobra"

	"github.com/tablemap/tablemap/internal/config"
	"github.com/tablemap/tablemap/internal/logger"
)

var Logger = logger.GetLogger("tablemap")

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tablemap",
	Short: "Find tables in PDF pages and extract them as CSV",
	Long: `tablemap detects tables from page primitives (words, ruling lines,
rectangles) and extracts them as CSV grids.

The pipeline has two stages:
  - map:     detect tables and write a structure map (JSON or YAML)
  - extract: place words into cells for every table in a structure map

run does both in one pass; watch runs both on every file dropped into a
directory.`,
	SilenceUsage: true,
}

// strategyFlags are the per-command switches shared by extract, run and watch.
type strategyFlags struct {
	noLattice, noStream, noTextOnly, noMergeLattice bool
	format                                          string
}

func (f *strategyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noLattice, "no-lattice", false, "skip lattice tables")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "skip stream tables")
	cmd.Flags().BoolVar(&f.noTextOnly, "no-text-only", false, "skip text-only tables")
	cmd.Flags().BoolVar(&f.noMergeLattice, "no-merge-lattice", false, "do not stitch lattice tables across pages")
	cmd.Flags().StringVar(&f.format, "format", "", "structure map format: json or yaml (default from config)")
}

func (f *strategyFlags) apply(cfg config.Config) config.Config {
	if f.noLattice {
		cfg.Strategies.Lattice = false
	}
	if f.noStream {
		cfg.Strategies.Stream = false
	}
	if f.noTextOnly {
		cfg.Strategies.TextOnly = false
	}
	if f.noMergeLattice {
		cfg.Strategies.MergeLattice = false
	}
	if f.format != "" {
		cfg.MapFormat = f.format
	}
	return cfg
}

// loadConfig reads the config and applies the global logging settings.
func loadConfig() (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	logger.SetDebug(debug || cfg.Debug)
	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./tablemap.yaml or ~/.tablemap/tablemap.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(mapCmd, extractCmd, runCmd, watchCmd, initCmd)
}
