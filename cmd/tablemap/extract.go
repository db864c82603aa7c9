package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablemap/tablemap/internal/bridge"
	"github.com/tablemap/tablemap/internal/structure"
)

var (
	extractOut   string
	extractFlags strategyFlags
)

var extractCmd = &cobra.Command{
	Use:   "extract <input> <structure-map>",
	Short: "Extract the tables of a structure map as CSV",
	Long: `Place words into cells for every table listed in a structure map and
write one CSV per table under <out>/<stem>_lattice, <stem>_stream and
<stem>_text_only.

Examples:
  tablemap extract report.pdf out/report_structure_map.json -o out
  tablemap extract report.pdf map.yaml --no-stream --no-merge-lattice`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := extractFlags.apply(*mgr.Get())

		start := time.Now()
		smap, err := structure.Load(args[1])
		if err != nil {
			return fmt.Errorf("load structure map: %w", err)
		}
		doc, err := bridge.Load(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		s, err := extractTables(smap, doc, args[0], extractOut, cfg)
		s.log(args[0], time.Since(start))
		return err
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", ".", "output directory")
	extractFlags.register(extractCmd)
}
