package main

import (
	"github.com/spf13/cobra"
)

var (
	mapOut    string
	mapFormat string
)

var mapCmd = &cobra.Command{
	Use:   "map <input>",
	Short: "Detect tables and write a structure map",
	Long: `Detect tables on every page of the input and write a structure map.

The input is a PDF, a primitives JSON document or a directory of
page_N.json files. The map is written to <out>/<stem>_structure_map.json
(or .yaml).

Examples:
  tablemap map report.pdf -o out
  tablemap map pages/ --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := *mgr.Get()
		if mapFormat != "" {
			cfg.MapFormat = mapFormat
		}
		_, _, _, err = buildMap(cmd.Context(), args[0], mapOut, cfg)
		return err
	},
}

func init() {
	mapCmd.Flags().StringVarP(&mapOut, "out", "o", ".", "output directory")
	mapCmd.Flags().StringVar(&mapFormat, "format", "", "structure map format: json or yaml (default from config)")
}
