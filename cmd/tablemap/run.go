package main

import (
	"github.com/spf13/cobra"
)

var (
	runOut   string
	runFlags strategyFlags
)

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Build the structure map and extract its tables in one pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		_, err = process(cmd.Context(), args[0], runOut, runFlags.apply(*mgr.Get()))
		return err
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", ".", "output directory")
	runFlags.register(runCmd)
}
