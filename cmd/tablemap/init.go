package main

import (
	"github.com/spf13/cobra"

	"github.com/tablemap/tablemap/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "tablemap.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		Logger.Info("wrote default config", "path", path)
		return nil
	},
}
