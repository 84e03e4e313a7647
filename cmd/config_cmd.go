package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the loaded configuration for errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		errs := cfg.Validate()
		if len(errs) == 0 {
			color.Green("✓ Configuration is valid")
			return nil
		}
		for _, e := range errs {
			color.Red("✗ %s", e.Error())
		}
		return fmt.Errorf("%d configuration errors", len(errs))
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
