package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/concierge/internal/config"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool schemas sent to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		defer registry.Close()

		data, err := json.MarshalIndent(registry.Schemas(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
