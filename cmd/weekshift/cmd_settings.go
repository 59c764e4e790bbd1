// Package main implements the weekshift CLI.
// This file contains the settings commands.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weekshift/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect or toggle the realignment setting",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := settings.Open(settingsPath)
		enabled, err := store.Enabled()
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		fmt.Printf("%s: %v\n", settings.KeyEnableRealignment, enabled)
		return nil
	},
}

var settingsEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable realignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := settings.Open(settingsPath)
		if err := store.SetBool(settings.KeyEnableRealignment, true); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		fmt.Println("Realignment enabled")
		return nil
	},
}

var settingsDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable realignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := settings.Open(settingsPath)
		if err := store.SetBool(settings.KeyEnableRealignment, false); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		fmt.Println("Realignment disabled")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsEnableCmd)
	settingsCmd.AddCommand(settingsDisableCmd)
}
