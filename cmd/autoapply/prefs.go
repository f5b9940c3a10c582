package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply-client/internal/types"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage search preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved search preferences",
	RunE:  prefsShow,
}

var (
	prefsKeywords  string
	prefsLocations string
	prefsMinSalary int
	prefsRoleTags  string
)

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update search preferences",
	RunE:  prefsSet,
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefsKeywords, "keywords", "", "Comma-separated search keywords")
	prefsSetCmd.Flags().StringVar(&prefsLocations, "locations", "", "Comma-separated locations")
	prefsSetCmd.Flags().IntVar(&prefsMinSalary, "min-salary", 0, "Minimum salary (0 clears)")
	prefsSetCmd.Flags().StringVar(&prefsRoleTags, "role-tags", "", "Comma-separated role tags")
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func prefsShow(_ *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	prefs, err := env.store.Preferences()
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = types.DefaultPreferences(env.cfg.UserID)
	}
	env.printer.PrintPreferences(prefs)
	return nil
}

func prefsSet(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	prefs, err := env.store.Preferences()
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = types.DefaultPreferences(env.cfg.UserID)
	}
	if env.cfg.UserID != "" {
		prefs.UserID = env.cfg.UserID
	}

	if cmd.Flags().Changed("keywords") {
		prefs.Keywords = prefsKeywords
	}
	if cmd.Flags().Changed("locations") {
		prefs.Locations = prefsLocations
	}
	if cmd.Flags().Changed("min-salary") {
		if prefsMinSalary > 0 {
			v := prefsMinSalary
			prefs.MinSalary = &v
		} else {
			prefs.MinSalary = nil
		}
	}
	if cmd.Flags().Changed("role-tags") {
		prefs.RoleTags = prefsRoleTags
	}

	if err := env.store.SavePreferences(prefs); err != nil {
		return err
	}
	env.printer.PrintPreferences(prefs)
	return nil
}
