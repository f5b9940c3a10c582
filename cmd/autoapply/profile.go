package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your applicant profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the best-known profile",
	RunE:  profileShow,
}

var (
	profileSaveFile string
)

var profileSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a profile to the service",
	Long:  "Reads a profile JSON file, validates it, saves it to the Auto-Apply service, and updates the local cache. The saved profile is marked complete.",
	RunE:  profileSave,
}

var profileInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a profile template to fill in",
	Args:  cobra.MaximumNArgs(1),
	RunE:  profileInit,
}

func init() {
	profileSaveCmd.Flags().StringVarP(&profileSaveFile, "file", "f", "profile.json", "Path to the profile JSON file")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileInitCmd)
	rootCmd.AddCommand(profileCmd)
}

func profileShow(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}

	// Refresh from the server when possible; the cached copy answers if not.
	if userID, err := env.userID(); err == nil {
		if err := env.rec.Refresh(cmd.Context(), userID); err != nil {
			env.debugf("profile refresh failed: %v", err)
		}
	}

	env.printer.PrintProfile(env.rec.Profile())
	if !env.rec.HasUsableProfile() {
		fmt.Println("Profile is incomplete. Fill in a template from 'autoapply profile init' and save it.")
	}
	return nil
}

func profileSave(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(profileSaveFile)
	if err != nil {
		return fmt.Errorf("failed to read profile file %s: %w", profileSaveFile, err)
	}
	var profile types.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("failed to parse profile JSON: %w", err)
	}

	saved, err := env.rec.Save(cmd.Context(), &profile)
	if err != nil {
		if api.IsAuthRequired(err) {
			return fmt.Errorf("authentication required: please log in again")
		}
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Profile saved for %s.\n", saved.FullName)
	return nil
}

func profileInit(_ *cobra.Command, args []string) error {
	path := "profile.json"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", path)
	}

	template := types.UserProfile{
		Education: types.Education{},
		TechnicalSkills: []types.SkillItem{
			{Name: "Example skill", Level: "Advanced"},
		},
		ProgrammingLanguages: []types.SkillItem{},
		Frameworks:           []types.SkillItem{},
		Certifications:       []string{},
		KeyAchievements:      []string{},
		Preferences: types.ProfilePreferences{
			RoleTypes:    []string{},
			Industries:   []string{},
			CompanySizes: []string{},
			WorkStyles:   []string{},
			SalaryRange:  types.SalaryRange{Currency: "USD"},
		},
	}
	data, err := json.MarshalIndent(&template, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Template written to %s. Fill it in, then run 'autoapply profile save -f %s'.\n", path, path)
	return nil
}
