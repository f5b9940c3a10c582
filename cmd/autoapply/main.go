// Package main provides the autoapply CLI, a client for the Auto-Apply
// job-application automation service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/auth"
	"github.com/jonathan/autoapply-client/internal/config"
	"github.com/jonathan/autoapply-client/internal/observability"
	"github.com/jonathan/autoapply-client/internal/reconcile"
	"github.com/jonathan/autoapply-client/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "autoapply",
	Short: "Client for the Auto-Apply job-application service",
	Long:  "autoapply manages your applicant profile and search preferences, triggers automation runs on the Auto-Apply service, and tracks their progress.",
}

var (
	flagConfigPath string
	flagAPIBase    string
	flagUserID     string
	flagStateDir   string
	flagToken      string
	flagTokenFile  string
	flagVerbose    bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVar(&flagAPIBase, "api", "", "Service base URL")
	pf.StringVarP(&flagUserID, "user", "u", "", "User id")
	pf.StringVar(&flagStateDir, "state-dir", "", "Directory for persisted local state")
	pf.StringVar(&flagToken, "token", "", "Bearer token")
	pf.StringVar(&flagTokenFile, "token-file", "", "Path to a file holding the bearer token")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// appEnv bundles the wired-up client components for one command invocation.
type appEnv struct {
	cfg     config.Config
	store   *store.Store
	client  *api.Client
	tokens  auth.TokenSource
	rec     *reconcile.Reconciler
	printer *observability.Printer
}

// buildEnv assembles configuration (flags > config file > environment) and
// constructs the store, API client, token source, and reconciler.
func buildEnv() (*appEnv, error) {
	cfg := config.Config{
		APIBaseURL: flagAPIBase,
		UserID:     flagUserID,
		StateDir:   flagStateDir,
		Token:      flagToken,
		TokenFile:  flagTokenFile,
		Verbose:    flagVerbose,
	}

	if flagConfigPath != "" {
		fileCfg, err := config.LoadConfig(flagConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}
	cfg = cfg.MergeWithDefaults(config.FromEnv())

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = config.DefaultAPIBaseURL
	}
	if cfg.StateDir == "" {
		dir, err := config.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.APIBaseURL, nil)
	if err != nil {
		return nil, err
	}

	var tokens auth.TokenSource
	switch {
	case cfg.TokenFile != "":
		tokens = auth.NewFileTokenSource(cfg.TokenFile)
	default:
		tokens = auth.StaticTokenSource(cfg.Token)
	}

	env := &appEnv{
		cfg:     cfg,
		store:   st,
		client:  client,
		tokens:  tokens,
		rec:     reconcile.New(client, tokens, st, nil),
		printer: observability.NewPrinter(os.Stdout),
	}
	return env, nil
}

// userID resolves the acting user: explicit config first, then the owner of
// the saved preferences.
func (e *appEnv) userID() (string, error) {
	if e.cfg.UserID != "" {
		return e.cfg.UserID, nil
	}
	prefs, err := e.store.Preferences()
	if err != nil {
		return "", err
	}
	if prefs != nil && prefs.UserID != "" {
		return prefs.UserID, nil
	}
	return "", fmt.Errorf("no user id configured: pass --user or set AUTOAPPLY_USER_ID")
}

func (e *appEnv) debugf(format string, args ...any) {
	if e.cfg.Verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
