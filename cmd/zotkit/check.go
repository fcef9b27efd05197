package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/zotkit/internal/config"
	"github.com/matsen/zotkit/internal/translate"
	"github.com/matsen/zotkit/internal/zotero"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and service connectivity",
	Long: `Verify that the Zotero API is reachable with the configured key and
library, and report whether the translation server is up. Outputs JSON.`,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status          string `json:"status"`
	Library         string `json:"library"`
	LibraryVersion  int    `json:"libraryVersion,omitempty"`
	LibraryError    string `json:"libraryError,omitempty"`
	TranslateServer bool   `json:"translateServerAvailable"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		json.NewEncoder(os.Stderr).Encode(map[string]string{"error": err.Error()})
		os.Exit(ExitConfigError)
	}

	lib := zotero.NewClient(cfg.Library(), cfg.APIKey,
		zotero.WithCacheDir(cfg.CacheDir))

	var lookupOpts []translate.Option
	if cfg.TranslateURL != "" {
		lookupOpts = append(lookupOpts, translate.WithBaseURL(cfg.TranslateURL))
	}
	lookup := translate.NewClient(lookupOpts...)

	ctx := cmd.Context()
	result := CheckResult{
		Status:          "ok",
		Library:         cfg.Library().Prefix(),
		TranslateServer: lookup.IsAvailable(ctx),
	}

	// One minimal item fetch proves auth and seeds the library version.
	if _, err := lib.SearchItems(ctx, zotero.SearchFilter{Limit: 1}); err != nil {
		result.Status = "error"
		result.LibraryError = err.Error()
	} else if v, known := lib.LibraryVersion(); known {
		result.LibraryVersion = v
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Status != "ok" {
		os.Exit(ExitError)
	}
	return nil
}
