// Package main provides the zotkit CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zotkit",
	Short: "Zotero library tools for AI agents",
	Long: `zotkit exposes a Zotero library to AI agents over the Model Context
Protocol: item and collection CRUD, tag management, citation export,
fulltext retrieval, cached attachment downloads, and identifier lookup
via a Zotero translation server.

Configuration comes from the environment (ZOTERO_API_KEY, ZOTERO_USER_ID
or ZOTERO_GROUP_ID, optional ZOTERO_TRANSLATE_URL and ZOTKIT_CACHE_DIR),
a .env file, or ~/.config/zotkit/config.yml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
