package main

import (
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/matsen/zotkit/internal/config"
	"github.com/matsen/zotkit/internal/tools"
	"github.com/matsen/zotkit/internal/translate"
	"github.com/matsen/zotkit/internal/zotero"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Serve the library tools to an MCP client (Claude Desktop, an agent
framework, etc.) over standard input and output. The process runs until
the client closes the connection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitConfigError)
		}

		lib := zotero.NewClient(cfg.Library(), cfg.APIKey,
			zotero.WithCacheDir(cfg.CacheDir))

		var lookupOpts []translate.Option
		if cfg.TranslateURL != "" {
			lookupOpts = append(lookupOpts, translate.WithBaseURL(cfg.TranslateURL))
		}
		lookup := translate.NewClient(lookupOpts...)

		server := mcp.NewServer(&mcp.Implementation{
			Name:    "zotkit",
			Version: Version,
		}, nil)
		tools.NewAdapter(lib, lookup).Register(server)

		return server.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
