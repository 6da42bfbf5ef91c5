package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose retrieval and answers to AI assistants over MCP",
	Long: `Start a Model Context Protocol server backed by the saved index.

Tools:      retrieve, ask, index_stats
Resources:  ragkit://index/stats

The server speaks MCP over stdio unless --http is given, in which case it
serves the streamable HTTP transport on that address.

Examples:
  ragkit mcp serve                    # stdio, for desktop assistants
  ragkit mcp serve --http :8181       # HTTP, for MCP Inspector

Assistant configuration:
  {
    "mcpServers": {
      "ragkit": {"command": "/path/to/ragkit", "args": ["mcp", "serve"]}
    }
  }`,
	Args:        cobra.NoArgs,
	Annotations: pipelineAnnotation(),
	RunE:        runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve over HTTP on this address instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errNoRetrieval
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval: retrievalService,
		Answer:    answerService,
		Index:     indexService,
	})
	if err != nil {
		return err
	}

	if mcpHTTPAddr == "" {
		return server.Run(cmd.Context())
	}
	cmd.PrintErrf("MCP server listening on %s\n", mcpHTTPAddr)
	return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
}
