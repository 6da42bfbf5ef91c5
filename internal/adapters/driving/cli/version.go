package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/adapters/driving/mcp"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long: `Print the ragkit version together with the Go runtime and the
MCP protocol server version it was built with.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if versionShort {
			cmd.Println(version)
			return
		}
		cmd.Printf("ragkit version %s\n", version)
		cmd.Printf("  go:  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		cmd.Printf("  mcp: %s\n", mcp.Version)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version string")
	rootCmd.AddCommand(versionCmd)
}
