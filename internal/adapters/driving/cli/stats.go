package cli

import (
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Describe the saved index",
	Annotations: pipelineAnnotation(),
	RunE:        runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output stats as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errNoIndex
	}

	stats := indexService.Stats()
	if statsJSON {
		return outputJSON(cmd, stats)
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Println(p.heading("Index"))
	cmd.Printf("  Location:  %s\n", stats.Location)
	cmd.Printf("  Metric:    %s\n", stats.Metric)
	cmd.Printf("  Dimension: %d\n", stats.Dimension)
	cmd.Printf("  Records:   %d\n", stats.RecordCount)
	cmd.Printf("  Documents: %d\n", stats.Documents)
	if stats.BuildID != "" {
		cmd.Printf("  Build:     %s\n", stats.BuildID)
	}
	mode := "exact"
	if stats.Approximate {
		mode = "approximate (IVF)"
	}
	cmd.Printf("  Search:    %s\n", mode)
	if stats.RecordCount == 0 {
		cmd.Println()
		cmd.Println("The index is empty. Run 'ragkit index <path>' to build it.")
	}
	return nil
}
