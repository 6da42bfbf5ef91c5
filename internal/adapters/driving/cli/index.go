package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/connectors/filesystem"
	"github.com/custodia-labs/ragkit/internal/core/domain"
)

var (
	indexWatch        bool
	indexWorkers      int
	indexAllOrNothing bool
	indexAppend       bool
	indexSourceID     string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the vector index from a directory",
	Long: `Walks a directory, normalises every supported file (text, Markdown, HTML,
PDF, XLSX), splits it into overlapping chunks, embeds the chunks and saves
the index. The path defaults to the current directory.

By default the index is rebuilt from scratch. Use --append to add to the
saved index, and --watch to keep indexing new and changed files until
interrupted.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: pipelineAnnotation(),
	RunE:        runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "keep indexing changes until interrupted")
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "w", 0, "concurrent embedding workers (0 = settings)")
	indexCmd.Flags().BoolVar(&indexAllOrNothing, "all-or-nothing", false, "discard the whole build if any chunk fails")
	indexCmd.Flags().BoolVar(&indexAppend, "append", false, "add to the saved index instead of rebuilding")
	indexCmd.Flags().StringVar(&indexSourceID, "source-id", "", "source identifier (default: directory name)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errNoIndex
	}

	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	sourceID := indexSourceID
	if sourceID == "" {
		sourceID = filepath.Base(root)
	}

	ctx := cmd.Context()
	source := filesystem.New(sourceID, root)
	defer source.Close()

	if err := source.Validate(ctx); err != nil {
		return err
	}

	report, err := indexService.IndexSource(ctx, source)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	if err := indexService.Save(ctx); err != nil {
		return err
	}

	printReport(cmd, report)

	if !indexWatch {
		return nil
	}
	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", root)
	return indexService.Watch(ctx, source)
}

func printReport(cmd *cobra.Command, report *domain.BuildReport) {
	p := newPainter(cmd.OutOrStdout())
	stats := indexService.Stats()

	cmd.Println(p.heading("Index built"))
	cmd.Printf("  Build:     %s\n", report.BuildID)
	cmd.Printf("  Documents: %d (%d skipped)\n", report.Documents, report.Skipped)
	cmd.Printf("  Chunks:    %d\n", report.Chunks)
	cmd.Printf("  Records:   %d\n", report.Records)
	cmd.Printf("  Duration:  %s\n", report.Duration.Round(time.Millisecond))
	cmd.Printf("  Total:     %d records in %s\n", stats.RecordCount, stats.Location)

	if report.FailedChunks == 0 && len(report.Failures) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(p.warn(fmt.Sprintf("%d chunks failed to embed:", report.FailedChunks)))
	ids := make([]string, 0, len(report.Failures))
	for id := range report.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cmd.Printf("  %s: %s\n", id, report.Failures[id])
	}
}
