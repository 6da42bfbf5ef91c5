package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

var (
	retrieveK        int
	retrieveMinScore float64
	retrieveJSON     bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Show the indexed passages most relevant to a question",
	Long: `Embeds the question and returns the closest passages from the index,
best first. With the cosine metric scores are similarities (higher is
better); with the euclidean metric they are distances (lower is better).`,
	Args:        cobra.ExactArgs(1),
	Annotations: pipelineAnnotation(),
	RunE:        runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", 0, "number of passages (0 = settings)")
	retrieveCmd.Flags().Float64Var(&retrieveMinScore, "min-score", 0, "score threshold (overrides settings)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errNoRetrieval
	}

	opts := domain.RetrieveOptions{K: retrieveK}
	if cmd.Flags().Changed("min-score") {
		threshold := retrieveMinScore
		opts.MinScore = &threshold
	}

	results, err := retrievalService.Retrieve(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return outputJSON(cmd, results)
	}
	outputPassages(cmd, results)
	return nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputPassages(cmd *cobra.Command, results []domain.RetrievalResult) {
	if len(results) == 0 {
		cmd.Println("No relevant passages found.")
		return
	}

	p := newPainter(cmd.OutOrStdout())
	for i := range results {
		r := results[i]
		cmd.Printf("  [%d] %s %s\n", i+1, r.DocumentID, p.score(fmt.Sprintf("(%.4f)", r.Score)))
		cmd.Printf("      %s\n", p.dim(fmt.Sprintf("chars %d-%d", r.Start, r.End)))
		cmd.Printf("      %s\n", snippet(r.Text, 240))
		cmd.Println()
	}
}

// snippet flattens whitespace and truncates to limit runes.
func snippet(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit]) + "..."
}
