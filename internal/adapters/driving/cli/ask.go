package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

var (
	askK    int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the passages most relevant to the question and asks the
language model to answer using only that context. When the model or the
embedding provider is unavailable a fallback answer is printed instead.`,
	Args:        cobra.ExactArgs(1),
	Annotations: pipelineAnnotation(),
	RunE:        runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "number of context passages (0 = settings)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errNoAnswer
	}

	answer, err := answerService.Ask(cmd.Context(), args[0], domain.RetrieveOptions{K: askK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputJSON(cmd, answer)
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Println(answer.Text)
	if answer.Degraded {
		cmd.Println()
		cmd.Println(p.warn("Note: " + answer.Reason))
	}
	if len(answer.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println(p.heading("Sources:"))
	for i := range answer.Sources {
		s := answer.Sources[i]
		cmd.Printf("  [%d] %s %s\n", i+1, s.DocumentID, p.dim(fmt.Sprintf("chars %d-%d, score %.4f", s.Start, s.End, s.Score)))
	}
	return nil
}
