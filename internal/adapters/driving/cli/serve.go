package cli

import (
	"github.com/google/gops/agent"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/adapters/driving/api"
	"github.com/custodia-labs/ragkit/internal/logger"
)

var (
	serveAddr string
	serveGops bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval and answering over HTTP",
	Long: `Start a JSON REST API:

  GET  /healthz       liveness
  GET  /v1/stats      index header
  POST /v1/retrieve   {"question": "...", "k": 5, "min_score": 0.3}
  POST /v1/ask        {"question": "...", "k": 5}

Use --gops to start a diagnostics agent for the gops tool.`,
	Annotations: pipelineAnnotation(),
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveGops, "gops", false, "start the gops diagnostics agent")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errNoRetrieval
	}

	if serveGops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			logger.Warn("gops: %v", err)
		} else {
			defer agent.Close()
		}
	}

	server, err := api.NewServer(api.Ports{
		Retrieval: retrievalService,
		Answer:    answerService,
		Index:     indexService,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Listening on %s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
