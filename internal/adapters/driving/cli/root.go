// Package cli implements the ragkit command line interface on cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// annotationPipeline marks commands that need the index, retrieval and
// answer services in addition to settings.
const annotationPipeline = "ragkit:pipeline"

// Options are resolved from flags and passed to the Bootstrap function.
type Options struct {
	// ConfigDir holds config.toml and the prompts directory.
	ConfigDir string

	// DataDir holds the persisted index.
	DataDir string

	// Pipeline is true when the command needs the index, retrieval and
	// answer services.
	Pipeline bool

	// Workers overrides build.workers when positive.
	Workers int

	// AllOrNothing forces all-or-nothing builds when true.
	AllOrNothing bool

	// SkipLoad starts from an empty index instead of the persisted one.
	SkipLoad bool
}

// ProviderChecker verifies that configured providers are reachable.
type ProviderChecker interface {
	CheckEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	CheckLLM(ctx context.Context, settings *domain.LLMSettings) error
}

// Services are the driving ports the commands use.
type Services struct {
	Settings  driving.SettingsService
	Index     driving.IndexService
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
	Checker   ProviderChecker

	// Close releases provider clients and stores. May be nil.
	Close func() error
}

// Bootstrap builds the services for a command invocation.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	settingsService  driving.SettingsService
	indexService     driving.IndexService
	retrievalService driving.RetrievalService
	answerService    driving.AnswerService
	providerChecker  ProviderChecker

	bootstrap     Bootstrap
	closeServices func() error
)

var (
	verbose   bool
	logLevel  string
	configDir string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "ragkit",
	Short: "Index documents and answer questions from them",
	Long: `ragkit chunks and embeds your documents into a vector index, retrieves
the passages most relevant to a question and asks a language model to answer
using only those passages.

Get started:
  ragkit settings list          # review providers and pipeline settings
  ragkit index ./docs           # build and save the index
  ragkit ask "What is the refund window?"`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or silent")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.ragkit)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "index data directory (default ~/.ragkit)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs services directly, bypassing Bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	settingsService = s.Settings
	indexService = s.Index
	retrievalService = s.Retrieval
	answerService = s.Answer
	providerChecker = s.Checker
	closeServices = s.Close
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if closeServices != nil {
		if cerr := closeServices(); cerr != nil {
			logger.Warn("closing services: %v", cerr)
		}
	}
	return err
}

func prepare(cmd *cobra.Command, _ []string) error {
	if err := configureLogging(); err != nil {
		return err
	}
	if bootstrap == nil {
		return nil
	}

	opts := Options{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Pipeline:  needsPipeline(cmd),
	}
	if cmd == indexCmd {
		opts.Workers = indexWorkers
		opts.AllOrNothing = indexAllOrNothing
		opts.SkipLoad = !indexAppend
	}

	services, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

func configureLogging() error {
	if logLevel != "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		logger.SetLevel(level)
		return nil
	}
	logger.SetVerbose(verbose)
	return nil
}

func needsPipeline(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationPipeline] == "true" {
			return true
		}
	}
	return false
}

func pipelineAnnotation() map[string]string {
	return map[string]string{annotationPipeline: "true"}
}

var (
	errNoSettings  = errors.New("settings service not configured")
	errNoIndex     = errors.New("index service not configured")
	errNoRetrieval = errors.New("retrieval service not configured")
	errNoAnswer    = errors.New("answer service not configured")
)
