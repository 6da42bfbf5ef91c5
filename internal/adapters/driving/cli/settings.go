package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// checkTimeout bounds each provider reachability check.
const checkTimeout = 10 * time.Second

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change chunking, retrieval, index, cache and AI provider settings.

Settings are stored in config.toml in the configuration directory. API keys
can also be supplied through RAGKIT_EMBEDDING_API_KEY and RAGKIT_LLM_API_KEY.`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with their effective values",
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Validate and store one setting. An empty value restores the default.

Examples:
  ragkit settings set chunking.size 800
  ragkit settings set retrieval.metric euclidean
  ragkit settings set retrieval.min_score ""`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured providers are reachable",
	RunE:  runSettingsCheck,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively select the embedding provider, model and API key.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Interactively select the language model provider, model and API key.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	p := newPainter(cmd.OutOrStdout())
	section := ""
	for _, key := range settingsService.Keys() {
		value, err := settingsService.Value(key)
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}

		prefix, _, _ := strings.Cut(key, ".")
		if prefix != section {
			if section != "" {
				cmd.Println()
			}
			cmd.Println(p.heading("[" + prefix + "]"))
			section = prefix
		}
		if value == "" {
			value = p.dim("(not set)")
		}
		cmd.Printf("  %-24s %s\n", key, value)
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	value, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}
	if args[1] == "" {
		cmd.Printf("%s restored to default\n", args[0])
		return nil
	}
	cmd.Printf("%s updated\n", args[0])
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	if providerChecker == nil {
		return errors.New("provider checks not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		cmd.Printf("Configuration: FAILED: %v\n", err)
		return err
	}
	cmd.Println("Configuration: OK")

	failed := false
	report := func(name string, check func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			failed = true
			cmd.Printf("%s: FAILED: %v\n", name, err)
			return
		}
		cmd.Printf("%s: OK\n", name)
	}

	report("Embedding ("+settings.Embedding.Provider.Description()+")", func(ctx context.Context) error {
		return providerChecker.CheckEmbedding(ctx, &settings.Embedding)
	})
	report("LLM ("+settings.LLM.Provider.Description()+")", func(ctx context.Context) error {
		return providerChecker.CheckLLM(ctx, &settings.LLM)
	})

	if failed {
		return errors.New("one or more providers are unreachable")
	}
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return configureProvider(cmd, providerPrompt{
		title:    "Select Embedding Provider",
		prefix:   "embedding",
		defaults: domain.DefaultEmbeddingModels(),
		check: func(ctx context.Context, s *domain.AppSettings) error {
			return providerChecker.CheckEmbedding(ctx, &s.Embedding)
		},
	})
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return configureProvider(cmd, providerPrompt{
		title:    "Select LLM Provider",
		prefix:   "llm",
		defaults: domain.DefaultLLMModels(),
		check: func(ctx context.Context, s *domain.AppSettings) error {
			return providerChecker.CheckLLM(ctx, &s.LLM)
		},
	})
}

// providerPrompt describes one interactive provider selection.
type providerPrompt struct {
	title    string
	prefix   string
	defaults map[domain.AIProvider]string
	check    func(ctx context.Context, s *domain.AppSettings) error
}

func configureProvider(cmd *cobra.Command, prompt providerPrompt) error {
	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	cmd.Println(prompt.title)
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := prompt.defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(in, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	values := [][2]string{
		{prompt.prefix + ".provider", string(selected)},
		{prompt.prefix + ".model", model},
		{prompt.prefix + ".api_key", apiKey},
	}
	for _, kv := range values {
		if err := settingsService.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to configure %s provider: %w", prompt.prefix, err)
		}
	}

	if providerChecker != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return err
		}
		cmd.Print("Validating configuration... ")
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()
		if err := prompt.check(ctx, settings); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("%s configuration validation failed: %w", prompt.prefix, err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Provider configured: %s (%s)\n", selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise a plain line.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}
