package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/ragkit/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragkit/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/services"
	"github.com/custodia-labs/ragkit/internal/logger"
	"github.com/custodia-labs/ragkit/internal/normalisers/registry"
	"github.com/custodia-labs/ragkit/internal/postprocessors/chunker"
)

// homeDirName is the default configuration and data directory under $HOME.
const homeDirName = ".ragkit"

// wire builds the services a command needs. Settings are always available;
// the index pipeline is only assembled when opts.Pipeline is set.
func wire(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configDir, err := resolveDir(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = configDir
	}

	store, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(store)

	result := &cli.Services{
		Settings: settingsService,
		Checker:  ai.ProviderChecker{},
	}
	if !opts.Pipeline {
		return result, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	if opts.Workers > 0 {
		settings.Build.Workers = opts.Workers
	}
	if opts.AllOrNothing {
		settings.Build.AllOrNothing = true
	}

	chunk, err := chunker.NewFromConfig(settings.Pipeline)
	if err != nil {
		return nil, err
	}

	initResult, err := ai.Init(ctx, settings, dataDir)
	if err != nil {
		return nil, err
	}

	var prompts driven.PromptStore
	if ps, err := configfile.NewPromptStore(filepath.Join(configDir, "prompts")); err != nil {
		logger.Warn("prompt templates unavailable, using built-in prompt: %v", err)
	} else {
		prompts = ps
	}

	builder := services.NewIndexBuilder(
		initResult.VectorIndex,
		initResult.IndexStore,
		initResult.EmbeddingService,
		chunk,
		registry.Default(),
		settings.Build,
	)
	if !opts.SkipLoad {
		if err := builder.Load(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
			initResult.Close()
			return nil, err
		}
	}

	retriever := services.NewRetriever(initResult.VectorIndex, initResult.EmbeddingService, settings.Pipeline)
	answers := services.NewAnswerService(retriever, initResult.LLMService, prompts, driven.GenerateOptions{
		MaxTokens:   settings.LLM.MaxTokens,
		Temperature: settings.LLM.Temperature,
	})

	result.Index = builder
	result.Retrieval = retriever
	result.Answer = answers
	result.Close = func() error {
		initResult.Close()
		return nil
	}
	return result, nil
}

// resolveDir returns dir, or ~/.ragkit when dir is empty.
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, homeDirName), nil
}
