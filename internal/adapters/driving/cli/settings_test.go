package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func TestSettingsList(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "[chunking]")
	assert.Contains(t, out, "[retrieval]")
	assert.Regexp(t, `chunking\.size\s+1000`, out)
	assert.Regexp(t, `retrieval\.min_score\s+\(not set\)`, out)
}

func TestSettings_DefaultsToList(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings")
	require.NoError(t, err)
	assert.Contains(t, out, "[embedding]")
}

func TestSettingsSetGet(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "set", "retrieval.top_k", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "retrieval.top_k updated")

	out, err = executeCommand("settings", "get", "retrieval.top_k")
	require.NoError(t, err)
	assert.Equal(t, "8\n", out)

	out, err = executeCommand("settings", "set", "retrieval.top_k", "")
	require.NoError(t, err)
	assert.Contains(t, out, "restored to default")

	out, err = executeCommand("settings", "get", "retrieval.top_k")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestSettingsSet_Invalid(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("settings", "set", "retrieval.metric", "manhattan")
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))

	_, err = executeCommand("settings", "get", "retrieval.colour")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSettingsCheck(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration: OK")
	assert.Contains(t, out, "Embedding (")
	assert.Contains(t, out, "LLM (")
	require.NotNil(t, ts.checker.embedding)
	assert.Equal(t, domain.AIProviderOllama, ts.checker.embedding.Provider)
}

func TestSettingsCheck_Unreachable(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.llmErr = domain.ErrLLMUnavailable

	out, err := executeCommand("settings", "check")
	require.Error(t, err)
	assert.Contains(t, out, "LLM (")
	assert.Contains(t, out, "FAILED")
}

func TestSettingsEmbedding_Interactive(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	// provider 2 (OpenAI), default model, API key
	out, err := executeWithInput("2\n\nsk-test-key\n", "settings", "embedding")
	require.NoError(t, err)
	assert.Contains(t, out, "Validating configuration... OK")

	settings, err := ts.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderOpenAI], settings.Embedding.Model)
	assert.Equal(t, "sk-test-key", settings.Embedding.APIKey)
}

func TestSettingsLLM_MissingAPIKey(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeWithInput("3\ngemini-2.0-flash\n\n", "settings", "llm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestSettingsLLM_ValidationFails(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.llmErr = domain.ErrLLMUnavailable

	out, err := executeWithInput("1\nllama3.2\n", "settings", "llm")
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestSettings_NoService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	SetServices(nil)

	_, err := executeCommand("settings", "list")
	assert.ErrorIs(t, err, errNoSettings)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{name: "Empty input returns default", input: "", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Valid choice within range", input: "2", maxVal: 3, defaultVal: 1, expected: 2},
		{name: "Choice below minimum returns default", input: "0", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Choice above maximum returns default", input: "4", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Invalid input returns default", input: "abc", maxVal: 3, defaultVal: 2, expected: 2},
		{name: "Maximum value is valid", input: "3", maxVal: 3, defaultVal: 1, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, tt.maxVal, tt.defaultVal))
		})
	}
}
