package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := executeCommand("ask")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_PrintsAnswerAndSources(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("ask", "-k", "3", "What is the refund window?")
	require.NoError(t, err)

	assert.Equal(t, 3, ts.answer.opts.K)
	assert.Contains(t, out, "Refunds are accepted within 30 days.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[1] policy.md")
	assert.Contains(t, out, "[2] faq.md")
	assert.NotContains(t, out, "Note:")
}

func TestAskCmd_Degraded(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.answer = &domain.Answer{
		Text:     domain.FallbackUnavailable,
		Sources:  []domain.RetrievalResult{},
		Degraded: true,
		Reason:   "no language model configured",
	}

	out, err := executeCommand("ask", "q")
	require.NoError(t, err)

	assert.Contains(t, out, domain.FallbackUnavailable)
	assert.Contains(t, out, "Note: no language model configured")
	assert.NotContains(t, out, "Sources:")
}

func TestAskCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("ask", "--json", "q")
	require.NoError(t, err)

	var got domain.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Refunds are accepted within 30 days.", got.Text)
	assert.Len(t, got.Sources, 2)
}

func TestAskCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.err = domain.ErrInvalidInput

	_, err := executeCommand("ask", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAskCmd_NoService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	SetServices(nil)

	_, err := executeCommand("ask", "q")
	assert.ErrorIs(t, err, errNoAnswer)
}
