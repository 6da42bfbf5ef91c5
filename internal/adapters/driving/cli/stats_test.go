package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func TestStatsCmd_PrintsHeader(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("stats")
	require.NoError(t, err)

	assert.Contains(t, out, "Location:  /tmp/index.ragx")
	assert.Contains(t, out, "Metric:    cosine")
	assert.Contains(t, out, "Dimension: 3")
	assert.Contains(t, out, "Records:   5")
	assert.Contains(t, out, "Search:    exact")
	assert.NotContains(t, out, "The index is empty")
}

func TestStatsCmd_EmptyIndex(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.stats = domain.IndexStats{Metric: domain.MetricEuclidean, Approximate: true}

	out, err := executeCommand("stats")
	require.NoError(t, err)

	assert.Contains(t, out, "approximate (IVF)")
	assert.Contains(t, out, "The index is empty")
}

func TestStatsCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("stats", "--json")
	require.NoError(t, err)

	var got domain.IndexStats
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, ts.index.stats, got)
}
