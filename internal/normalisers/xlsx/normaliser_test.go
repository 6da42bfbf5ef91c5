package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Region", "Refunds"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"EMEA", 12}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"APAC", "", "late"}))

	_, err := f.NewSheet("Empty")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestNormaliser_Metadata(t *testing.T) {
	n := New()
	assert.Equal(t, 50, n.Priority())
	assert.Len(t, n.SupportedMIMETypes(), 1)
}

func TestNormalise(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "/reports/q3_refunds.xlsx",
		Content: workbook(t),
	})
	require.NoError(t, err)

	assert.Equal(t, "q3 refunds", doc.Title)
	assert.Equal(t, "Sheet: Sheet1\nRegion | Refunds\nRegion: EMEA; Refunds: 12\nRegion: APAC; C: late", doc.Content)
	assert.Equal(t, 2, doc.Metadata["sheets"])
	assert.Equal(t, "xlsx", doc.Metadata["format"])
}

func TestNormalise_NotAWorkbook(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "/x.xlsx", Content: []byte("nope")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
