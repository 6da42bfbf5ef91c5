// Package xlsx renders spreadsheet workbooks as text, one line per row.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Office Open XML workbooks.
type Normaliser struct{}

// New creates a new workbook normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise renders every sheet. The first row of a sheet is treated as the
// header and each following row is written as "header: value" pairs, so a
// chunk cut mid-sheet still says what its numbers mean.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", domain.ErrInvalidInput, raw.URI, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Sheet: ")
		b.WriteString(sheet)
		b.WriteString("\n")
		writeRows(&b, rows)
	}

	doc := normalisers.NewDocument(raw, "", strings.TrimRight(b.String(), "\n"), "xlsx")
	doc.Metadata["sheets"] = len(sheets)
	return doc, nil
}

func writeRows(b *strings.Builder, rows [][]string) {
	header := rows[0]
	b.WriteString(strings.Join(header, " | "))
	b.WriteString("\n")

	for _, row := range rows[1:] {
		var cells []string
		for i, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			name := ""
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			if name == "" {
				name, _ = excelize.ColumnNumberToName(i + 1)
			}
			cells = append(cells, name+": "+value)
		}
		if len(cells) == 0 {
			continue
		}
		b.WriteString(strings.Join(cells, "; "))
		b.WriteString("\n")
	}
}
